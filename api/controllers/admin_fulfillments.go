package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/api/responses"
	"github.com/angelmondragon/dropship-backend/api/validators"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

type failedRecordLister interface {
	ListFailedRecords(ctx context.Context, limit, offset int) ([]models.FulfillmentRecord, int64, error)
}

type recordProcessor interface {
	ProcessRecord(ctx context.Context, recordID uuid.UUID) (fulfillment.SupplierOutcome, error)
}

type retrySweeper interface {
	RetryFailed(ctx context.Context) (*fulfillment.RetryResult, error)
}

type reconcilePoller interface {
	PollActiveFulfillments(ctx context.Context) (*fulfillment.ReconcileResult, error)
}

// AdminFulfillmentsController exposes the operator surface: inspect failed
// records and trigger the same workflows the cron jobs run on schedule.
type AdminFulfillmentsController struct {
	store      failedRecordLister
	processor  recordProcessor
	sweeper    retrySweeper
	reconciler reconcilePoller
	logg       *logger.Logger
}

type AdminFulfillmentsControllerParams struct {
	Store      failedRecordLister
	Processor  recordProcessor
	Sweeper    retrySweeper
	Reconciler reconcilePoller
	Logger     *logger.Logger
}

func NewAdminFulfillmentsController(params AdminFulfillmentsControllerParams) (*AdminFulfillmentsController, error) {
	if params.Store == nil {
		return nil, errors.New("admin fulfillments controller: store is required")
	}
	if params.Processor == nil {
		return nil, errors.New("admin fulfillments controller: processor is required")
	}
	if params.Sweeper == nil {
		return nil, errors.New("admin fulfillments controller: sweeper is required")
	}
	if params.Reconciler == nil {
		return nil, errors.New("admin fulfillments controller: reconciler is required")
	}
	if params.Logger == nil {
		return nil, errors.New("admin fulfillments controller: logger is required")
	}
	return &AdminFulfillmentsController{
		store:      params.Store,
		processor:  params.Processor,
		sweeper:    params.Sweeper,
		reconciler: params.Reconciler,
		logg:       params.Logger,
	}, nil
}

type failedRecordDTO struct {
	ID            uuid.UUID  `json:"id"`
	OrderID       uuid.UUID  `json:"order_id"`
	SupplierID    uuid.UUID  `json:"supplier_id"`
	SupplierName  string     `json:"supplier_name,omitempty"`
	Attempts      int        `json:"attempts"`
	LastError     *string    `json:"last_error,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ListFailed returns failed fulfillment records, newest first.
func (c *AdminFulfillmentsController) ListFailed(w http.ResponseWriter, r *http.Request) {
	limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 100000)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	records, total, err := c.store.ListFailedRecords(r.Context(), limit, offset)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list records"))
		return
	}

	dtos := make([]failedRecordDTO, 0, len(records))
	for _, record := range records {
		dto := failedRecordDTO{
			ID:            record.ID,
			OrderID:       record.OrderID,
			SupplierID:    record.SupplierID,
			Attempts:      record.Attempts,
			LastError:     record.LastError,
			NextAttemptAt: record.NextAttemptAt,
			UpdatedAt:     record.UpdatedAt,
		}
		if record.Supplier != nil {
			dto.SupplierName = record.Supplier.Name
		}
		dtos = append(dtos, dto)
	}

	responses.WriteSuccess(w, map[string]any{
		"records": dtos,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// RetryRecord re-drives one fulfillment record immediately, bypassing the
// backoff gate but not the lease or the already-placed check.
func (c *AdminFulfillmentsController) RetryRecord(w http.ResponseWriter, r *http.Request) {
	recordID, err := uuid.Parse(chi.URLParam(r, "recordId"))
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "recordId must be a valid uuid"))
		return
	}

	ctx := c.logg.WithRecordID(r.Context(), recordID.String())
	outcome, err := c.processor.ProcessRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "fulfillment record not found"))
			return
		}
		responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to retry record"))
		return
	}

	body := map[string]any{
		"record_id": outcome.RecordID,
		"skipped":   outcome.Skipped,
	}
	if outcome.ExternalOrderID != "" {
		body["external_order_id"] = outcome.ExternalOrderID
	}
	if outcome.Err != nil {
		body["error"] = outcome.Err.Error()
	}
	responses.WriteSuccess(w, body)
}

// RetrySweep runs the failed-record retry sweep on demand.
func (c *AdminFulfillmentsController) RetrySweep(w http.ResponseWriter, r *http.Request) {
	result, err := c.sweeper.RetryFailed(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "retry sweep failed"))
		return
	}
	responses.WriteSuccess(w, map[string]any{
		"scanned": result.Scanned,
		"placed":  result.Placed,
		"failed":  result.Failed,
		"skipped": result.Skipped,
	})
}

// Reconcile polls supplier and courier state for active fulfillments on
// demand.
func (c *AdminFulfillmentsController) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := c.reconciler.PollActiveFulfillments(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reconcile failed"))
		return
	}
	responses.WriteSuccess(w, map[string]any{
		"polled_records":   result.PolledRecords,
		"updated_records":  result.UpdatedRecords,
		"orders_updated":   result.OrdersUpdated,
		"shipments_polled": result.ShipmentsPolled,
		"events_added":     result.EventsAdded,
	})
}
