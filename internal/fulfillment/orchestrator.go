package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dropship-backend/internal/connectors"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
	"github.com/angelmondragon/dropship-backend/pkg/metrics"
)

// SupplierOutcome reports what happened to one supplier's slice of an order.
type SupplierOutcome struct {
	SupplierID      uuid.UUID
	RecordID        uuid.UUID
	ExternalOrderID string
	Skipped         bool
	Err             error
}

// ProcessResult summarizes one ProcessOrder run. Success means every
// supplier group ended with a placed order.
type ProcessResult struct {
	OrderID  uuid.UUID
	Outcomes []SupplierOutcome
	Success  bool
}

// Orchestrator turns a paid order into one supplier order per supplier
// represented in its items.
type Orchestrator struct {
	store    Store
	registry Registry
	leaser   Leaser
	logg     *logger.Logger
	metrics  *metrics.FulfillmentMetrics
	cfg      config.FulfillmentConfig
	now      func() time.Time
}

type OrchestratorParams struct {
	Store    Store
	Registry Registry
	Leaser   Leaser
	Logger   *logger.Logger
	Metrics  *metrics.FulfillmentMetrics
	Config   config.FulfillmentConfig
	Now      func() time.Time
}

func NewOrchestrator(p OrchestratorParams) (*Orchestrator, error) {
	if p.Store == nil {
		return nil, errors.New("store is required")
	}
	if p.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if p.Leaser == nil {
		return nil, errors.New("leaser is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if p.Metrics == nil {
		return nil, errors.New("metrics is required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Orchestrator{
		store:    p.Store,
		registry: p.Registry,
		leaser:   p.Leaser,
		logg:     p.Logger,
		metrics:  p.Metrics,
		cfg:      p.Config,
		now:      p.Now,
	}, nil
}

// ProcessOrder partitions a paid order by supplier and places one supplier
// order per group. Each group succeeds or fails independently; a failure in
// one never rolls back another. Calling it on an order that is not in paid
// state is a no-op.
func (o *Orchestrator) ProcessOrder(ctx context.Context, orderID uuid.UUID) (*ProcessResult, error) {
	ctx = o.logg.WithOrderID(ctx, orderID.String())
	result := &ProcessResult{OrderID: orderID}

	order, err := o.store.GetOrderWithItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPaid {
		o.logg.Info(ctx, "order is not in paid status, skipping")
		return result, nil
	}

	won, err := o.store.MarkOrderProcessing(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !won {
		o.logg.Info(ctx, "order already taken by another worker, skipping")
		return result, nil
	}

	groups := groupItemsBySupplier(order.Items)
	if len(groups) == 0 {
		o.logg.Warn(ctx, "paid order has no items to fulfill")
	}

	for _, group := range groups {
		result.Outcomes = append(result.Outcomes, o.placeForSupplier(ctx, order, group))
	}

	result.Success = true
	for _, outcome := range result.Outcomes {
		if outcome.Err != nil || outcome.Skipped {
			result.Success = false
			break
		}
	}

	// Fresh records can only be ordered or failed, so the derived status is
	// processing either way today; running the fold here keeps the order in
	// sync even if a placement path ever produces a further state.
	if _, err := syncOrderStatus(ctx, o.store, orderID); err != nil {
		o.logg.Error(ctx, "refreshing order status after placement", err)
	}
	return result, nil
}

func (o *Orchestrator) placeForSupplier(ctx context.Context, order *models.Order, group supplierGroup) SupplierOutcome {
	outcome := SupplierOutcome{SupplierID: group.SupplierID}

	supplier, err := o.store.GetSupplier(ctx, group.SupplierID)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	ctx = o.logg.WithSupplier(ctx, supplier.Type.String())

	record, err := o.store.EnsureRecord(ctx, order.ID, group.SupplierID)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.RecordID = record.ID
	ctx = o.logg.WithRecordID(ctx, record.ID.String())

	release, err := o.leaser.AcquireRecord(ctx, record.ID, o.cfg.RecordLeaseTTL)
	if err != nil {
		if errors.Is(err, ErrRecordLeased) {
			o.logg.Info(ctx, "record leased elsewhere, skipping")
			outcome.Skipped = true
			return outcome
		}
		outcome.Err = err
		return outcome
	}
	defer release()

	// Re-read inside the lease: a previous run may have placed the supplier
	// order already.
	fresh, err := o.store.GetRecord(ctx, record.ID)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if fresh.ExternalOrderID != nil {
		o.logg.Info(ctx, "supplier order already placed, skipping")
		outcome.ExternalOrderID = *fresh.ExternalOrderID
		return outcome
	}

	return o.place(ctx, order, supplier, fresh, group.Items)
}

// ProcessRecord places (or re-places) the supplier order for a single
// fulfillment record. It is the unit of work behind both the retry
// scheduler and the manual admin trigger.
func (o *Orchestrator) ProcessRecord(ctx context.Context, recordID uuid.UUID) (SupplierOutcome, error) {
	ctx = o.logg.WithRecordID(ctx, recordID.String())
	outcome := SupplierOutcome{RecordID: recordID}

	release, err := o.leaser.AcquireRecord(ctx, recordID, o.cfg.RecordLeaseTTL)
	if err != nil {
		if errors.Is(err, ErrRecordLeased) {
			o.logg.Info(ctx, "record leased elsewhere, skipping")
			outcome.Skipped = true
			return outcome, nil
		}
		return outcome, err
	}
	defer release()

	record, err := o.store.GetRecord(ctx, recordID)
	if err != nil {
		return outcome, err
	}
	outcome.SupplierID = record.SupplierID

	if record.ExternalOrderID != nil {
		o.logg.Info(ctx, "supplier order already placed, skipping")
		outcome.ExternalOrderID = *record.ExternalOrderID
		return outcome, nil
	}

	supplier := record.Supplier
	if supplier == nil {
		supplier, err = o.store.GetSupplier(ctx, record.SupplierID)
		if err != nil {
			return outcome, err
		}
	}
	ctx = o.logg.WithSupplier(ctx, supplier.Type.String())

	order, err := o.store.GetOrderWithItems(ctx, record.OrderID)
	if err != nil {
		return outcome, err
	}
	ctx = o.logg.WithOrderID(ctx, order.ID.String())

	return o.place(ctx, order, supplier, record, itemsForSupplier(order.Items, record.SupplierID)), nil
}

func (o *Orchestrator) place(ctx context.Context, order *models.Order, supplier *models.Supplier, record *models.FulfillmentRecord, items []models.OrderItem) SupplierOutcome {
	outcome := SupplierOutcome{SupplierID: supplier.ID, RecordID: record.ID}

	connector, err := o.registry.Resolve(supplier.Type)
	if err != nil {
		outcome.Err = o.failRecord(ctx, supplier, record, err)
		return outcome
	}

	req, err := buildPlaceOrderRequest(order, items)
	if err != nil {
		outcome.Err = o.failRecord(ctx, supplier, record, err)
		return outcome
	}

	auth := connectors.Auth{APIKey: supplier.APIKey, APISecret: supplier.APISecret, Config: supplier.Config}
	start := o.now()
	placed, err := connector.PlaceOrder(ctx, auth, req)
	o.metrics.ObservePlacement(supplier.Type.String(), o.now().Sub(start))
	if err != nil {
		outcome.Err = o.failRecord(ctx, supplier, record, err)
		return outcome
	}

	if err := o.store.MarkRecordOrdered(ctx, record.ID, placed.ExternalOrderID, placed.Raw); err != nil {
		outcome.Err = err
		return outcome
	}

	o.metrics.IncPlacement(supplier.Type.String(), "success")
	o.logg.Info(o.logg.WithField(ctx, "external_order_id", placed.ExternalOrderID), "supplier order placed")
	outcome.ExternalOrderID = placed.ExternalOrderID
	return outcome
}

// failRecord persists a failed attempt and schedules the earliest moment the
// retry scheduler may touch the record again.
func (o *Orchestrator) failRecord(ctx context.Context, supplier *models.Supplier, record *models.FulfillmentRecord, cause error) error {
	o.metrics.IncPlacement(supplier.Type.String(), "failure")

	attempt := record.Attempts + 1
	nextAttemptAt := o.now().Add(retryBackoff(attempt, o.cfg.RetryBackoffBase, o.cfg.RetryBackoffCap))
	if err := o.store.MarkRecordFailed(ctx, record.ID, cause.Error(), nextAttemptAt); err != nil {
		o.logg.Error(ctx, "persisting placement failure", err)
		return errors.Join(cause, err)
	}

	o.logg.Error(o.logg.WithField(ctx, "attempt", attempt), "supplier order placement failed", cause)
	return cause
}
