package webhooks

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dropship-backend/api/responses"
	"github.com/angelmondragon/dropship-backend/api/validators"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

type paymentStore interface {
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID, paymentReference string, paidAt time.Time) (bool, error)
}

type orderPaidPublisher interface {
	PublishOrderPaid(ctx context.Context, orderID uuid.UUID, paymentReference string) error
}

// PaymentsController receives payment-provider confirmations. The provider
// retries deliveries, so the handler must stay idempotent: marking an order
// paid happens at most once, and replays re-emit the paid event so a lost
// publish is recovered on the next delivery.
type PaymentsController struct {
	store     paymentStore
	publisher orderPaidPublisher
	logg      *logger.Logger
	now       func() time.Time
}

type PaymentsControllerParams struct {
	Store     paymentStore
	Publisher orderPaidPublisher
	Logger    *logger.Logger
	Now       func() time.Time
}

func NewPaymentsController(params PaymentsControllerParams) (*PaymentsController, error) {
	if params.Store == nil {
		return nil, errors.New("payments controller: store is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("payments controller: publisher is required")
	}
	if params.Logger == nil {
		return nil, errors.New("payments controller: logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &PaymentsController{
		store:     params.Store,
		publisher: params.Publisher,
		logg:      params.Logger,
		now:       now,
	}, nil
}

type paymentConfirmation struct {
	OrderID          string     `json:"order_id" validate:"required,uuid"`
	PaymentReference string     `json:"payment_reference" validate:"required"`
	Status           string     `json:"status" validate:"required"`
	PaidAt           *time.Time `json:"paid_at"`
}

// HandlePaymentConfirmed applies a payment confirmation to the order and
// publishes the paid event that starts fulfillment.
func (c *PaymentsController) HandlePaymentConfirmed(w http.ResponseWriter, r *http.Request) {
	var body paymentConfirmation
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	orderID, err := uuid.Parse(body.OrderID)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order_id must be a valid uuid"))
		return
	}

	ctx := c.logg.WithOrderID(r.Context(), orderID.String())

	if body.Status != "succeeded" {
		// Failed or pending confirmations are acknowledged and dropped;
		// the provider only hands fulfillment a completed payment.
		c.logg.Info(c.logg.WithField(ctx, "payment_status", body.Status), "ignoring non-success payment confirmation")
		responses.WriteSuccess(w, map[string]any{"order_id": orderID, "applied": false})
		return
	}

	paidAt := c.now().UTC()
	if body.PaidAt != nil {
		paidAt = body.PaidAt.UTC()
	}

	won, err := c.store.MarkOrderPaid(ctx, orderID, body.PaymentReference, paidAt)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to record payment"))
		return
	}
	if !won {
		c.logg.Info(ctx, "payment confirmation replayed")
	}

	// Publish on replays too: if a previous delivery marked the order paid
	// but the publish was lost, the provider's retry re-emits the event.
	// The fulfillment worker is idempotent against duplicates.
	if err := c.publisher.PublishOrderPaid(ctx, orderID, body.PaymentReference); err != nil {
		responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to publish paid event"))
		return
	}

	c.logg.Info(ctx, "payment confirmation applied")
	responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{
		"order_id": orderID,
		"applied":  won,
	})
}
