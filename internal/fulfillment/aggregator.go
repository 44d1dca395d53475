package fulfillment

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// DeriveOrderStatus folds the per-supplier record states onto the customer
// facing order status:
//
//   - terminal statuses (delivered, cancelled, refunded) never change
//   - all records delivered  -> delivered
//   - all records at least shipped -> shipped
//   - anything else, including partial failures -> processing
//
// A failed record keeps the order in processing because the retry scheduler
// may still recover it; giving up is an explicit operator action.
func DeriveOrderStatus(current enums.OrderStatus, records []models.FulfillmentRecord) enums.OrderStatus {
	if current.IsTerminal() {
		return current
	}
	if len(records) == 0 {
		return current
	}

	allDelivered := true
	allShipped := true
	for _, record := range records {
		if record.Status != enums.FulfillmentStatusDelivered {
			allDelivered = false
		}
		if !record.Status.AtLeastShipped() {
			allShipped = false
		}
	}

	switch {
	case allDelivered:
		return enums.OrderStatusDelivered
	case allShipped:
		return enums.OrderStatusShipped
	default:
		return enums.OrderStatusProcessing
	}
}

// syncOrderStatus re-reads an order and its records, derives the aggregate
// status, and persists it when it changed. Shared by the orchestrator and
// the reconciler so every path that mutates records ends with the same fold.
func syncOrderStatus(ctx context.Context, store Store, orderID uuid.UUID) (bool, error) {
	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	records, err := store.ListOrderRecords(ctx, orderID)
	if err != nil {
		return false, err
	}

	next := DeriveOrderStatus(order.Status, records)
	if next == order.Status {
		return false, nil
	}
	return true, store.SetOrderStatus(ctx, orderID, next)
}
