package fulfillment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dropship-backend/internal/connectors"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/types"
)

// Store is the persistence surface shared by the orchestrator, retry
// scheduler, and reconciler. One GORM-backed implementation lives in this
// package; tests substitute fakes.
type Store interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetOrderWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// MarkOrderProcessing flips paid -> processing and reports whether this
	// caller won the transition.
	MarkOrderProcessing(ctx context.Context, orderID uuid.UUID) (bool, error)
	SetOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error

	GetSupplier(ctx context.Context, supplierID uuid.UUID) (*models.Supplier, error)

	// EnsureRecord returns the unique record for (order, supplier), creating
	// it in pending state when absent.
	EnsureRecord(ctx context.Context, orderID, supplierID uuid.UUID) (*models.FulfillmentRecord, error)
	GetRecord(ctx context.Context, recordID uuid.UUID) (*models.FulfillmentRecord, error)
	MarkRecordOrdered(ctx context.Context, recordID uuid.UUID, externalOrderID string, raw types.JSONMap) error
	MarkRecordFailed(ctx context.Context, recordID uuid.UUID, lastError string, nextAttemptAt time.Time) error
	MarkRecordShipped(ctx context.Context, recordID uuid.UUID, trackingNumber, courier *string, shippedAt time.Time) error
	MarkRecordDelivered(ctx context.Context, recordID uuid.UUID) error

	ListRetryable(ctx context.Context, maxAttempts int, now time.Time, limit int) ([]models.FulfillmentRecord, error)
	ListActiveRecords(ctx context.Context, limit int) ([]models.FulfillmentRecord, error)
	ListOrderRecords(ctx context.Context, orderID uuid.UUID) ([]models.FulfillmentRecord, error)

	ListActiveShipments(ctx context.Context, limit int) ([]models.Shipment, error)
	AppendShipmentEvents(ctx context.Context, shipmentID uuid.UUID, events []connectors.TrackingEvent) (int, error)
	UpdateShipmentStatus(ctx context.Context, shipmentID uuid.UUID, status enums.ShipmentStatus, deliveredAt *time.Time) error
}

// Registry resolves a supplier type to its API connector.
type Registry interface {
	Resolve(supplierType enums.SupplierType) (connectors.Connector, error)
}

// Leaser grants short exclusive leases on fulfillment records so overlapping
// runs skip instead of double-ordering.
type Leaser interface {
	AcquireRecord(ctx context.Context, recordID uuid.UUID, ttl time.Duration) (release func(), err error)
}
