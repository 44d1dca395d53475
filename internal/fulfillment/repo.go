package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/dropship-backend/internal/connectors"
	"github.com/angelmondragon/dropship-backend/pkg/db"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/types"
)

// Repo is the GORM-backed Store implementation.
type Repo struct {
	db *gorm.DB
}

func NewRepo(conn *gorm.DB) *Repo {
	return &Repo{db: conn}
}

func (r *Repo) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repo) GetOrderWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderWithDetails loads an order with its items, fulfillment records,
// and shipment history. Used by the customer-facing order status read.
func (r *Repo) GetOrderWithDetails(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("FulfillmentRecords").
		Preload("FulfillmentRecords.Supplier").
		Preload("FulfillmentRecords.Shipment").
		Preload("FulfillmentRecords.Shipment.Events").
		First(&order, "id = ?", orderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repo) MarkOrderProcessing(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPaid).
		Update("status", enums.OrderStatusProcessing)
	return res.RowsAffected > 0, res.Error
}

// MarkOrderPaid records a completed payment exactly once: the transition
// only fires while the order is still pending.
func (r *Repo) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, paymentReference string, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":            enums.OrderStatusPaid,
			"payment_status":    enums.PaymentStatusCompleted,
			"payment_reference": paymentReference,
			"paid_at":           paidAt,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *Repo) SetOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status).Error
}

func (r *Repo) GetSupplier(ctx context.Context, supplierID uuid.UUID) (*models.Supplier, error) {
	var supplier models.Supplier
	if err := r.db.WithContext(ctx).First(&supplier, "id = ?", supplierID).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *Repo) EnsureRecord(ctx context.Context, orderID, supplierID uuid.UUID) (*models.FulfillmentRecord, error) {
	var record models.FulfillmentRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND supplier_id = ?", orderID, supplierID).
		First(&record).Error
	if err == nil {
		return &record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	record = models.FulfillmentRecord{
		OrderID:    orderID,
		SupplierID: supplierID,
		Status:     enums.FulfillmentStatusPending,
	}
	if createErr := r.db.WithContext(ctx).Create(&record).Error; createErr != nil {
		if !db.IsUniqueViolation(createErr, "uq_fulfillments_order_supplier") {
			return nil, createErr
		}
		// Lost the race; reuse the row the other worker created.
		err = r.db.WithContext(ctx).
			Where("order_id = ? AND supplier_id = ?", orderID, supplierID).
			First(&record).Error
		if err != nil {
			return nil, err
		}
	}
	return &record, nil
}

func (r *Repo) GetRecord(ctx context.Context, recordID uuid.UUID) (*models.FulfillmentRecord, error) {
	var record models.FulfillmentRecord
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		First(&record, "id = ?", recordID).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repo) MarkRecordOrdered(ctx context.Context, recordID uuid.UUID, externalOrderID string, raw types.JSONMap) error {
	return r.db.WithContext(ctx).
		Model(&models.FulfillmentRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]any{
			"external_order_id": externalOrderID,
			"status":            enums.FulfillmentStatusOrdered,
			"last_error":        nil,
			"next_attempt_at":   nil,
			"raw_response":      raw,
		}).Error
}

func (r *Repo) MarkRecordFailed(ctx context.Context, recordID uuid.UUID, lastError string, nextAttemptAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.FulfillmentRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]any{
			"status":          enums.FulfillmentStatusFailed,
			"attempts":        gorm.Expr("attempts + 1"),
			"last_error":      lastError,
			"next_attempt_at": nextAttemptAt,
		}).Error
}

func (r *Repo) MarkRecordShipped(ctx context.Context, recordID uuid.UUID, trackingNumber, courier *string, shippedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.FulfillmentRecord
		if err := tx.First(&record, "id = ?", recordID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.FulfillmentRecord{}).
			Where("id = ?", recordID).
			Update("status", enums.FulfillmentStatusShipped).Error; err != nil {
			return err
		}

		var shipment models.Shipment
		err := tx.Where("fulfillment_record_id = ?", recordID).First(&shipment).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		shipment = models.Shipment{
			FulfillmentRecordID: recordID,
			OrderID:             record.OrderID,
			TrackingNumber:      trackingNumber,
			Courier:             courier,
			Status:              enums.ShipmentStatusInTransit,
			ShippedAt:           &shippedAt,
		}
		if err := tx.Create(&shipment).Error; err != nil && !db.IsUniqueViolation(err, "") {
			return err
		}
		return nil
	})
}

func (r *Repo) MarkRecordDelivered(ctx context.Context, recordID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.FulfillmentRecord{}).
		Where("id = ?", recordID).
		Update("status", enums.FulfillmentStatusDelivered).Error
}

func (r *Repo) ListRetryable(ctx context.Context, maxAttempts int, now time.Time, limit int) ([]models.FulfillmentRecord, error) {
	var records []models.FulfillmentRecord
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Where("status = ? AND attempts < ?", enums.FulfillmentStatusFailed, maxAttempts).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("updated_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *Repo) ListActiveRecords(ctx context.Context, limit int) ([]models.FulfillmentRecord, error) {
	var records []models.FulfillmentRecord
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Where("status IN ? AND external_order_id IS NOT NULL",
			[]enums.FulfillmentStatus{enums.FulfillmentStatusOrdered, enums.FulfillmentStatusShipped}).
		Order("updated_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *Repo) ListOrderRecords(ctx context.Context, orderID uuid.UUID) ([]models.FulfillmentRecord, error) {
	var records []models.FulfillmentRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

// ListFailedRecords pages through failed records for the admin surface.
func (r *Repo) ListFailedRecords(ctx context.Context, limit, offset int) ([]models.FulfillmentRecord, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.FulfillmentRecord{}).
		Where("status = ?", enums.FulfillmentStatusFailed)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.FulfillmentRecord
	err := query.
		Preload("Supplier").
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	return records, total, err
}

func (r *Repo) ListActiveShipments(ctx context.Context, limit int) ([]models.Shipment, error) {
	var shipments []models.Shipment
	err := r.db.WithContext(ctx).
		Where("status IN ? AND tracking_number IS NOT NULL", []enums.ShipmentStatus{
			enums.ShipmentStatusPickedUp,
			enums.ShipmentStatusInTransit,
			enums.ShipmentStatusOutForDelivery,
		}).
		Order("updated_at ASC").
		Limit(limit).
		Find(&shipments).Error
	return shipments, err
}

func (r *Repo) AppendShipmentEvents(ctx context.Context, shipmentID uuid.UUID, events []connectors.TrackingEvent) (int, error) {
	inserted := 0
	for _, event := range events {
		row := models.ShipmentEvent{
			ShipmentID:  shipmentID,
			Status:      event.Status,
			Description: event.Description,
			Location:    event.Location,
			EventTime:   event.Time.UTC(),
		}
		res := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "shipment_id"}, {Name: "event_time"}},
				DoNothing: true,
			}).
			Create(&row)
		if res.Error != nil {
			return inserted, res.Error
		}
		if res.RowsAffected > 0 {
			inserted++
		}
	}
	return inserted, nil
}

func (r *Repo) UpdateShipmentStatus(ctx context.Context, shipmentID uuid.UUID, status enums.ShipmentStatus, deliveredAt *time.Time) error {
	updates := map[string]any{"status": status}
	if deliveredAt != nil {
		updates["delivered_at"] = *deliveredAt
	}
	return r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ?", shipmentID).
		Updates(updates).Error
}
