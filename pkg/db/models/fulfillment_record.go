package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/types"
)

// FulfillmentRecord is one purchase request sent to one supplier on behalf
// of one order. At most one exists per (order, supplier); the orchestrator
// reuses a prior record instead of duplicating it. ExternalOrderID being set
// is the durable signal that a placement already succeeded, so retry paths
// must check it before calling the supplier again.
type FulfillmentRecord struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID               `gorm:"column:order_id;type:uuid;not null;uniqueIndex:uq_fulfillments_order_supplier"`
	SupplierID      uuid.UUID               `gorm:"column:supplier_id;type:uuid;not null;uniqueIndex:uq_fulfillments_order_supplier"`
	ExternalOrderID *string                 `gorm:"column:external_order_id"`
	Status          enums.FulfillmentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Attempts        int                     `gorm:"column:attempts;not null;default:0"`
	LastError       *string                 `gorm:"column:last_error"`
	NextAttemptAt   *time.Time              `gorm:"column:next_attempt_at"`
	RawResponse     types.JSONMap           `gorm:"column:raw_response;type:jsonb;serializer:json"`
	Supplier        *Supplier               `gorm:"foreignKey:SupplierID"`
	Shipment        *Shipment               `gorm:"foreignKey:FulfillmentRecordID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (f *FulfillmentRecord) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
