package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// Shipment is the tracking wrapper for one fulfillment record. It appears
// the first time the supplier reports the sub-order as shipped.
type Shipment struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	FulfillmentRecordID uuid.UUID            `gorm:"column:fulfillment_record_id;type:uuid;not null;uniqueIndex"`
	OrderID             uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	TrackingNumber      *string              `gorm:"column:tracking_number"`
	Courier             *string              `gorm:"column:courier"`
	Status              enums.ShipmentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ShippedAt           *time.Time           `gorm:"column:shipped_at"`
	DeliveredAt         *time.Time           `gorm:"column:delivered_at"`
	Events              []ShipmentEvent      `gorm:"foreignKey:ShipmentID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shipment) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
