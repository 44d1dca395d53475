package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShipmentEvent is one append-only entry in a shipment's tracking history.
// Rows are deduplicated by (shipment, event time) so re-polling the same
// courier feed never inserts duplicates.
type ShipmentEvent struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ShipmentID  uuid.UUID `gorm:"column:shipment_id;type:uuid;not null;uniqueIndex:uq_shipment_events_time"`
	Status      string    `gorm:"column:status;not null"`
	Description string    `gorm:"column:description"`
	Location    string    `gorm:"column:location"`
	EventTime   time.Time `gorm:"column:event_time;not null;uniqueIndex:uq_shipment_events_time"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (e *ShipmentEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
