package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/types"
)

// Order is one customer checkout. The payment-confirmation path sets the
// payment fields exactly once; afterwards only the status aggregator and
// explicit cancellation mutate the status. Orders are never deleted.
type Order struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID         uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index"`
	TotalAmount        decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency           string                `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status             enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus      enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentReference   *string               `gorm:"column:payment_reference"`
	PaidAt             *time.Time            `gorm:"column:paid_at"`
	Shipping           types.ShippingAddress `gorm:"column:shipping;type:jsonb;serializer:json"`
	Items              []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	FulfillmentRecords []FulfillmentRecord   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
