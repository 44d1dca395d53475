package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/pkg/types"
)

// OrderItem snapshots one purchased product line. Unit price and the
// supplier-side external id are captured at purchase time and never follow
// later catalog changes. The product reference is nullable because products
// may be deleted after the sale.
type OrderItem struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID         *uuid.UUID         `gorm:"column:product_id;type:uuid"`
	SupplierID        uuid.UUID          `gorm:"column:supplier_id;type:uuid;not null"`
	ExternalProductID string             `gorm:"column:external_product_id;not null"`
	Title             string             `gorm:"column:title;not null"`
	Qty               int                `gorm:"column:qty;not null"`
	UnitPrice         decimal.Decimal    `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Variant           *types.VariantInfo `gorm:"column:variant;type:jsonb;serializer:json"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
