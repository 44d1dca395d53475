package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"github.com/shopspring/decimal"
)

// Product is a supplier-sourced catalog entry kept in sync by the catalog
// sync job. Orders snapshot what they need from it, so deleting a product
// never rewrites order history.
type Product struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	SupplierID uuid.UUID        `gorm:"column:supplier_id;type:uuid;not null;uniqueIndex:uq_products_supplier_external"`
	ExternalID string           `gorm:"column:external_id;not null;uniqueIndex:uq_products_supplier_external"`
	Title      string           `gorm:"column:title;not null"`
	Price      decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	Stock      int              `gorm:"column:stock;not null;default:0"`
	Active     bool             `gorm:"column:active;not null;default:true"`
	Variants   []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	SyncedAt   *time.Time       `gorm:"column:synced_at"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant is one purchasable variation of a product.
type ProductVariant struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID         uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uq_variants_product_external"`
	ExternalVariantID string          `gorm:"column:external_variant_id;not null;uniqueIndex:uq_variants_product_external"`
	SKU               *string         `gorm:"column:sku"`
	Name              *string         `gorm:"column:name"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Stock             int             `gorm:"column:stock;not null;default:0"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
