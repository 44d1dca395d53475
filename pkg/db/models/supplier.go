package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/types"
)

// Supplier is one external source of products. Its credentials are read-only
// for the fulfillment workflows; only operators change them.
type Supplier struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name      string             `gorm:"column:name;not null"`
	Type      enums.SupplierType `gorm:"column:type;type:text;not null"`
	APIKey    string             `gorm:"column:api_key;not null"`
	APISecret string             `gorm:"column:api_secret;not null"`
	Active    bool               `gorm:"column:active;not null;default:true"`
	Config    types.JSONMap      `gorm:"column:config;type:jsonb;serializer:json"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Supplier) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
