package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/internal/connectors"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
)

// Repo is the GORM-backed Store implementation.
type Repo struct {
	db *gorm.DB
}

func NewRepo(conn *gorm.DB) *Repo {
	return &Repo{db: conn}
}

func (r *Repo) ListActiveSuppliers(ctx context.Context) ([]models.Supplier, error) {
	var suppliers []models.Supplier
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&suppliers).Error
	return suppliers, err
}

// UpsertProduct writes one normalized feed entry. An existing row keyed by
// (supplier, external id) is refreshed and reactivated; otherwise a new row
// is created with its variants. Variants are upserted by their external id.
func (r *Repo) UpsertProduct(ctx context.Context, supplierID uuid.UUID, product connectors.NormalizedProduct, syncedAt time.Time) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Product
		err := tx.Where("supplier_id = ? AND external_id = ?", supplierID, product.ExternalID).
			First(&existing).Error
		switch {
		case err == nil:
			updates := map[string]any{
				"title":     product.Title,
				"price":     product.Price,
				"stock":     product.Stock,
				"active":    true,
				"synced_at": syncedAt,
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			existing = models.Product{
				SupplierID: supplierID,
				ExternalID: product.ExternalID,
				Title:      product.Title,
				Price:      product.Price,
				Stock:      product.Stock,
				Active:     true,
				SyncedAt:   &syncedAt,
			}
			if err := tx.Create(&existing).Error; err != nil {
				return err
			}
		default:
			return err
		}

		for _, variant := range product.Variants {
			if variant.ExternalVariantID == "" {
				continue
			}
			if err := upsertVariant(tx, existing.ID, variant); err != nil {
				return err
			}
		}
		return nil
	})
	return created, err
}

func upsertVariant(tx *gorm.DB, productID uuid.UUID, variant connectors.NormalizedVariant) error {
	var existing models.ProductVariant
	err := tx.Where("product_id = ? AND external_variant_id = ?", productID, variant.ExternalVariantID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row := models.ProductVariant{
			ProductID:         productID,
			ExternalVariantID: variant.ExternalVariantID,
			Price:             variant.Price,
			Stock:             variant.Stock,
		}
		if variant.SKU != "" {
			row.SKU = &variant.SKU
		}
		if variant.Name != "" {
			row.Name = &variant.Name
		}
		return tx.Create(&row).Error
	}
	if err != nil {
		return err
	}

	updates := map[string]any{
		"price": variant.Price,
		"stock": variant.Stock,
	}
	if variant.SKU != "" {
		updates["sku"] = variant.SKU
	}
	if variant.Name != "" {
		updates["name"] = variant.Name
	}
	return tx.Model(&existing).Updates(updates).Error
}

// DeactivateMissing flips off products of the supplier that the latest feed
// no longer lists. Rows are kept so order items keep resolving.
func (r *Repo) DeactivateMissing(ctx context.Context, supplierID uuid.UUID, seenExternalIDs []string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("supplier_id = ? AND active = ? AND external_id NOT IN ?", supplierID, true, seenExternalIDs).
		Update("active", false)
	return res.RowsAffected, res.Error
}
