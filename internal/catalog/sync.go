package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dropship-backend/internal/connectors"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

// Store is the persistence surface the syncer needs.
type Store interface {
	ListActiveSuppliers(ctx context.Context) ([]models.Supplier, error)
	UpsertProduct(ctx context.Context, supplierID uuid.UUID, product connectors.NormalizedProduct, syncedAt time.Time) (created bool, err error)
	DeactivateMissing(ctx context.Context, supplierID uuid.UUID, seenExternalIDs []string) (int64, error)
}

type Registry interface {
	Resolve(supplierType enums.SupplierType) (connectors.Connector, error)
}

// SyncResult summarizes one supplier's catalog pull.
type SyncResult struct {
	SupplierID  uuid.UUID
	Fetched     int
	Created     int
	Updated     int
	Deactivated int64
	Failed      int
}

// Syncer pulls each supplier's product feed and folds it into the local
// catalog. Products the supplier stops listing are deactivated rather than
// deleted so order history keeps resolving.
type Syncer struct {
	store    Store
	registry Registry
	logg     *logger.Logger
	cfg      config.SuppliersConfig
	now      func() time.Time
}

type SyncerParams struct {
	Store    Store
	Registry Registry
	Logger   *logger.Logger
	Config   config.SuppliersConfig
	Now      func() time.Time
}

func NewSyncer(p SyncerParams) (*Syncer, error) {
	if p.Store == nil {
		return nil, errors.New("store is required")
	}
	if p.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Syncer{
		store:    p.Store,
		registry: p.Registry,
		logg:     p.Logger,
		cfg:      p.Config,
		now:      p.Now,
	}, nil
}

// SyncAll syncs every active supplier. A supplier whose feed cannot be
// fetched is logged and skipped; its local catalog is left untouched.
func (s *Syncer) SyncAll(ctx context.Context) ([]SyncResult, error) {
	suppliers, err := s.store.ListActiveSuppliers(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]SyncResult, 0, len(suppliers))
	for i := range suppliers {
		supplier := &suppliers[i]
		supplierCtx := s.logg.WithSupplier(ctx, supplier.Type.String())

		result, err := s.SyncSupplier(supplierCtx, supplier)
		if err != nil {
			s.logg.Error(supplierCtx, "supplier catalog sync failed", err)
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

// SyncSupplier fetches one supplier's product feed and upserts it. Per-product
// failures are counted and skipped; only a failed fetch aborts the sync.
func (s *Syncer) SyncSupplier(ctx context.Context, supplier *models.Supplier) (*SyncResult, error) {
	result := &SyncResult{SupplierID: supplier.ID}

	connector, err := s.registry.Resolve(supplier.Type)
	if err != nil {
		return nil, err
	}

	auth := connectors.Auth{APIKey: supplier.APIKey, APISecret: supplier.APISecret, Config: supplier.Config}
	products, err := connector.FetchProducts(ctx, auth, connectors.FetchOptions{Limit: s.cfg.ProductLimit})
	if err != nil {
		return nil, err
	}
	result.Fetched = len(products)

	syncedAt := s.now()
	seen := make([]string, 0, len(products))
	for _, product := range products {
		if product.ExternalID == "" {
			result.Failed++
			continue
		}
		created, err := s.store.UpsertProduct(ctx, supplier.ID, product, syncedAt)
		if err != nil {
			s.logg.Error(s.logg.WithField(ctx, "external_id", product.ExternalID), "upserting product", err)
			result.Failed++
			continue
		}
		seen = append(seen, product.ExternalID)
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	// An empty feed is treated as a supplier-side glitch, not a catalog wipe.
	if len(seen) > 0 {
		deactivated, err := s.store.DeactivateMissing(ctx, supplier.ID, seen)
		if err != nil {
			s.logg.Error(ctx, "deactivating missing products", err)
		} else {
			result.Deactivated = deactivated
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"fetched":     result.Fetched,
		"created":     result.Created,
		"updated":     result.Updated,
		"deactivated": result.Deactivated,
		"failed":      result.Failed,
	}), "supplier catalog sync finished")
	return result, nil
}
