package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/internal/connectors"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

var syncTestTime = time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)

type fakeSyncStore struct {
	suppliers   []models.Supplier
	existing    map[string]bool
	upserted    []string
	deactivated map[uuid.UUID][]string
	upsertErrOn string
}

func newFakeSyncStore(suppliers ...models.Supplier) *fakeSyncStore {
	return &fakeSyncStore{
		suppliers:   suppliers,
		existing:    map[string]bool{},
		deactivated: map[uuid.UUID][]string{},
	}
}

func (s *fakeSyncStore) ListActiveSuppliers(context.Context) ([]models.Supplier, error) {
	return s.suppliers, nil
}

func (s *fakeSyncStore) UpsertProduct(_ context.Context, _ uuid.UUID, product connectors.NormalizedProduct, _ time.Time) (bool, error) {
	if product.ExternalID == s.upsertErrOn {
		return false, errors.New("constraint violation")
	}
	s.upserted = append(s.upserted, product.ExternalID)
	return !s.existing[product.ExternalID], nil
}

func (s *fakeSyncStore) DeactivateMissing(_ context.Context, supplierID uuid.UUID, seen []string) (int64, error) {
	s.deactivated[supplierID] = seen
	return 2, nil
}

type fakeFetchConnector struct {
	products []connectors.NormalizedProduct
	fetchErr error
	gotLimit int
}

func (c *fakeFetchConnector) FetchProducts(_ context.Context, _ connectors.Auth, opts connectors.FetchOptions) ([]connectors.NormalizedProduct, error) {
	c.gotLimit = opts.Limit
	return c.products, c.fetchErr
}

func (c *fakeFetchConnector) PlaceOrder(context.Context, connectors.Auth, connectors.PlaceOrderRequest) (*connectors.PlaceOrderResult, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeFetchConnector) GetOrderStatus(context.Context, connectors.Auth, string) (*connectors.OrderStatusResult, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeFetchConnector) GetTrackingInfo(context.Context, connectors.Auth, string, string) (*connectors.TrackingInfo, error) {
	return nil, errors.New("not implemented")
}

type fakeSyncRegistry struct {
	byType map[enums.SupplierType]connectors.Connector
}

func (r *fakeSyncRegistry) Resolve(supplierType enums.SupplierType) (connectors.Connector, error) {
	connector, ok := r.byType[supplierType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", connectors.ErrUnsupportedSupplier, supplierType)
	}
	return connector, nil
}

func feedProduct(externalID string) connectors.NormalizedProduct {
	return connectors.NormalizedProduct{
		ExternalID: externalID,
		Title:      "Item " + externalID,
		Price:      decimal.NewFromFloat(4.5),
		Stock:      10,
	}
}

func testSupplier(supplierType enums.SupplierType) models.Supplier {
	return models.Supplier{
		ID:        uuid.New(),
		Name:      string(supplierType),
		Type:      supplierType,
		APIKey:    "key",
		APISecret: "secret",
		Active:    true,
	}
}

func newTestSyncer(store Store, registry Registry) *Syncer {
	syncer, err := NewSyncer(SyncerParams{
		Store:    store,
		Registry: registry,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Config:   config.SuppliersConfig{ProductLimit: 50},
		Now:      func() time.Time { return syncTestTime },
	})
	if err != nil {
		panic(err)
	}
	return syncer
}

func TestSyncSupplierUpsertsAndDeactivates(t *testing.T) {
	supplier := testSupplier(enums.SupplierTypeTemu)
	store := newFakeSyncStore(supplier)
	store.existing["p-1"] = true

	conn := &fakeFetchConnector{products: []connectors.NormalizedProduct{
		feedProduct("p-1"),
		feedProduct("p-2"),
	}}
	registry := &fakeSyncRegistry{byType: map[enums.SupplierType]connectors.Connector{enums.SupplierTypeTemu: conn}}
	syncer := newTestSyncer(store, registry)

	result, err := syncer.SyncSupplier(context.Background(), &supplier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Fetched != 2 || result.Created != 1 || result.Updated != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if conn.gotLimit != 50 {
		t.Fatalf("expected configured product limit forwarded, got %d", conn.gotLimit)
	}
	if got := store.deactivated[supplier.ID]; len(got) != 2 {
		t.Fatalf("expected both feed ids passed to deactivation, got %v", got)
	}
	if result.Deactivated != 2 {
		t.Fatalf("expected deactivation count reported, got %d", result.Deactivated)
	}
}

func TestSyncSupplierSkipsBadFeedEntries(t *testing.T) {
	supplier := testSupplier(enums.SupplierTypeTemu)
	store := newFakeSyncStore(supplier)
	store.upsertErrOn = "p-2"

	conn := &fakeFetchConnector{products: []connectors.NormalizedProduct{
		feedProduct("p-1"),
		feedProduct("p-2"),
		{Title: "missing external id"},
		feedProduct("p-3"),
	}}
	registry := &fakeSyncRegistry{byType: map[enums.SupplierType]connectors.Connector{enums.SupplierTypeTemu: conn}}
	syncer := newTestSyncer(store, registry)

	result, err := syncer.SyncSupplier(context.Background(), &supplier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 2 {
		t.Fatalf("expected 2 failures, got %d", result.Failed)
	}
	if result.Created != 2 {
		t.Fatalf("expected surviving entries upserted, got %+v", result)
	}
	// Failed entries must not feed the deactivation set.
	if got := store.deactivated[supplier.ID]; len(got) != 2 {
		t.Fatalf("expected only successful ids in the seen set, got %v", got)
	}
}

func TestSyncSupplierEmptyFeedSkipsDeactivation(t *testing.T) {
	supplier := testSupplier(enums.SupplierTypeTemu)
	store := newFakeSyncStore(supplier)

	conn := &fakeFetchConnector{}
	registry := &fakeSyncRegistry{byType: map[enums.SupplierType]connectors.Connector{enums.SupplierTypeTemu: conn}}
	syncer := newTestSyncer(store, registry)

	result, err := syncer.SyncSupplier(context.Background(), &supplier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Fetched != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, called := store.deactivated[supplier.ID]; called {
		t.Fatal("expected no deactivation on an empty feed")
	}
}

func TestSyncAllIsolatesSupplierFailures(t *testing.T) {
	temu := testSupplier(enums.SupplierTypeTemu)
	ali := testSupplier(enums.SupplierTypeAliExpress)
	store := newFakeSyncStore(temu, ali)

	registry := &fakeSyncRegistry{byType: map[enums.SupplierType]connectors.Connector{
		enums.SupplierTypeTemu: &fakeFetchConnector{fetchErr: &connectors.RateLimitError{Supplier: enums.SupplierTypeTemu}},
		enums.SupplierTypeAliExpress: &fakeFetchConnector{products: []connectors.NormalizedProduct{
			feedProduct("a-1"),
		}},
	}}
	syncer := newTestSyncer(store, registry)

	results, err := syncer.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one successful supplier, got %d", len(results))
	}
	if results[0].SupplierID != ali.ID {
		t.Fatal("expected the healthy supplier to finish")
	}
}
