package fulfillment

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/internal/connectors"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
	"github.com/angelmondragon/dropship-backend/pkg/metrics"
	"github.com/angelmondragon/dropship-backend/pkg/types"
)

var testTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testConfig() config.FulfillmentConfig {
	return config.FulfillmentConfig{
		MaxAttempts:      5,
		RetryBackoffBase: 2 * time.Minute,
		RetryBackoffCap:  2 * time.Hour,
		BatchSize:        100,
		TaskDeadline:     5 * time.Minute,
		RecordLeaseTTL:   5 * time.Minute,
	}
}

// fakeStore is an in-memory Store for workflow tests.
type fakeStore struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*models.Order
	suppliers map[uuid.UUID]*models.Supplier
	records   map[uuid.UUID]*models.FulfillmentRecord
	shipments map[uuid.UUID]*models.Shipment
	events    map[uuid.UUID]map[time.Time]models.ShipmentEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:    map[uuid.UUID]*models.Order{},
		suppliers: map[uuid.UUID]*models.Supplier{},
		records:   map[uuid.UUID]*models.FulfillmentRecord{},
		shipments: map[uuid.UUID]*models.Shipment{},
		events:    map[uuid.UUID]map[time.Time]models.ShipmentEvent{},
	}
}

func (s *fakeStore) addSupplier(supplierType enums.SupplierType) *models.Supplier {
	s.mu.Lock()
	defer s.mu.Unlock()
	supplier := &models.Supplier{
		ID:        uuid.New(),
		Name:      string(supplierType),
		Type:      supplierType,
		APIKey:    "key",
		APISecret: "secret",
		Active:    true,
	}
	s.suppliers[supplier.ID] = supplier
	return supplier
}

func (s *fakeStore) addPaidOrder(items ...models.OrderItem) *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := &models.Order{
		ID:          uuid.New(),
		CustomerID:  uuid.New(),
		TotalAmount: decimal.NewFromInt(42),
		Status:      enums.OrderStatusPaid,
		Shipping: types.ShippingAddress{
			Name: "Jane Doe", Phone: "555-0100", Address1: "1 Main St", ZipCode: "04524",
		},
		Items: items,
	}
	s.orders[order.ID] = order
	return order
}

func (s *fakeStore) addRecord(orderID, supplierID uuid.UUID, status enums.FulfillmentStatus) *models.FulfillmentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := &models.FulfillmentRecord{
		ID:         uuid.New(),
		OrderID:    orderID,
		SupplierID: supplierID,
		Status:     status,
	}
	s.records[record.ID] = record
	return record
}

func (s *fakeStore) GetOrder(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	copied := *order
	return &copied, nil
}

func (s *fakeStore) GetOrderWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.GetOrder(ctx, orderID)
}

func (s *fakeStore) MarkOrderProcessing(_ context.Context, orderID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok || order.Status != enums.OrderStatusPaid {
		return false, nil
	}
	order.Status = enums.OrderStatusProcessing
	return true, nil
}

func (s *fakeStore) SetOrderStatus(_ context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	order.Status = status
	return nil
}

func (s *fakeStore) GetSupplier(_ context.Context, supplierID uuid.UUID) (*models.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	supplier, ok := s.suppliers[supplierID]
	if !ok {
		return nil, fmt.Errorf("supplier %s not found", supplierID)
	}
	return supplier, nil
}

func (s *fakeStore) EnsureRecord(_ context.Context, orderID, supplierID uuid.UUID) (*models.FulfillmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.OrderID == orderID && record.SupplierID == supplierID {
			copied := *record
			return &copied, nil
		}
	}
	record := &models.FulfillmentRecord{
		ID:         uuid.New(),
		OrderID:    orderID,
		SupplierID: supplierID,
		Status:     enums.FulfillmentStatusPending,
	}
	s.records[record.ID] = record
	copied := *record
	return &copied, nil
}

func (s *fakeStore) GetRecord(_ context.Context, recordID uuid.UUID) (*models.FulfillmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordID]
	if !ok {
		return nil, fmt.Errorf("record %s not found", recordID)
	}
	copied := *record
	copied.Supplier = s.suppliers[record.SupplierID]
	return &copied, nil
}

func (s *fakeStore) MarkRecordOrdered(_ context.Context, recordID uuid.UUID, externalOrderID string, raw types.JSONMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("record %s not found", recordID)
	}
	record.ExternalOrderID = &externalOrderID
	record.Status = enums.FulfillmentStatusOrdered
	record.LastError = nil
	record.NextAttemptAt = nil
	record.RawResponse = raw
	return nil
}

func (s *fakeStore) MarkRecordFailed(_ context.Context, recordID uuid.UUID, lastError string, nextAttemptAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("record %s not found", recordID)
	}
	record.Status = enums.FulfillmentStatusFailed
	record.Attempts++
	record.LastError = &lastError
	record.NextAttemptAt = &nextAttemptAt
	return nil
}

func (s *fakeStore) MarkRecordShipped(_ context.Context, recordID uuid.UUID, trackingNumber, courier *string, shippedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("record %s not found", recordID)
	}
	record.Status = enums.FulfillmentStatusShipped
	for _, shipment := range s.shipments {
		if shipment.FulfillmentRecordID == recordID {
			return nil
		}
	}
	shipment := &models.Shipment{
		ID:                  uuid.New(),
		FulfillmentRecordID: recordID,
		OrderID:             record.OrderID,
		TrackingNumber:      trackingNumber,
		Courier:             courier,
		Status:              enums.ShipmentStatusInTransit,
		ShippedAt:           &shippedAt,
	}
	s.shipments[shipment.ID] = shipment
	return nil
}

func (s *fakeStore) MarkRecordDelivered(_ context.Context, recordID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("record %s not found", recordID)
	}
	record.Status = enums.FulfillmentStatusDelivered
	return nil
}

func (s *fakeStore) ListRetryable(_ context.Context, maxAttempts int, now time.Time, limit int) ([]models.FulfillmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FulfillmentRecord
	for _, record := range s.records {
		if record.Status != enums.FulfillmentStatusFailed || record.Attempts >= maxAttempts {
			continue
		}
		if record.NextAttemptAt != nil && record.NextAttemptAt.After(now) {
			continue
		}
		copied := *record
		copied.Supplier = s.suppliers[record.SupplierID]
		out = append(out, copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) ListActiveRecords(_ context.Context, limit int) ([]models.FulfillmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FulfillmentRecord
	for _, record := range s.records {
		if record.ExternalOrderID == nil {
			continue
		}
		if record.Status != enums.FulfillmentStatusOrdered && record.Status != enums.FulfillmentStatusShipped {
			continue
		}
		copied := *record
		copied.Supplier = s.suppliers[record.SupplierID]
		out = append(out, copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) ListOrderRecords(_ context.Context, orderID uuid.UUID) ([]models.FulfillmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FulfillmentRecord
	for _, record := range s.records {
		if record.OrderID == orderID {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (s *fakeStore) ListActiveShipments(_ context.Context, limit int) ([]models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Shipment
	for _, shipment := range s.shipments {
		if !shipment.Status.IsActive() || shipment.TrackingNumber == nil {
			continue
		}
		out = append(out, *shipment)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) AppendShipmentEvents(_ context.Context, shipmentID uuid.UUID, events []connectors.TrackingEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byTime := s.events[shipmentID]
	if byTime == nil {
		byTime = map[time.Time]models.ShipmentEvent{}
		s.events[shipmentID] = byTime
	}
	added := 0
	for _, event := range events {
		key := event.Time.UTC()
		if _, exists := byTime[key]; exists {
			continue
		}
		byTime[key] = models.ShipmentEvent{
			ID:         uuid.New(),
			ShipmentID: shipmentID,
			Status:     event.Status,
			EventTime:  key,
		}
		added++
	}
	return added, nil
}

func (s *fakeStore) UpdateShipmentStatus(_ context.Context, shipmentID uuid.UUID, status enums.ShipmentStatus, deliveredAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	shipment, ok := s.shipments[shipmentID]
	if !ok {
		return fmt.Errorf("shipment %s not found", shipmentID)
	}
	shipment.Status = status
	if deliveredAt != nil {
		shipment.DeliveredAt = deliveredAt
	}
	return nil
}

// fakeLeaser hands out leases unless a record is pinned as held elsewhere.
type fakeLeaser struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func newFakeLeaser() *fakeLeaser {
	return &fakeLeaser{held: map[uuid.UUID]bool{}}
}

func (l *fakeLeaser) AcquireRecord(_ context.Context, recordID uuid.UUID, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[recordID] {
		return nil, ErrRecordLeased
	}
	l.held[recordID] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, recordID)
	}, nil
}

// fakeConnector lets each test script supplier behavior per call.
type fakeConnector struct {
	mu         sync.Mutex
	placeCalls int
	placeFn    func(req connectors.PlaceOrderRequest) (*connectors.PlaceOrderResult, error)
	statusFn   func(externalOrderID string) (*connectors.OrderStatusResult, error)
	trackFn    func(trackingNumber string) (*connectors.TrackingInfo, error)
}

func (c *fakeConnector) FetchProducts(context.Context, connectors.Auth, connectors.FetchOptions) ([]connectors.NormalizedProduct, error) {
	return nil, nil
}

func (c *fakeConnector) PlaceOrder(_ context.Context, _ connectors.Auth, req connectors.PlaceOrderRequest) (*connectors.PlaceOrderResult, error) {
	c.mu.Lock()
	c.placeCalls++
	c.mu.Unlock()
	if c.placeFn == nil {
		return &connectors.PlaceOrderResult{ExternalOrderID: "EXT-" + req.MerchantOrderID, Status: "placed"}, nil
	}
	return c.placeFn(req)
}

func (c *fakeConnector) GetOrderStatus(_ context.Context, _ connectors.Auth, externalOrderID string) (*connectors.OrderStatusResult, error) {
	if c.statusFn == nil {
		return &connectors.OrderStatusResult{ExternalOrderID: externalOrderID, Status: "ordered"}, nil
	}
	return c.statusFn(externalOrderID)
}

func (c *fakeConnector) GetTrackingInfo(_ context.Context, _ connectors.Auth, trackingNumber string, _ string) (*connectors.TrackingInfo, error) {
	if c.trackFn == nil {
		return &connectors.TrackingInfo{CurrentStatus: "in_transit"}, nil
	}
	return c.trackFn(trackingNumber)
}

type fakeRegistry struct {
	byType map[enums.SupplierType]connectors.Connector
}

func (r *fakeRegistry) Resolve(supplierType enums.SupplierType) (connectors.Connector, error) {
	connector, ok := r.byType[supplierType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", connectors.ErrUnsupportedSupplier, supplierType)
	}
	return connector, nil
}

func newTestOrchestrator(store Store, registry Registry, leaser Leaser) *Orchestrator {
	orchestrator, err := NewOrchestrator(OrchestratorParams{
		Store:    store,
		Registry: registry,
		Leaser:   leaser,
		Logger:   testLogger(),
		Metrics:  metrics.NewFulfillmentMetrics(nil),
		Config:   testConfig(),
		Now:      func() time.Time { return testTime },
	})
	if err != nil {
		panic(err)
	}
	return orchestrator
}

func orderItem(supplierID uuid.UUID, externalProductID string, qty int) models.OrderItem {
	return models.OrderItem{
		ID:                uuid.New(),
		SupplierID:        supplierID,
		ExternalProductID: externalProductID,
		Title:             "Item " + externalProductID,
		Qty:               qty,
		UnitPrice:         decimal.NewFromFloat(9.99),
	}
}
