package fulfillment

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/dropship-backend/internal/connectors"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

func TestProcessOrderPlacesPerSupplier(t *testing.T) {
	store := newFakeStore()
	temu := store.addSupplier(enums.SupplierTypeTemu)
	ali := store.addSupplier(enums.SupplierTypeAliExpress)
	order := store.addPaidOrder(
		orderItem(temu.ID, "t-1", 1),
		orderItem(ali.ID, "a-1", 2),
		orderItem(temu.ID, "t-2", 1),
	)

	temuConn := &fakeConnector{}
	aliConn := &fakeConnector{}
	registry := &fakeRegistry{byType: map[enums.SupplierType]connectors.Connector{
		enums.SupplierTypeTemu:       temuConn,
		enums.SupplierTypeAliExpress: aliConn,
	}}
	orchestrator := newTestOrchestrator(store, registry, newFakeLeaser())

	result, err := orchestrator.ProcessOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(result.Outcomes))
	}
	if temuConn.placeCalls != 1 || aliConn.placeCalls != 1 {
		t.Fatalf("expected one placement per supplier, got %d/%d", temuConn.placeCalls, aliConn.placeCalls)
	}

	if store.orders[order.ID].Status != enums.OrderStatusProcessing {
		t.Fatalf("expected order in processing, got %s", store.orders[order.ID].Status)
	}
	for _, record := range store.records {
		if record.Status != enums.FulfillmentStatusOrdered {
			t.Fatalf("expected record ordered, got %s", record.Status)
		}
		if record.ExternalOrderID == nil {
			t.Fatal("expected external order id set")
		}
	}
}

func TestProcessOrderSkipsUnpaidOrder(t *testing.T) {
	store := newFakeStore()
	temu := store.addSupplier(enums.SupplierTypeTemu)
	order := store.addPaidOrder(orderItem(temu.ID, "t-1", 1))
	store.orders[order.ID].Status = enums.OrderStatusPending

	temuConn := &fakeConnector{}
	registry := &fakeRegistry{byType: map[enums.SupplierType]connectors.Connector{enums.SupplierTypeTemu: temuConn}}
	orchestrator := newTestOrchestrator(store, registry, newFakeLeaser())

	result, err := orchestrator.ProcessOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Outcomes) != 0 {
		t.Fatalf("expected no outcomes, got %d", len(result.Outcomes))
	}
	if temuConn.placeCalls != 0 {
		t.Fatal("expected no supplier calls for an unpaid order")
	}
	if store.orders[order.ID].Status != enums.OrderStatusPending {
		t.Fatal("expected order status untouched")
	}
	if len(store.records) != 0 {
		t.Fatal("expected no records created")
	}
}

func TestProcessOrderIsolatesSupplierFailures(t *testing.T) {
	store := newFakeStore()
	temu := store.addSupplier(enums.SupplierTypeTemu)
	ali := store.addSupplier(enums.SupplierTypeAliExpress)
	order := store.addPaidOrder(
		orderItem(temu.ID, "t-1", 1),
		orderItem(ali.ID, "a-1", 1),
	)

	temuConn := &fakeConnector{placeFn: func(connectors.PlaceOrderRequest) (*connectors.PlaceOrderResult, error) {
		return nil, &connectors.RateLimitError{Supplier: enums.SupplierTypeTemu}
	}}
	aliConn := &fakeConnector{}
	registry := &fakeRegistry{byType: map[enums.SupplierType]connectors.Connector{
		enums.SupplierTypeTemu:       temuConn,
		enums.SupplierTypeAliExpress: aliConn,
	}}
	orchestrator := newTestOrchestrator(store, registry, newFakeLeaser())

	result, err := orchestrator.ProcessOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected partial failure")
	}

	var failed, ordered int
	for _, record := range store.records {
		switch record.Status {
		case enums.FulfillmentStatusFailed:
			failed++
			if record.Attempts != 1 {
				t.Fatalf("expected 1 attempt recorded, got %d", record.Attempts)
			}
			if record.LastError == nil {
				t.Fatal("expected last error captured")
			}
			if record.NextAttemptAt == nil {
				t.Fatal("expected retry gate scheduled")
			}
			if got := record.NextAttemptAt.Sub(testTime); got != testConfig().RetryBackoffBase {
				t.Fatalf("expected first backoff of %s, got %s", testConfig().RetryBackoffBase, got)
			}
		case enums.FulfillmentStatusOrdered:
			ordered++
		}
	}
	if failed != 1 || ordered != 1 {
		t.Fatalf("expected one failed and one ordered record, got %d/%d", failed, ordered)
	}
}

func TestProcessOrderSkipsLeasedRecord(t *testing.T) {
	store := newFakeStore()
	temu := store.addSupplier(enums.SupplierTypeTemu)
	order := store.addPaidOrder(orderItem(temu.ID, "t-1", 1))
	record := store.addRecord(order.ID, temu.ID, enums.FulfillmentStatusPending)

	leaser := newFakeLeaser()
	leaser.held[record.ID] = true

	temuConn := &fakeConnector{}
	registry := &fakeRegistry{byType: map[enums.SupplierType]connectors.Connector{enums.SupplierTypeTemu: temuConn}}
	orchestrator := newTestOrchestrator(store, registry, leaser)

	result, err := orchestrator.ProcessOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Outcomes) != 1 || !result.Outcomes[0].Skipped {
		t.Fatalf("expected a skipped outcome, got %+v", result.Outcomes)
	}
	if temuConn.placeCalls != 0 {
		t.Fatal("expected no supplier call for a leased record")
	}
}

func TestProcessOrderSkipsAlreadyPlacedRecord(t *testing.T) {
	store := newFakeStore()
	temu := store.addSupplier(enums.SupplierTypeTemu)
	order := store.addPaidOrder(orderItem(temu.ID, "t-1", 1))
	record := store.addRecord(order.ID, temu.ID, enums.FulfillmentStatusOrdered)
	externalID := "EXT-PRIOR"
	store.records[record.ID].ExternalOrderID = &externalID

	temuConn := &fakeConnector{}
	registry := &fakeRegistry{byType: map[enums.SupplierType]connectors.Connector{enums.SupplierTypeTemu: temuConn}}
	orchestrator := newTestOrchestrator(store, registry, newFakeLeaser())

	result, err := orchestrator.ProcessOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if temuConn.placeCalls != 0 {
		t.Fatal("expected no second placement for an already placed record")
	}
	if result.Outcomes[0].ExternalOrderID != externalID {
		t.Fatalf("expected prior external id reported, got %q", result.Outcomes[0].ExternalOrderID)
	}
}

func TestProcessOrderUnsupportedSupplierFailsRecord(t *testing.T) {
	store := newFakeStore()
	walmart := store.addSupplier(enums.SupplierType("walmart"))
	order := store.addPaidOrder(orderItem(walmart.ID, "w-1", 1))

	registry := &fakeRegistry{byType: map[enums.SupplierType]connectors.Connector{}}
	orchestrator := newTestOrchestrator(store, registry, newFakeLeaser())

	result, err := orchestrator.ProcessOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for unsupported supplier")
	}
	if !errors.Is(result.Outcomes[0].Err, connectors.ErrUnsupportedSupplier) {
		t.Fatalf("expected ErrUnsupportedSupplier, got %v", result.Outcomes[0].Err)
	}
	for _, record := range store.records {
		if record.Status != enums.FulfillmentStatusFailed {
			t.Fatalf("expected record failed, got %s", record.Status)
		}
	}
}

func TestProcessRecordRetriesFailedRecord(t *testing.T) {
	store := newFakeStore()
	temu := store.addSupplier(enums.SupplierTypeTemu)
	order := store.addPaidOrder(orderItem(temu.ID, "t-1", 1))
	store.orders[order.ID].Status = enums.OrderStatusProcessing
	record := store.addRecord(order.ID, temu.ID, enums.FulfillmentStatusFailed)
	store.records[record.ID].Attempts = 2

	temuConn := &fakeConnector{}
	registry := &fakeRegistry{byType: map[enums.SupplierType]connectors.Connector{enums.SupplierTypeTemu: temuConn}}
	orchestrator := newTestOrchestrator(store, registry, newFakeLeaser())

	outcome, err := orchestrator.ProcessRecord(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Err != nil {
		t.Fatalf("unexpected outcome error: %v", outcome.Err)
	}
	if temuConn.placeCalls != 1 {
		t.Fatalf("expected one placement, got %d", temuConn.placeCalls)
	}
	if store.records[record.ID].Status != enums.FulfillmentStatusOrdered {
		t.Fatalf("expected record ordered, got %s", store.records[record.ID].Status)
	}
}

func TestProcessRecordBumpsBackoffOnRepeatFailure(t *testing.T) {
	store := newFakeStore()
	temu := store.addSupplier(enums.SupplierTypeTemu)
	order := store.addPaidOrder(orderItem(temu.ID, "t-1", 1))
	store.orders[order.ID].Status = enums.OrderStatusProcessing
	record := store.addRecord(order.ID, temu.ID, enums.FulfillmentStatusFailed)
	store.records[record.ID].Attempts = 2

	temuConn := &fakeConnector{placeFn: func(connectors.PlaceOrderRequest) (*connectors.PlaceOrderResult, error) {
		return nil, &connectors.TimeoutError{Supplier: enums.SupplierTypeTemu}
	}}
	registry := &fakeRegistry{byType: map[enums.SupplierType]connectors.Connector{enums.SupplierTypeTemu: temuConn}}
	orchestrator := newTestOrchestrator(store, registry, newFakeLeaser())

	outcome, err := orchestrator.ProcessRecord(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Err == nil {
		t.Fatal("expected outcome error")
	}

	updated := store.records[record.ID]
	if updated.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", updated.Attempts)
	}
	// Third attempt waits base*2^2.
	want := 4 * testConfig().RetryBackoffBase
	if got := updated.NextAttemptAt.Sub(testTime); got != want {
		t.Fatalf("expected backoff %s, got %s", want, got)
	}
}

func TestProcessOrderFoldsStatusAfterPlacement(t *testing.T) {
	store := newFakeStore()
	temu := store.addSupplier(enums.SupplierTypeTemu)
	order := store.addPaidOrder(orderItem(temu.ID, "t-1", 1))
	// A previous run placed the supplier order and the reconciler already saw
	// it shipped, but the order itself was reset to paid (e.g. a replayed
	// payment event after a partial migration).
	record := placedRecord(store, order.ID, temu.ID, enums.FulfillmentStatusShipped, "EXT-1")

	temuConn := &fakeConnector{}
	registry := &fakeRegistry{byType: map[enums.SupplierType]connectors.Connector{enums.SupplierTypeTemu: temuConn}}
	orchestrator := newTestOrchestrator(store, registry, newFakeLeaser())

	result, err := orchestrator.ProcessOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if temuConn.placeCalls != 0 {
		t.Fatalf("expected no placement for an already-placed record, got %d", temuConn.placeCalls)
	}
	if len(result.Outcomes) != 1 || result.Outcomes[0].ExternalOrderID != "EXT-1" {
		t.Fatalf("unexpected outcomes %+v", result.Outcomes)
	}
	if store.records[record.ID].Status != enums.FulfillmentStatusShipped {
		t.Fatalf("expected record left shipped, got %s", store.records[record.ID].Status)
	}
	// The closing status fold sees every record shipped and escalates the
	// order instead of leaving it parked in processing.
	if store.orders[order.ID].Status != enums.OrderStatusShipped {
		t.Fatalf("expected order shipped, got %s", store.orders[order.ID].Status)
	}
}
