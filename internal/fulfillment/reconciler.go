package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dropship-backend/internal/connectors"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
	"github.com/angelmondragon/dropship-backend/pkg/metrics"
)

// Supplier-side status strings the reconciler understands.
const (
	supplierStatusShipped   = "shipped"
	supplierStatusDelivered = "delivered"
)

// ReconcileResult summarizes one PollActiveFulfillments sweep.
type ReconcileResult struct {
	PolledRecords   int
	UpdatedRecords  int
	OrdersUpdated   int
	ShipmentsPolled int
	EventsAdded     int
}

// Reconciler polls suppliers for the state of placed orders and courier
// feeds for active shipments, then folds the results back onto records,
// shipments, and order statuses.
type Reconciler struct {
	store    Store
	registry Registry
	logg     *logger.Logger
	metrics  *metrics.FulfillmentMetrics
	cfg      config.FulfillmentConfig
	now      func() time.Time
}

type ReconcilerParams struct {
	Store    Store
	Registry Registry
	Logger   *logger.Logger
	Metrics  *metrics.FulfillmentMetrics
	Config   config.FulfillmentConfig
	Now      func() time.Time
}

func NewReconciler(p ReconcilerParams) (*Reconciler, error) {
	if p.Store == nil {
		return nil, errors.New("store is required")
	}
	if p.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if p.Metrics == nil {
		return nil, errors.New("metrics is required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Reconciler{
		store:    p.Store,
		registry: p.Registry,
		logg:     p.Logger,
		metrics:  p.Metrics,
		cfg:      p.Config,
		now:      p.Now,
	}, nil
}

// PollActiveFulfillments asks each supplier for the state of every placed,
// not-yet-delivered record, creates shipments the first time a record is
// reported shipped, refreshes the affected order statuses, and pulls courier
// tracking feeds for active shipments. Per-record and per-shipment errors
// are logged and skipped; only store-level failures abort the sweep.
func (r *Reconciler) PollActiveFulfillments(ctx context.Context) (*ReconcileResult, error) {
	records, err := r.store.ListActiveRecords(ctx, r.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("listing active records: %w", err)
	}

	result := &ReconcileResult{}
	orderIDs := map[uuid.UUID]struct{}{}
	for _, record := range records {
		recordCtx := r.logg.WithRecordID(r.logg.WithOrderID(ctx, record.OrderID.String()), record.ID.String())
		result.PolledRecords++
		orderIDs[record.OrderID] = struct{}{}

		changed, err := r.pollRecord(recordCtx, record)
		if err != nil {
			r.logg.Error(recordCtx, "polling supplier order status", err)
			continue
		}
		if changed {
			result.UpdatedRecords++
		}
	}

	// Shipments are polled before the order refresh pass so a record the
	// courier feed just delivered escalates its order in the same sweep.
	// It would otherwise drop out of the active-record listing and the
	// order would never be recomputed.
	shipments, err := r.store.ListActiveShipments(ctx, r.cfg.BatchSize)
	if err != nil {
		return result, fmt.Errorf("listing active shipments: %w", err)
	}
	for _, shipment := range shipments {
		shipmentCtx := r.logg.WithField(ctx, "shipment_id", shipment.ID.String())
		result.ShipmentsPolled++

		added, delivered, err := r.pollShipment(shipmentCtx, shipment)
		if err != nil {
			r.logg.Error(shipmentCtx, "polling shipment tracking", err)
			continue
		}
		result.EventsAdded += added
		if delivered {
			orderIDs[shipment.OrderID] = struct{}{}
		}
	}

	for orderID := range orderIDs {
		orderCtx := r.logg.WithOrderID(ctx, orderID.String())
		updated, err := syncOrderStatus(orderCtx, r.store, orderID)
		if err != nil {
			r.logg.Error(orderCtx, "refreshing order status", err)
			continue
		}
		if updated {
			result.OrdersUpdated++
		}
	}

	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"records":   result.PolledRecords,
		"updated":   result.UpdatedRecords,
		"orders":    result.OrdersUpdated,
		"shipments": result.ShipmentsPolled,
		"events":    result.EventsAdded,
	}), "fulfillment reconcile sweep finished")
	return result, nil
}

func (r *Reconciler) pollRecord(ctx context.Context, record models.FulfillmentRecord) (bool, error) {
	if record.ExternalOrderID == nil {
		return false, nil
	}
	supplier := record.Supplier
	if supplier == nil {
		var err error
		supplier, err = r.store.GetSupplier(ctx, record.SupplierID)
		if err != nil {
			return false, err
		}
	}
	ctx = r.logg.WithSupplier(ctx, supplier.Type.String())

	connector, err := r.registry.Resolve(supplier.Type)
	if err != nil {
		return false, err
	}

	auth := connectors.Auth{APIKey: supplier.APIKey, APISecret: supplier.APISecret, Config: supplier.Config}
	status, err := connector.GetOrderStatus(ctx, auth, *record.ExternalOrderID)
	r.metrics.IncReconcilePoll(supplier.Type.String(), pollOutcome(err))
	if err != nil {
		return false, err
	}

	switch status.Status {
	case supplierStatusShipped:
		if err := r.store.MarkRecordShipped(ctx, record.ID, status.TrackingNumber, status.Courier, r.now()); err != nil {
			return false, err
		}
		return record.Status != enums.FulfillmentStatusShipped, nil
	case supplierStatusDelivered:
		if err := r.store.MarkRecordDelivered(ctx, record.ID); err != nil {
			return false, err
		}
		return record.Status != enums.FulfillmentStatusDelivered, nil
	default:
		return false, nil
	}
}

// pollShipment pulls the courier feed for one shipment. It reports how many
// tracking events were appended and whether the feed delivered the record.
func (r *Reconciler) pollShipment(ctx context.Context, shipment models.Shipment) (int, bool, error) {
	if shipment.TrackingNumber == nil {
		return 0, false, nil
	}

	record, err := r.store.GetRecord(ctx, shipment.FulfillmentRecordID)
	if err != nil {
		return 0, false, err
	}
	supplier := record.Supplier
	if supplier == nil {
		supplier, err = r.store.GetSupplier(ctx, record.SupplierID)
		if err != nil {
			return 0, false, err
		}
	}
	ctx = r.logg.WithSupplier(ctx, supplier.Type.String())

	connector, err := r.registry.Resolve(supplier.Type)
	if err != nil {
		return 0, false, err
	}

	courier := ""
	if shipment.Courier != nil {
		courier = *shipment.Courier
	}
	auth := connectors.Auth{APIKey: supplier.APIKey, APISecret: supplier.APISecret, Config: supplier.Config}
	info, err := connector.GetTrackingInfo(ctx, auth, *shipment.TrackingNumber, courier)
	if err != nil {
		return 0, false, err
	}

	added, err := r.store.AppendShipmentEvents(ctx, shipment.ID, info.Events)
	if err != nil {
		return 0, false, err
	}

	switch info.CurrentStatus {
	case string(enums.ShipmentStatusDelivered):
		deliveredAt := r.now()
		if err := r.store.UpdateShipmentStatus(ctx, shipment.ID, enums.ShipmentStatusDelivered, &deliveredAt); err != nil {
			return added, false, err
		}
		if err := r.store.MarkRecordDelivered(ctx, record.ID); err != nil {
			return added, false, err
		}
		return added, true, nil
	case string(enums.ShipmentStatusOutForDelivery):
		if err := r.store.UpdateShipmentStatus(ctx, shipment.ID, enums.ShipmentStatusOutForDelivery, nil); err != nil {
			return added, false, err
		}
	}
	return added, false, nil
}

func pollOutcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
