package fulfillment

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/dropship-backend/internal/connectors"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
)

// supplierGroup is the slice of an order destined for one supplier.
type supplierGroup struct {
	SupplierID uuid.UUID
	Items      []models.OrderItem
}

// groupItemsBySupplier partitions order items by supplier, preserving the
// order in which suppliers first appear.
func groupItemsBySupplier(items []models.OrderItem) []supplierGroup {
	var groups []supplierGroup
	index := map[uuid.UUID]int{}
	for _, item := range items {
		at, seen := index[item.SupplierID]
		if !seen {
			index[item.SupplierID] = len(groups)
			groups = append(groups, supplierGroup{SupplierID: item.SupplierID})
			at = len(groups) - 1
		}
		groups[at].Items = append(groups[at].Items, item)
	}
	return groups
}

// itemsForSupplier filters an order's items down to one supplier's lines.
func itemsForSupplier(items []models.OrderItem, supplierID uuid.UUID) []models.OrderItem {
	var filtered []models.OrderItem
	for _, item := range items {
		if item.SupplierID == supplierID {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// buildPlaceOrderRequest assembles the supplier payload from snapshot data
// on the order. It never reads live catalog rows.
func buildPlaceOrderRequest(order *models.Order, items []models.OrderItem) (connectors.PlaceOrderRequest, error) {
	if len(items) == 0 {
		return connectors.PlaceOrderRequest{}, fmt.Errorf("order %s has no items for this supplier", order.ID)
	}
	if err := order.Shipping.Validate(); err != nil {
		return connectors.PlaceOrderRequest{}, fmt.Errorf("order %s: %w", order.ID, err)
	}

	lines := make([]connectors.OrderLine, 0, len(items))
	for _, item := range items {
		line := connectors.OrderLine{
			ExternalProductID: item.ExternalProductID,
			Quantity:          item.Qty,
		}
		if item.Variant != nil {
			line.ExternalVariantID = item.Variant.ExternalVariantID
		}
		lines = append(lines, line)
	}

	return connectors.PlaceOrderRequest{
		MerchantOrderID: order.ID.String(),
		Items:           lines,
		Shipping:        order.Shipping,
	}, nil
}
