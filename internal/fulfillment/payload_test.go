package fulfillment

import (
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/types"
)

func TestGroupItemsBySupplierPreservesOrder(t *testing.T) {
	supplierA := uuid.New()
	supplierB := uuid.New()

	items := []models.OrderItem{
		orderItem(supplierA, "a-1", 1),
		orderItem(supplierB, "b-1", 2),
		orderItem(supplierA, "a-2", 1),
	}

	groups := groupItemsBySupplier(items)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].SupplierID != supplierA || groups[1].SupplierID != supplierB {
		t.Fatal("expected groups ordered by first appearance")
	}
	if len(groups[0].Items) != 2 || len(groups[1].Items) != 1 {
		t.Fatalf("unexpected group sizes %d/%d", len(groups[0].Items), len(groups[1].Items))
	}
	if groups[0].Items[1].ExternalProductID != "a-2" {
		t.Fatal("expected item order preserved within a group")
	}
}

func TestBuildPlaceOrderRequest(t *testing.T) {
	supplierID := uuid.New()
	variantID := "var-9"
	items := []models.OrderItem{
		orderItem(supplierID, "p-1", 3),
		func() models.OrderItem {
			item := orderItem(supplierID, "p-2", 1)
			item.Variant = &types.VariantInfo{ExternalVariantID: variantID}
			return item
		}(),
	}
	order := &models.Order{
		ID: uuid.New(),
		Shipping: types.ShippingAddress{
			Name: "Jane Doe", Phone: "555-0100", Address1: "1 Main St", ZipCode: "04524",
		},
	}

	req, err := buildPlaceOrderRequest(order, items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.MerchantOrderID != order.ID.String() {
		t.Fatalf("unexpected merchant order id %q", req.MerchantOrderID)
	}
	if len(req.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(req.Items))
	}
	if req.Items[0].ExternalProductID != "p-1" || req.Items[0].Quantity != 3 {
		t.Fatalf("unexpected first line %+v", req.Items[0])
	}
	if req.Items[1].ExternalVariantID != variantID {
		t.Fatalf("expected variant id forwarded, got %q", req.Items[1].ExternalVariantID)
	}
}

func TestBuildPlaceOrderRequestRejectsBadInput(t *testing.T) {
	supplierID := uuid.New()
	order := &models.Order{ID: uuid.New()}

	if _, err := buildPlaceOrderRequest(order, nil); err == nil {
		t.Fatal("expected error for empty item set")
	}

	// Missing shipping phone.
	order.Shipping = types.ShippingAddress{Name: "Jane", Address1: "1 Main St", ZipCode: "04524"}
	if _, err := buildPlaceOrderRequest(order, []models.OrderItem{orderItem(supplierID, "p-1", 1)}); err == nil {
		t.Fatal("expected error for incomplete shipping address")
	}
}
