package connectors

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/pkg/types"
)

// Auth carries one supplier row's credentials and per-supplier settings.
// Connectors are stateless; every call is authenticated with the supplier
// it is made on behalf of.
type Auth struct {
	APIKey    string
	APISecret string
	Config    types.JSONMap
}

// NormalizedProduct is a supplier catalog entry translated into the internal
// shape regardless of which API it came from.
type NormalizedProduct struct {
	ExternalID string
	Title      string
	Price      decimal.Decimal
	Stock      int
	Images     []string
	Variants   []NormalizedVariant
}

type NormalizedVariant struct {
	ExternalVariantID string
	SKU               string
	Name              string
	Price             decimal.Decimal
	Stock             int
}

// FetchOptions bounds a catalog pull.
type FetchOptions struct {
	Limit    int
	Category string
}

// OrderLine is one item forwarded to a supplier, keyed by the supplier's
// own product/variant identifiers.
type OrderLine struct {
	ExternalProductID string `json:"external_id"`
	Quantity          int    `json:"quantity"`
	ExternalVariantID string `json:"variant_id,omitempty"`
}

// PlaceOrderRequest is the normalized purchase payload sent to a supplier.
type PlaceOrderRequest struct {
	MerchantOrderID string                `json:"merchant_order_id"`
	Items           []OrderLine           `json:"items"`
	Shipping        types.ShippingAddress `json:"shipping"`
}

// PlaceOrderResult is the supplier's acknowledgement of a placed order. Raw
// keeps the unmodified response body for audits.
type PlaceOrderResult struct {
	ExternalOrderID string
	Status          string
	Raw             types.JSONMap
}

// OrderStatusResult is the supplier's view of a previously placed order.
// Tracking fields stay nil until the supplier hands the parcel to a courier.
type OrderStatusResult struct {
	ExternalOrderID string
	Status          string
	TrackingNumber  *string
	Courier         *string
	Raw             types.JSONMap
}

type TrackingEvent struct {
	Status      string
	Description string
	Location    string
	Time        time.Time
}

// TrackingInfo is a courier feed snapshot. Events may repeat across polls;
// the reconciler deduplicates by event time.
type TrackingInfo struct {
	CurrentStatus string
	Events        []TrackingEvent
}

// Connector is one supplier API client. Implementations share the signed
// transport and differ only in endpoint shapes and signature schemes.
type Connector interface {
	FetchProducts(ctx context.Context, auth Auth, opts FetchOptions) ([]NormalizedProduct, error)
	PlaceOrder(ctx context.Context, auth Auth, req PlaceOrderRequest) (*PlaceOrderResult, error)
	GetOrderStatus(ctx context.Context, auth Auth, externalOrderID string) (*OrderStatusResult, error)
	GetTrackingInfo(ctx context.Context, auth Auth, trackingNumber string, courier string) (*TrackingInfo, error)
}

func testMode(cfg types.JSONMap) bool {
	if cfg == nil {
		return false
	}
	enabled, _ := cfg["test_mode"].(bool)
	return enabled
}

func baseURLOverride(cfg types.JSONMap, fallback string) string {
	if cfg != nil {
		if override, ok := cfg["base_url"].(string); ok && override != "" {
			return override
		}
	}
	return fallback
}
