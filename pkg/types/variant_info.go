package types

import "github.com/shopspring/decimal"

// VariantInfo pins the variant selection made at purchase time. The external
// variant id is what gets forwarded to the supplier; the optional price
// override records a variant-specific price when it differed from the
// product's base price.
type VariantInfo struct {
	ExternalVariantID string           `json:"external_variant_id"`
	PriceOverride     *decimal.Decimal `json:"price_override,omitempty"`
}
