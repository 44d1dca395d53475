package enums

import "fmt"

// FulfillmentStatus tracks a per-supplier purchase attempt.
type FulfillmentStatus string

const (
	FulfillmentStatusPending   FulfillmentStatus = "pending"
	FulfillmentStatusOrdered   FulfillmentStatus = "ordered"
	FulfillmentStatusShipped   FulfillmentStatus = "shipped"
	FulfillmentStatusDelivered FulfillmentStatus = "delivered"
	FulfillmentStatusFailed    FulfillmentStatus = "failed"
)

var validFulfillmentStatuses = []FulfillmentStatus{
	FulfillmentStatusPending,
	FulfillmentStatusOrdered,
	FulfillmentStatusShipped,
	FulfillmentStatusDelivered,
	FulfillmentStatusFailed,
}

func (f FulfillmentStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FulfillmentStatus.
func (f FulfillmentStatus) IsValid() bool {
	for _, candidate := range validFulfillmentStatuses {
		if candidate == f {
			return true
		}
	}
	return false
}

// AtLeastShipped reports whether the supplier has handed the sub-order to a
// courier. Used by the order status aggregator.
func (f FulfillmentStatus) AtLeastShipped() bool {
	return f == FulfillmentStatusShipped || f == FulfillmentStatusDelivered
}

// ParseFulfillmentStatus converts raw input into a FulfillmentStatus.
func ParseFulfillmentStatus(value string) (FulfillmentStatus, error) {
	for _, candidate := range validFulfillmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment status %q", value)
}
