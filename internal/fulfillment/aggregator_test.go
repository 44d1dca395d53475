package fulfillment

import (
	"testing"

	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

func recordsWith(statuses ...enums.FulfillmentStatus) []models.FulfillmentRecord {
	records := make([]models.FulfillmentRecord, 0, len(statuses))
	for _, status := range statuses {
		records = append(records, models.FulfillmentRecord{Status: status})
	}
	return records
}

func TestDeriveOrderStatus(t *testing.T) {
	tests := []struct {
		name    string
		current enums.OrderStatus
		records []models.FulfillmentRecord
		want    enums.OrderStatus
	}{
		{
			name:    "all delivered",
			current: enums.OrderStatusShipped,
			records: recordsWith(enums.FulfillmentStatusDelivered, enums.FulfillmentStatusDelivered),
			want:    enums.OrderStatusDelivered,
		},
		{
			name:    "all at least shipped",
			current: enums.OrderStatusProcessing,
			records: recordsWith(enums.FulfillmentStatusShipped, enums.FulfillmentStatusDelivered),
			want:    enums.OrderStatusShipped,
		},
		{
			name:    "one still ordered",
			current: enums.OrderStatusProcessing,
			records: recordsWith(enums.FulfillmentStatusShipped, enums.FulfillmentStatusOrdered),
			want:    enums.OrderStatusProcessing,
		},
		{
			name:    "failure keeps order processing",
			current: enums.OrderStatusProcessing,
			records: recordsWith(enums.FulfillmentStatusDelivered, enums.FulfillmentStatusFailed),
			want:    enums.OrderStatusProcessing,
		},
		{
			name:    "cancelled order never changes",
			current: enums.OrderStatusCancelled,
			records: recordsWith(enums.FulfillmentStatusDelivered),
			want:    enums.OrderStatusCancelled,
		},
		{
			name:    "refunded order never changes",
			current: enums.OrderStatusRefunded,
			records: recordsWith(enums.FulfillmentStatusDelivered),
			want:    enums.OrderStatusRefunded,
		},
		{
			name:    "no records keeps current",
			current: enums.OrderStatusProcessing,
			records: nil,
			want:    enums.OrderStatusProcessing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveOrderStatus(tt.current, tt.records); got != tt.want {
				t.Fatalf("DeriveOrderStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}
