package events

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

// EventOrderPaid is published on the orders topic when a payment confirms.
const EventOrderPaid = "order.paid"

// OrderPaid is the wire envelope for an order.paid event. Delivery is
// at-least-once; consumers must tolerate replays.
type OrderPaid struct {
	Event            string    `json:"event"`
	OrderID          uuid.UUID `json:"order_id"`
	PaymentReference string    `json:"payment_reference,omitempty"`
}

// DecodeOrderPaid parses and checks an order.paid payload.
func DecodeOrderPaid(data []byte) (*OrderPaid, error) {
	var event OrderPaid
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decoding order event: %w", err)
	}
	if event.Event != EventOrderPaid {
		return nil, fmt.Errorf("unexpected order event %q", event.Event)
	}
	if event.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order event missing order id")
	}
	return &event, nil
}

type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// OrderPublisher emits order lifecycle events on the orders topic.
type OrderPublisher struct {
	pub publisher
}

func NewOrderPublisher(pub publisher) *OrderPublisher {
	return &OrderPublisher{pub: pub}
}

// PublishOrderPaid emits an order.paid event and waits for the broker ack.
func (p *OrderPublisher) PublishOrderPaid(ctx context.Context, orderID uuid.UUID, paymentReference string) error {
	if p == nil || p.pub == nil {
		return fmt.Errorf("orders publisher not configured")
	}

	payload, err := json.Marshal(OrderPaid{
		Event:            EventOrderPaid,
		OrderID:          orderID,
		PaymentReference: paymentReference,
	})
	if err != nil {
		return fmt.Errorf("encoding order event: %w", err)
	}

	result := p.pub.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"event": EventOrderPaid},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing order event: %w", err)
	}
	return nil
}
