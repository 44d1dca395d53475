// Package consumer drives fulfillment from the order.paid Pub/Sub feed.
package consumer

import (
	"context"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/internal/events"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

type processor interface {
	ProcessOrder(ctx context.Context, orderID uuid.UUID) (*fulfillment.ProcessResult, error)
}

// Consumer processes order.paid messages and kicks off supplier placement.
// Delivery is at-least-once; the orchestrator is idempotent, so duplicate
// messages are harmless.
type Consumer struct {
	processor    processor
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

func New(proc processor, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if proc == nil {
		return nil, errors.New("order processor is required")
	}
	if subscription == nil {
		return nil, errors.New("orders subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		processor:    proc,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription
// errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.Process(ctx, msg.ID, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Process handles one message payload. It reports whether the message should
// be acked: malformed payloads and missing orders are acked because
// redelivery cannot fix them, while transient failures are nacked for
// another attempt.
func (c *Consumer) Process(ctx context.Context, msgID string, data []byte) bool {
	ctx = c.logg.WithField(ctx, "message_id", msgID)

	event, err := events.DecodeOrderPaid(data)
	if err != nil {
		c.logg.Error(ctx, "dropping undecodable order event", err)
		return true
	}

	ctx = c.logg.WithOrderID(ctx, event.OrderID.String())

	result, err := c.processor.ProcessOrder(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logg.Warn(ctx, "order not found, dropping event")
			return true
		}
		c.logg.Error(ctx, "failed to process order, will redeliver", err)
		return false
	}

	failed := 0
	for _, outcome := range result.Outcomes {
		if outcome.Err != nil {
			failed++
		}
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"suppliers": len(result.Outcomes),
		"failed":    failed,
		"success":   result.Success,
	})
	c.logg.Info(ctx, "order event processed")
	// Placement failures are recorded on the fulfillment records and the
	// retry sweep picks them up; redelivering the event would not help.
	return true
}
