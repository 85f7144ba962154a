package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox/registry"
)

// ConsumerName scopes the idempotency markers of the mail worker.
const ConsumerName = "notification-mailer"

type eventHandler interface {
	Handles(eventType enums.OutboxEventType) bool
	Handle(ctx context.Context, eventType enums.OutboxEventType, version int, eventID uuid.UUID, data json.RawMessage) error
}

type processedGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Consumer drains the notification subscription.
type Consumer struct {
	subscription *pubsub.Subscriber
	handler      eventHandler
	idempotency  processedGuard
	logg         *logger.Logger
}

func NewConsumer(subscription *pubsub.Subscriber, handler eventHandler, guard processedGuard, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{subscription: subscription, handler: handler, idempotency: guard, logg: logg}, nil
}

// Run blocks until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes["event_type"], msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process returns true when the message should be acked.
func (c *Consumer) process(ctx context.Context, messageID, eventType string, data []byte) bool {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	kind := enums.OutboxEventType(eventType)
	if !c.handler.Handles(kind) {
		c.logg.Debug(logCtx, "skipping event without email")
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return true
	}
	logCtx = c.logg.WithField(logCtx, "event_id", envelope.EventID)

	already, err := c.idempotency.CheckAndMark(ctx, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return true
	}

	if err := c.handler.Handle(logCtx, kind, envelope.Version, eventID, envelope.Data); err != nil {
		if errors.Is(err, ErrUnhandledEvent) {
			return true
		}
		var nonRetryable registry.NonRetryableError
		if errors.As(err, &nonRetryable) {
			c.logg.Error(logCtx, "dropping undecodable notification event", err)
			return true
		}
		c.logg.Error(logCtx, "notification delivery failed", err)
		if releaseErr := c.idempotency.Release(context.WithoutCancel(ctx), envelope.EventID); releaseErr != nil {
			c.logg.Error(logCtx, "failed to release idempotency marker", releaseErr)
		}
		return false
	}
	c.logg.Info(logCtx, "notification sent")
	return true
}
