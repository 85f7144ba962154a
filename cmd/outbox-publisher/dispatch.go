package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox/registry"
)

// pending is one claimed row whose publish result has not been collected yet.
type pending struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	result   publishResult
	err      error
}

// processBatch claims a batch with SKIP LOCKED, sends every message before
// waiting on any result, then settles each row in the claiming transaction.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	started := time.Now()
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		processed = true

		publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()

		inflight := make([]pending, 0, len(events))
		for _, event := range events {
			inflight = append(inflight, s.send(publishCtx, event))
		}
		for _, p := range inflight {
			if p.err == nil {
				if _, err := p.result.Get(publishCtx); err != nil {
					p.err = err
				}
			}
			if err := s.settle(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if processed {
		s.metrics.ObserveBatch(time.Since(started))
	}
	return processed, err
}

func (s *Service) send(ctx context.Context, event models.OutboxEvent) pending {
	p := pending{event: event}
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		p.err = registry.NewNonRetryableError(err)
		return p
	}
	p.resolved = resolved
	pub := s.publisherFactory(resolved.Descriptor.Topic)
	if pub == nil {
		p.err = registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", resolved.Descriptor.Topic))
		return p
	}
	p.result = pub.Publish(ctx, &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_version":  fmt.Sprint(resolved.Envelope.Version),
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if p.result == nil {
		p.err = registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", resolved.Descriptor.Topic))
	}
	return p
}

// settle marks the row published, failed (retry later) or dead-lettered.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, p pending) error {
	event := p.event
	logCtx := s.logg.WithFields(ctx, s.eventFields(p))
	if p.err == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(string(event.EventType))
		s.logg.Info(logCtx, "outbox event published")
		return nil
	}

	s.metrics.IncFailed(string(event.EventType))
	var nonRetry registry.NonRetryableError
	switch {
	case errors.As(p.err, &nonRetry):
		return s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, p.err)
	case event.AttemptCount+1 >= s.maxAttempts:
		return s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", p.err))
	}
	s.logg.Warn(s.logg.WithField(logCtx, "error", p.err.Error()), "outbox publish failed, will retry")
	if err := s.repo.MarkFailedTx(tx, event.ID, p.err); err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"error":        cause.Error(),
		"error_reason": reason,
	}), "outbox event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) eventFields(p pending) map[string]any {
	fields := map[string]any{
		"outbox_id":      p.event.ID.String(),
		"event_type":     p.event.EventType,
		"aggregate_type": p.event.AggregateType,
		"aggregate_id":   p.event.AggregateID.String(),
		"attempt_count":  p.event.AttemptCount,
	}
	if p.resolved != nil {
		fields["topic"] = p.resolved.Descriptor.Topic
		fields["event_id"] = p.resolved.Envelope.EventID
	}
	return fields
}
