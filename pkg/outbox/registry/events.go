package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/config"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox/payloads"
)

// EventDescriptor is what the publisher needs to route one event type.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a failure that no amount of redelivery will fix.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

type topicKind int

const (
	notificationTopic topicKind = iota
	groupTopic
)

type route struct {
	aggregate enums.OutboxAggregateType
	topic     topicKind
	payload   func() any
}

// Emails go out through the notification topic. Everything else is
// lifecycle traffic on the group topic.
var routes = map[enums.OutboxEventType]route{
	enums.EventInvitationCreated: {enums.AggregateInvitee, notificationTopic,
		func() any { return &payloads.InvitationCreatedEvent{} }},
	enums.EventPaymentRequestCreated: {enums.AggregatePaymentRequest, notificationTopic,
		func() any { return &payloads.PaymentRequestCreatedEvent{} }},
	enums.EventMemberJoined: {enums.AggregateGroup, groupTopic,
		func() any { return &payloads.MemberJoinedEvent{} }},
	enums.EventGroupFull: {enums.AggregateGroup, groupTopic,
		func() any { return &payloads.GroupFullEvent{} }},
	enums.EventGroupStatusChanged: {enums.AggregateGroup, groupTopic,
		func() any { return &payloads.GroupStatusChangedEvent{} }},
	enums.EventPaymentRequestPaid: {enums.AggregatePaymentRequest, groupTopic,
		func() any { return &payloads.PaymentRequestPaidEvent{} }},
	enums.EventInstrumentIssued: {enums.AggregateInstrument, groupTopic,
		func() any { return &payloads.InstrumentIssuedEvent{} }},
}

// EventRegistry resolves outbox rows against the route table using the
// configured topic names.
type EventRegistry struct {
	topics map[topicKind]string
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	var errs []error
	if cfg.NotificationTopic == "" {
		errs = append(errs, errors.New("notification topic is required"))
	}
	if cfg.GroupTopic == "" {
		errs = append(errs, errors.New("group topic is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &EventRegistry{topics: map[topicKind]string{
		notificationTopic: cfg.NotificationTopic,
		groupTopic:        cfg.GroupTopic,
	}}, nil
}

// Descriptor reports how eventType is routed.
func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	rt, ok := routes[eventType]
	if !ok {
		return EventDescriptor{}, false
	}
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  rt.aggregate,
		Topic:          r.topics[rt.topic],
		PayloadFactory: rt.payload,
	}, true
}

// Resolve checks the row against its route and decodes the typed payload.
// Every failure is non-retryable: the stored row will not change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.Descriptor(event.EventType)
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
