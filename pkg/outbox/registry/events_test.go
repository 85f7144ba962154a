package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/config"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/outbox/payloads"
)

var testTopics = config.PubSubConfig{
	NotificationTopic: "notification-topic",
	GroupTopic:        "group-topic",
}

func TestResolveDecodesInvitation(t *testing.T) {
	reg := newTestEventRegistry(t)
	inviteeID := uuid.New()

	resolved, err := reg.Resolve(outboxRow(enums.EventInvitationCreated, enums.AggregateInvitee, encode(t, payloads.InvitationCreatedEvent{
		GroupID:      uuid.New(),
		GroupName:    "Elm Street cleanout",
		InviteeID:    inviteeID,
		InviteeEmail: "a@example.com",
		JoinToken:    "tok",
	})))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Descriptor.Topic != "notification-topic" {
		t.Fatalf("topic = %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.InvitationCreatedEvent)
	if !ok {
		t.Fatalf("payload type %T", resolved.Payload)
	}
	if payload.InviteeID != inviteeID || payload.JoinToken != "tok" {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope not decoded: %+v", resolved.Envelope)
	}
}

func TestResolveRoutesByEventType(t *testing.T) {
	reg := newTestEventRegistry(t)
	cases := map[enums.OutboxEventType]string{
		enums.EventInvitationCreated:     "notification-topic",
		enums.EventPaymentRequestCreated: "notification-topic",
		enums.EventMemberJoined:          "group-topic",
		enums.EventGroupFull:             "group-topic",
		enums.EventGroupStatusChanged:    "group-topic",
		enums.EventPaymentRequestPaid:    "group-topic",
		enums.EventInstrumentIssued:      "group-topic",
	}
	for eventType, topic := range cases {
		desc, ok := reg.Descriptor(eventType)
		if !ok {
			t.Fatalf("%s not routed", eventType)
		}
		if desc.Topic != topic {
			t.Fatalf("%s routed to %q, want %q", eventType, desc.Topic, topic)
		}
	}
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	missingID := outboxRow(enums.EventPaymentRequestCreated, enums.AggregatePaymentRequest, []byte(`{}`))
	missingID.AggregateID = uuid.Nil

	cases := map[string]models.OutboxEvent{
		"unknown type":       outboxRow("reservation_released", enums.AggregateGroup, []byte(`{"reason":"none"}`)),
		"aggregate mismatch": outboxRow(enums.EventGroupFull, enums.AggregatePaymentRequest, []byte(`{"current_participants":2}`)),
		"missing aggregate":  missingID,
		"null payload":       outboxRow(enums.EventPaymentRequestCreated, enums.AggregatePaymentRequest, []byte("null")),
		"malformed payload":  outboxRow(enums.EventGroupFull, enums.AggregateGroup, []byte(`{"current_participants":"two"}`)),
	}
	for name, row := range cases {
		_, err := reg.Resolve(row)
		var nonRetry NonRetryableError
		if !errors.As(err, &nonRetry) {
			t.Fatalf("%s: expected non-retryable error, got %v", name, err)
		}
	}
}

func TestResolveRejectsBrokenEnvelope(t *testing.T) {
	reg := newTestEventRegistry(t)
	row := outboxRow(enums.EventGroupFull, enums.AggregateGroup, nil)
	row.Payload = json.RawMessage(`not-json`)

	_, err := reg.Resolve(row)
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{GroupTopic: "g"}); err == nil {
		t.Fatal("expected error without notification topic")
	}
	if _, err := NewEventRegistry(config.PubSubConfig{NotificationTopic: "n"}); err == nil {
		t.Fatal("expected error without group topic")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(testTopics)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func outboxRow(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, data []byte) models.OutboxEvent {
	envelope, _ := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	return models.OutboxEvent{
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   uuid.New(),
		Payload:       envelope,
	}
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}
