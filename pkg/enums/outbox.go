package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateGroup          OutboxAggregateType = "group"
	AggregateInvitee        OutboxAggregateType = "invitee"
	AggregatePaymentRequest OutboxAggregateType = "payment_request"
	AggregateInstrument     OutboxAggregateType = "instrument"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateGroup,
	AggregateInvitee,
	AggregatePaymentRequest,
	AggregateInstrument,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventInvitationCreated     OutboxEventType = "invitation_created"
	EventMemberJoined          OutboxEventType = "member_joined"
	EventGroupFull             OutboxEventType = "group_full"
	EventGroupStatusChanged    OutboxEventType = "group_status_changed"
	EventPaymentRequestCreated OutboxEventType = "payment_request_created"
	EventPaymentRequestPaid    OutboxEventType = "payment_request_paid"
	EventInstrumentIssued      OutboxEventType = "instrument_issued"
)

var validOutboxEventTypes = []OutboxEventType{
	EventInvitationCreated,
	EventMemberJoined,
	EventGroupFull,
	EventGroupStatusChanged,
	EventPaymentRequestCreated,
	EventPaymentRequestPaid,
	EventInstrumentIssued,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
