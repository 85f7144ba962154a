package payloads

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
)

// SlotWindow is a rental window rendered in invitation emails.
type SlotWindow struct {
	TimeSlotID uuid.UUID `json:"time_slot_id"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
}

// InvitationCreatedEvent asks the notification worker to email a join link.
// JoinToken is the only place the raw token exists outside the invitee's inbox.
type InvitationCreatedEvent struct {
	GroupID         uuid.UUID    `json:"group_id"`
	GroupName       string       `json:"group_name"`
	Address         string       `json:"address"`
	CreatorName     string       `json:"creator_name"`
	MaxParticipants int          `json:"max_participants"`
	InviteeID       uuid.UUID    `json:"invitee_id"`
	InviteeName     string       `json:"invitee_name"`
	InviteeEmail    string       `json:"invitee_email"`
	JoinToken       string       `json:"join_token"`
	TimeSlots       []SlotWindow `json:"time_slots,omitempty"`
}

// MemberJoinedEvent is emitted after an invitee becomes a participant.
type MemberJoinedEvent struct {
	GroupID             uuid.UUID `json:"group_id"`
	ParticipantID       uuid.UUID `json:"participant_id"`
	UserID              uuid.UUID `json:"user_id"`
	DisplayName         string    `json:"display_name"`
	CurrentParticipants int       `json:"current_participants"`
	MaxParticipants     int       `json:"max_participants"`
}

// GroupFullEvent fires on the automatic forming->full transition.
type GroupFullEvent struct {
	GroupID             uuid.UUID `json:"group_id"`
	CreatorUserID       uuid.UUID `json:"creator_user_id"`
	CurrentParticipants int       `json:"current_participants"`
}

// GroupStatusChangedEvent records creator-driven lifecycle transitions.
type GroupStatusChangedEvent struct {
	GroupID   uuid.UUID         `json:"group_id"`
	From      enums.GroupStatus `json:"from"`
	To        enums.GroupStatus `json:"to"`
	ChangedBy uuid.UUID         `json:"changed_by"`
}

// PaymentRequestCreatedEvent asks the notification worker to email the payer.
type PaymentRequestCreatedEvent struct {
	RequestID     uuid.UUID               `json:"request_id"`
	BatchID       uuid.UUID               `json:"batch_id"`
	GroupID       uuid.UUID               `json:"group_id"`
	GroupName     string                  `json:"group_name"`
	CreatorName   string                  `json:"creator_name"`
	PayerName     string                  `json:"payer_name"`
	PayerEmail    string                  `json:"payer_email"`
	AmountCents   int64                   `json:"amount_cents"`
	Currency      string                  `json:"currency"`
	Description   string                  `json:"description"`
	Method        enums.PaymentMethodType `json:"method"`
	MethodDetails json.RawMessage         `json:"method_details,omitempty"`
}

// PaymentRequestPaidEvent is emitted on the pending->paid flip.
type PaymentRequestPaidEvent struct {
	RequestID   uuid.UUID `json:"request_id"`
	GroupID     uuid.UUID `json:"group_id"`
	PayerUserID uuid.UUID `json:"payer_user_id"`
	AmountCents int64     `json:"amount_cents"`
	PaidAt      time.Time `json:"paid_at"`
}

// InstrumentIssuedEvent is emitted when the group's card is created.
type InstrumentIssuedEvent struct {
	GroupID            uuid.UUID `json:"group_id"`
	InstrumentID       uuid.UUID `json:"instrument_id"`
	SpendingLimitCents int64     `json:"spending_limit_cents"`
}
