package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef is the user whose action produced an event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email,omitempty"`
}

// PayloadEnvelope wraps every outbox payload. Consumers check Version before
// decoding Data into the per-event struct from package payloads.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
