package enums

// CardAccessState is the observable state of a card access session.
type CardAccessState string

const (
	CardAccessLocked   CardAccessState = "locked"
	CardAccessVerified CardAccessState = "verified"
	CardAccessBlocked  CardAccessState = "blocked"
)

// CardAccessEvent maps to the card_access_event enum used by the audit log.
type CardAccessEvent string

const (
	CardAccessVerifySucceeded CardAccessEvent = "verify_succeeded"
	CardAccessVerifyFailed    CardAccessEvent = "verify_failed"
	CardAccessLockedOut       CardAccessEvent = "locked_out"
	CardAccessCooldownElapsed CardAccessEvent = "cooldown_elapsed"
	CardAccessSessionExpired  CardAccessEvent = "session_expired"
	CardAccessReset           CardAccessEvent = "reset"
	CardAccessRevealed        CardAccessEvent = "revealed"
	CardAccessNotAuthorized   CardAccessEvent = "not_authorized"
)

var validCardAccessEvents = []CardAccessEvent{
	CardAccessVerifySucceeded,
	CardAccessVerifyFailed,
	CardAccessLockedOut,
	CardAccessCooldownElapsed,
	CardAccessSessionExpired,
	CardAccessReset,
	CardAccessRevealed,
	CardAccessNotAuthorized,
}

// IsValid reports whether the value is a known audit event.
func (e CardAccessEvent) IsValid() bool {
	for _, candidate := range validCardAccessEvents {
		if candidate == e {
			return true
		}
	}
	return false
}
