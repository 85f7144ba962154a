package cardaccess

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/redis"
)

// stateTTL bounds how long an idle gate keeps its counters.
const stateTTL = 24 * time.Hour

// session is the persisted gate state for one (group, creator) pair.
type session struct {
	VerifiedUntil  *time.Time `json:"verified_until,omitempty"`
	FailedAttempts int        `json:"failed_attempts"`
	BlockedUntil   *time.Time `json:"blocked_until,omitempty"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
}

func (s session) state(now time.Time) enums.CardAccessState {
	switch {
	case s.BlockedUntil != nil && now.Before(*s.BlockedUntil):
		return enums.CardAccessBlocked
	case s.VerifiedUntil != nil && now.Before(*s.VerifiedUntil):
		return enums.CardAccessVerified
	default:
		return enums.CardAccessLocked
	}
}

// expire clears elapsed timers and reports which ones elapsed.
func (s *session) expire(now time.Time) (sessionExpired, cooldownElapsed bool) {
	if s.BlockedUntil != nil && !now.Before(*s.BlockedUntil) {
		s.BlockedUntil = nil
		s.FailedAttempts = 0
		cooldownElapsed = true
	}
	if s.VerifiedUntil != nil && !now.Before(*s.VerifiedUntil) {
		s.VerifiedUntil = nil
		sessionExpired = true
	}
	return sessionExpired, cooldownElapsed
}

// stateStore is the shared store holding gate state. The redis client
// satisfies it.
type stateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
	CardAccessKey(groupID, userID string) string
	CardAccessLockKey(groupID, userID string) string
}

func loadSession(ctx context.Context, store stateStore, key string) (session, error) {
	var out session
	raw, err := store.Get(ctx, key)
	if err != nil {
		if redis.IsMiss(err) {
			return out, nil
		}
		return out, fmt.Errorf("load card access state: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return session{}, fmt.Errorf("decode card access state: %w", err)
	}
	return out, nil
}

func saveSession(ctx context.Context, store stateStore, key string, s session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode card access state: %w", err)
	}
	if err := store.Set(ctx, key, string(raw), stateTTL); err != nil {
		return fmt.Errorf("save card access state: %w", err)
	}
	return nil
}
