package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
)

type DecodeFunc func(payload json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps (event type, payload version) to a payload decoder.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]DecodeFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]DecodeFunc)}
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decode DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[decoderKey{eventType: eventType, version: version}] = decode
}

// RegisterJSON registers a decoder that unmarshals the payload into T.
func RegisterJSON[T any](r *DecoderRegistry, eventType enums.OutboxEventType, version int) {
	r.Register(eventType, version, func(payload json.RawMessage) (any, error) {
		var out T
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, NewNonRetryableError(fmt.Errorf("decode %s@v%d: %w", eventType, version, err))
		}
		return out, nil
	})
}

// Decode fails with a NonRetryableError for unknown (type, version) pairs.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decode, ok := r.decoders[decoderKey{eventType: eventType, version: version}]
	r.mu.RUnlock()
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("no decoder for %s@v%d", eventType, version))
	}
	return decode(payload)
}
