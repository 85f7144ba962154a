package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const joinTokenBytes = 32

// NewJoinToken returns a random url-safe invitation token.
func NewJoinToken() (string, error) {
	buf := make([]byte, joinTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate join token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DigestJoinToken returns the hex blake2b-256 digest stored in place of the
// raw token. Lookups hash the presented token and compare digests.
func DigestJoinToken(token string) string {
	sum := blake2b.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}
