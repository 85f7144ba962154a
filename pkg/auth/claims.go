package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is the caller as asserted by the identity provider.
type Identity struct {
	ID          uuid.UUID
	Email       string
	DisplayName string
}

// NormalizedEmail is the lower-cased, trimmed email used for invitee matching.
func (i Identity) NormalizedEmail() string {
	return NormalizeEmail(i.Email)
}

// NormalizeEmail lower-cases and trims an address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccessTokenClaims represents the typed JWT issued by the identity provider.
type AccessTokenClaims struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"name"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into an Identity.
func (c AccessTokenClaims) Identity() Identity {
	return Identity{
		ID:          c.UserID,
		Email:       strings.TrimSpace(c.Email),
		DisplayName: strings.TrimSpace(c.DisplayName),
	}
}
