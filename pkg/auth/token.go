package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/config"
)

// clockSkew tolerates small clock differences with the identity provider.
const clockSkew = 30 * time.Second

var (
	ErrSecretRequired = errors.New("jwt secret is required")
	ErrMissingUserID  = errors.New("token missing user_id")
	ErrMissingEmail   = errors.New("token missing email")
)

// MintAccessToken signs an HS256 token for identity. Production tokens come
// from the identity provider; local tooling and tests mint their own with
// the shared secret.
func MintAccessToken(cfg config.JWTConfig, now time.Time, identity Identity) (string, error) {
	var problems []error
	if cfg.Secret == "" {
		problems = append(problems, ErrSecretRequired)
	}
	if cfg.Issuer == "" {
		problems = append(problems, errors.New("jwt issuer is required"))
	}
	if cfg.ExpirationMinutes <= 0 {
		problems = append(problems, errors.New("jwt expiration minutes must be positive"))
	}
	if identity.ID == uuid.Nil {
		problems = append(problems, errors.New("identity id is required"))
	}
	if strings.TrimSpace(identity.Email) == "" {
		problems = append(problems, errors.New("identity email is required"))
	}
	if err := errors.Join(problems...); err != nil {
		return "", err
	}

	claims := AccessTokenClaims{
		UserID:      identity.ID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    cfg.Issuer,
			Subject:   identity.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiration())),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry, then requires the
// user id and email claims the API keys everything on.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, ErrSecretRequired
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	switch {
	case claims.UserID == uuid.Nil:
		return nil, ErrMissingUserID
	case strings.TrimSpace(claims.Email) == "":
		return nil, ErrMissingEmail
	}
	return claims, nil
}
