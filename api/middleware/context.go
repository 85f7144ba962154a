package middleware

import (
	"context"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
)

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxIdentity contextKey = "identity"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// IdentityFromContext returns the caller resolved by Auth.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	if ctx == nil {
		return auth.Identity{}, false
	}
	identity, ok := ctx.Value(ctxIdentity).(auth.Identity)
	return identity, ok
}

// WithIdentity injects the caller into the context.
func WithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxIdentity, identity)
	return context.WithValue(ctx, ctxUserID, identity.ID.String())
}
