package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	squarewebhook "github.com/angelmondragon/dumpsterpool-backend/internal/webhooks/square"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
)

type SquareWebhookService interface {
	HandleEvent(ctx context.Context, event *squarewebhook.SquareWebhookEvent) error
}

// SquareWebhook receives Square payment updates for card charges.
func SquareWebhook(svc SquareWebhookService, client signingSecretSource, guard eventGuard, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "square webhook service")
	}
	rc := receiver{
		source:          "square",
		signatureHeader: "Square-Signature",
		secrets:         client,
		guard:           guard,
		logg:            logg,
		verify: func(payload []byte, signature, secret string) (inbound, error) {
			if !validSquareSignature(payload, secret, signature) {
				return inbound{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid square signature")
			}
			var event squarewebhook.SquareWebhookEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return inbound{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event")
			}
			id := strings.TrimSpace(event.EventID)
			if id == "" {
				id = strings.TrimSpace(event.Data.ID)
			}
			if id == "" {
				return inbound{}, pkgerrors.New(pkgerrors.CodeValidation, "event id missing")
			}
			return inbound{
				id:     id,
				handle: func(ctx context.Context) error { return svc.HandleEvent(ctx, &event) },
			}, nil
		},
	}
	return rc.ServeHTTP
}

// validSquareSignature checks a hex HMAC-SHA256 of the raw body.
func validSquareSignature(payload []byte, secret, header string) bool {
	if secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(header)))
}
