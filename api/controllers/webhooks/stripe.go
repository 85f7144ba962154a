package webhooks

import (
	"context"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// StripeWebhook receives Stripe Issuing card and authorization events.
func StripeWebhook(svc StripeWebhookService, client signingSecretSource, guard eventGuard, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "stripe webhook service")
	}
	rc := receiver{
		source:          "stripe",
		signatureHeader: "Stripe-Signature",
		secrets:         client,
		guard:           guard,
		logg:            logg,
		verify: func(payload []byte, signature, secret string) (inbound, error) {
			event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
				IgnoreAPIVersionMismatch: true,
			})
			if err != nil {
				return inbound{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid stripe signature")
			}
			return inbound{
				id:     event.ID,
				handle: func(ctx context.Context) error { return svc.HandleEvent(ctx, &event) },
			}, nil
		},
	}
	return rc.ServeHTTP
}
