package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
)

const stripeSecret = "whsec_test"

func TestStripeWebhookDeliversVerifiedEvent(t *testing.T) {
	payload, eventID := stripeAuthorizationEvent(t)
	service := &recordingStripeService{}
	handler := StripeWebhook(service, &fakeSigningClient{secret: stripeSecret}, newGuard(t, "stripe-webhook"), nil)

	header := stripeSignature(payload, stripeSecret, time.Now().Unix())
	for range 2 {
		rec := postWebhook(handler, "/api/v1/webhooks/stripe", "Stripe-Signature", header, payload)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
	}
	if len(service.events) != 1 {
		t.Fatalf("redelivery should be deduplicated, got %d events", len(service.events))
	}
	if service.events[0].ID != eventID || service.events[0].Type != stripe.EventTypeIssuingAuthorizationCreated {
		t.Fatalf("unexpected event %+v", service.events[0])
	}
}

func TestStripeWebhookRejectsBadSignatures(t *testing.T) {
	payload, _ := stripeAuthorizationEvent(t)
	cases := map[string]string{
		"garbage":      "t=1,v1=invalid",
		"wrong secret": stripeSignature(payload, "whsec_other", time.Now().Unix()),
		"stale":        stripeSignature(payload, stripeSecret, time.Now().Add(-time.Hour).Unix()),
	}
	for name, header := range cases {
		service := &recordingStripeService{}
		handler := StripeWebhook(service, &fakeSigningClient{secret: stripeSecret}, newGuard(t, "stripe-webhook"), nil)
		rec := postWebhook(handler, "/api/v1/webhooks/stripe", "Stripe-Signature", header, payload)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d", name, rec.Code)
		}
		if len(service.events) != 0 {
			t.Fatalf("%s: service should not be invoked", name)
		}
	}
}

func TestStripeWebhookWithoutService(t *testing.T) {
	handler := StripeWebhook(nil, &fakeSigningClient{secret: stripeSecret}, newGuard(t, "stripe-webhook"), nil)
	if rec := postWebhook(handler, "/api/v1/webhooks/stripe", "Stripe-Signature", "t=1,v1=x", []byte(`{}`)); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func stripeAuthorizationEvent(t *testing.T) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(&stripe.IssuingAuthorization{
		ID:           "iauth_" + uuid.NewString(),
		Amount:       12500,
		Approved:     true,
		Card:         &stripe.IssuingCard{ID: "ic_test"},
		MerchantData: &stripe.IssuingAuthorizationMerchantData{Name: "Rolloff Rentals"},
	})
	if err != nil {
		t.Fatalf("marshal authorization: %v", err)
	}
	eventID := "evt_" + uuid.NewString()
	payload, err := json.Marshal(&stripe.Event{
		ID:         eventID,
		Type:       stripe.EventTypeIssuingAuthorizationCreated,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: raw},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload, eventID
}

func stripeSignature(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type recordingStripeService struct {
	events []*stripe.Event
}

func (r *recordingStripeService) HandleEvent(_ context.Context, event *stripe.Event) error {
	r.events = append(r.events, event)
	return nil
}
