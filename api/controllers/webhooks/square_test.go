package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	squarewebhook "github.com/angelmondragon/dumpsterpool-backend/internal/webhooks/square"
)

func TestSquareWebhookDeliversVerifiedEvent(t *testing.T) {
	payload := buildSquareEvent(t, "evt-"+uuid.NewString())
	header := buildSquareSignature(payload, "secret")
	service := &fakeSquareWebhookService{}
	handler := SquareWebhook(service, &fakeSigningClient{secret: "secret"}, newGuard(t, "square-webhook"), nil)

	rec := postWebhook(handler, "/api/v1/webhooks/square", "Square-Signature", header, payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}
	if service.last == nil || service.last.Data.Object.Payment == nil || service.last.Data.Object.Payment.Status != "COMPLETED" {
		t.Fatalf("expected decoded payment, got %+v", service.last)
	}

	rec = postWebhook(handler, "/api/v1/webhooks/square", "Square-Signature", header, payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d", rec.Code)
	}
	if service.calls != 1 {
		t.Fatalf("duplicate should not increment calls, got %d", service.calls)
	}
}

func TestSquareWebhookRejectsBadSignature(t *testing.T) {
	payload := buildSquareEvent(t, "evt-"+uuid.NewString())
	service := &fakeSquareWebhookService{}
	handler := SquareWebhook(service, &fakeSigningClient{secret: "secret"}, newGuard(t, "square-webhook"), nil)

	rec := postWebhook(handler, "/api/v1/webhooks/square", "Square-Signature", "deadbeef", payload)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be called")
	}
}

func TestSquareWebhookRequiresEventID(t *testing.T) {
	payload := []byte(`{"type":"payment.updated","data":{"type":"payment","object":{}}}`)
	service := &fakeSquareWebhookService{}
	handler := SquareWebhook(service, &fakeSigningClient{secret: "secret"}, newGuard(t, "square-webhook"), nil)

	rec := postWebhook(handler, "/api/v1/webhooks/square", "Square-Signature", buildSquareSignature(payload, "secret"), payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func buildSquareEvent(t *testing.T, eventID string) []byte {
	t.Helper()
	event := map[string]any{
		"event_id": eventID,
		"type":     "payment.updated",
		"data": map[string]any{
			"type": "payment",
			"id":   "pay_1",
			"object": map[string]any{
				"payment": map[string]any{
					"id":           "pay_1",
					"status":       "COMPLETED",
					"reference_id": uuid.NewString(),
				},
			},
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func buildSquareSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

type fakeSquareWebhookService struct {
	calls int
	last  *squarewebhook.SquareWebhookEvent
}

func (f *fakeSquareWebhookService) HandleEvent(_ context.Context, event *squarewebhook.SquareWebhookEvent) error {
	f.calls++
	f.last = event
	return nil
}
