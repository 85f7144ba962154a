package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/dumpsterpool-backend/internal/disbursement"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
)

type stubInstruments struct {
	txns     []disbursement.GatewayTransaction
	statuses map[string]string
	err      error
}

func (s *stubInstruments) RecordGatewayTransaction(_ context.Context, txn disbursement.GatewayTransaction) error {
	s.txns = append(s.txns, txn)
	return s.err
}

func (s *stubInstruments) SyncStatus(_ context.Context, cardID, status string) error {
	if s.statuses == nil {
		s.statuses = map[string]string{}
	}
	s.statuses[cardID] = status
	return s.err
}

func eventWith(t *testing.T, typ stripe.EventType, obj any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &stripe.Event{ID: "evt_1", Type: typ, Data: &stripe.EventData{Raw: raw}}
}

func newService(t *testing.T, stub *stubInstruments) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Instruments: stub})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return svc
}

func TestHandleAuthorizationRecordsTransaction(t *testing.T) {
	stub := &stubInstruments{}
	svc := newService(t, stub)
	evt := eventWith(t, stripe.EventTypeIssuingAuthorizationCreated, map[string]any{
		"id":            "iauth_1",
		"object":        "issuing.authorization",
		"amount":        0,
		"approved":      true,
		"created":       1767225600,
		"card":          map[string]any{"id": "ic_1", "object": "issuing.card"},
		"merchant_data": map[string]any{"name": "Waste Co"},
		"pending_request": map[string]any{
			"amount": 42000,
		},
	})

	if err := svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(stub.txns) != 1 {
		t.Fatalf("expected one transaction, got %d", len(stub.txns))
	}
	txn := stub.txns[0]
	if txn.GatewayCardID != "ic_1" || txn.GatewayTransactionID != "iauth_1" || txn.AmountCents != 42000 || !txn.Approved || txn.MerchantName != "Waste Co" {
		t.Fatalf("unexpected transaction %+v", txn)
	}
	if txn.OccurredAt.Unix() != 1767225600 {
		t.Fatalf("unexpected occurred_at %v", txn.OccurredAt)
	}
}

func TestHandleCardUpdatedSyncsStatus(t *testing.T) {
	stub := &stubInstruments{}
	svc := newService(t, stub)
	evt := eventWith(t, stripe.EventTypeIssuingCardUpdated, map[string]any{"id": "ic_1", "object": "issuing.card", "status": "inactive"})

	if err := svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if stub.statuses["ic_1"] != "inactive" {
		t.Fatalf("status not synced: %v", stub.statuses)
	}
}

func TestHandleIgnoresUnknownCardsAndEvents(t *testing.T) {
	stub := &stubInstruments{err: pkgerrors.New(pkgerrors.CodeInstrumentNotFound, "unknown card")}
	svc := newService(t, stub)

	evt := eventWith(t, stripe.EventTypeIssuingCardUpdated, map[string]any{"id": "ic_other", "status": "active"})
	if err := svc.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("unknown card should be ignored: %v", err)
	}
	other := eventWith(t, stripe.EventTypeCustomerCreated, map[string]any{"id": "cus_1"})
	if err := svc.HandleEvent(context.Background(), other); err != nil {
		t.Fatalf("unrelated event should be ignored: %v", err)
	}
}

func TestHandlePropagatesFailures(t *testing.T) {
	stub := &stubInstruments{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	svc := newService(t, stub)
	evt := eventWith(t, stripe.EventTypeIssuingCardUpdated, map[string]any{"id": "ic_1", "status": "active"})
	if err := svc.HandleEvent(context.Background(), evt); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}

	missingCard := eventWith(t, stripe.EventTypeIssuingAuthorizationCreated, map[string]any{"id": "iauth_2"})
	if err := svc.HandleEvent(context.Background(), missingCard); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.HandleEvent(context.Background(), nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil event")
	}
}
