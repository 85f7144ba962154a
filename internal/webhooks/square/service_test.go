package squarewebhook

import (
	"context"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
)

type reconcileCall struct {
	requestID uuid.UUID
	paymentID string
}

type stubReconciler struct {
	calls []reconcileCall
	err   error
}

func (s *stubReconciler) ReconcileCardPayment(_ context.Context, requestID uuid.UUID, paymentID string) error {
	s.calls = append(s.calls, reconcileCall{requestID: requestID, paymentID: paymentID})
	return s.err
}

func paymentEvent(typ, status, reference string) *SquareWebhookEvent {
	return &SquareWebhookEvent{
		EventID: "evt_1",
		Type:    typ,
		Data: SquareWebhookData{
			Type: "payment",
			ID:   "pay_1",
			Object: SquareWebhookObject{
				Payment: &SquarePayment{ID: "pay_1", Status: status, ReferenceID: reference},
			},
		},
	}
}

func TestHandleCompletedPaymentReconciles(t *testing.T) {
	stub := &stubReconciler{}
	svc, err := NewService(ServiceParams{Payments: stub})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	requestID := uuid.New()

	if err := svc.HandleEvent(context.Background(), paymentEvent("payment.updated", "COMPLETED", requestID.String())); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(stub.calls) != 1 || stub.calls[0].requestID != requestID || stub.calls[0].paymentID != "pay_1" {
		t.Fatalf("unexpected calls %+v", stub.calls)
	}
}

func TestHandleSkipsIrrelevantPayments(t *testing.T) {
	stub := &stubReconciler{}
	svc, _ := NewService(ServiceParams{Payments: stub})
	ctx := context.Background()

	cases := []*SquareWebhookEvent{
		paymentEvent("payment.updated", "APPROVED", uuid.NewString()),
		paymentEvent("payment.updated", "COMPLETED", "order-42"),
		paymentEvent("refund.created", "COMPLETED", uuid.NewString()),
	}
	for _, evt := range cases {
		if err := svc.HandleEvent(ctx, evt); err != nil {
			t.Fatalf("%s/%s: %v", evt.Type, evt.Data.Object.Payment.Status, err)
		}
	}
	if len(stub.calls) != 0 {
		t.Fatalf("expected no reconcile calls, got %d", len(stub.calls))
	}
}

func TestHandleErrors(t *testing.T) {
	ctx := context.Background()

	notFound := &stubReconciler{err: pkgerrors.New(pkgerrors.CodeNotFound, "payment request not found")}
	svc, _ := NewService(ServiceParams{Payments: notFound})
	if err := svc.HandleEvent(ctx, paymentEvent("payment.created", "COMPLETED", uuid.NewString())); err != nil {
		t.Fatalf("unknown request should be acknowledged: %v", err)
	}

	down := &stubReconciler{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	svc, _ = NewService(ServiceParams{Payments: down})
	if err := svc.HandleEvent(ctx, paymentEvent("payment.created", "COMPLETED", uuid.NewString())); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}

	missing := &SquareWebhookEvent{Type: "payment.updated"}
	if err := svc.HandleEvent(ctx, missing); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected constructor error")
	}
}
