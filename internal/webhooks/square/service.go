package squarewebhook

import (
	"context"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
)

const paymentStatusCompleted = "COMPLETED"

type paymentReconciler interface {
	ReconcileCardPayment(ctx context.Context, requestID uuid.UUID, gatewayPaymentID string) error
}

type ServiceParams struct {
	Payments paymentReconciler
	Logger   *logger.Logger
}

// Service settles card-paid requests from Square payment notifications.
type Service struct {
	payments paymentReconciler
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler required")
	}
	return &Service{payments: params.Payments, logg: params.Logger}, nil
}

type SquareWebhookEvent struct {
	EventID string            `json:"event_id"`
	Type    string            `json:"type"`
	Data    SquareWebhookData `json:"data"`
}

type SquareWebhookData struct {
	Type   string              `json:"type"`
	ID     string              `json:"id"`
	Object SquareWebhookObject `json:"object"`
}

type SquareWebhookObject struct {
	Payment *SquarePayment `json:"payment"`
}

// SquarePayment carries the fields needed to match a charge to its request.
type SquarePayment struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
}

// HandleEvent reconciles payment.created and payment.updated notifications.
// Payments without a payment request reference are ignored.
func (s *Service) HandleEvent(ctx context.Context, event *SquareWebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
	default:
		return nil
	}

	payment := event.Data.Object.Payment
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}
	if !strings.EqualFold(payment.Status, paymentStatusCompleted) {
		return nil
	}
	requestID, err := uuid.Parse(strings.TrimSpace(payment.ReferenceID))
	if err != nil {
		s.logInfo(ctx, payment.ID, "square payment without request reference")
		return nil
	}

	err = s.payments.ReconcileCardPayment(ctx, requestID, payment.ID)
	switch {
	case err == nil:
		return nil
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound), pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		s.logInfo(ctx, payment.ID, "square payment does not match a card request")
		return nil
	}
	return err
}

func (s *Service) logInfo(ctx context.Context, paymentID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "square_payment_id", paymentID), msg)
}
