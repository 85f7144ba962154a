package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/dumpsterpool-backend/internal/disbursement"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
)

type instrumentSync interface {
	RecordGatewayTransaction(ctx context.Context, txn disbursement.GatewayTransaction) error
	SyncStatus(ctx context.Context, gatewayCardID, gatewayStatus string) error
}

type ServiceParams struct {
	Instruments instrumentSync
	Logger      *logger.Logger
}

// Service applies Stripe Issuing events to the group cards.
type Service struct {
	instruments instrumentSync
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Instruments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "instrument service required")
	}
	return &Service{instruments: params.Instruments, logg: params.Logger}, nil
}

// HandleEvent routes an Issuing event. Events for cards this service did not
// issue are acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	var err error
	switch event.Type {
	case stripe.EventTypeIssuingAuthorizationCreated, stripe.EventTypeIssuingAuthorizationUpdated:
		var authz stripe.IssuingAuthorization
		if decodeErr := json.Unmarshal(event.Data.Raw, &authz); decodeErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, decodeErr, "decode authorization event")
		}
		txn, ok := gatewayTransaction(&authz)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "authorization card missing")
		}
		err = s.instruments.RecordGatewayTransaction(ctx, txn)
	case stripe.EventTypeIssuingCardUpdated:
		var card stripe.IssuingCard
		if decodeErr := json.Unmarshal(event.Data.Raw, &card); decodeErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, decodeErr, "decode card event")
		}
		err = s.instruments.SyncStatus(ctx, card.ID, string(card.Status))
	default:
		return nil
	}

	if pkgerrors.IsCode(err, pkgerrors.CodeInstrumentNotFound) {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "stripe_event_id", event.ID), "stripe event for unknown card")
		}
		return nil
	}
	return err
}

func gatewayTransaction(src *stripe.IssuingAuthorization) (disbursement.GatewayTransaction, bool) {
	if src.Card == nil || src.Card.ID == "" {
		return disbursement.GatewayTransaction{}, false
	}
	amount := src.Amount
	if amount == 0 && src.PendingRequest != nil {
		amount = src.PendingRequest.Amount
	}
	txn := disbursement.GatewayTransaction{
		GatewayCardID:        src.Card.ID,
		GatewayTransactionID: src.ID,
		AmountCents:          amount,
		Approved:             src.Approved,
		OccurredAt:           time.Unix(src.Created, 0).UTC(),
	}
	if src.MerchantData != nil {
		txn.MerchantName = src.MerchantData.Name
	}
	return txn, true
}
