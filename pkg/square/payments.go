package square

import (
	"context"
	"strings"

	sq "github.com/square/square-go-sdk"
)

// CardCreateParams vaults a tokenized card on a customer.
type CardCreateParams struct {
	CustomerID        string
	SourceID          string
	CardholderName    string
	ReferenceID       string
	VerificationToken string
	IdempotencyKey    string
}

func (p CardCreateParams) request() *sq.CreateCardRequest {
	req := &sq.CreateCardRequest{
		IdempotencyKey:    idempotencyKey("card.create", p.IdempotencyKey),
		SourceID:          p.SourceID,
		VerificationToken: optional(p.VerificationToken),
	}
	card := &sq.Card{
		CustomerID:     optional(p.CustomerID),
		CardholderName: optional(p.CardholderName),
		ReferenceID:    optional(p.ReferenceID),
	}
	if card.CustomerID != nil || card.CardholderName != nil || card.ReferenceID != nil {
		req.Card = card
	}
	return req
}

// PaymentCreateParams charges a vaulted card for one payment request.
type PaymentCreateParams struct {
	AmountCents    int64
	Currency       string
	LocationID     string
	CustomerID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

func (p PaymentCreateParams) request() *sq.CreatePaymentRequest {
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey("payment.create", p.IdempotencyKey),
		SourceID:       p.SourceID,
		LocationID:     optional(p.LocationID),
		CustomerID:     optional(p.CustomerID),
		Note:           optional(p.Note),
		ReferenceID:    optional(p.ReferenceID),
	}
	if p.AmountCents > 0 {
		amount := p.AmountCents
		currency := sq.Currency(strings.ToUpper(strings.TrimSpace(p.Currency)))
		if currency == "" {
			currency = sq.Currency("USD")
		}
		req.AmountMoney = &sq.Money{Amount: &amount, Currency: &currency}
	}
	return req
}

func (c *Client) CreateCard(ctx context.Context, params CardCreateParams) (*sq.Card, error) {
	var card *sq.Card
	err := c.call(ctx, "create_card", map[string]any{"customer_id": params.CustomerID},
		func(ctx context.Context) (map[string]any, error) {
			resp, err := c.sdk.Cards.Create(ctx, params.request())
			if err != nil {
				return nil, err
			}
			card = resp.GetCard()
			return map[string]any{"card_id": deref(card.GetID())}, nil
		})
	return card, err
}

// CreatePayment falls back to the configured location when none is given.
func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	if strings.TrimSpace(params.LocationID) == "" {
		params.LocationID = c.locationID
	}
	var payment *sq.Payment
	fields := map[string]any{
		"location_id": params.LocationID,
		"customer_id": params.CustomerID,
		"amount":      params.AmountCents,
	}
	err := c.call(ctx, "create_payment", fields, func(ctx context.Context) (map[string]any, error) {
		resp, err := c.sdk.Payments.Create(ctx, params.request())
		if err != nil {
			return nil, err
		}
		payment = resp.GetPayment()
		return map[string]any{
			"payment_id": deref(payment.GetID()),
			"status":     deref(payment.GetStatus()),
		}, nil
	})
	return payment, err
}
