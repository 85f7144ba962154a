package stripe

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/ephemeralkey"
	"github.com/stripe/stripe-go/v84/issuing/authorization"
	"github.com/stripe/stripe-go/v84/issuing/card"
)

const (
	cardStatusActive   = "active"
	cardStatusInactive = "inactive"

	spendingIntervalAllTime = "all_time"
)

// IssueCardParams describes a virtual card bound to one group.
type IssueCardParams struct {
	GroupID    string
	OwnerEmail string
	LimitCents int64
	VendorName string
}

// Card is the subset of an Issuing card the disbursement flow relies on.
type Card struct {
	ID         string
	Status     string
	Last4      string
	LimitCents int64
}

// Active reports whether the card can authorize spend.
func (c Card) Active() bool {
	return c.Status == cardStatusActive
}

// Authorization is one charge attempt against an issued card.
type Authorization struct {
	ID           string
	AmountCents  int64
	MerchantName string
	Approved     bool
	CreatedAt    time.Time
}

// RevealKey is a short-lived ephemeral key the client uses to render card details.
type RevealKey struct {
	ID        string
	Secret    string
	ExpiresAt time.Time
}

// IssueCard creates an active virtual card capped at the disbursable amount.
func (c *Client) IssueCard(ctx context.Context, params IssueCardParams) (*Card, error) {
	if params.LimitCents <= 0 {
		return nil, errSpendingLimitInvalid
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req := c.cardCreateParams(params)
	req.Context = ctx
	c.logCall(ctx, "issue_card", map[string]any{"group_id": params.GroupID, "limit_cents": params.LimitCents})

	issued, err := card.New(req)
	if err != nil {
		c.logFailure(ctx, "issue_card", err)
		return nil, mapStripeError(ctx, err, "issue card")
	}
	return toCard(issued), nil
}

// GetCard fetches the card's current gateway state.
func (c *Client) GetCard(ctx context.Context, cardID string) (*Card, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return nil, errCardIDRequired
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	params := &stripe.IssuingCardParams{}
	params.Context = ctx
	fetched, err := card.Get(cardID, params)
	if err != nil {
		c.logFailure(ctx, "get_card", err)
		return nil, mapStripeError(ctx, err, "get card")
	}
	return toCard(fetched), nil
}

// SetCardActive toggles the card between active and inactive.
func (c *Client) SetCardActive(ctx context.Context, cardID string, active bool) (*Card, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return nil, errCardIDRequired
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	status := cardStatusInactive
	if active {
		status = cardStatusActive
	}
	params := &stripe.IssuingCardParams{Status: stripe.String(status)}
	params.Context = ctx
	c.logCall(ctx, "set_card_status", map[string]any{"card_id": cardID, "status": status})

	updated, err := card.Update(cardID, params)
	if err != nil {
		c.logFailure(ctx, "set_card_status", err)
		return nil, mapStripeError(ctx, err, "update card status")
	}
	return toCard(updated), nil
}

// SetSpendingLimit replaces the card's lifetime spending limit.
func (c *Client) SetSpendingLimit(ctx context.Context, cardID string, limitCents int64) (*Card, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return nil, errCardIDRequired
	}
	if limitCents <= 0 {
		return nil, errSpendingLimitInvalid
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	params := &stripe.IssuingCardParams{SpendingControls: c.spendingControls(limitCents)}
	params.Context = ctx
	c.logCall(ctx, "set_spending_limit", map[string]any{"card_id": cardID, "limit_cents": limitCents})

	updated, err := card.Update(cardID, params)
	if err != nil {
		c.logFailure(ctx, "set_spending_limit", err)
		return nil, mapStripeError(ctx, err, "update spending limit")
	}
	return toCard(updated), nil
}

// Authorizations streams the card's authorizations newest first.
func (c *Client) Authorizations(ctx context.Context, cardID string) iter.Seq2[Authorization, error] {
	return func(yield func(Authorization, error) bool) {
		cardID = strings.TrimSpace(cardID)
		if cardID == "" {
			yield(Authorization{}, errCardIDRequired)
			return
		}
		params := &stripe.IssuingAuthorizationListParams{Card: stripe.String(cardID)}
		params.Context = ctx

		it := authorization.List(params)
		for it.Next() {
			if !yield(toAuthorization(it.IssuingAuthorization()), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			c.logFailure(ctx, "list_authorizations", err)
			yield(Authorization{}, mapStripeError(ctx, err, "list authorizations"))
		}
	}
}

// CreateRevealKey mints an ephemeral key scoped to one card for client-side reveal.
func (c *Client) CreateRevealKey(ctx context.Context, cardID, nonce string) (*RevealKey, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return nil, errCardIDRequired
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	params := &stripe.EphemeralKeyParams{IssuingCard: stripe.String(cardID)}
	if trimmed := strings.TrimSpace(nonce); trimmed != "" {
		params.Nonce = stripe.String(trimmed)
	}
	if c.apiVersion != "" {
		params.StripeVersion = stripe.String(c.apiVersion)
	}
	params.Context = ctx
	c.logCall(ctx, "create_reveal_key", map[string]any{"card_id": cardID})

	key, err := ephemeralkey.New(params)
	if err != nil {
		c.logFailure(ctx, "create_reveal_key", err)
		return nil, mapStripeError(ctx, err, "create reveal key")
	}
	return &RevealKey{
		ID:        key.ID,
		Secret:    key.Secret,
		ExpiresAt: time.Unix(key.Expires, 0).UTC(),
	}, nil
}

func (c *Client) cardCreateParams(params IssueCardParams) *stripe.IssuingCardParams {
	req := &stripe.IssuingCardParams{
		Cardholder:       stripe.String(c.cardholderID),
		Currency:         stripe.String(c.currency),
		Type:             stripe.String("virtual"),
		Status:           stripe.String(cardStatusActive),
		SpendingControls: c.spendingControls(params.LimitCents),
	}
	if params.GroupID != "" {
		req.AddMetadata("group_id", params.GroupID)
	}
	if vendor := strings.TrimSpace(params.VendorName); vendor != "" {
		req.AddMetadata("vendor_name", vendor)
	}
	return req
}

func (c *Client) spendingControls(limitCents int64) *stripe.IssuingCardSpendingControlsParams {
	controls := &stripe.IssuingCardSpendingControlsParams{
		SpendingLimits: []*stripe.IssuingCardSpendingControlsSpendingLimitParams{
			{
				Amount:   stripe.Int64(limitCents),
				Interval: stripe.String(spendingIntervalAllTime),
			},
		},
	}
	if len(c.allowedCategories) > 0 {
		controls.AllowedCategories = stripe.StringSlice(c.allowedCategories)
	}
	return controls
}

func toCard(src *stripe.IssuingCard) *Card {
	if src == nil {
		return nil
	}
	out := &Card{
		ID:     src.ID,
		Status: string(src.Status),
		Last4:  src.Last4,
	}
	if src.SpendingControls != nil {
		for _, limit := range src.SpendingControls.SpendingLimits {
			if limit != nil && string(limit.Interval) == spendingIntervalAllTime {
				out.LimitCents = limit.Amount
			}
		}
	}
	return out
}

func toAuthorization(src *stripe.IssuingAuthorization) Authorization {
	if src == nil {
		return Authorization{}
	}
	out := Authorization{
		ID:          src.ID,
		AmountCents: src.Amount,
		Approved:    src.Approved,
		CreatedAt:   time.Unix(src.Created, 0).UTC(),
	}
	if src.MerchantData != nil {
		out.MerchantName = src.MerchantData.Name
	}
	if out.AmountCents == 0 && src.PendingRequest != nil {
		out.AmountCents = src.PendingRequest.Amount
	}
	return out
}
