package paymentmethods

import (
	"context"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/dumpsterpool-backend/internal/squarecustomers"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/square"
)

// Service vaults a participant's card so payment requests can be charged.
type Service interface {
	StoreCard(ctx context.Context, participant *models.Participant, input StoreCardInput) (*CardOnFile, error)
}

// StoreCardInput captures the payload required to vault a card.
type StoreCardInput struct {
	SourceID          string
	CardholderName    string
	VerificationToken string
	IdempotencyKey    string
}

// CardOnFile is the non-sensitive view of a vaulted card.
type CardOnFile struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	CardID        string    `json:"card_id"`
	Brand         *string   `json:"brand,omitempty"`
	Last4         *string   `json:"last4,omitempty"`
	ExpMonth      *int      `json:"exp_month,omitempty"`
	ExpYear       *int      `json:"exp_year,omitempty"`
}

// ServiceParams groups dependencies for the payment method service.
type ServiceParams struct {
	Customers    squarecustomers.Service
	SquareClient cardCreator
	Participants participantCardStore
}

type cardCreator interface {
	CreateCard(ctx context.Context, params square.CardCreateParams) (*sq.Card, error)
}

type participantCardStore interface {
	UpdateParticipantCard(ctx context.Context, participantID uuid.UUID, customerID, cardID string) error
}

type service struct {
	customers    squarecustomers.Service
	square       cardCreator
	participants participantCardStore
}

// NewService constructs a payment method service.
func NewService(params ServiceParams) (Service, error) {
	if params.Customers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "square customer service required")
	}
	if params.SquareClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "square client required")
	}
	if params.Participants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "participant store required")
	}
	return &service{
		customers:    params.Customers,
		square:       params.SquareClient,
		participants: params.Participants,
	}, nil
}

// StoreCard creates a Square card for the participant and records it. A
// participant keeps one card; storing again replaces the reference.
func (s *service) StoreCard(ctx context.Context, participant *models.Participant, input StoreCardInput) (*CardOnFile, error) {
	if participant == nil || participant.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "participant is required")
	}
	sourceID := strings.TrimSpace(input.SourceID)
	if sourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source_id is required").
			WithDetails(map[string]string{"source_id": "required"})
	}
	idempotencyKey := strings.TrimSpace(input.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = "card:" + participant.ID.String() + ":" + sourceID
	}

	customerID := ""
	if participant.SquareCustomerID != nil {
		customerID = strings.TrimSpace(*participant.SquareCustomerID)
	}
	if customerID == "" {
		id, err := s.customers.EnsureCustomer(ctx, squarecustomers.Input{
			ReferenceID: "dp:participant:" + participant.ID.String(),
			DisplayName: participant.DisplayName,
			Email:       participant.Email,
			Note:        "group " + participant.GroupID.String(),
		})
		if err != nil {
			return nil, err
		}
		customerID = id
	}

	params := square.CardCreateParams{
		CustomerID:     customerID,
		SourceID:       sourceID,
		ReferenceID:    participant.ID.String(),
		IdempotencyKey: idempotencyKey,
	}
	if cardholder := strings.TrimSpace(input.CardholderName); cardholder != "" {
		params.CardholderName = cardholder
	}
	if token := strings.TrimSpace(input.VerificationToken); token != "" {
		params.VerificationToken = token
	}

	card, err := s.square.CreateCard(ctx, params)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayError, "square card response is nil")
	}
	cardID := card.GetID()
	if cardID == nil || strings.TrimSpace(*cardID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayError, "square card missing id")
	}

	if err := s.participants.UpdateParticipantCard(ctx, participant.ID, customerID, strings.TrimSpace(*cardID)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist card on file")
	}
	return buildCardOnFile(card, participant.ID), nil
}

func buildCardOnFile(card *sq.Card, participantID uuid.UUID) *CardOnFile {
	return &CardOnFile{
		ParticipantID: participantID,
		CardID:        strings.TrimSpace(*card.GetID()),
		Brand:         cardBrandString(card),
		Last4:         card.GetLast4(),
		ExpMonth:      intPointer(card.GetExpMonth()),
		ExpYear:       intPointer(card.GetExpYear()),
	}
}

func cardBrandString(card *sq.Card) *string {
	if card == nil {
		return nil
	}
	if brand := card.GetCardBrand(); brand != nil && strings.TrimSpace(string(*brand)) != "" {
		value := string(*brand)
		return &value
	}
	return nil
}

func intPointer(value *int64) *int {
	if value == nil {
		return nil
	}
	v := int(*value)
	return &v
}
