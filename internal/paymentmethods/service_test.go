package paymentmethods

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/dumpsterpool-backend/internal/squarecustomers"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	squarepkg "github.com/angelmondragon/dumpsterpool-backend/pkg/square"
)

func TestServiceStoreCardCreatesCustomerOnFirstCard(t *testing.T) {
	customers := &stubCustomers{id: "cust-1"}
	cardClient := &stubCardClient{card: stubCard("card-1")}
	store := &stubParticipantStore{}
	service, err := NewService(ServiceParams{Customers: customers, SquareClient: cardClient, Participants: store})
	if err != nil {
		t.Fatalf("setup error: %v", err)
	}

	participant := stubParticipant(nil)
	card, err := service.StoreCard(context.Background(), participant, StoreCardInput{SourceID: "cnon:ok"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if customers.calls != 1 {
		t.Fatalf("expected customer ensured once, got %d", customers.calls)
	}
	if cardClient.params.CustomerID != "cust-1" || cardClient.params.ReferenceID != participant.ID.String() {
		t.Fatalf("unexpected card params %+v", cardClient.params)
	}
	if cardClient.params.IdempotencyKey == "" {
		t.Fatal("expected derived idempotency key")
	}
	if store.cardID != "card-1" || store.customerID != "cust-1" {
		t.Fatalf("expected card persisted, got %+v", store)
	}
	if card.Last4 == nil || *card.Last4 != "4242" || card.ExpYear == nil || *card.ExpYear != 2030 {
		t.Fatalf("unexpected card view %+v", card)
	}
}

func TestServiceStoreCardReusesCustomer(t *testing.T) {
	customers := &stubCustomers{id: "cust-new"}
	cardClient := &stubCardClient{card: stubCard("card-2")}
	service, _ := NewService(ServiceParams{Customers: customers, SquareClient: cardClient, Participants: &stubParticipantStore{}})

	if _, err := service.StoreCard(context.Background(), stubParticipant(ptrString("cust-existing")), StoreCardInput{SourceID: "cnon:ok"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if customers.calls != 0 {
		t.Fatal("expected existing customer reused")
	}
	if cardClient.params.CustomerID != "cust-existing" {
		t.Fatalf("expected existing customer id, got %q", cardClient.params.CustomerID)
	}
}

func TestServiceStoreCardValidation(t *testing.T) {
	service, _ := NewService(ServiceParams{Customers: &stubCustomers{}, SquareClient: &stubCardClient{}, Participants: &stubParticipantStore{}})

	_, err := service.StoreCard(context.Background(), stubParticipant(nil), StoreCardInput{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = service.StoreCard(context.Background(), nil, StoreCardInput{SourceID: "x"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceStoreCardGatewayFailure(t *testing.T) {
	timeout := pkgerrors.New(pkgerrors.CodeGatewayTimeout, "slow")
	store := &stubParticipantStore{}
	service, _ := NewService(ServiceParams{
		Customers:    &stubCustomers{id: "cust-1"},
		SquareClient: &stubCardClient{err: timeout},
		Participants: store,
	})

	_, err := service.StoreCard(context.Background(), stubParticipant(nil), StoreCardInput{SourceID: "cnon:ok"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeGatewayTimeout) {
		t.Fatalf("expected gateway timeout, got %v", err)
	}
	if store.cardID != "" {
		t.Fatal("card must not be persisted after gateway failure")
	}
}

func TestServiceStoreCardPersistFailure(t *testing.T) {
	service, _ := NewService(ServiceParams{
		Customers:    &stubCustomers{id: "cust-1"},
		SquareClient: &stubCardClient{card: stubCard("card-3")},
		Participants: &stubParticipantStore{err: errors.New("db down")},
	})
	_, err := service.StoreCard(context.Background(), stubParticipant(nil), StoreCardInput{SourceID: "cnon:ok"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{SquareClient: &stubCardClient{}, Participants: &stubParticipantStore{}}); err == nil {
		t.Fatal("expected error without customers")
	}
	if _, err := NewService(ServiceParams{Customers: &stubCustomers{}, Participants: &stubParticipantStore{}}); err == nil {
		t.Fatal("expected error without square client")
	}
	if _, err := NewService(ServiceParams{Customers: &stubCustomers{}, SquareClient: &stubCardClient{}}); err == nil {
		t.Fatal("expected error without participant store")
	}
}

type stubCustomers struct {
	id    string
	calls int
	err   error
}

func (s *stubCustomers) EnsureCustomer(context.Context, squarecustomers.Input) (string, error) {
	s.calls++
	return s.id, s.err
}

type stubParticipantStore struct {
	customerID string
	cardID     string
	err        error
}

func (s *stubParticipantStore) UpdateParticipantCard(_ context.Context, _ uuid.UUID, customerID, cardID string) error {
	if s.err != nil {
		return s.err
	}
	s.customerID = customerID
	s.cardID = cardID
	return nil
}

type stubCardClient struct {
	card   *sq.Card
	err    error
	params squarepkg.CardCreateParams
}

func (s *stubCardClient) CreateCard(ctx context.Context, params squarepkg.CardCreateParams) (*sq.Card, error) {
	s.params = params
	return s.card, s.err
}

func stubParticipant(customerID *string) *models.Participant {
	return &models.Participant{
		ID:               uuid.New(),
		GroupID:          uuid.New(),
		UserID:           uuid.New(),
		Email:            "alex@example.com",
		DisplayName:      "Alex Doe",
		Position:         2,
		SquareCustomerID: customerID,
	}
}

func stubCard(id string) *sq.Card {
	brand := sq.CardBrandVisa
	return &sq.Card{
		ID:        ptrString(id),
		Last4:     ptrString("4242"),
		CardBrand: &brand,
		ExpMonth:  int64Ptr(12),
		ExpYear:   int64Ptr(2030),
	}
}

func ptrString(value string) *string {
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}
