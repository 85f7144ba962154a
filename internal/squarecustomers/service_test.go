package squarecustomers

import (
	"context"
	"errors"
	"testing"

	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/square"
)

type stubClient struct {
	params   square.CustomerCreateParams
	customer *sq.Customer
	err      error
}

func (s *stubClient) EnsureCustomer(_ context.Context, params square.CustomerCreateParams) (*sq.Customer, error) {
	s.params = params
	return s.customer, s.err
}

func TestEnsureCustomerBuildsParams(t *testing.T) {
	id := "cust-1"
	client := &stubClient{customer: &sq.Customer{ID: &id}}
	svc := NewService(client)

	got, err := svc.EnsureCustomer(context.Background(), Input{DisplayName: "Alex  de la Cruz", Email: "alex.c@example.com"})
	if err != nil {
		t.Fatalf("ensure customer: %v", err)
	}
	if got != id {
		t.Fatalf("expected %s got %s", id, got)
	}
	if client.params.GivenName != "Alex" || client.params.FamilyName != "de la Cruz" {
		t.Fatalf("unexpected name split %+v", client.params)
	}
	if client.params.ReferenceID != "dp:participant:alex-c-example-com" {
		t.Fatalf("unexpected reference id %q", client.params.ReferenceID)
	}
}

func TestEnsureCustomerErrors(t *testing.T) {
	svc := NewService(&stubClient{err: errors.New("boom")})
	if _, err := svc.EnsureCustomer(context.Background(), Input{Email: "a@example.com"}); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}

	timeout := pkgerrors.New(pkgerrors.CodeGatewayTimeout, "slow")
	svc = NewService(&stubClient{err: timeout})
	if _, err := svc.EnsureCustomer(context.Background(), Input{Email: "a@example.com"}); !pkgerrors.IsCode(err, pkgerrors.CodeGatewayTimeout) {
		t.Fatalf("expected gateway timeout passthrough, got %v", err)
	}

	svc = NewService(&stubClient{customer: &sq.Customer{}})
	if _, err := svc.EnsureCustomer(context.Background(), Input{Email: "a@example.com"}); !pkgerrors.IsCode(err, pkgerrors.CodeGatewayError) {
		t.Fatalf("expected gateway error for missing id, got %v", err)
	}
}

func TestDefaultReferenceID(t *testing.T) {
	if got := DefaultReferenceID(" ref-1 ", "x@example.com"); got != "ref-1" {
		t.Fatalf("expected explicit reference, got %q", got)
	}
	if got := DefaultReferenceID("", ""); got != "dp:participant:dp" {
		t.Fatalf("unexpected fallback %q", got)
	}
}
