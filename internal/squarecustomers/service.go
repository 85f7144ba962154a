package squarecustomers

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/square"
	sq "github.com/square/square-go-sdk"
)

// Service ensures Square customer records exist and exposes the customer identifier.
type Service interface {
	EnsureCustomer(ctx context.Context, input Input) (string, error)
}

// Input contains the fields required to create or locate a Square customer
// for a group participant.
type Input struct {
	ReferenceID string
	DisplayName string
	Email       string
	Note        string
}

type customerClient interface {
	EnsureCustomer(ctx context.Context, params square.CustomerCreateParams) (*sq.Customer, error)
}

type service struct {
	client customerClient
}

// NewService builds a service that uses the shared Square client.
func NewService(client customerClient) Service {
	return &service{client: client}
}

func (s *service) EnsureCustomer(ctx context.Context, input Input) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New(errors.CodeInternal, "square client required")
	}

	given, family := splitName(input.DisplayName)
	params := square.CustomerCreateParams{
		Email:       strings.TrimSpace(input.Email),
		GivenName:   given,
		FamilyName:  family,
		ReferenceID: DefaultReferenceID(input.ReferenceID, input.Email),
		Note:        input.Note,
	}

	customer, err := s.client.EnsureCustomer(ctx, params)
	if err != nil {
		if errors.IsCode(err, errors.CodeGatewayTimeout) || errors.IsCode(err, errors.CodeGatewayError) {
			return "", err
		}
		return "", errors.Wrap(errors.CodeDependency, err, "ensure square customer")
	}
	if customer == nil {
		return "", errors.New(errors.CodeGatewayError, "square customer missing")
	}
	if id := customer.GetID(); id != nil && strings.TrimSpace(*id) != "" {
		return *id, nil
	}
	return "", errors.New(errors.CodeGatewayError, "square customer id missing")
}

// DefaultReferenceID returns a deterministic reference value for the provided fields.
func DefaultReferenceID(reference, email string) string {
	if trimmed := strings.TrimSpace(reference); trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("dp:participant:%s", normalizeReferencePart(strings.ToLower(email)))
}

func normalizeReferencePart(raw string) string {
	trimmed := strings.TrimSpace(raw)
	var builder strings.Builder
	for _, r := range trimmed {
		if r == ' ' || r == '_' || r == '-' || r == '.' || r == '@' {
			builder.WriteRune('-')
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
			continue
		}
	}
	result := builder.String()
	if result == "" {
		return "dp"
	}
	return result
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
