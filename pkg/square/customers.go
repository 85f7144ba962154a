package square

import (
	"context"
	"strings"

	sq "github.com/square/square-go-sdk"
)

// CustomerCreateParams describes the Square customer behind a group participant.
type CustomerCreateParams struct {
	Email          string
	GivenName      string
	FamilyName     string
	ReferenceID    string
	Note           string
	IdempotencyKey string
}

func (p CustomerCreateParams) request() *sq.CreateCustomerRequest {
	return &sq.CreateCustomerRequest{
		IdempotencyKey: optional(idempotencyKey("customer.create", p.IdempotencyKey)),
		EmailAddress:   optional(p.Email),
		GivenName:      optional(p.GivenName),
		FamilyName:     optional(p.FamilyName),
		ReferenceID:    optional(p.ReferenceID),
		Note:           optional(p.Note),
	}
}

func (c *Client) CreateCustomer(ctx context.Context, params CustomerCreateParams) (*sq.Customer, error) {
	var customer *sq.Customer
	err := c.call(ctx, "create_customer", map[string]any{"reference_id": params.ReferenceID},
		func(ctx context.Context) (map[string]any, error) {
			resp, err := c.sdk.Customers.Create(ctx, params.request())
			if err != nil {
				return nil, err
			}
			customer = resp.GetCustomer()
			return map[string]any{"customer_id": deref(customer.GetID())}, nil
		})
	return customer, err
}

// FindCustomer returns the first customer whose reference id or email matches
// exactly, or nil when neither filter is set or nothing matches.
func (c *Client) FindCustomer(ctx context.Context, referenceID, email string) (*sq.Customer, error) {
	filter := &sq.CustomerFilter{}
	if ref := optional(referenceID); ref != nil {
		filter.ReferenceID = &sq.CustomerTextFilter{Exact: ref}
	}
	if addr := optional(email); addr != nil {
		filter.EmailAddress = &sq.CustomerTextFilter{Exact: addr}
	}
	if filter.ReferenceID == nil && filter.EmailAddress == nil {
		return nil, nil
	}

	limit := int64(1)
	var found *sq.Customer
	err := c.call(ctx, "search_customer", map[string]any{"reference_id": referenceID, "email": email},
		func(ctx context.Context) (map[string]any, error) {
			resp, err := c.sdk.Customers.Search(ctx, &sq.SearchCustomersRequest{
				Query: &sq.CustomerQuery{Filter: filter},
				Limit: &limit,
			})
			if err != nil {
				return nil, err
			}
			if matches := resp.GetCustomers(); len(matches) > 0 {
				found = matches[0]
				return map[string]any{"customer_id": deref(found.GetID())}, nil
			}
			return map[string]any{"found": false}, nil
		})
	return found, err
}

// EnsureCustomer reuses a matching customer before creating one.
func (c *Client) EnsureCustomer(ctx context.Context, params CustomerCreateParams) (*sq.Customer, error) {
	if c == nil {
		return nil, errAccessTokenRequired
	}
	existing, err := c.FindCustomer(ctx, params.ReferenceID, params.Email)
	if err != nil || existing != nil {
		return existing, err
	}
	return c.CreateCustomer(ctx, params)
}

// optional returns nil for blank input so unset fields are omitted from requests.
func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
