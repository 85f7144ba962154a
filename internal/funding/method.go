package funding

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
)

// PaymentMethod is how payers are asked to settle. Each variant carries only
// the fields that make sense for it.
type PaymentMethod interface {
	Type() enums.PaymentMethodType
	validate(v *validator.Validate) map[string]string
}

// Zelle needs at least one of email or phone.
type Zelle struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Venmo is identified by username.
type Venmo struct {
	Username string `json:"username"`
}

// Cash is settled in person.
type Cash struct{}

// Card is charged through the card gateway by the payer.
type Card struct{}

func (Zelle) Type() enums.PaymentMethodType { return enums.PaymentMethodZelle }
func (Venmo) Type() enums.PaymentMethodType { return enums.PaymentMethodVenmo }
func (Cash) Type() enums.PaymentMethodType  { return enums.PaymentMethodCash }
func (Card) Type() enums.PaymentMethodType  { return enums.PaymentMethodCard }

func (z Zelle) validate(v *validator.Validate) map[string]string {
	problems := map[string]string{}
	if z.Email == "" && z.Phone == "" {
		problems["method.email"] = "email or phone required"
	}
	if z.Email != "" && v.Var(z.Email, "email") != nil {
		problems["method.email"] = "invalid email"
	}
	if z.Phone != "" && v.Var(z.Phone, "min=7,max=20") != nil {
		problems["method.phone"] = "invalid phone"
	}
	return problems
}

func (m Venmo) validate(v *validator.Validate) map[string]string {
	if v.Var(m.Username, "required,max=64") != nil {
		return map[string]string{"method.username": "required"}
	}
	return nil
}

func (Cash) validate(*validator.Validate) map[string]string { return nil }
func (Card) validate(*validator.Validate) map[string]string { return nil }

type methodEnvelope struct {
	Type     enums.PaymentMethodType `json:"type"`
	Email    string                  `json:"email,omitempty"`
	Phone    string                  `json:"phone,omitempty"`
	Username string                  `json:"username,omitempty"`
}

var methodValidator = validator.New()

// DecodeMethod parses {"type": "...", ...} and validates the variant.
func DecodeMethod(raw json.RawMessage) (PaymentMethod, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, invalidMethod(map[string]string{"method": "required"})
	}
	var env methodEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, invalidMethod(map[string]string{"method": "malformed payment method"})
	}
	tag, err := enums.ParsePaymentMethodType(string(env.Type))
	if err != nil {
		return nil, invalidMethod(map[string]string{"method.type": "must be one of zelle, venmo, cash, card"})
	}
	var method PaymentMethod
	switch tag {
	case enums.PaymentMethodZelle:
		method = Zelle{Email: strings.ToLower(strings.TrimSpace(env.Email)), Phone: strings.TrimSpace(env.Phone)}
	case enums.PaymentMethodVenmo:
		method = Venmo{Username: strings.TrimPrefix(strings.TrimSpace(env.Username), "@")}
	case enums.PaymentMethodCash:
		method = Cash{}
	case enums.PaymentMethodCard:
		method = Card{}
	}
	if problems := method.validate(methodValidator); len(problems) > 0 {
		return nil, invalidMethod(problems)
	}
	return method, nil
}

// EncodeMethod splits a method into its tag and variant details for storage.
func EncodeMethod(m PaymentMethod) (enums.PaymentMethodType, json.RawMessage, error) {
	if m == nil {
		return "", nil, invalidMethod(map[string]string{"method": "required"})
	}
	details, err := json.Marshal(m)
	if err != nil {
		return "", nil, err
	}
	return m.Type(), details, nil
}

// MarshalMethod renders the tagged wire form.
func MarshalMethod(m PaymentMethod) (json.RawMessage, error) {
	env := methodEnvelope{Type: m.Type()}
	switch v := m.(type) {
	case Zelle:
		env.Email, env.Phone = v.Email, v.Phone
	case Venmo:
		env.Username = v.Username
	}
	return json.Marshal(env)
}

// methodFromStorage rebuilds a method from its stored tag and details.
func methodFromStorage(tag enums.PaymentMethodType, details json.RawMessage) (PaymentMethod, error) {
	switch tag {
	case enums.PaymentMethodZelle:
		var z Zelle
		err := unmarshalDetails(details, &z)
		return z, err
	case enums.PaymentMethodVenmo:
		var v Venmo
		err := unmarshalDetails(details, &v)
		return v, err
	case enums.PaymentMethodCash:
		return Cash{}, nil
	case enums.PaymentMethodCard:
		return Card{}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "unknown stored payment method "+string(tag))
}

func unmarshalDetails(details json.RawMessage, out any) error {
	if len(details) == 0 {
		return nil
	}
	return json.Unmarshal(details, out)
}

func invalidMethod(problems map[string]string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").WithDetails(problems)
}
