package enums

import (
	"fmt"
	"strings"
)

// PaymentMethodType tags how a payer is asked to settle a payment request.
type PaymentMethodType string

const (
	PaymentMethodZelle PaymentMethodType = "zelle"
	PaymentMethodVenmo PaymentMethodType = "venmo"
	PaymentMethodCash  PaymentMethodType = "cash"
	PaymentMethodCard  PaymentMethodType = "card"
)

func (p PaymentMethodType) String() string { return string(p) }

func (p PaymentMethodType) IsValid() bool {
	switch p {
	case PaymentMethodZelle, PaymentMethodVenmo, PaymentMethodCash, PaymentMethodCard:
		return true
	}
	return false
}

// ParsePaymentMethodType is case-insensitive and ignores surrounding space.
func ParsePaymentMethodType(value string) (PaymentMethodType, error) {
	if p := PaymentMethodType(strings.ToLower(strings.TrimSpace(value))); p.IsValid() {
		return p, nil
	}
	return "", fmt.Errorf("invalid payment method type %q", value)
}
