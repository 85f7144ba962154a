package enums

import "fmt"

// PaymentRequestStatus maps to the payment_request_status enum in Postgres.
type PaymentRequestStatus string

const (
	PaymentRequestPending PaymentRequestStatus = "pending"
	PaymentRequestPaid    PaymentRequestStatus = "paid"
	// PaymentRequestSuperseded marks requests of a replaced batch.
	PaymentRequestSuperseded PaymentRequestStatus = "superseded"
)

var validPaymentRequestStatuses = []PaymentRequestStatus{
	PaymentRequestPending,
	PaymentRequestPaid,
	PaymentRequestSuperseded,
}

// IsValid reports whether the value is a known request status.
func (s PaymentRequestStatus) IsValid() bool {
	for _, candidate := range validPaymentRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentRequestStatus converts raw input into a PaymentRequestStatus.
func ParsePaymentRequestStatus(value string) (PaymentRequestStatus, error) {
	for _, candidate := range validPaymentRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment request status %q", value)
}
