package enums

import "fmt"

// InstrumentStatus maps to the instrument_status enum in Postgres.
type InstrumentStatus string

const (
	InstrumentPending InstrumentStatus = "pending"
	InstrumentActive  InstrumentStatus = "active"
	InstrumentFrozen  InstrumentStatus = "frozen"
)

var validInstrumentStatuses = []InstrumentStatus{
	InstrumentPending,
	InstrumentActive,
	InstrumentFrozen,
}

// IsValid reports whether the value is a known instrument status.
func (s InstrumentStatus) IsValid() bool {
	for _, candidate := range validInstrumentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseInstrumentStatus converts raw input into an InstrumentStatus.
func ParseInstrumentStatus(value string) (InstrumentStatus, error) {
	for _, candidate := range validInstrumentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid instrument status %q", value)
}

// TransactionStatus is the outcome of one spend against the instrument.
type TransactionStatus string

const (
	TransactionApproved TransactionStatus = "approved"
	TransactionDeclined TransactionStatus = "declined"
)

// IsValid reports whether the value is a known transaction status.
func (s TransactionStatus) IsValid() bool {
	return s == TransactionApproved || s == TransactionDeclined
}
