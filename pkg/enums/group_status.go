package enums

import "fmt"

// GroupStatus maps to the group_status enum in Postgres.
type GroupStatus string

const (
	GroupStatusForming          GroupStatus = "forming"
	GroupStatusFull             GroupStatus = "full"
	GroupStatusBooked           GroupStatus = "booked"
	GroupStatusServiceConfirmed GroupStatus = "service_confirmed"
	GroupStatusDisbursed        GroupStatus = "disbursed"
)

var validGroupStatuses = []GroupStatus{
	GroupStatusForming,
	GroupStatusFull,
	GroupStatusBooked,
	GroupStatusServiceConfirmed,
	GroupStatusDisbursed,
}

// String implements fmt.Stringer.
func (s GroupStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known group status.
func (s GroupStatus) IsValid() bool {
	for _, candidate := range validGroupStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseGroupStatus converts raw input into a GroupStatus.
func ParseGroupStatus(value string) (GroupStatus, error) {
	for _, candidate := range validGroupStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid group status %q", value)
}
