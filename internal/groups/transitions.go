package groups

import (
	"github.com/angelmondragon/dumpsterpool-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
)

var allowedTransitions = map[enums.GroupStatus]enums.GroupStatus{
	enums.GroupStatusForming:          enums.GroupStatusFull,
	enums.GroupStatusFull:             enums.GroupStatusBooked,
	enums.GroupStatusBooked:           enums.GroupStatusServiceConfirmed,
	enums.GroupStatusServiceConfirmed: enums.GroupStatusDisbursed,
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to enums.GroupStatus) bool {
	next, ok := allowedTransitions[from]
	return ok && next == to
}

// InvalidTransition builds the typed error for an illegal edge.
func InvalidTransition(from, to enums.GroupStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "group status transition not allowed").
		WithDetails(map[string]any{"from": from, "to": to})
}

// CheckTransition returns nil for a legal edge and InvalidTransition otherwise.
func CheckTransition(from, to enums.GroupStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return InvalidTransition(from, to)
}
