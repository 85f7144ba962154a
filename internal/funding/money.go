// Package funding splits a group's rental cost into payment requests and
// tracks their settlement.
package funding

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a positive decimal string with at most two fraction
// digits into cents.
func ParseAmount(raw string) (int64, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	if trimmed == "" {
		return 0, invalidAmount("amount is required")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, invalidAmount("amount must be a decimal number")
	}
	if !d.IsPositive() {
		return 0, invalidAmount("amount must be greater than zero")
	}
	if !d.Round(2).Equal(d) {
		return 0, invalidAmount("amount may have at most two decimal places")
	}
	cents := d.Mul(hundred)
	if !cents.IsInteger() || cents.GreaterThan(decimal.NewFromInt(1<<53)) {
		return 0, invalidAmount("amount is out of range")
	}
	return cents.IntPart(), nil
}

// ParseRate parses a fee rate such as "0.10".
func ParseRate(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid service fee rate %q: %w", raw, err)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("service fee rate %s must be in [0, 1)", d)
	}
	return d, nil
}

// ServiceFee is total*rate rounded half-up to the cent.
func ServiceFee(totalCents int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(totalCents).Mul(rate).Round(0).IntPart()
}

// Split divides total into n shares that differ by at most one cent and sum
// to total exactly. The extra cents go to the earliest positions.
func Split(totalCents int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	base := totalCents / int64(n)
	remainder := totalCents % int64(n)
	shares := make([]int64, n)
	for i := range shares {
		shares[i] = base
		if int64(i) < remainder {
			shares[i]++
		}
	}
	return shares
}

// RoundedShare is total/n rounded half-up, used for display only.
func RoundedShare(totalCents int64, n int) int64 {
	if n <= 0 {
		return 0
	}
	return decimal.NewFromInt(totalCents).Div(decimal.NewFromInt(int64(n))).Round(0).IntPart()
}

// FormatCents renders cents as a fixed two-digit decimal string.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

func invalidAmount(msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).
		WithDetails(map[string]string{"total_cost": msg})
}
