package funding

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw   string
		cents int64
		ok    bool
	}{
		{"430", 43000, true},
		{"430.00", 43000, true},
		{"$19.5", 1950, true},
		{" 0.01 ", 1, true},
		{"", 0, false},
		{"0", 0, false},
		{"-5", 0, false},
		{"1.005", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.raw)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseAmount(%q): %v", tc.raw, err)
			}
			if got != tc.cents {
				t.Fatalf("ParseAmount(%q) = %d, want %d", tc.raw, got, tc.cents)
			}
			continue
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("ParseAmount(%q) expected validation error, got %v", tc.raw, err)
		}
	}
}

func TestParseRate(t *testing.T) {
	if _, err := ParseRate("0.10"); err != nil {
		t.Fatalf("ParseRate: %v", err)
	}
	for _, raw := range []string{"", "-0.1", "1", "x"} {
		if _, err := ParseRate(raw); err == nil {
			t.Fatalf("expected error for rate %q", raw)
		}
	}
}

func TestBreakdownWorkedExample(t *testing.T) {
	rate := decimal.RequireFromString("0.10")
	if fee := ServiceFee(43000, rate); fee != 4300 {
		t.Fatalf("fee = %d", fee)
	}
	shares := Split(43000, 3)
	want := []int64{14334, 14333, 14333}
	for i := range want {
		if shares[i] != want[i] {
			t.Fatalf("shares = %v, want %v", shares, want)
		}
	}
	if got := FormatCents(38700); got != "387.00" {
		t.Fatalf("FormatCents = %q", got)
	}
	if got := RoundedShare(43000, 3); got != 14333 {
		t.Fatalf("RoundedShare = %d", got)
	}
}

func TestServiceFeeRoundsHalfUp(t *testing.T) {
	rate := decimal.RequireFromString("0.10")
	// 10.05 * 0.10 = 1.005
	if fee := ServiceFee(1005, rate); fee != 101 {
		t.Fatalf("fee = %d, want 101", fee)
	}
	if fee := ServiceFee(1004, rate); fee != 100 {
		t.Fatalf("fee = %d, want 100", fee)
	}
}

func TestSplitConservesTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		total := rng.Int63n(10_000_000) + 1
		n := rng.Intn(9) + 2
		shares := Split(total, n)
		if len(shares) != n {
			t.Fatalf("len = %d, want %d", len(shares), n)
		}
		var sum, lo, hi int64
		lo, hi = shares[0], shares[0]
		for _, s := range shares {
			sum += s
			lo = min(lo, s)
			hi = max(hi, s)
		}
		if sum != total {
			t.Fatalf("Split(%d, %d) sums to %d", total, n, sum)
		}
		if hi-lo > 1 {
			t.Fatalf("Split(%d, %d) spread %d", total, n, hi-lo)
		}
		for j := 1; j < n; j++ {
			if shares[j] > shares[j-1] {
				t.Fatalf("Split(%d, %d) not front loaded: %v", total, n, shares)
			}
		}
	}
}

func TestSplitEmpty(t *testing.T) {
	if Split(100, 0) != nil {
		t.Fatalf("expected nil shares")
	}
}
