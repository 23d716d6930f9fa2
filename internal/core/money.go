// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents so sums are exact and independent of
// the order in which records are added.
package core

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

// Validate rejects zero and negative amounts.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// IsZero reports a zero amount.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

// Reais returns the value as a float64 for storage and display.
// Use cents for calculations.
func (m Money) Reais() float64 {
	f, _ := decimal.New(m.Cents, -2).Float64()
	return f
}

// Split divides m into n parts that sum exactly to m.
// The remainder cents go to the earliest parts.
func (m Money) Split(n int) []Money {
	if n < 1 {
		return nil
	}
	base := m.Cents / int64(n)
	rem := m.Cents % int64(n)
	parts := make([]Money, n)
	for i := range parts {
		parts[i] = Money{Cents: base}
		if int64(i) < rem {
			parts[i].Cents++
		}
	}
	return parts
}

var maxCents = decimal.NewFromInt(math.MaxInt64)

// thousandsOnly matches dot-grouped integers such as "1.500" or "1.234.567".
var thousandsOnly = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

// ParseAmount converts a user-entered amount to Money.
//
// It accepts an optional "R$" prefix, Brazilian notation ("1.234,56"),
// a bare decimal comma ("12,34") or a decimal dot ("12.34"). Without a
// comma, dots that only separate groups of three digits are thousands
// separators. Fractions beyond the cent are rounded half away from zero.
// Zero is accepted; negative and non-numeric input returns ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12,34")      -> 1234
//	ParseAmount("R$ 1.234,5") -> 123450
//	ParseAmount("R$ 1.500")   -> 150000
//	ParseAmount("12.3456")    -> 1235
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		if strings.Count(s, ",") > 1 {
			return Money{}, ErrInvalidAmount
		}
		s = strings.Replace(s, ",", ".", 1)
	} else if thousandsOnly.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	if strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// MoneyFromFloat converts a stored amount in reais to Money.
// ok is false for NaN and infinities, which convert to zero.
func MoneyFromFloat(f float64) (m Money, ok bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, false
	}
	cents := decimal.NewFromFloat(f).Shift(2).Round(0)
	if cents.Abs().GreaterThan(maxCents) {
		return Money{}, false
	}
	return Money{Cents: cents.IntPart()}, true
}
