// Package money provides a fixed-point amount type in minor currency units.
//
// All settlement arithmetic happens on Amount so that sums and comparisons
// are exact. Rounding happens once, when a decimal value enters the system.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultPlaces is the number of minor-unit digits used by most currencies (cents).
const DefaultPlaces int32 = 2

// MaxAmount is the largest magnitude accepted in minor units. Keeping values
// within ±MaxAmount means the difference of any two cannot overflow int64.
const MaxAmount Amount = 1<<62 - 1

// ErrInvalidAmount is returned when a string cannot be parsed as a monetary amount.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a monetary value in minor currency units (e.g. cents).
type Amount int64

var (
	maxDecimal = decimal.NewFromInt(int64(MaxAmount))
	minDecimal = decimal.NewFromInt(-int64(MaxAmount))
)

// FromDecimal converts a decimal currency value to minor units.
// The value is rounded to places digits, half away from zero. Values whose
// magnitude exceeds MaxAmount minor units return ErrInvalidAmount.
func FromDecimal(d decimal.Decimal, places int32) (Amount, error) {
	v := d.Shift(places).Round(0)
	if v.GreaterThan(maxDecimal) || v.LessThan(minDecimal) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}
	return Amount(v.IntPart()), nil
}

// Add returns a+b, or ErrInvalidAmount when the sum leaves ±MaxAmount.
func Add(a, b Amount) (Amount, error) {
	if (b > 0 && a > MaxAmount-b) || (b < 0 && a < -MaxAmount-b) {
		return 0, fmt.Errorf("%w: %s + %s is out of range", ErrInvalidAmount, a, b)
	}
	return a + b, nil
}

// Parse converts a decimal string such as "12.34" or "12,34" to minor units.
// Negative values are accepted.
func Parse(s string, places int32) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d, places)
}

// Decimal converts the amount back to a decimal currency value.
func (a Amount) Decimal(places int32) decimal.Decimal {
	return decimal.New(int64(a), -places)
}

// Format renders the amount with exactly places fractional digits.
func (a Amount) Format(places int32) string {
	return a.Decimal(places).StringFixed(places)
}

// String renders the amount with DefaultPlaces fractional digits.
func (a Amount) String() string {
	return a.Format(DefaultPlaces)
}

// Abs returns the absolute value of a.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}
