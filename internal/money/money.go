// Package money converts between decimal amounts on the wire and the int64
// minor units (paise) used by the ledger.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

const minorExponent = 2

var (
	ErrNotPositive = errors.New("amount must be positive")
	ErrTooPrecise  = errors.New("amount has more than two decimal places")
	ErrOutOfRange  = errors.New("amount out of range")

	maxMinor = decimal.NewFromInt(1<<53 - 1)
)

// ToMinor converts a positive major-unit amount into minor units.
func ToMinor(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrNotPositive
	}
	shifted := amount.Shift(minorExponent)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	if shifted.GreaterThan(maxMinor) {
		return 0, ErrOutOfRange
	}
	return shifted.IntPart(), nil
}

// FromMinor renders minor units as a major-unit decimal.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorExponent)
}

// Format renders minor units with exactly two decimals, e.g. "4000.50".
func Format(minor int64) string {
	return FromMinor(minor).StringFixed(minorExponent)
}
