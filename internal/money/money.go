// Package money converts between display amounts and the integer minor
// units the Klarna API expects.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimal lists currencies whose minor unit is the whole unit.
var zeroDecimal = map[string]struct{}{
	"JPY": {},
	"KRW": {},
	"VND": {},
	"ISK": {},
	"HUF": {},
}

var hundred = decimal.NewFromInt(100)

// IsZeroDecimal reports whether currency has no fractional minor unit.
// The comparison is case-insensitive.
func IsZeroDecimal(currency string) bool {
	_, ok := zeroDecimal[strings.ToUpper(strings.TrimSpace(currency))]
	return ok
}

// ToMinorUnits converts a display amount to minor units, rounding half away
// from zero.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if !IsZeroDecimal(currency) {
		amount = amount.Mul(hundred)
	}
	return amount.Round(0).IntPart()
}

// FromMinorUnits converts minor units back to a display amount. The round
// trip through ToMinorUnits keeps at most two decimal places.
func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	if IsZeroDecimal(currency) {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}
