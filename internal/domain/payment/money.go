package payment

import (
	"strings"

	"github.com/shopspring/decimal"
)

// minorExponents lists currencies whose minor unit is not 1/100.
var minorExponents = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
}

// MinorExponent returns the number of decimal places of the currency's
// smallest unit (2 for INR: 1 rupee = 100 paise).
func MinorExponent(currency string) int32 {
	if exp, ok := minorExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// ToMinor converts a major-unit amount (e.g. rupees) to the smallest currency
// unit. Amounts with finer precision than the minor unit, and non-positive
// amounts, are rejected with ErrInvalidAmount.
func ToMinor(major decimal.Decimal, currency string) (int64, error) {
	minor := major.Shift(MinorExponent(currency))
	if !minor.IsInteger() || !minor.IsPositive() {
		return 0, ErrInvalidAmount
	}
	if !minor.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

// ToMajor converts an amount in the smallest currency unit to major units.
func ToMajor(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -MinorExponent(currency))
}
