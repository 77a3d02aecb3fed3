// Package amount converts between the integer minor units used on the wire
// and the decimal/float values used for display and round-up arithmetic.
package amount

import (
	"math"

	"github.com/shopspring/decimal"
)

// minorExp is the number of decimal places between major and minor units.
const minorExp = 2

// ToDecimal moves the decimal point of minor two places left.
// No binary floating point is involved, so the result is exact.
func ToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorExp)
}

// ToFloat converts d to a float64. The conversion is lossy and must only be
// used for display or round-up arithmetic, never for outbound requests.
func ToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// RoundUp returns the smallest integer value >= x.
func RoundUp(x float64) float64 {
	return math.Ceil(x)
}

// Delta is the spare change between x and its next whole unit.
// For finite x it lies in [0, 1) and is exactly zero when x is integral.
// NaN and infinite inputs yield NaN.
func Delta(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return math.NaN()
	}
	return RoundUp(x) - x
}

// ToMinorUnits converts a major-unit amount to minor units, rounding to the
// nearest integer so float noise (0.7099999…) cannot lose a penny.
// For any m, ToMinorUnits(ToFloat(ToDecimal(m))) == m.
func ToMinorUnits(x float64) int64 {
	return decimal.NewFromFloat(x).Shift(minorExp).Round(0).IntPart()
}

// MinorToFloat is ToFloat(ToDecimal(minor)).
func MinorToFloat(minor int64) float64 {
	return ToFloat(ToDecimal(minor))
}

// DeltaMinor is the exact round-up of minor expressed in minor units.
// Negative inputs are treated by magnitude.
func DeltaMinor(minor int64) int64 {
	if minor < 0 {
		minor = -minor
	}
	return (100 - minor%100) % 100
}
