// Package money represents currency amounts as integer minor units (paise).
//
// Every calculation inside the checkout core works on Amount. Decimal values
// only appear at the edges: NUMERIC columns, JSON numbers and seed files.
package money

import (
	"github.com/shopspring/decimal"
)

// Amount is a currency amount in minor units.
type Amount int64

// Zero is the zero amount.
const Zero Amount = 0

var hundred = decimal.NewFromInt(100)

// FromDecimal converts a major-unit decimal (e.g. 499.99) to minor units,
// rounding half away from zero.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount(d.Shift(2).Round(0).IntPart())
}

// FromMajor converts a whole major-unit value to minor units.
func FromMajor(v int64) Amount {
	return Amount(v * 100)
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String formats the amount in major units with two decimals.
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

// Mul multiplies the amount by an integer quantity.
func (a Amount) Mul(qty int) Amount {
	return a * Amount(qty)
}

// Percent returns pct percent of a, rounded to the nearest minor unit
// (half away from zero).
func Percent(a Amount, pct decimal.Decimal) Amount {
	v := decimal.NewFromInt(int64(a)).Mul(pct).Div(hundred)
	return Amount(v.Round(0).IntPart())
}
