package model

import "github.com/shopspring/decimal"

// Prices are int64 paise internally. The broker JSON speaks rupees with two
// decimal places; conversion happens only at that boundary.

var hundred = decimal.NewFromInt(100)

// PaiseToRupees converts an internal paise amount to a rupee decimal.
func PaiseToRupees(paise int64) decimal.Decimal {
	return decimal.NewFromInt(paise).Div(hundred)
}

// RupeesToPaise converts a rupee decimal from the broker into paise,
// truncating sub-paise precision (the exchange tick size is coarser).
func RupeesToPaise(r decimal.Decimal) int64 {
	return r.Mul(hundred).IntPart()
}

// RupeeFloat renders paise as a float64 rupee value for broker request
// bodies that want a JSON number.
func RupeeFloat(paise int64) float64 {
	f, _ := PaiseToRupees(paise).Float64()
	return f
}
