// Package amount encodes each payment provider's numeric formatting rule as
// an explicit function. The formatted amount participates in signature
// canonical strings, so a one-character difference fails verification; never
// format amounts ad hoc at call sites.
package amount

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CommaTwoPlaces renders d with two decimals and a comma separator,
// f.x. 1000 -> "1000,00". Borgun's hosted payment page format.
func CommaTwoPlaces(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// DotTwoPlaces renders d with two decimals and a dot separator,
// f.x. 1000 -> "1000.00". PayPal cart format.
func DotTwoPlaces(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// WholeCeil rounds d up to a whole number, f.x. 99.1 -> "100".
// Netgiro accepts whole ISK only.
func WholeCeil(d decimal.Decimal) string {
	return d.Ceil().StringFixed(0)
}

// WholeTrunc truncates d to a whole number, f.x. 99.9 -> "99".
// Valitor line prices and SiminnPay order amounts truncate.
func WholeTrunc(d decimal.Decimal) string {
	return d.Truncate(0).StringFixed(0)
}

// MinorUnits converts d to its smallest currency unit as an integer,
// f.x. 10.50 -> 1050. ValitorPay amounts travel in minor units.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Truncate(0).IntPart()
}
