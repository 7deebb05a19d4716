// Package money implements the net/gross/VAT arithmetic used across the
// billing engine. All intermediate values keep full decimal precision;
// rounding to two places happens only when a value is presented externally
// (rendered documents, exports, notifications).
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// NetOf strips VAT at the given percentage rate from a gross amount.
func NetOf(gross, vatRate decimal.Decimal) decimal.Decimal {
	return gross.Div(hundred.Add(vatRate)).Mul(hundred)
}

// GrossOf adds VAT at the given percentage rate to a net amount.
func GrossOf(net, vatRate decimal.Decimal) decimal.Decimal {
	return net.Add(VATOf(net, vatRate))
}

// VATOf returns the VAT share of a net amount at the given percentage rate.
func VATOf(net, vatRate decimal.Decimal) decimal.Decimal {
	return net.Mul(vatRate).Div(hundred)
}

// DiscountOf returns the absolute discount for a base amount and a
// percentage. A nil-equivalent (zero) percentage yields zero.
func DiscountOf(base, percentage decimal.Decimal) decimal.Decimal {
	return base.Mul(percentage).Div(hundred)
}

// Round2 rounds half away from zero to two decimal places. Presentation
// boundary only; never feed the result back into aggregation.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
