package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/faktura/internal/position"
)

// Totals is the computed snapshot of an invoice's money figures. Derived
// values are never stored; they are recomputed from the immutable position
// set whenever needed.
type Totals struct {
	Net             decimal.Decimal
	Gross           decimal.Decimal
	DiscountedGross decimal.Decimal
	VATBreakdown    map[string]position.VATSubtotal
}

// ComputeTotals derives the invoice sums from its position snapshot.
func ComputeTotals(positions []position.Position, reverseCharge bool) Totals {
	return Totals{
		Net:             position.SumNet(positions),
		Gross:           position.SumGross(positions, reverseCharge),
		DiscountedGross: position.SumDiscountedGross(positions, reverseCharge),
		VATBreakdown:    position.VATBreakdown(positions, reverseCharge),
	}
}

// DueAt returns the payment deadline derived from the archive timestamp and
// the type's payment period. The zero time is returned for drafts.
func DueAt(invoice Invoice, invoiceType InvoiceType) time.Time {
	if invoice.ArchivedAt == nil {
		return time.Time{}
	}
	return invoice.ArchivedAt.AddDate(0, 0, invoiceType.Period)
}

// Overdue reports whether the invoice is unpaid past its due date.
func Overdue(invoice Invoice, invoiceType InvoiceType, now time.Time) bool {
	if invoice.Status != StatusUnpaid || invoice.ArchivedAt == nil {
		return false
	}
	return now.After(DueAt(invoice, invoiceType))
}

// EarlyPaymentRebate returns the rebate amount granted when the invoice is
// paid within the type's discount window, zero when the type has none or the
// window has passed.
func EarlyPaymentRebate(invoice Invoice, invoiceType InvoiceType, totals Totals, paidAt time.Time) decimal.Decimal {
	if invoiceType.DiscountPercentage == nil || invoiceType.DiscountDays == nil || invoice.ArchivedAt == nil {
		return decimal.Zero
	}
	deadline := invoice.ArchivedAt.AddDate(0, 0, *invoiceType.DiscountDays)
	if paidAt.After(deadline) {
		return decimal.Zero
	}
	return totals.DiscountedGross.Mul(*invoiceType.DiscountPercentage).Div(decimal.NewFromInt(100))
}
