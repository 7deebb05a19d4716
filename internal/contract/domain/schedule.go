package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StartOfDay truncates the timestamp to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BillingDue reports whether the next period is ready to bill. A cursor at
// day X with an N-day period becomes due at the start of day X+N+1, so a
// period is only billed once it is fully covered (pre-pay) or fully elapsed
// (post-pay).
func BillingDue(c Contract, now time.Time) bool {
	if c.LastInvoiceAt == nil {
		return c.StartedAt != nil
	}
	due := StartOfDay(c.LastInvoiceAt.AddDate(0, 0, c.InvoicePeriod+1))
	return !now.Before(due)
}

// NextCursor is the billed-through date the cursor advances to on the next
// successful bill: StartedAt for a never-billed contract, otherwise exactly
// one period past the current cursor.
func NextCursor(c Contract) time.Time {
	if c.LastInvoiceAt == nil {
		return *c.StartedAt
	}
	return c.LastInvoiceAt.AddDate(0, 0, c.InvoicePeriod)
}

// RegularCancellationDate computes the coverage end for a regular (period
// boundary) cancellation requested at now. When less than the notice period
// remains before the next renewal, the cancellation is pushed out one
// additional full period past that boundary.
func RegularCancellationDate(c Contract, now time.Time) time.Time {
	boundary := NextCursor(c)
	notice := time.Duration(c.CancellationPeriod) * 24 * time.Hour
	if boundary.Sub(now) < notice {
		return StartOfDay(boundary.AddDate(0, 0, 1)).AddDate(0, 0, c.InvoicePeriod)
	}
	return boundary
}

// ProrationFactor is the fraction of a period covered by [from, to), used to
// scale position amounts on a partial final invoice.
func ProrationFactor(c Contract, from, to time.Time) decimal.Decimal {
	if c.InvoicePeriod <= 0 || !to.After(from) {
		return decimal.Zero
	}
	days := decimal.NewFromFloat(to.Sub(from).Hours() / 24)
	return days.Div(decimal.NewFromInt(int64(c.InvoicePeriod)))
}
