package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/faktura/internal/position"
	"github.com/stretchr/testify/assert"
)

func archived(at time.Time, status Status) Invoice {
	return Invoice{Status: status, ArchivedAt: &at}
}

func TestDueAt(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	invoiceType := InvoiceType{Period: 14}

	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), DueAt(archived(at, StatusUnpaid), invoiceType))
	assert.True(t, DueAt(Invoice{}, invoiceType).IsZero(), "drafts have no deadline")
}

func TestOverdue(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	invoiceType := InvoiceType{Period: 14}

	cases := []struct {
		name    string
		invoice Invoice
		now     time.Time
		want    bool
	}{
		{"before due date", archived(at, StatusUnpaid), time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), false},
		{"on due date", archived(at, StatusUnpaid), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"past due date", archived(at, StatusUnpaid), time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), true},
		{"paid invoice", archived(at, StatusPaid), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), false},
		{"draft", Invoice{Status: StatusUnpaid}, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overdue(tc.invoice, invoiceType, tc.now))
		})
	}
}

func TestEarlyPaymentRebate(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	percent := decimal.RequireFromString("3")
	days := 7
	invoiceType := InvoiceType{Period: 14, DiscountPercentage: &percent, DiscountDays: &days}
	totals := ComputeTotals([]position.Position{{
		Amount:        decimal.RequireFromString("100"),
		VatPercentage: decimal.RequireFromString("19"),
		Quantity:      decimal.NewFromInt(1),
		TaxCategory:   position.TaxCategoryStandard,
	}}, false)

	// 3% of 119 inside the window.
	inWindow := EarlyPaymentRebate(archived(at, StatusUnpaid), invoiceType, totals, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	assert.True(t, decimal.RequireFromString("3.57").Equal(inWindow), "rebate = %s", inWindow)

	late := EarlyPaymentRebate(archived(at, StatusUnpaid), invoiceType, totals, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
	assert.True(t, late.IsZero())

	noRebate := EarlyPaymentRebate(archived(at, StatusUnpaid), InvoiceType{Period: 14}, totals, at)
	assert.True(t, noRebate.IsZero())
}
