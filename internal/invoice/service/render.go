package service

import (
	"fmt"
	"sort"

	accountdomain "github.com/smallbiznis/faktura/internal/account/domain"
	invoicedomain "github.com/smallbiznis/faktura/internal/invoice/domain"
	"github.com/smallbiznis/faktura/internal/money"
	"github.com/smallbiznis/faktura/internal/position"
	"github.com/smallbiznis/faktura/internal/providers/pdf"
)

const dateLayout = "2006-01-02"

// buildInvoiceData flattens the domain figures into printable strings. Money
// is rounded to two decimals here and nowhere earlier.
func buildInvoiceData(
	ownerName string,
	invoice invoicedomain.Invoice,
	invoiceType invoicedomain.InvoiceType,
	account accountdomain.Account,
	positions []position.Position,
	totals invoicedomain.Totals,
	qrPayload string,
) pdf.InvoiceData {
	lines := make([]pdf.InvoiceLine, 0, len(positions))
	for _, p := range positions {
		lines = append(lines, pdf.InvoiceLine{
			Name:        p.Name,
			Description: p.Description,
			Quantity:    p.Quantity.String(),
			UnitPrice:   money.Round2(p.Amount).StringFixed(2),
			VatRate:     fmt.Sprintf("%s%%", p.VatPercentage.String()),
			Amount:      money.Round2(p.DiscountedNet()).StringFixed(2),
		})
	}

	rates := make([]string, 0, len(totals.VATBreakdown))
	for rate := range totals.VATBreakdown {
		rates = append(rates, rate)
	}
	sort.Strings(rates)
	vatLines := make([]pdf.VatLine, 0, len(rates))
	for _, rate := range rates {
		sub := totals.VATBreakdown[rate]
		vatLines = append(vatLines, pdf.VatLine{
			Rate: fmt.Sprintf("%s%%", rate),
			Net:  money.Round2(sub.Net).StringFixed(2),
			VAT:  money.Round2(sub.VAT).StringFixed(2),
		})
	}

	issue, due := "", ""
	if invoice.ArchivedAt != nil {
		issue = invoice.ArchivedAt.Format(dateLayout)
		due = invoicedomain.DueAt(invoice, invoiceType).Format(dateLayout)
	}

	return pdf.InvoiceData{
		OwnerName:     ownerName,
		InvoiceNumber: invoice.ID.String(),
		IssueDate:     issue,
		DueDate:       due,
		BillToName:    account.Name,
		BillToEmail:   account.BillingEmail,
		ReverseCharge: invoice.ReverseCharge,
		Lines:         lines,
		VatLines:      vatLines,
		NetSum:        money.Round2(totals.Net).StringFixed(2),
		GrossSum:      money.Round2(totals.DiscountedGross).StringFixed(2),
		QRPayload:     qrPayload,
	}
}
