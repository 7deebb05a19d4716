// Package pdf renders billing documents. Rendering is delegated behind the
// Provider interface so tests and headless deployments can swap it out.
package pdf

import "context"

// InvoiceLine is one printed line item.
type InvoiceLine struct {
	Name        string
	Description string
	Quantity    string
	UnitPrice   string
	VatRate     string
	Amount      string
}

// VatLine is one per-rate subtotal in the tax summary.
type VatLine struct {
	Rate string
	Net  string
	VAT  string
}

// InvoiceData carries everything printed on an invoice document.
type InvoiceData struct {
	OwnerName     string
	InvoiceNumber string
	IssueDate     string
	DueDate       string
	BillToName    string
	BillToEmail   string
	ReverseCharge bool

	Lines    []InvoiceLine
	VatLines []VatLine

	NetSum   string
	GrossSum string

	// QRPayload is an optional EPC payment payload; empty renders the
	// document without a payment code.
	QRPayload string
}

// ReminderData carries everything printed on a dunning reminder.
type ReminderData struct {
	OwnerName      string
	InvoiceNumber  string
	ReminderNumber string
	IssueDate      string
	DueDate        string
	BillToName     string
	OutstandingSum string
	FeeSum         string
	QRPayload      string
}

type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) ([]byte, error)
	GenerateReminder(ctx context.Context, data ReminderData) ([]byte, error)
}

// NoOpProvider renders nothing. Useful for tests and headless runs.
type NoOpProvider struct{}

func (p *NoOpProvider) GenerateInvoice(ctx context.Context, data InvoiceData) ([]byte, error) {
	return []byte{}, nil
}

func (p *NoOpProvider) GenerateReminder(ctx context.Context, data ReminderData) ([]byte, error) {
	return []byte{}, nil
}
