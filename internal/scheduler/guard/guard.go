// Package guard holds the pure admission checks the billing jobs apply
// before acting on a contract or reminder.
package guard

import (
	"errors"
	"time"

	contractdomain "github.com/smallbiznis/faktura/internal/contract/domain"
	invoicedomain "github.com/smallbiznis/faktura/internal/invoice/domain"
)

var (
	ErrContractNotBillable = errors.New("contract_not_billable")
	ErrDunningDisabled     = errors.New("dunning_disabled")
	ErrReminderClaimed     = errors.New("reminder_already_claimed")
)

// EnsureContractBillable rejects contracts the billing job must not touch:
// drafts and contracts whose coverage fully ended.
func EnsureContractBillable(c contractdomain.Contract, now time.Time) error {
	if c.StartedAt == nil {
		return ErrContractNotBillable
	}
	if c.State(now) == contractdomain.StateCancelled && !c.Prepaid() && c.Type != contractdomain.TypePostPay {
		return ErrContractNotBillable
	}
	return nil
}

// EnsureInvoiceDunnable rejects invoices outside the dunning scope: types
// without dunning, immediate-settlement types and documents not yet overdue.
func EnsureInvoiceDunnable(invoice invoicedomain.Invoice, invoiceType invoicedomain.InvoiceType, now time.Time) error {
	if !invoiceType.Dunning || invoiceType.PeriodType != invoicedomain.PeriodTypeNormal {
		return ErrDunningDisabled
	}
	if !invoicedomain.Overdue(invoice, invoiceType, now) {
		return ErrDunningDisabled
	}
	return nil
}

// EnsureReminderDeliverable rejects reminders already fully delivered.
func EnsureReminderDeliverable(reminder invoicedomain.InvoiceReminder) error {
	if reminder.ArchivedAt != nil && reminder.Sent {
		return ErrReminderClaimed
	}
	return nil
}
