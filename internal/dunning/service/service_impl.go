package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/faktura/internal/account/domain"
	"github.com/smallbiznis/faktura/internal/clock"
	"github.com/smallbiznis/faktura/internal/config"
	contractdomain "github.com/smallbiznis/faktura/internal/contract/domain"
	dunningdomain "github.com/smallbiznis/faktura/internal/dunning/domain"
	"github.com/smallbiznis/faktura/internal/filestore"
	invoicedomain "github.com/smallbiznis/faktura/internal/invoice/domain"
	"github.com/smallbiznis/faktura/internal/money"
	"github.com/smallbiznis/faktura/internal/providers/email"
	"github.com/smallbiznis/faktura/internal/providers/pdf"
	"github.com/smallbiznis/faktura/internal/providers/qr"
	"github.com/smallbiznis/faktura/internal/scheduler/guard"
	"github.com/smallbiznis/faktura/pkg/db/option"
	"github.com/smallbiznis/faktura/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config

	PDF   pdf.Provider
	Email email.Provider
	Files *filestore.Store

	InvoiceSvc  invoicedomain.Service
	ContractSvc contractdomain.Service
	AccountSvc  accountdomain.Service
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	cfg   config.Config

	pdf   pdf.Provider
	email email.Provider
	files *filestore.Store

	invoiceSvc  invoicedomain.Service
	contractSvc contractdomain.Service
	accountSvc  accountdomain.Service

	invoiceRepo  repository.Repository[invoicedomain.Invoice]
	typeRepo     repository.Repository[invoicedomain.InvoiceType]
	dunningRepo  repository.Repository[invoicedomain.InvoiceDunning]
	reminderRepo repository.Repository[invoicedomain.InvoiceReminder]
}

func NewService(p ServiceParam) dunningdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("dunning.service"),

		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Config,

		pdf:   p.PDF,
		email: p.Email,
		files: p.Files,

		invoiceSvc:  p.InvoiceSvc,
		contractSvc: p.ContractSvc,
		accountSvc:  p.AccountSvc,

		invoiceRepo:  repository.ProvideStore[invoicedomain.Invoice](p.DB),
		typeRepo:     repository.ProvideStore[invoicedomain.InvoiceType](p.DB),
		dunningRepo:  repository.ProvideStore[invoicedomain.InvoiceDunning](p.DB),
		reminderRepo: repository.ProvideStore[invoicedomain.InvoiceReminder](p.DB),
	}
}

func (s *Service) RunSweep(ctx context.Context) error {
	invoices, err := s.invoiceRepo.Find(ctx,
		&invoicedomain.Invoice{Status: invoicedomain.StatusUnpaid},
		option.WithNull("archived_at", false),
	)
	if err != nil {
		return err
	}
	for _, invoice := range invoices {
		if err := s.sweepInvoice(ctx, *invoice); err != nil {
			s.log.Error("dunning evaluation failed",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// sweepInvoice fires at most one ladder rung for the invoice: the due rung
// with the greatest After that is strictly later than any rung already
// fired. Lower rungs are skipped for good once a higher one is due, so a
// long outage never replays stale low-severity reminders out of order.
func (s *Service) sweepInvoice(ctx context.Context, invoice invoicedomain.Invoice) error {
	now := s.clock.Now()

	invoiceType, err := s.invoiceSvc.TypeOf(ctx, invoice)
	if err != nil {
		return err
	}
	if guard.EnsureInvoiceDunnable(invoice, invoiceType, now) != nil {
		return nil
	}
	overdueSince := invoicedomain.DueAt(invoice, invoiceType)

	rungs, err := s.dunningRepo.Find(ctx, &invoicedomain.InvoiceDunning{TypeID: invoice.TypeID})
	if err != nil {
		return err
	}
	sort.SliceStable(rungs, func(i, j int) bool { return rungs[i].After < rungs[j].After })

	existing, err := s.reminderRepo.Find(ctx, &invoicedomain.InvoiceReminder{InvoiceID: invoice.ID})
	if err != nil {
		return err
	}
	fired := make(map[snowflake.ID]bool, len(existing))
	firedAfter := -1
	byID := make(map[snowflake.ID]invoicedomain.InvoiceDunning, len(rungs))
	for _, r := range rungs {
		byID[r.ID] = *r
	}
	for _, rem := range existing {
		fired[rem.DunningID] = true
		if r, ok := byID[rem.DunningID]; ok && r.After > firedAfter {
			firedAfter = r.After
		}
	}

	// Equal After values tie-break on sort order: the first rung wins.
	var due *invoicedomain.InvoiceDunning
	for _, rung := range rungs {
		if fired[rung.ID] || rung.After <= firedAfter {
			continue
		}
		sendAt := overdueSince.AddDate(0, 0, rung.After)
		if now.Before(sendAt) {
			continue
		}
		if due == nil || rung.After > due.After {
			due = rung
		}
	}
	if due == nil {
		return nil
	}
	return s.fireRung(ctx, invoice, invoiceType, *due, overdueSince)
}

func (s *Service) fireRung(ctx context.Context, invoice invoicedomain.Invoice, invoiceType invoicedomain.InvoiceType, rung invoicedomain.InvoiceDunning, overdueSince time.Time) error {
	positions, err := s.invoiceSvc.Positions(ctx, invoice.ID)
	if err != nil {
		return err
	}
	totals := invoicedomain.ComputeTotals(positions, invoice.ReverseCharge)

	fee := decimal.Zero
	if rung.FixedAmount != nil {
		fee = fee.Add(*rung.FixedAmount)
	}
	if rung.PercentageAmount != nil {
		fee = fee.Add(money.DiscountOf(totals.DiscountedGross, *rung.PercentageAmount))
	}

	reminder := invoicedomain.InvoiceReminder{
		ID:        s.genID.Generate(),
		OrgID:     invoice.OrgID,
		InvoiceID: invoice.ID,
		DunningID: rung.ID,
		DueAt:     overdueSince.AddDate(0, 0, rung.After),
		Amount:    fee,
	}
	if err := s.reminderRepo.Create(ctx, &reminder); err != nil {
		return err
	}

	// Delivery is best-effort; a stuck reminder is re-driven by RunCatchUp.
	s.deliver(ctx, &reminder, invoice, totals)

	return s.escalate(ctx, invoice, rung)
}

// deliver claims the reminder by archiving it, renders and files the
// document, then notifies the payer. A render or filing failure rolls the
// archive flag back so the catch-up sweep retries from scratch.
func (s *Service) deliver(ctx context.Context, reminder *invoicedomain.InvoiceReminder, invoice invoicedomain.Invoice, totals invoicedomain.Totals) {
	now := s.clock.Now()
	if reminder.ArchivedAt == nil {
		if err := s.reminderRepo.Update(ctx, reminder.ID.String(), map[string]any{"archived_at": now}); err != nil {
			s.log.Warn("reminder archive failed", zap.String("reminder_id", reminder.ID.String()), zap.Error(err))
			return
		}
		reminder.ArchivedAt = &now
	}

	if reminder.FileID == nil {
		if err := s.render(ctx, reminder, invoice, totals); err != nil {
			s.log.Warn("reminder render failed",
				zap.String("reminder_id", reminder.ID.String()),
				zap.Error(err),
			)
			if uerr := s.reminderRepo.Update(ctx, reminder.ID.String(), map[string]any{"archived_at": nil}); uerr == nil {
				reminder.ArchivedAt = nil
			}
			return
		}
	}

	s.notify(ctx, reminder, invoice)
}

func (s *Service) render(ctx context.Context, reminder *invoicedomain.InvoiceReminder, invoice invoicedomain.Invoice, totals invoicedomain.Totals) error {
	account, err := s.accountSvc.GetByID(ctx, invoice.AccountID)
	if err != nil {
		return err
	}
	outstanding := totals.DiscountedGross.Add(reminder.Amount)
	payload, _ := qr.BuildSepaQR(
		s.cfg.BillingOwnerName,
		s.cfg.BillingIBAN,
		fmt.Sprintf("Reminder %s invoice %s", reminder.ID, invoice.ID),
		outstanding,
	)
	content, err := s.pdf.GenerateReminder(ctx, pdf.ReminderData{
		OwnerName:      s.cfg.BillingOwnerName,
		InvoiceNumber:  invoice.ID.String(),
		ReminderNumber: reminder.ID.String(),
		IssueDate:      reminder.ArchivedAt.Format("2006-01-02"),
		DueDate:        reminder.DueAt.Format("2006-01-02"),
		BillToName:     account.Name,
		OutstandingSum: money.Round2(outstanding).StringFixed(2),
		FeeSum:         money.Round2(reminder.Amount).StringFixed(2),
		QRPayload:      payload,
	})
	if err != nil {
		return err
	}
	file, err := s.files.Save(ctx, s.db, fmt.Sprintf("reminder-%s.pdf", reminder.ID), content, "application/pdf")
	if err != nil {
		return err
	}
	reminder.FileID = &file.ID
	return s.reminderRepo.Update(ctx, reminder.ID.String(), map[string]any{"file_id": file.ID})
}

func (s *Service) notify(ctx context.Context, reminder *invoicedomain.InvoiceReminder, invoice invoicedomain.Invoice) {
	if reminder.Sent {
		return
	}
	address, err := s.accountSvc.BillingEmailAddress(ctx, invoice.AccountID)
	if err != nil {
		s.log.Warn("reminder address lookup failed", zap.String("reminder_id", reminder.ID.String()), zap.Error(err))
		return
	}
	subject := fmt.Sprintf("Payment reminder for invoice %s", invoice.ID)
	body := fmt.Sprintf("<p>Invoice %s is overdue. A reminder fee of %s applies.</p>",
		invoice.ID, money.Round2(reminder.Amount).StringFixed(2))
	if err := s.email.Send(ctx, []string{address}, subject, body); err != nil {
		s.log.Warn("reminder notification failed", zap.String("reminder_id", reminder.ID.String()), zap.Error(err))
		return
	}
	reminder.Sent = true
	if err := s.reminderRepo.Update(ctx, reminder.ID.String(), map[string]any{"sent": true}); err != nil {
		s.log.Warn("reminder sent flag update failed", zap.String("reminder_id", reminder.ID.String()), zap.Error(err))
	}
}

// escalate applies the rung's cancellation action to the invoice's contract.
// Instant wins over regular when a rung carries both flags.
func (s *Service) escalate(ctx context.Context, invoice invoicedomain.Invoice, rung invoicedomain.InvoiceDunning) error {
	if invoice.ContractID == nil || (!rung.CancelContractInstant && !rung.CancelContractRegular) {
		return nil
	}
	contract, err := s.contractSvc.GetByID(ctx, *invoice.ContractID)
	if err != nil {
		return err
	}
	if contract.State(s.clock.Now()) != contractdomain.StateActive {
		return nil
	}
	return s.contractSvc.Cancel(ctx, &contract, rung.CancelContractInstant)
}

func (s *Service) RunCatchUp(ctx context.Context) error {
	stuck, err := s.reminderRepo.Find(ctx, &invoicedomain.InvoiceReminder{}, option.WithNull("archived_at", true))
	if err != nil {
		return err
	}
	unsent, err := s.reminderRepo.Find(ctx,
		&invoicedomain.InvoiceReminder{},
		option.WithNull("archived_at", false),
		option.ApplyOperator(option.Condition{Field: "sent", Operator: option.EQ, Value: false}),
	)
	if err != nil {
		return err
	}

	for _, reminder := range append(stuck, unsent...) {
		if guard.EnsureReminderDeliverable(*reminder) != nil {
			continue
		}
		invoice, err := s.invoiceSvc.GetByID(ctx, reminder.InvoiceID)
		if err != nil {
			s.log.Warn("reminder catch-up lookup failed", zap.String("reminder_id", reminder.ID.String()), zap.Error(err))
			continue
		}
		positions, err := s.invoiceSvc.Positions(ctx, invoice.ID)
		if err != nil {
			s.log.Warn("reminder catch-up positions failed", zap.String("reminder_id", reminder.ID.String()), zap.Error(err))
			continue
		}
		totals := invoicedomain.ComputeTotals(positions, invoice.ReverseCharge)
		s.deliver(ctx, reminder, invoice, totals)
	}
	return nil
}
