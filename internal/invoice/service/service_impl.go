package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/faktura/internal/account/domain"
	"github.com/smallbiznis/faktura/internal/clock"
	"github.com/smallbiznis/faktura/internal/config"
	"github.com/smallbiznis/faktura/internal/filestore"
	invoicedomain "github.com/smallbiznis/faktura/internal/invoice/domain"
	"github.com/smallbiznis/faktura/internal/position"
	"github.com/smallbiznis/faktura/internal/providers/email"
	"github.com/smallbiznis/faktura/internal/providers/pdf"
	"github.com/smallbiznis/faktura/internal/providers/qr"
	"github.com/smallbiznis/faktura/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	PDF        pdf.Provider
	Email      email.Provider
	Files      *filestore.Store
	AccountSvc accountdomain.Service
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	cfg        config.Config
	pdf        pdf.Provider
	email      email.Provider
	files      *filestore.Store
	accountSvc accountdomain.Service

	invoiceRepo  repository.Repository[invoicedomain.Invoice]
	typeRepo     repository.Repository[invoicedomain.InvoiceType]
	positionRepo repository.Repository[position.Position]
	invPosRepo   repository.Repository[position.InvoicePosition]
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("invoice.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		cfg:        p.Config,
		pdf:        p.PDF,
		email:      p.Email,
		files:      p.Files,
		accountSvc: p.AccountSvc,

		invoiceRepo:  repository.ProvideStore[invoicedomain.Invoice](p.DB),
		typeRepo:     repository.ProvideStore[invoicedomain.InvoiceType](p.DB),
		positionRepo: repository.ProvideStore[position.Position](p.DB),
		invPosRepo:   repository.ProvideStore[position.InvoicePosition](p.DB),
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (invoicedomain.Invoice, error) {
	invoice, err := s.invoiceRepo.FindOne(ctx, &invoicedomain.Invoice{ID: id})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	return *invoice, nil
}

func (s *Service) Positions(ctx context.Context, invoiceID snowflake.ID) ([]position.Position, error) {
	return s.positions(ctx, s.db, invoiceID)
}

func (s *Service) positions(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) ([]position.Position, error) {
	var rows []position.Position
	err := tx.WithContext(ctx).Raw(
		`SELECT p.* FROM positions p
		 JOIN invoice_positions ip ON ip.position_id = p.id
		 WHERE ip.invoice_id = ?
		 ORDER BY p.id`,
		invoiceID,
	).Scan(&rows).Error
	return rows, err
}

func (s *Service) TypeOf(ctx context.Context, invoice invoicedomain.Invoice) (invoicedomain.InvoiceType, error) {
	invoiceType, err := s.typeRepo.FindOne(ctx, &invoicedomain.InvoiceType{ID: invoice.TypeID})
	if err != nil {
		return invoicedomain.InvoiceType{}, err
	}
	if invoiceType == nil {
		return invoicedomain.InvoiceType{}, invoicedomain.ErrTypeNotFound
	}
	return *invoiceType, nil
}

func (s *Service) Create(ctx context.Context, tx *gorm.DB, req invoicedomain.CreateRequest) (invoicedomain.Invoice, error) {
	if tx == nil {
		tx = s.db
	}
	status := req.Status
	if status == "" {
		status = invoicedomain.StatusUnpaid
	}

	invoice := invoicedomain.Invoice{
		ID:            s.genID.Generate(),
		OrgID:         req.OrgID,
		AccountID:     req.AccountID,
		ContractID:    req.ContractID,
		TypeID:        req.TypeID,
		Status:        status,
		ReverseCharge: req.ReverseCharge,
	}
	if err := s.invoiceRepo.WithTrx(tx).Create(ctx, &invoice); err != nil {
		return invoicedomain.Invoice{}, err
	}

	if err := s.attachPositions(ctx, tx, &invoice, req.Positions, req.PeriodStart, req.PeriodEnd); err != nil {
		return invoicedomain.Invoice{}, err
	}
	return invoice, nil
}

// attachPositions snapshot-copies the given positions onto the invoice. The
// invoice must not be archived; archived invoices are immutable facts.
func (s *Service) attachPositions(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, positions []position.Position, periodStart, periodEnd *time.Time) error {
	if invoice.ArchivedAt != nil {
		return invoicedomain.ErrInvoiceArchived
	}
	for _, p := range positions {
		snapshot := p.Clone()
		snapshot.ID = s.genID.Generate()
		snapshot.OrgID = invoice.OrgID
		if err := s.positionRepo.WithTrx(tx).Create(ctx, &snapshot); err != nil {
			return err
		}
		link := position.InvoicePosition{
			ID:         s.genID.Generate(),
			OrgID:      invoice.OrgID,
			InvoiceID:  invoice.ID,
			PositionID: snapshot.ID,
			StartedAt:  periodStart,
			EndedAt:    periodEnd,
		}
		if err := s.invPosRepo.WithTrx(tx).Create(ctx, &link); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Archive(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, at time.Time) error {
	if tx == nil {
		tx = s.db
	}
	if invoice.ArchivedAt != nil {
		return nil
	}
	archived := at.UTC()
	invoice.ArchivedAt = &archived
	return s.invoiceRepo.WithTrx(tx).Update(ctx, invoice.ID.String(), map[string]any{
		"archived_at": archived,
		"updated_at":  s.clock.Now(),
	})
}

func (s *Service) Finalize(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice) error {
	if tx == nil {
		tx = s.db
	}
	if invoice.ArchivedAt == nil {
		return invoicedomain.ErrInvoiceNotArchived
	}

	positions, err := s.positions(ctx, tx, invoice.ID)
	if err != nil {
		return err
	}
	invoiceType, err := s.TypeOf(ctx, *invoice)
	if err != nil {
		return err
	}
	totals := invoicedomain.ComputeTotals(positions, invoice.ReverseCharge)

	account, err := s.accountSvc.GetByID(ctx, invoice.AccountID)
	if err != nil {
		return err
	}

	// The payment code is best-effort: a missing or failed QR payload
	// degrades to a plain document.
	payload, _ := qr.BuildSepaQR(
		s.cfg.BillingOwnerName,
		s.cfg.BillingIBAN,
		fmt.Sprintf("Invoice %s", invoice.ID),
		totals.DiscountedGross,
	)

	data := buildInvoiceData(s.cfg.BillingOwnerName, *invoice, invoiceType, account, positions, totals, payload)
	content, err := s.pdf.GenerateInvoice(ctx, data)
	if err != nil {
		return fmt.Errorf("%w: %v", invoicedomain.ErrRenderFailed, err)
	}

	file, err := s.files.Save(ctx, tx, fmt.Sprintf("invoice-%s.pdf", invoice.ID), content, "application/pdf")
	if err != nil {
		return err
	}
	invoice.FileID = &file.ID
	return s.invoiceRepo.WithTrx(tx).Update(ctx, invoice.ID.String(), map[string]any{
		"file_id":    file.ID,
		"updated_at": s.clock.Now(),
	})
}

func (s *Service) Refund(ctx context.Context, req invoicedomain.RefundRequest) (invoicedomain.Invoice, error) {
	original := req.Invoice
	if original.ArchivedAt == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotArchived
	}
	status := req.Status
	if status == "" {
		status = invoicedomain.StatusRefunded
	}

	var refund invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		positions, err := s.positions(ctx, tx, original.ID)
		if err != nil {
			return err
		}
		negated := make([]position.Position, 0, len(positions))
		for _, p := range positions {
			n := p.Negated()
			if req.Name != nil {
				n.Name = *req.Name
			}
			negated = append(negated, n)
		}

		refund, err = s.Create(ctx, tx, invoicedomain.CreateRequest{
			OrgID:         original.OrgID,
			AccountID:     original.AccountID,
			TypeID:        original.TypeID,
			ContractID:    original.ContractID,
			Positions:     negated,
			ReverseCharge: original.ReverseCharge,
			Status:        invoicedomain.StatusRefund,
		})
		if err != nil {
			return err
		}
		refund.OriginalID = &original.ID
		if err := s.invoiceRepo.WithTrx(tx).Update(ctx, refund.ID.String(), map[string]any{
			"original_id": original.ID,
		}); err != nil {
			return err
		}

		if err := s.Archive(ctx, tx, &refund, s.clock.Now()); err != nil {
			return err
		}

		if req.File != nil {
			refund.FileID = req.File
			if err := s.invoiceRepo.WithTrx(tx).Update(ctx, refund.ID.String(), map[string]any{
				"file_id": *req.File,
			}); err != nil {
				return err
			}
		} else if err := s.Finalize(ctx, tx, &refund); err != nil {
			return err
		}

		return s.invoiceRepo.WithTrx(tx).Update(ctx, original.ID.String(), map[string]any{
			"status":     status,
			"updated_at": s.clock.Now(),
		})
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	if !req.Silent {
		s.SendNotification(ctx, &refund)
	}
	return refund, nil
}

func (s *Service) Refunded(ctx context.Context, invoice invoicedomain.Invoice) (*invoicedomain.Invoice, error) {
	return s.invoiceRepo.FindOne(ctx, &invoicedomain.Invoice{
		OriginalID: &invoice.ID,
		Status:     invoicedomain.StatusRefund,
	})
}

// SendNotification delivers the invoice to the payer's billing address. The
// outcome lands on the Sent flag; delivery failure is never an error.
func (s *Service) SendNotification(ctx context.Context, invoice *invoicedomain.Invoice) bool {
	address, err := s.accountSvc.BillingEmailAddress(ctx, invoice.AccountID)
	if err != nil {
		s.log.Warn("billing address lookup failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		return false
	}

	subject := fmt.Sprintf("Invoice %s", invoice.ID)
	if invoice.Status == invoicedomain.StatusRefund {
		subject = fmt.Sprintf("Credit note %s", invoice.ID)
	}
	body := fmt.Sprintf("<p>A new billing document %s is available.</p>", invoice.ID)

	sent := true
	if err := s.email.Send(ctx, []string{address}, subject, body); err != nil {
		s.log.Warn("invoice notification failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		sent = false
	}

	invoice.Sent = sent
	if err := s.invoiceRepo.Update(ctx, invoice.ID.String(), map[string]any{"sent": sent}); err != nil {
		s.log.Warn("invoice sent flag update failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
	}
	return sent
}

func (s *Service) MarkPaid(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice) error {
	if tx == nil {
		tx = s.db
	}
	invoice.Status = invoicedomain.StatusPaid
	return s.invoiceRepo.WithTrx(tx).Update(ctx, invoice.ID.String(), map[string]any{
		"status":     invoicedomain.StatusPaid,
		"updated_at": s.clock.Now(),
	})
}
