package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/faktura/internal/position"
	"gorm.io/gorm"
)

// CreateRequest materializes a new invoice. Positions are snapshot-copied:
// the created invoice always owns fresh position rows, never references to
// the caller's.
type CreateRequest struct {
	OrgID         snowflake.ID
	AccountID     snowflake.ID
	TypeID        snowflake.ID
	ContractID    *snowflake.ID
	Positions     []position.Position
	ReverseCharge bool
	Status        Status
	// Window is stamped onto each InvoicePosition for proration bookkeeping.
	PeriodStart *time.Time
	PeriodEnd   *time.Time
}

// RefundRequest reverses a finalized invoice via a credit note.
type RefundRequest struct {
	Invoice Invoice
	// Status the original invoice transitions to. Defaults to refunded.
	Status Status
	// File is an externally supplied artifact; when nil a new document is
	// rendered.
	File *string
	Name *string
	// Silent suppresses the payer notification.
	Silent bool
}

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (Invoice, error)
	Positions(ctx context.Context, invoiceID snowflake.ID) ([]position.Position, error)
	TypeOf(ctx context.Context, invoice Invoice) (InvoiceType, error)

	// Create persists a new invoice with a snapshot copy of the given
	// positions inside tx (tx may be nil for a standalone write).
	Create(ctx context.Context, tx *gorm.DB, req CreateRequest) (Invoice, error)

	// Archive finalizes the invoice at the given coverage date. After this
	// the position set is frozen.
	Archive(ctx context.Context, tx *gorm.DB, invoice *Invoice, at time.Time) error

	// Finalize renders the invoice document (with a payment QR code when
	// possible), stores it and links the file. QR failures degrade to a
	// plain document; a failed render is returned as an error so the
	// caller's transaction rolls back.
	Finalize(ctx context.Context, tx *gorm.DB, invoice *Invoice) error

	// Refund is the only sanctioned way to undo a finalized invoice.
	Refund(ctx context.Context, req RefundRequest) (Invoice, error)

	// Refunded returns the credit note reversing the invoice, if any.
	Refunded(ctx context.Context, invoice Invoice) (*Invoice, error)

	// SendNotification attempts payer delivery and records the outcome on
	// the invoice's Sent flag. It never returns an error.
	SendNotification(ctx context.Context, invoice *Invoice) bool

	MarkPaid(ctx context.Context, tx *gorm.DB, invoice *Invoice) error
}

var (
	ErrInvoiceNotFound = errors.New("invoice_not_found")
	ErrTypeNotFound    = errors.New("invoice_type_not_found")
	// ErrInvoiceArchived guards the immutability invariant: attaching
	// positions to an archived invoice is a programmer error.
	ErrInvoiceArchived    = errors.New("invoice_archived")
	ErrInvoiceNotArchived = errors.New("invoice_not_archived")
	ErrRenderFailed       = errors.New("invoice_render_failed")
)
