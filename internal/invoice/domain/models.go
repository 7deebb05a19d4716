// Package domain contains persistence models for invoicing and dunning.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Status represents invoice lifecycle states.
type Status string

const (
	StatusTemplate Status = "template"
	StatusUnpaid   Status = "unpaid"
	StatusPaid     Status = "paid"
	StatusRefunded Status = "refunded"
	StatusRevoked  Status = "revoked"
	// StatusRefund marks a credit note that reverses another invoice; its
	// OriginalID points at the invoice it undoes.
	StatusRefund Status = "refund"
)

// PeriodType governs whether a type's invoices participate in dunning runs.
type PeriodType string

const (
	PeriodTypeNormal    PeriodType = "normal"
	PeriodTypeImmediate PeriodType = "immediate"
)

// Invoice is a billing document. Once ArchivedAt is set the invoice is
// finalized: its position set must never change again. Corrections happen
// through a new refund invoice referencing OriginalID.
type Invoice struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	OrgID         snowflake.ID      `gorm:"not null;index"`
	AccountID     snowflake.ID      `gorm:"not null;index"`
	ContractID    *snowflake.ID     `gorm:"index"`
	TypeID        snowflake.ID      `gorm:"not null;index"`
	Status        Status            `gorm:"type:text;not null;default:'unpaid'"`
	ReverseCharge bool              `gorm:"not null;default:false"`
	OriginalID    *snowflake.ID     `gorm:"index"`
	FileID        *string           `gorm:"type:text"`
	Sent          bool              `gorm:"not null;default:false"`
	ArchivedAt    *time.Time        `gorm:""`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceType is a billing-document category: payment period, dunning
// behavior and an optional early-payment rebate.
type InvoiceType struct {
	ID                 snowflake.ID     `gorm:"primaryKey"`
	OrgID              snowflake.ID     `gorm:"not null;index"`
	Name               string           `gorm:"type:text;not null"`
	Period             int              `gorm:"not null"` // payment due days
	PeriodType         PeriodType       `gorm:"type:text;not null;default:'normal'"`
	Dunning            bool             `gorm:"not null;default:false"`
	DiscountPercentage *decimal.Decimal `gorm:"type:numeric(6,3)"`
	DiscountDays       *int             `gorm:""`
	CreatedAt          time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceType) TableName() string { return "invoice_types" }

// InvoiceDunning is one rung of a type's dunning ladder, ordered by After.
type InvoiceDunning struct {
	ID                     snowflake.ID     `gorm:"primaryKey"`
	TypeID                 snowflake.ID     `gorm:"not null;index"`
	After                  int              `gorm:"not null"` // days past due date
	FixedAmount            *decimal.Decimal `gorm:"type:numeric(18,6)"`
	PercentageAmount       *decimal.Decimal `gorm:"type:numeric(6,3)"`
	CancelContractRegular  bool             `gorm:"not null;default:false"`
	CancelContractInstant  bool             `gorm:"not null;default:false"`
	CreatedAt              time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceDunning) TableName() string { return "invoice_dunnings" }

// InvoiceReminder records that a dunning rung fired for an invoice. At most
// one reminder exists per (invoice, rung) pair. ArchivedAt doubles as the
// delivery claim: a reminder without it is retried by the catch-up sweep.
type InvoiceReminder struct {
	ID         snowflake.ID    `gorm:"primaryKey"`
	OrgID      snowflake.ID    `gorm:"not null;index"`
	InvoiceID  snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_reminder_invoice_dunning,priority:1"`
	DunningID  snowflake.ID    `gorm:"not null;uniqueIndex:ux_reminder_invoice_dunning,priority:2"`
	DueAt      time.Time       `gorm:"not null"`
	Amount     decimal.Decimal `gorm:"type:numeric(18,6);not null"` // dunning fee
	FileID     *string         `gorm:"type:text"`
	Sent       bool            `gorm:"not null;default:false"`
	ArchivedAt *time.Time      `gorm:""`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceReminder) TableName() string { return "invoice_reminders" }
