// Package domain defines the recurring billing agreement and its lifecycle.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Type is the billing strategy of a contract.
type Type string

const (
	// TypePrePay bills each period up front, at the period start.
	TypePrePay Type = "contract_pre_pay"
	// TypePostPay bills each period in arrears, after it elapsed, with
	// metered positions recomputed from recorded usage.
	TypePostPay Type = "contract_post_pay"
	// TypePrepaidAuto renews automatically from the payer's prepaid
	// balance for as long as funds last.
	TypePrepaidAuto Type = "prepaid_auto"
	// TypePrepaidManual renews from the prepaid balance only while the
	// payer keeps topping it up.
	TypePrepaidManual Type = "prepaid_manual"
)

// State is the derived lifecycle position of a contract. It is never stored;
// it is computed from the timestamp fields against a reference time.
type State string

const (
	StateDraft               State = "draft"
	StateActive              State = "active"
	StateCancellationPending State = "cancellation_pending"
	StateCancelled           State = "cancelled"
)

type Contract struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"not null;index"`
	AccountID snowflake.ID `gorm:"not null;index"`
	Name      string       `gorm:"type:text;not null"`

	Type          Type         `gorm:"type:text;not null"`
	InvoiceTypeID snowflake.ID `gorm:"not null;index"`

	// InvoicePeriod and CancellationPeriod are day counts.
	InvoicePeriod      int `gorm:"not null"`
	CancellationPeriod int `gorm:"not null;default:0"`

	StartedAt *time.Time `gorm:""`
	// LastInvoiceAt is the billed-through cursor. It never moves backward
	// and only advances by whole periods, or to StartedAt on first bill.
	LastInvoiceAt         *time.Time `gorm:"index"`
	CancelledAt           *time.Time `gorm:""`
	CancellationRevokedAt *time.Time `gorm:""`
	// CancelledTo is the date billing coverage ends.
	CancelledTo *time.Time `gorm:""`

	// ReservedPrepaidAmount is earmarked from the payer's prepaid balance
	// towards the next renewal of this contract.
	ReservedPrepaidAmount decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Contract) TableName() string { return "contracts" }

// Prepaid reports whether the contract settles from a prepaid balance.
func (c Contract) Prepaid() bool {
	return c.Type == TypePrepaidAuto || c.Type == TypePrepaidManual
}

// CancellationActive reports whether an unrevoked cancellation is recorded.
func (c Contract) CancellationActive() bool {
	if c.CancelledAt == nil || c.CancelledTo == nil {
		return false
	}
	return c.CancellationRevokedAt == nil || c.CancellationRevokedAt.Before(*c.CancelledAt)
}

// State derives the lifecycle state at the given time.
func (c Contract) State(now time.Time) State {
	if c.StartedAt == nil {
		return StateDraft
	}
	if c.CancellationActive() {
		if !now.Before(*c.CancelledTo) {
			return StateCancelled
		}
		return StateCancellationPending
	}
	return StateActive
}
