// Package domain contains the append-only prepaid balance ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PrepaidHistory is one signed ledger entry against an account's running
// prepaid balance; positive amounts credit, negative amounts debit. Entries
// are append-only — a reversal is a new negative entry, never an edit or
// delete.
type PrepaidHistory struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	OrgID     snowflake.ID    `gorm:"not null;index"`
	AccountID snowflake.ID    `gorm:"not null;index"`
	Amount    decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	Reason    string          `gorm:"type:text;not null"`
	InvoiceID *snowflake.ID   `gorm:"index"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PrepaidHistory) TableName() string { return "prepaid_histories" }

const (
	ReasonTopUp           = "top_up"
	ReasonContractBilling = "contract_billing"
	ReasonRefund          = "refund"
)
