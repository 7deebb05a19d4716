// Package domain contains the billing account (payer profile) the core
// consults for read-only facts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Account is the payer of contracts and invoices.
type Account struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	OrgID        snowflake.ID `gorm:"not null;index"`
	Name         string       `gorm:"type:text;not null"`
	BillingEmail string       `gorm:"type:text;not null"`
	CountryID    snowflake.ID `gorm:"not null;index"`
	VatID        *string      `gorm:"type:text"`
	Supplier     bool         `gorm:"not null;default:false"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }
