// Package position contains the immutable line-item model and the pure
// aggregation functions over it. A Position is a write-once fact: once
// created it is never edited, because it represents a historical charge.
// Contracts and invoices always link to their own copies, never to shared
// rows.
package position

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TaxCategory classifies a position for structured invoice exports.
type TaxCategory string

const (
	TaxCategoryStandard      TaxCategory = "S"
	TaxCategoryReverseCharge TaxCategory = "AE"
	TaxCategoryExempt        TaxCategory = "E"
)

// Position is a priced line item. Amount is the unit net price.
type Position struct {
	ID                 snowflake.ID     `gorm:"primaryKey"`
	OrgID              snowflake.ID     `gorm:"not null;index"`
	Name               string           `gorm:"type:text;not null"`
	Description        string           `gorm:"type:text"`
	Amount             decimal.Decimal  `gorm:"type:numeric(18,6);not null"`
	VatPercentage      decimal.Decimal  `gorm:"type:numeric(6,3);not null"`
	Quantity           decimal.Decimal  `gorm:"type:numeric(18,6);not null"`
	DiscountPercentage *decimal.Decimal `gorm:"type:numeric(6,3)"`
	DiscountName       *string          `gorm:"type:text"`
	TaxCategory        TaxCategory      `gorm:"type:text;not null;default:'S'"`
	TrackerInstanceID  *snowflake.ID    `gorm:"index"`
	ProductRef         *string          `gorm:"type:text"`
	CreatedAt          time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Position) TableName() string { return "positions" }

// ContractPosition attaches a Position to a contract. The validity window is
// used for proration in usage-tracked billing.
type ContractPosition struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OrgID      snowflake.ID `gorm:"not null;index"`
	ContractID snowflake.ID `gorm:"not null;index"`
	PositionID snowflake.ID `gorm:"not null;index"`
	StartedAt  *time.Time   `gorm:""`
	EndedAt    *time.Time   `gorm:""`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ContractPosition) TableName() string { return "contract_positions" }

// InvoicePosition attaches a snapshot Position to an invoice.
type InvoicePosition struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OrgID      snowflake.ID `gorm:"not null;index"`
	InvoiceID  snowflake.ID `gorm:"not null;index"`
	PositionID snowflake.ID `gorm:"not null;index"`
	StartedAt  *time.Time   `gorm:""`
	EndedAt    *time.Time   `gorm:""`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoicePosition) TableName() string { return "invoice_positions" }

// Net returns the undiscounted net amount of the position (unit price times
// quantity).
func (p Position) Net() decimal.Decimal {
	return p.Amount.Mul(p.Quantity)
}

// DiscountShare returns the absolute discount of the position, zero when no
// discount reference is attached.
func (p Position) DiscountShare() decimal.Decimal {
	if p.DiscountPercentage == nil {
		return decimal.Zero
	}
	return p.Net().Mul(*p.DiscountPercentage).Div(decimal.NewFromInt(100))
}

// DiscountedNet returns the net amount after the position's own discount.
func (p Position) DiscountedNet() decimal.Decimal {
	return p.Net().Sub(p.DiscountShare())
}

// Clone returns a fresh copy of the position with a zero ID, ready to be
// persisted as a new row. Amounts and references are carried over verbatim.
func (p Position) Clone() Position {
	clone := p
	clone.ID = 0
	clone.CreatedAt = time.Time{}
	if p.DiscountPercentage != nil {
		v := *p.DiscountPercentage
		clone.DiscountPercentage = &v
	}
	if p.DiscountName != nil {
		v := *p.DiscountName
		clone.DiscountName = &v
	}
	if p.TrackerInstanceID != nil {
		v := *p.TrackerInstanceID
		clone.TrackerInstanceID = &v
	}
	if p.ProductRef != nil {
		v := *p.ProductRef
		clone.ProductRef = &v
	}
	return clone
}

// Negated returns a clone whose unit amount is multiplied by -1. Used by the
// refund path: same VAT rate, same quantity, net effect is credit.
func (p Position) Negated() Position {
	clone := p.Clone()
	clone.Amount = p.Amount.Neg()
	return clone
}
