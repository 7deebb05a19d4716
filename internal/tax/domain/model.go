// Package domain contains the country/VAT reference table. The billing core
// consults these as read-only facts; maintaining the table is an
// administrative concern.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RateType selects which of a country's VAT rates applies.
type RateType string

const (
	RateTypeStandard RateType = "standard"
	RateTypeReduced  RateType = "reduced"
	RateTypeZero     RateType = "zero"
)

// Country holds one country's VAT treatment.
type Country struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	Code         string          `gorm:"type:text;not null;uniqueIndex"`
	Name         string          `gorm:"type:text;not null"`
	Domestic     bool            `gorm:"not null;default:false"`
	EUMember     bool            `gorm:"not null;default:false"`
	StandardRate decimal.Decimal `gorm:"type:numeric(6,3);not null"`
	ReducedRate  decimal.Decimal `gorm:"type:numeric(6,3);not null"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Country) TableName() string { return "countries" }
