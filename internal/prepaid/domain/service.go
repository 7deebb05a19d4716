package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service interface {
	// Balance returns the sum of all ledger entries for the account.
	Balance(ctx context.Context, accountID snowflake.ID) (decimal.Decimal, error)

	// Credit appends a positive ledger entry (top-up or refund).
	Credit(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, reason string, invoiceID *snowflake.ID) error

	// ProcessTransaction settles gross against the account's balance,
	// honoring funds already reserved for the contract. It must run inside
	// the caller's transaction so the debit rolls back together with the
	// invoice it pays for. The returned value is the reservation remaining
	// after settlement (always zero on success).
	ProcessTransaction(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, reserved, gross decimal.Decimal, invoiceID *snowflake.ID) (decimal.Decimal, error)
}

var (
	ErrInsufficientFunds = errors.New("insufficient_prepaid_funds")
	ErrInvalidAmount     = errors.New("invalid_prepaid_amount")
)
