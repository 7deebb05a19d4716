package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (Account, error)

	// PrepaidAccountBalance is the account's spendable prepaid balance:
	// the ledger sum, minus the gross of unpaid supplier invoices for
	// supplier-role accounts.
	PrepaidAccountBalance(ctx context.Context, id snowflake.ID) (decimal.Decimal, error)

	BillingEmailAddress(ctx context.Context, id snowflake.ID) (string, error)

	// ReverseCharge reports whether invoices to this account use the
	// reverse-charge mechanism (eligible country plus a recorded VAT ID).
	ReverseCharge(ctx context.Context, id snowflake.ID) (bool, error)
}

var ErrAccountNotFound = errors.New("account_not_found")
