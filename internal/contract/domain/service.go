package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/faktura/internal/position"
)

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (Contract, error)
	Positions(ctx context.Context, contractID snowflake.ID) ([]position.Position, error)

	// Start moves a draft contract into the active state.
	Start(ctx context.Context, contract *Contract) error

	// Evaluate runs one billing tick for the contract: decides per the
	// billing strategy whether a period is due and, if so, bills it as a
	// single atomic unit. Skips (not-due, insufficient funds) are not
	// errors.
	Evaluate(ctx context.Context, contract *Contract) error

	// EvaluateAll sweeps every started contract. Per-contract failures
	// are logged and never abort the sweep.
	EvaluateAll(ctx context.Context) error

	// Cancel records a cancellation. Regular cancellation takes effect at
	// the next period boundary honoring the notice period; instant
	// cancellation ends coverage now and settles the unconsumed remainder
	// per strategy.
	Cancel(ctx context.Context, contract *Contract, instant bool) error

	// RevokeCancellation reverts a pending cancellation before its
	// coverage end is reached.
	RevokeCancellation(ctx context.Context, contract *Contract) error
}

var (
	ErrContractNotFound = errors.New("contract_not_found")
	ErrNotStarted       = errors.New("contract_not_started")
	ErrAlreadyStarted   = errors.New("contract_already_started")
	ErrNotActive        = errors.New("contract_not_active")
	ErrNotCancelled     = errors.New("contract_not_cancelled")
	ErrCancellationOver = errors.New("contract_cancellation_elapsed")
)
