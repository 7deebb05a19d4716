// Package domain defines the dunning engine contract: escalating payment
// reminders for overdue invoices, with contract cancellation as the final
// rung.
package domain

import (
	"context"
	"errors"
)

type Service interface {
	// RunSweep scans unpaid archived invoices of dunning-enabled types and
	// fires at most one ladder rung per invoice per pass. Rendering and
	// delivery failures are logged and retried by RunCatchUp; they never
	// abort the sweep.
	RunSweep(ctx context.Context) error

	// RunCatchUp re-drives reminders stuck in a partial state: unarchived
	// reminders are archived, rendered and sent; archived-but-unsent ones
	// are re-notified. Safe to run arbitrarily often.
	RunCatchUp(ctx context.Context) error
}

var ErrReminderExists = errors.New("reminder_already_exists")
