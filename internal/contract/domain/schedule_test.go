package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func timePtr(t time.Time) *time.Time { return &t }

func TestBillingDueNeverBilled(t *testing.T) {
	started := date(2024, 1, 1)
	c := Contract{InvoicePeriod: 30, StartedAt: &started}
	assert.True(t, BillingDue(c, date(2024, 1, 1)))

	// A draft is never due.
	assert.False(t, BillingDue(Contract{InvoicePeriod: 30}, date(2024, 1, 1)))
}

func TestBillingDueThreshold(t *testing.T) {
	started := date(2024, 1, 1)
	c := Contract{
		InvoicePeriod: 30,
		StartedAt:     &started,
		LastInvoiceAt: timePtr(date(2024, 1, 1)),
	}

	// Jan 1 + 30 days is Jan 31; due starts the following midnight.
	assert.False(t, BillingDue(c, date(2024, 1, 29)))
	assert.False(t, BillingDue(c, date(2024, 1, 31)))
	assert.True(t, BillingDue(c, date(2024, 2, 1)))
	assert.True(t, BillingDue(c, time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)))
}

func TestNextCursor(t *testing.T) {
	started := date(2024, 1, 1)
	c := Contract{InvoicePeriod: 30, StartedAt: &started}
	assert.Equal(t, date(2024, 1, 1), NextCursor(c))

	c.LastInvoiceAt = timePtr(date(2024, 1, 1))
	assert.Equal(t, date(2024, 1, 31), NextCursor(c))
}

func TestRegularCancellationDateAtBoundary(t *testing.T) {
	started := date(2024, 1, 1)
	c := Contract{
		InvoicePeriod:      30,
		CancellationPeriod: 5,
		StartedAt:          &started,
		LastInvoiceAt:      timePtr(date(2024, 1, 1)),
	}

	// Plenty of notice left: cancellation lands on the next boundary.
	assert.Equal(t, date(2024, 1, 31), RegularCancellationDate(c, date(2024, 1, 20)))
}

func TestRegularCancellationDatePushedOutOnePeriod(t *testing.T) {
	started := date(2024, 1, 1)
	c := Contract{
		InvoicePeriod:      30,
		CancellationPeriod: 5,
		StartedAt:          &started,
		LastInvoiceAt:      timePtr(date(2024, 1, 1)),
	}

	// Jan 27: only 4 days before the Jan 31 boundary, less than the 5 day
	// notice, so the cancellation is pushed one full period past it.
	assert.Equal(t, date(2024, 3, 2), RegularCancellationDate(c, date(2024, 1, 27)))
}

func TestProrationFactor(t *testing.T) {
	c := Contract{InvoicePeriod: 30}
	factor := ProrationFactor(c, date(2024, 1, 1), date(2024, 1, 16))
	assert.True(t, decimal.NewFromInt(15).Div(decimal.NewFromInt(30)).Equal(factor))

	assert.True(t, ProrationFactor(c, date(2024, 1, 16), date(2024, 1, 1)).IsZero())
	assert.True(t, ProrationFactor(Contract{}, date(2024, 1, 1), date(2024, 1, 16)).IsZero())
}

func TestStateDerivation(t *testing.T) {
	now := date(2024, 2, 1)

	draft := Contract{}
	assert.Equal(t, StateDraft, draft.State(now))

	started := date(2024, 1, 1)
	active := Contract{StartedAt: &started}
	assert.Equal(t, StateActive, active.State(now))

	pending := Contract{
		StartedAt:   &started,
		CancelledAt: timePtr(date(2024, 1, 15)),
		CancelledTo: timePtr(date(2024, 3, 1)),
	}
	assert.Equal(t, StateCancellationPending, pending.State(now))
	assert.Equal(t, StateCancelled, pending.State(date(2024, 3, 1)))

	revoked := pending
	revoked.CancellationRevokedAt = timePtr(date(2024, 1, 20))
	assert.Equal(t, StateActive, revoked.State(now))
}
