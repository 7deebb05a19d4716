package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	prepaiddomain "github.com/smallbiznis/faktura/internal/prepaid/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupPrepaidTest(t *testing.T) (*gorm.DB, prepaiddomain.Service, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&prepaiddomain.PrepaidHistory{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{DB: db, Log: zap.NewNop(), GenID: node})
	return db, svc, node
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBalanceSumsLedger(t *testing.T) {
	_, svc, node := setupPrepaidTest(t)
	ctx := context.Background()
	accountID := node.Generate()

	require.NoError(t, svc.Credit(ctx, nil, accountID, dec("100"), prepaiddomain.ReasonTopUp, nil))
	require.NoError(t, svc.Credit(ctx, nil, accountID, dec("25.50"), prepaiddomain.ReasonTopUp, nil))

	balance, err := svc.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, dec("125.5").Equal(balance), "balance = %s", balance)
}

func TestBalanceEmptyLedgerIsZero(t *testing.T) {
	_, svc, node := setupPrepaidTest(t)

	balance, err := svc.Balance(context.Background(), node.Generate())
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestCreditRejectsNonPositiveAmounts(t *testing.T) {
	_, svc, node := setupPrepaidTest(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Credit(ctx, nil, node.Generate(), decimal.Zero, prepaiddomain.ReasonTopUp, nil), prepaiddomain.ErrInvalidAmount)
	assert.ErrorIs(t, svc.Credit(ctx, nil, node.Generate(), dec("-1"), prepaiddomain.ReasonTopUp, nil), prepaiddomain.ErrInvalidAmount)
}

func TestProcessTransactionZeroGrossIsNoOp(t *testing.T) {
	db, svc, node := setupPrepaidTest(t)
	ctx := context.Background()
	accountID := node.Generate()

	remaining, err := svc.ProcessTransaction(ctx, nil, accountID, dec("40"), decimal.Zero, nil)
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(remaining), "reservation must survive a zero-gross settlement")

	var count int64
	require.NoError(t, db.Model(&prepaiddomain.PrepaidHistory{}).Where("account_id = ?", accountID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessTransactionFullyReservedWritesNoLedgerRow(t *testing.T) {
	db, svc, node := setupPrepaidTest(t)
	ctx := context.Background()
	accountID := node.Generate()

	remaining, err := svc.ProcessTransaction(ctx, nil, accountID, dec("100"), dec("100"), nil)
	require.NoError(t, err)
	assert.True(t, remaining.IsZero())

	var count int64
	require.NoError(t, db.Model(&prepaiddomain.PrepaidHistory{}).Where("account_id = ?", accountID).Count(&count).Error)
	assert.Zero(t, count)
}

// Partial reservation: gross 100, 40 reserved, funds available. The debit
// covers exactly the unreserved remainder and the reservation clears.
func TestProcessTransactionPartialReservationDebitsRemainder(t *testing.T) {
	db, svc, node := setupPrepaidTest(t)
	ctx := context.Background()
	accountID := node.Generate()
	invoiceID := node.Generate()

	require.NoError(t, svc.Credit(ctx, nil, accountID, dec("70"), prepaiddomain.ReasonTopUp, nil))

	remaining, err := svc.ProcessTransaction(ctx, nil, accountID, dec("40"), dec("100"), &invoiceID)
	require.NoError(t, err)
	assert.True(t, remaining.IsZero(), "reservation must clear on success")

	var entries []prepaiddomain.PrepaidHistory
	require.NoError(t, db.Where("account_id = ? AND reason = ?", accountID, prepaiddomain.ReasonContractBilling).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.True(t, dec("-60").Equal(entries[0].Amount), "debit = %s", entries[0].Amount)
	require.NotNil(t, entries[0].InvoiceID)
	assert.Equal(t, invoiceID, *entries[0].InvoiceID)

	balance, err := svc.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(balance))
}

func TestProcessTransactionNoReservationDebitsFullGross(t *testing.T) {
	_, svc, node := setupPrepaidTest(t)
	ctx := context.Background()
	accountID := node.Generate()

	require.NoError(t, svc.Credit(ctx, nil, accountID, dec("120"), prepaiddomain.ReasonTopUp, nil))

	remaining, err := svc.ProcessTransaction(ctx, nil, accountID, decimal.Zero, dec("100"), nil)
	require.NoError(t, err)
	assert.True(t, remaining.IsZero())

	balance, err := svc.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, dec("20").Equal(balance))
}

// Insufficient funds: nothing is written and the reservation stays intact so
// the contract is simply retried next tick.
func TestProcessTransactionInsufficientFunds(t *testing.T) {
	db, svc, node := setupPrepaidTest(t)
	ctx := context.Background()
	accountID := node.Generate()

	require.NoError(t, svc.Credit(ctx, nil, accountID, dec("30"), prepaiddomain.ReasonTopUp, nil))

	remaining, err := svc.ProcessTransaction(ctx, nil, accountID, dec("40"), dec("100"), nil)
	assert.ErrorIs(t, err, prepaiddomain.ErrInsufficientFunds)
	assert.True(t, dec("40").Equal(remaining), "reservation must survive a failed settlement")

	var count int64
	require.NoError(t, db.Model(&prepaiddomain.PrepaidHistory{}).
		Where("account_id = ? AND reason = ?", accountID, prepaiddomain.ReasonContractBilling).
		Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessTransactionRejectsOverReservation(t *testing.T) {
	_, svc, node := setupPrepaidTest(t)

	_, err := svc.ProcessTransaction(context.Background(), nil, node.Generate(), dec("150"), dec("100"), nil)
	assert.ErrorIs(t, err, prepaiddomain.ErrInvalidAmount)
}
