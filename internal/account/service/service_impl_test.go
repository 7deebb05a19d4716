package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/faktura/internal/account/domain"
	invoicedomain "github.com/smallbiznis/faktura/internal/invoice/domain"
	"github.com/smallbiznis/faktura/internal/position"
	prepaiddomain "github.com/smallbiznis/faktura/internal/prepaid/domain"
	prepaidservice "github.com/smallbiznis/faktura/internal/prepaid/service"
	taxdomain "github.com/smallbiznis/faktura/internal/tax/domain"
	taxservice "github.com/smallbiznis/faktura/internal/tax/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type accountTestEnv struct {
	db         *gorm.DB
	node       *snowflake.Node
	svc        accountdomain.Service
	prepaidSvc prepaiddomain.Service

	orgID      snowflake.ID
	domesticID snowflake.ID
	euID       snowflake.ID
}

func setupAccountTest(t *testing.T) *accountTestEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&accountdomain.Account{},
		&taxdomain.Country{},
		&position.Position{},
		&position.InvoicePosition{},
		&invoicedomain.Invoice{},
		&prepaiddomain.PrepaidHistory{},
	))
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	log := zap.NewNop()

	prepaidSvc := prepaidservice.NewService(prepaidservice.ServiceParam{DB: db, Log: log, GenID: node})
	taxSvc := taxservice.NewService(taxservice.ServiceParam{DB: db, Log: log})
	svc := NewService(ServiceParam{DB: db, Log: log, PrepaidSvc: prepaidSvc, TaxSvc: taxSvc})

	env := &accountTestEnv{
		db: db, node: node, svc: svc, prepaidSvc: prepaidSvc,
		orgID: node.Generate(), domesticID: node.Generate(), euID: node.Generate(),
	}
	require.NoError(t, db.Create(&taxdomain.Country{
		ID: env.domesticID, Code: "DE", Name: "Germany", Domestic: true, EUMember: true,
		StandardRate: decimal.RequireFromString("19"), ReducedRate: decimal.RequireFromString("7"),
	}).Error)
	require.NoError(t, db.Create(&taxdomain.Country{
		ID: env.euID, Code: "FR", Name: "France", Domestic: false, EUMember: true,
		StandardRate: decimal.RequireFromString("20"), ReducedRate: decimal.RequireFromString("5.5"),
	}).Error)
	return env
}

func (e *accountTestEnv) newAccount(t *testing.T, countryID snowflake.ID, vatID string, supplier bool) accountdomain.Account {
	t.Helper()
	account := accountdomain.Account{
		ID: e.node.Generate(), OrgID: e.orgID, Name: "Acme",
		BillingEmail: "billing@acme.test", CountryID: countryID, Supplier: supplier,
	}
	if vatID != "" {
		account.VatID = &vatID
	}
	require.NoError(t, e.db.Create(&account).Error)
	return account
}

func TestGetByIDUnknownAccount(t *testing.T) {
	env := setupAccountTest(t)
	_, err := env.svc.GetByID(context.Background(), env.node.Generate())
	assert.ErrorIs(t, err, accountdomain.ErrAccountNotFound)
}

func TestReverseChargeEligibility(t *testing.T) {
	env := setupAccountTest(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		countryID snowflake.ID
		vatID     string
		want      bool
	}{
		{"domestic with VAT ID", env.domesticID, "DE123456789", false},
		{"EU business customer", env.euID, "FR12345678901", true},
		{"EU consumer without VAT ID", env.euID, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			account := env.newAccount(t, tc.countryID, tc.vatID, false)
			got, err := env.svc.ReverseCharge(ctx, account.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// A plain payer's prepaid balance is just the ledger sum; a supplier's is
// reduced by the gross of their still-unpaid invoices.
func TestPrepaidAccountBalance(t *testing.T) {
	env := setupAccountTest(t)
	ctx := context.Background()

	payer := env.newAccount(t, env.domesticID, "", false)
	require.NoError(t, env.prepaidSvc.Credit(ctx, nil, payer.ID, decimal.RequireFromString("80"), prepaiddomain.ReasonTopUp, nil))

	balance, err := env.svc.PrepaidAccountBalance(ctx, payer.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("80").Equal(balance))

	supplier := env.newAccount(t, env.domesticID, "", true)
	require.NoError(t, env.prepaidSvc.Credit(ctx, nil, supplier.ID, decimal.RequireFromString("80"), prepaiddomain.ReasonTopUp, nil))

	// One archived unpaid invoice over 100 net + 19% VAT.
	p := position.Position{
		ID: env.node.Generate(), OrgID: env.orgID, Name: "Hosting",
		Amount: decimal.RequireFromString("100"), VatPercentage: decimal.RequireFromString("19"),
		Quantity: decimal.NewFromInt(1), TaxCategory: position.TaxCategoryStandard,
	}
	require.NoError(t, env.db.Create(&p).Error)
	archivedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	invoice := invoicedomain.Invoice{
		ID: env.node.Generate(), OrgID: env.orgID, AccountID: supplier.ID,
		TypeID: env.node.Generate(), Status: invoicedomain.StatusUnpaid, ArchivedAt: &archivedAt,
	}
	require.NoError(t, env.db.Create(&invoice).Error)
	require.NoError(t, env.db.Create(&position.InvoicePosition{
		ID: env.node.Generate(), OrgID: env.orgID, InvoiceID: invoice.ID, PositionID: p.ID,
	}).Error)

	balance, err = env.svc.PrepaidAccountBalance(ctx, supplier.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("-39").Equal(balance), "80 ledger minus 119 outstanding, got %s", balance)
}

func TestBillingEmailAddress(t *testing.T) {
	env := setupAccountTest(t)
	account := env.newAccount(t, env.domesticID, "", false)

	address, err := env.svc.BillingEmailAddress(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, "billing@acme.test", address)
}
