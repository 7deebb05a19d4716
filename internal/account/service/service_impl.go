package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/faktura/internal/account/domain"
	invoicedomain "github.com/smallbiznis/faktura/internal/invoice/domain"
	"github.com/smallbiznis/faktura/internal/position"
	prepaiddomain "github.com/smallbiznis/faktura/internal/prepaid/domain"
	taxdomain "github.com/smallbiznis/faktura/internal/tax/domain"
	"github.com/smallbiznis/faktura/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	PrepaidSvc prepaiddomain.Service
	TaxSvc     taxdomain.Service
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	prepaidSvc  prepaiddomain.Service
	taxSvc      taxdomain.Service
	accountRepo repository.Repository[accountdomain.Account]
	invoiceRepo repository.Repository[invoicedomain.Invoice]
}

func NewService(p ServiceParam) accountdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("account.service"),

		prepaidSvc:  p.PrepaidSvc,
		taxSvc:      p.TaxSvc,
		accountRepo: repository.ProvideStore[accountdomain.Account](p.DB),
		invoiceRepo: repository.ProvideStore[invoicedomain.Invoice](p.DB),
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (accountdomain.Account, error) {
	account, err := s.accountRepo.FindOne(ctx, &accountdomain.Account{ID: id})
	if err != nil {
		return accountdomain.Account{}, err
	}
	if account == nil {
		return accountdomain.Account{}, accountdomain.ErrAccountNotFound
	}
	return *account, nil
}

func (s *Service) PrepaidAccountBalance(ctx context.Context, id snowflake.ID) (decimal.Decimal, error) {
	account, err := s.GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}

	balance, err := s.prepaidSvc.Balance(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if !account.Supplier {
		return balance, nil
	}

	outstanding, err := s.unpaidGross(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Sub(outstanding), nil
}

func (s *Service) BillingEmailAddress(ctx context.Context, id snowflake.ID) (string, error) {
	account, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return account.BillingEmail, nil
}

func (s *Service) ReverseCharge(ctx context.Context, id snowflake.ID) (bool, error) {
	account, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if account.VatID == nil || *account.VatID == "" {
		return false, nil
	}
	return s.taxSvc.ReverseChargeEligible(ctx, account.CountryID)
}

// unpaidGross sums the gross of the account's unpaid archived invoices.
func (s *Service) unpaidGross(ctx context.Context, accountID snowflake.ID) (decimal.Decimal, error) {
	invoices, err := s.invoiceRepo.Find(ctx, &invoicedomain.Invoice{
		AccountID: accountID,
		Status:    invoicedomain.StatusUnpaid,
	})
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, invoice := range invoices {
		if invoice == nil || invoice.ArchivedAt == nil {
			continue
		}
		positions, err := s.invoicePositions(ctx, invoice.ID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(position.SumDiscountedGross(positions, invoice.ReverseCharge))
	}
	return total, nil
}

func (s *Service) invoicePositions(ctx context.Context, invoiceID snowflake.ID) ([]position.Position, error) {
	var rows []position.Position
	err := s.db.WithContext(ctx).Raw(
		`SELECT p.* FROM positions p
		 JOIN invoice_positions ip ON ip.position_id = p.id
		 WHERE ip.invoice_id = ?
		 ORDER BY p.id`,
		invoiceID,
	).Scan(&rows).Error
	return rows, err
}
