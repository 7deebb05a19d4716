package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	prepaiddomain "github.com/smallbiznis/faktura/internal/prepaid/domain"
	"github.com/smallbiznis/faktura/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	historyRepo repository.Repository[prepaiddomain.PrepaidHistory]
}

func NewService(p ServiceParam) prepaiddomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("prepaid.service"),

		genID:       p.GenID,
		historyRepo: repository.ProvideStore[prepaiddomain.PrepaidHistory](p.DB),
	}
}

func (s *Service) Balance(ctx context.Context, accountID snowflake.ID) (decimal.Decimal, error) {
	return s.balance(ctx, s.db, accountID)
}

func (s *Service) balance(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) (decimal.Decimal, error) {
	var raw *string
	err := tx.WithContext(ctx).Raw(
		`SELECT SUM(amount) FROM prepaid_histories WHERE account_id = ?`,
		accountID,
	).Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}

func (s *Service) Credit(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, reason string, invoiceID *snowflake.ID) error {
	if !amount.IsPositive() {
		return prepaiddomain.ErrInvalidAmount
	}
	if tx == nil {
		tx = s.db
	}
	entry := &prepaiddomain.PrepaidHistory{
		ID:        s.genID.Generate(),
		AccountID: accountID,
		Amount:    amount,
		Reason:    reason,
		InvoiceID: invoiceID,
	}
	return s.historyRepo.WithTrx(tx).Create(ctx, entry)
}

// ProcessTransaction applies the settlement branch table:
//
//	gross == 0              -> succeed, nothing to do
//	reserved == 0           -> debit the full gross
//	0 < reserved < gross    -> debit gross-reserved, clear the reservation
//	reserved == gross       -> clear the reservation, no ledger entry
//	balance too low         -> ErrInsufficientFunds, nothing written
func (s *Service) ProcessTransaction(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, reserved, gross decimal.Decimal, invoiceID *snowflake.ID) (decimal.Decimal, error) {
	if tx == nil {
		tx = s.db
	}
	if gross.IsZero() {
		return reserved, nil
	}
	if gross.IsNegative() {
		return reserved, prepaiddomain.ErrInvalidAmount
	}

	if reserved.Equal(gross) {
		// Funds were already earmarked in full; releasing the
		// reservation settles the invoice without a new ledger row.
		return decimal.Zero, nil
	}

	debit := gross.Sub(reserved)
	if reserved.GreaterThan(gross) || debit.IsNegative() {
		return reserved, prepaiddomain.ErrInvalidAmount
	}

	balance, err := s.balance(ctx, tx, accountID)
	if err != nil {
		return reserved, err
	}
	if balance.LessThan(debit) {
		return reserved, prepaiddomain.ErrInsufficientFunds
	}

	entry := &prepaiddomain.PrepaidHistory{
		ID:        s.genID.Generate(),
		AccountID: accountID,
		Amount:    debit.Neg(),
		Reason:    prepaiddomain.ReasonContractBilling,
		InvoiceID: invoiceID,
	}
	if err := s.historyRepo.WithTrx(tx).Create(ctx, entry); err != nil {
		return reserved, err
	}
	return decimal.Zero, nil
}
