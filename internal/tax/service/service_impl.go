package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/faktura/internal/tax/domain"
	"github.com/smallbiznis/faktura/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	countryRepo repository.Repository[taxdomain.Country]
}

func NewService(p ServiceParam) taxdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("tax.service"),

		countryRepo: repository.ProvideStore[taxdomain.Country](p.DB),
	}
}

func (s *Service) VATRate(ctx context.Context, rateType taxdomain.RateType, countryID snowflake.ID) (decimal.Decimal, error) {
	country, err := s.countryRepo.FindOne(ctx, &taxdomain.Country{ID: countryID})
	if err != nil {
		return decimal.Zero, err
	}
	if country == nil {
		return decimal.Zero, taxdomain.ErrCountryNotFound
	}

	switch rateType {
	case taxdomain.RateTypeStandard:
		return country.StandardRate, nil
	case taxdomain.RateTypeReduced:
		return country.ReducedRate, nil
	case taxdomain.RateTypeZero:
		return decimal.Zero, nil
	default:
		return decimal.Zero, taxdomain.ErrInvalidRateType
	}
}

func (s *Service) ReverseChargeEligible(ctx context.Context, countryID snowflake.ID) (bool, error) {
	country, err := s.countryRepo.FindOne(ctx, &taxdomain.Country{ID: countryID})
	if err != nil {
		return false, err
	}
	if country == nil {
		return false, taxdomain.ErrCountryNotFound
	}
	return country.EUMember && !country.Domestic, nil
}
