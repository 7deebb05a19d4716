package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	VATRate(ctx context.Context, rateType RateType, countryID snowflake.ID) (decimal.Decimal, error)

	// ReverseChargeEligible reports whether sales into the country may use
	// the reverse-charge mechanism: an EU member state other than the
	// seller's domestic country.
	ReverseChargeEligible(ctx context.Context, countryID snowflake.ID) (bool, error)
}

var (
	ErrCountryNotFound = errors.New("country_not_found")
	ErrInvalidRateType = errors.New("invalid_rate_type")
)
