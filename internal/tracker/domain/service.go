package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/faktura/internal/position"
)

// CalculateResult is the priced output of a tracker window. Draft is nil when
// the window holds no samples; callers must treat that as "nothing billable",
// not an error.
type CalculateResult struct {
	Amount decimal.Decimal
	Draft  *position.Position
}

type Service interface {
	RecordSample(ctx context.Context, instanceID snowflake.ID, itemKey string, value float64, recordedAt time.Time) error
	Calculate(ctx context.Context, instance TrackerInstance, from, to time.Time) (CalculateResult, error)
}

var (
	ErrInstanceNotFound = errors.New("tracker_instance_not_found")
	ErrTrackerNotFound  = errors.New("tracker_not_found")
	ErrInvalidWindow    = errors.New("invalid_tracker_window")
)
