package service

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/faktura/internal/position"
	trackerdomain "github.com/smallbiznis/faktura/internal/tracker/domain"
	"github.com/smallbiznis/faktura/pkg/db/option"
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
	trackerRepo repository.Repository[trackerdomain.Tracker]
	itemRepo    repository.Repository[trackerdomain.TrackerItem]
	sampleRepo  repository.Repository[trackerdomain.TrackerSample]
}

func NewService(p ServiceParam) trackerdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("tracker.service"),

		genID:       p.GenID,
		trackerRepo: repository.ProvideStore[trackerdomain.Tracker](p.DB),
		itemRepo:    repository.ProvideStore[trackerdomain.TrackerItem](p.DB),
		sampleRepo:  repository.ProvideStore[trackerdomain.TrackerSample](p.DB),
	}
}

// RecordSample appends one usage sample. Samples are never deduplicated or
// rewritten; correction is a new sample.
func (s *Service) RecordSample(ctx context.Context, instanceID snowflake.ID, itemKey string, value float64, recordedAt time.Time) error {
	sample := &trackerdomain.TrackerSample{
		ID:         s.genID.Generate(),
		InstanceID: instanceID,
		ItemKey:    itemKey,
		Value:      value,
		RecordedAt: recordedAt.UTC(),
	}
	return s.sampleRepo.Create(ctx, sample)
}

// Calculate aggregates the instance's samples inside [from, to) per item,
// applies step rounding and per-step pricing, and synthesizes one draft
// position carrying the total. A window without samples yields a zero amount
// and a nil draft.
func (s *Service) Calculate(ctx context.Context, instance trackerdomain.TrackerInstance, from, to time.Time) (trackerdomain.CalculateResult, error) {
	if !to.After(from) {
		return trackerdomain.CalculateResult{}, trackerdomain.ErrInvalidWindow
	}

	tracker, err := s.trackerRepo.FindOne(ctx, &trackerdomain.Tracker{ID: instance.TrackerID})
	if err != nil {
		return trackerdomain.CalculateResult{}, err
	}
	if tracker == nil {
		return trackerdomain.CalculateResult{}, trackerdomain.ErrTrackerNotFound
	}

	items, err := s.itemRepo.Find(ctx, &trackerdomain.TrackerItem{TrackerID: tracker.ID},
		option.WithOrder("key ASC"),
	)
	if err != nil {
		return trackerdomain.CalculateResult{}, err
	}

	total := decimal.Zero
	sampled := false
	for _, item := range items {
		if item == nil {
			continue
		}
		samples, err := s.windowSamples(ctx, instance.ID, item.Key, from, to)
		if err != nil {
			return trackerdomain.CalculateResult{}, err
		}
		if len(samples) == 0 {
			continue
		}
		sampled = true
		value := aggregate(item.Process, samples)
		total = total.Add(charge(*item, value))
	}

	if !sampled {
		return trackerdomain.CalculateResult{Amount: decimal.Zero}, nil
	}

	draft := &position.Position{
		OrgID:             instance.OrgID,
		Name:              tracker.Name,
		Description:       tracker.Description,
		Amount:            total,
		Quantity:          decimal.NewFromInt(1),
		TaxCategory:       position.TaxCategoryStandard,
		TrackerInstanceID: &instance.ID,
	}
	return trackerdomain.CalculateResult{Amount: total, Draft: draft}, nil
}

func (s *Service) windowSamples(ctx context.Context, instanceID snowflake.ID, itemKey string, from, to time.Time) ([]float64, error) {
	rows, err := s.sampleRepo.Find(ctx,
		&trackerdomain.TrackerSample{InstanceID: instanceID, ItemKey: itemKey},
		option.ApplyOperator(option.Condition{Field: "recorded_at", Operator: option.GTE, Value: from.UTC()}),
		option.ApplyOperator(option.Condition{Field: "recorded_at", Operator: option.LT, Value: to.UTC()}),
		option.WithOrder("recorded_at ASC, id ASC"),
	)
	if err != nil {
		return nil, err
	}
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			values = append(values, row.Value)
		}
	}
	return values, nil
}

func aggregate(process trackerdomain.ItemProcess, samples []float64) float64 {
	switch process {
	case trackerdomain.ProcessMin:
		minVal := samples[0]
		for _, v := range samples[1:] {
			if v < minVal {
				minVal = v
			}
		}
		return minVal
	case trackerdomain.ProcessMax:
		maxVal := samples[0]
		for _, v := range samples[1:] {
			if v > maxVal {
				maxVal = v
			}
		}
		return maxVal
	case trackerdomain.ProcessAverage:
		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		return sum / float64(len(samples))
	case trackerdomain.ProcessMedian:
		sorted := append([]float64(nil), samples...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 0 {
			return (sorted[mid-1] + sorted[mid]) / 2
		}
		return sorted[mid]
	case trackerdomain.ProcessEquals:
		// Expected to be a single value; with more than one sample the
		// last recorded wins.
		return samples[len(samples)-1]
	default:
		return samples[len(samples)-1]
	}
}

// charge snaps the aggregated value to the item's step per its rounding
// policy and prices it at Amount per step.
func charge(item trackerdomain.TrackerItem, value float64) decimal.Decimal {
	v := decimal.NewFromFloat(value)
	step := item.Step
	if step.IsZero() {
		step = decimal.NewFromInt(1)
	}

	units := v.Div(step)
	switch item.Round {
	case trackerdomain.RoundUp:
		units = units.Ceil()
	case trackerdomain.RoundDown:
		units = units.Floor()
	case trackerdomain.RoundNearest:
		units = units.Round(0)
	case trackerdomain.RoundNone:
	}

	return units.Mul(item.Amount)
}
