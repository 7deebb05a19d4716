package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	trackerdomain "github.com/smallbiznis/faktura/internal/tracker/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type trackerTestEnv struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  trackerdomain.Service

	orgID snowflake.ID
}

func setupTrackerTest(t *testing.T) *trackerTestEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&trackerdomain.Tracker{},
		&trackerdomain.TrackerItem{},
		&trackerdomain.TrackerInstance{},
		&trackerdomain.TrackerSample{},
	))
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	return &trackerTestEnv{
		db:    db,
		node:  node,
		svc:   NewService(ServiceParam{DB: db, Log: zap.NewNop(), GenID: node}),
		orgID: node.Generate(),
	}
}

// newInstance creates a tracker with a single item and returns the instance
// attached to it.
func (e *trackerTestEnv) newInstance(t *testing.T, process trackerdomain.ItemProcess, round trackerdomain.ItemRound, step, amount string) trackerdomain.TrackerInstance {
	t.Helper()
	trackerID := e.node.Generate()
	require.NoError(t, e.db.Create(&trackerdomain.Tracker{
		ID: trackerID, OrgID: e.orgID, Name: "Usage",
	}).Error)
	require.NoError(t, e.db.Create(&trackerdomain.TrackerItem{
		ID: e.node.Generate(), TrackerID: trackerID, Key: "units", Name: "Units",
		ValueType: trackerdomain.ValueTypeDouble, Process: process, Round: round,
		Step: decimal.RequireFromString(step), Amount: decimal.RequireFromString(amount),
	}).Error)
	instance := trackerdomain.TrackerInstance{
		ID: e.node.Generate(), OrgID: e.orgID, TrackerID: trackerID, ContractPositionID: e.node.Generate(),
	}
	require.NoError(t, e.db.Create(&instance).Error)
	return instance
}

func (e *trackerTestEnv) record(t *testing.T, instance trackerdomain.TrackerInstance, at time.Time, values ...float64) {
	t.Helper()
	for i, v := range values {
		require.NoError(t, e.svc.RecordSample(context.Background(), instance.ID, "units",
			v, at.Add(time.Duration(i)*time.Minute)))
	}
}

var (
	windowFrom = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	windowTo   = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
)

func TestCalculateAggregations(t *testing.T) {
	cases := []struct {
		name    string
		process trackerdomain.ItemProcess
		samples []float64
		want    string
	}{
		{"min", trackerdomain.ProcessMin, []float64{5, 2, 9}, "2"},
		{"max", trackerdomain.ProcessMax, []float64{5, 2, 9}, "9"},
		{"average", trackerdomain.ProcessAverage, []float64{4, 6, 8}, "6"},
		{"median odd", trackerdomain.ProcessMedian, []float64{9, 1, 5}, "5"},
		{"median even", trackerdomain.ProcessMedian, []float64{1, 3, 7, 9}, "5"},
		{"equals takes last", trackerdomain.ProcessEquals, []float64{10, 20, 30}, "30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupTrackerTest(t)
			instance := env.newInstance(t, tc.process, trackerdomain.RoundNone, "1", "1")
			env.record(t, instance, windowFrom.Add(time.Hour), tc.samples...)

			result, err := env.svc.Calculate(context.Background(), instance, windowFrom, windowTo)
			require.NoError(t, err)
			require.NotNil(t, result.Draft)
			assert.True(t, decimal.RequireFromString(tc.want).Equal(result.Amount),
				"amount = %s, want %s", result.Amount, tc.want)
		})
	}
}

func TestCalculateStepRounding(t *testing.T) {
	cases := []struct {
		name  string
		round trackerdomain.ItemRound
		want  string
	}{
		// 450 usage, step 100, 2 per step.
		{"up", trackerdomain.RoundUp, "10"},
		{"down", trackerdomain.RoundDown, "8"},
		{"nearest", trackerdomain.RoundNearest, "10"}, // 4.5 rounds half up
		{"none", trackerdomain.RoundNone, "9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupTrackerTest(t)
			instance := env.newInstance(t, trackerdomain.ProcessMax, tc.round, "100", "2")
			env.record(t, instance, windowFrom.Add(time.Hour), 450)

			result, err := env.svc.Calculate(context.Background(), instance, windowFrom, windowTo)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tc.want).Equal(result.Amount),
				"amount = %s, want %s", result.Amount, tc.want)
		})
	}
}

func TestCalculateEmptyWindowYieldsNoDraft(t *testing.T) {
	env := setupTrackerTest(t)
	instance := env.newInstance(t, trackerdomain.ProcessMax, trackerdomain.RoundNone, "1", "1")

	result, err := env.svc.Calculate(context.Background(), instance, windowFrom, windowTo)
	require.NoError(t, err)
	assert.True(t, result.Amount.IsZero())
	assert.Nil(t, result.Draft)
}

func TestCalculateWindowBoundsAreHalfOpen(t *testing.T) {
	env := setupTrackerTest(t)
	instance := env.newInstance(t, trackerdomain.ProcessMax, trackerdomain.RoundNone, "1", "1")

	ctx := context.Background()
	require.NoError(t, env.svc.RecordSample(ctx, instance.ID, "units", 100, windowFrom.Add(-time.Second)))
	require.NoError(t, env.svc.RecordSample(ctx, instance.ID, "units", 7, windowFrom))
	require.NoError(t, env.svc.RecordSample(ctx, instance.ID, "units", 200, windowTo))

	result, err := env.svc.Calculate(ctx, instance, windowFrom, windowTo)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("7").Equal(result.Amount),
		"only the sample inside [from, to) counts, got %s", result.Amount)
}

func TestCalculateRejectsInvalidWindow(t *testing.T) {
	env := setupTrackerTest(t)
	instance := env.newInstance(t, trackerdomain.ProcessMax, trackerdomain.RoundNone, "1", "1")

	_, err := env.svc.Calculate(context.Background(), instance, windowTo, windowFrom)
	assert.ErrorIs(t, err, trackerdomain.ErrInvalidWindow)
}

func TestCalculateUnknownTracker(t *testing.T) {
	env := setupTrackerTest(t)
	orphan := trackerdomain.TrackerInstance{
		ID: env.node.Generate(), OrgID: env.orgID,
		TrackerID: env.node.Generate(), ContractPositionID: env.node.Generate(),
	}
	_, err := env.svc.Calculate(context.Background(), orphan, windowFrom, windowTo)
	assert.ErrorIs(t, err, trackerdomain.ErrTrackerNotFound)
}

func TestCalculateSumsMultipleItems(t *testing.T) {
	env := setupTrackerTest(t)
	ctx := context.Background()

	trackerID := env.node.Generate()
	require.NoError(t, env.db.Create(&trackerdomain.Tracker{
		ID: trackerID, OrgID: env.orgID, Name: "Usage",
	}).Error)
	for key, amount := range map[string]string{"cpu": "3", "ram": "5"} {
		require.NoError(t, env.db.Create(&trackerdomain.TrackerItem{
			ID: env.node.Generate(), TrackerID: trackerID, Key: key, Name: key,
			ValueType: trackerdomain.ValueTypeDouble, Process: trackerdomain.ProcessMax,
			Round: trackerdomain.RoundNone, Step: decimal.NewFromInt(1), Amount: decimal.RequireFromString(amount),
		}).Error)
	}
	instance := trackerdomain.TrackerInstance{
		ID: env.node.Generate(), OrgID: env.orgID, TrackerID: trackerID, ContractPositionID: env.node.Generate(),
	}
	require.NoError(t, env.db.Create(&instance).Error)

	require.NoError(t, env.svc.RecordSample(ctx, instance.ID, "cpu", 2, windowFrom.Add(time.Hour)))
	require.NoError(t, env.svc.RecordSample(ctx, instance.ID, "ram", 4, windowFrom.Add(time.Hour)))

	result, err := env.svc.Calculate(ctx, instance, windowFrom, windowTo)
	require.NoError(t, err)
	// 2*3 + 4*5
	assert.True(t, decimal.RequireFromString("26").Equal(result.Amount), "amount = %s", result.Amount)
}
