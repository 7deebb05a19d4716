package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/faktura/internal/clock"
	contractdomain "github.com/smallbiznis/faktura/internal/contract/domain"
	obsmetrics "github.com/smallbiznis/faktura/internal/observability/metrics"
	"github.com/smallbiznis/faktura/internal/position"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// stubContractSvc records EvaluateAll calls and fails while errs remain.
type stubContractSvc struct {
	calls int
	errs  []error
	trace *[]string
}

func (s *stubContractSvc) EvaluateAll(ctx context.Context) error {
	s.calls++
	if s.trace != nil {
		*s.trace = append(*s.trace, JobBilling)
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return err
	}
	return nil
}

func (s *stubContractSvc) GetByID(ctx context.Context, id snowflake.ID) (contractdomain.Contract, error) {
	return contractdomain.Contract{}, contractdomain.ErrContractNotFound
}

func (s *stubContractSvc) Positions(ctx context.Context, contractID snowflake.ID) ([]position.Position, error) {
	return nil, nil
}

func (s *stubContractSvc) Start(ctx context.Context, contract *contractdomain.Contract) error {
	return nil
}

func (s *stubContractSvc) Evaluate(ctx context.Context, contract *contractdomain.Contract) error {
	return nil
}

func (s *stubContractSvc) Cancel(ctx context.Context, contract *contractdomain.Contract, instant bool) error {
	return nil
}

func (s *stubContractSvc) RevokeCancellation(ctx context.Context, contract *contractdomain.Contract) error {
	return nil
}

type stubDunningSvc struct {
	sweeps   int
	catchUps int
	sweepErr error
	trace    *[]string
}

func (s *stubDunningSvc) RunSweep(ctx context.Context) error {
	s.sweeps++
	if s.trace != nil {
		*s.trace = append(*s.trace, JobDunning)
	}
	return s.sweepErr
}

func (s *stubDunningSvc) RunCatchUp(ctx context.Context) error {
	s.catchUps++
	if s.trace != nil {
		*s.trace = append(*s.trace, JobReminderCatchup)
	}
	return nil
}

func newTestScheduler(t *testing.T, cfg Config, contractSvc *stubContractSvc, dunningSvc *stubDunningSvc) *Scheduler {
	t.Helper()
	obsmetrics.ResetSchedulerMetricsForTest()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sched, err := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		ContractSvc: contractSvc,
		DunningSvc:  dunningSvc,
		Config:      cfg,
	})
	require.NoError(t, err)
	return sched
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOnceExecutesJobsInOrder(t *testing.T) {
	var trace []string
	contractSvc := &stubContractSvc{trace: &trace}
	dunningSvc := &stubDunningSvc{trace: &trace}
	sched := newTestScheduler(t, Config{}, contractSvc, dunningSvc)

	require.NoError(t, sched.RunOnce(context.Background()))

	assert.Equal(t, []string{JobBilling, JobDunning, JobReminderCatchup}, trace)
	assert.Equal(t, 1, contractSvc.calls)
	assert.Equal(t, 1, dunningSvc.sweeps)
	assert.Equal(t, 1, dunningSvc.catchUps)
}

func TestRunOnceHonorsEnabledJobs(t *testing.T) {
	contractSvc := &stubContractSvc{}
	dunningSvc := &stubDunningSvc{}
	sched := newTestScheduler(t, Config{EnabledJobs: []string{"DUNNING"}}, contractSvc, dunningSvc)

	require.NoError(t, sched.RunOnce(context.Background()))

	assert.Equal(t, 0, contractSvc.calls, "job names match case-insensitively")
	assert.Equal(t, 1, dunningSvc.sweeps)
	assert.Equal(t, 0, dunningSvc.catchUps)
}

// A failing job is reported with its name, but never stops the later jobs.
func TestRunOnceContinuesPastFailedJob(t *testing.T) {
	boom := errors.New("billing exploded")
	contractSvc := &stubContractSvc{errs: []error{boom}}
	dunningSvc := &stubDunningSvc{}
	sched := newTestScheduler(t, Config{}, contractSvc, dunningSvc)

	err := sched.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), JobBilling)
	assert.Equal(t, 1, dunningSvc.sweeps)
	assert.Equal(t, 1, dunningSvc.catchUps)
}

// Retryable failures get the configured number of extra attempts within the
// same run; business errors do not.
func TestRunOnceRetriesTransientFailures(t *testing.T) {
	contractSvc := &stubContractSvc{errs: []error{gorm.ErrInvalidTransaction}}
	sched := newTestScheduler(t, Config{Retries: 2}, contractSvc, &stubDunningSvc{})

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Equal(t, 2, contractSvc.calls, "one retry consumed the transient failure")

	business := &stubContractSvc{errs: []error{errors.New("bad ledger state"), errors.New("bad ledger state")}}
	sched = newTestScheduler(t, Config{Retries: 2}, business, &stubDunningSvc{})
	require.Error(t, sched.RunOnce(context.Background()))
	assert.Equal(t, 1, business.calls, "business errors are not retried")
}

// A job hitting its deadline is soft: recorded, swallowed, resumed next run.
func TestRunOnceSwallowsTimeouts(t *testing.T) {
	dunningSvc := &stubDunningSvc{sweepErr: context.DeadlineExceeded}
	sched := newTestScheduler(t, Config{Retries: 0}, &stubContractSvc{}, dunningSvc)

	assert.NoError(t, sched.RunOnce(context.Background()))
	assert.Equal(t, 1, dunningSvc.catchUps, "catch-up still runs after a timed-out sweep")
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Minute, cfg.JobTimeout)

	custom := Config{RunInterval: time.Minute, Retries: 3}.withDefaults()
	assert.Equal(t, time.Minute, custom.RunInterval)
	assert.Equal(t, 3, custom.Retries)
}
