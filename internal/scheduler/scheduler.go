// Package scheduler drives the periodic billing and dunning jobs. One run
// processes every contract and overdue invoice strictly sequentially; the
// deployment guarantees at most one run in flight per tenant.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/faktura/internal/clock"
	contractdomain "github.com/smallbiznis/faktura/internal/contract/domain"
	dunningdomain "github.com/smallbiznis/faktura/internal/dunning/domain"
	obsmetrics "github.com/smallbiznis/faktura/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

const (
	JobBilling         = "billing"
	JobDunning         = "dunning"
	JobReminderCatchup = "reminder_catchup"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock

	ContractSvc contractdomain.Service
	DunningSvc  dunningdomain.Service

	Config Config `optional:"true"`
}

type Scheduler struct {
	db    *gorm.DB
	log   *zap.Logger
	cfg   Config
	clock clock.Clock

	contractSvc contractdomain.Service
	dunningSvc  dunningdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.ContractSvc == nil || p.DunningSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		contractSvc: p.ContractSvc,
		dunningSvc:  p.DunningSvc,
	}, nil
}

// runJob wraps one job with a timeout, metrics and a bounded retry for
// transient failures. A timeout is soft: it is recorded and the job picks up
// where it left off on the next run.
func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	for attempt := 0; err != nil && attempt < s.cfg.Retries && obsmetrics.IsSchedulerErrorRetryable(err); attempt++ {
		s.log.Warn("job retrying",
			zap.String("job", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		err = fn(ctx)
	}
	schedMetrics.ObserveJobDuration(name, time.Since(start))

	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		schedMetrics.IncJobTimeout(name)
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}
	schedMetrics.IncJobError(name, err)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes one full scheduler pass: contract billing, the dunning
// sweep and the reminder catch-up, in that order.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobBilling, s.contractSvc.EvaluateAll},
		{JobDunning, s.dunningSvc.RunSweep},
		{JobReminderCatchup, s.dunningSvc.RunCatchUp},
	}
	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
