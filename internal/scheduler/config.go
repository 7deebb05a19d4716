package scheduler

import (
	"time"

	"github.com/smallbiznis/faktura/internal/config"
)

// Config controls scheduler intervals, batch sizes and retry behavior.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	// Retries is how many extra attempts a retryable job failure gets
	// within the same run.
	Retries int
	// EnabledJobs restricts the run to the named jobs; empty enables all.
	EnabledJobs []string
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		BatchSize:   100,
		Retries:     1,
		JobTimeout:  10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Retries < 0 {
		c.Retries = defaults.Retries
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

// ProvideConfig maps the application environment onto scheduler settings.
func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.SchedulerInterval,
		BatchSize:   cfg.SchedulerBatch,
		Retries:     cfg.SchedulerRetries,
		EnabledJobs: cfg.SchedulerJobs,
	}.withDefaults()
}
