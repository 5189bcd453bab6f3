package scheduler

import (
	"time"

	"github.com/namevault/namevault/internal/config"
)

// Config controls engine intervals and batch sizes.
type Config struct {
	RunInterval           time.Duration
	BatchSize             int
	NotificationBatchSize int
	JobTimeout            time.Duration
	EnabledJobs           []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:           time.Hour,
		BatchSize:             50,
		NotificationBatchSize: 100,
		JobTimeout:            2 * time.Minute,
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
	if c.NotificationBatchSize <= 0 {
		c.NotificationBatchSize = defaults.NotificationBatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:           cfg.Scheduler.RunInterval,
		BatchSize:             cfg.Scheduler.BatchSize,
		NotificationBatchSize: cfg.Scheduler.NotificationBatchSize,
		EnabledJobs:           cfg.Scheduler.EnabledJobs,
	}.withDefaults()
}
