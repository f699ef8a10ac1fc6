package config

// Package config provides structures and utilities for managing riptide configuration.

import (
	"time"

	"github.com/tigerroll/riptide/pkg/bulk/support/util/exception"
)

// EmbeddedConfig holds the content of the configuration file, typically passed
// from main.go via go:embed.
type EmbeddedConfig []byte

// UnlimitedFailures is the MaxFailures sentinel that disables aborting on
// handler failures.
const UnlimitedFailures = -1

// CleanupNever is the delay sentinel meaning terminal job records are kept
// indefinitely.
const CleanupNever = -1

// JobConfig holds the tunables of the bulk job engine.
type JobConfig struct {
	// PutBatchSize is the number of pending put records that triggers an
	// immediate flush of one full batch.
	PutBatchSize int `yaml:"put_batch_size"`
	// DeleteBatchSize is the number of pending delete keys that triggers an
	// immediate flush of one full batch.
	DeleteBatchSize int `yaml:"delete_batch_size"`
	// MaxExecutionTime is the wall-clock ceiling of a single step, in seconds.
	// Handlers are expected to stay well under this per record; the deadline is
	// checked at record granularity, so the worst-case overrun is one handler
	// invocation.
	MaxExecutionTime float64 `yaml:"max_execution_time"`
	// MaxFailures is the number of handler failures tolerated before the job
	// transitions to FAILED. 0 aborts on the first failure; -1 disables aborting.
	MaxFailures int `yaml:"max_failures"`
	// DeleteCompletedJobDelay is the delay in seconds before a COMPLETED job's
	// status record is deleted. 0 deletes immediately; -1 keeps it forever.
	DeleteCompletedJobDelay int `yaml:"delete_completed_job_delay"`
	// DeleteFailedJobs controls whether FAILED job records are deleted on the
	// same delay. When false, failed records are kept regardless of the delay.
	DeleteFailedJobs bool `yaml:"delete_failed_jobs"`
	// SourceFetchSize is the page size record sources use when pulling from the
	// underlying store.
	SourceFetchSize int `yaml:"source_fetch_size"`
}

// MaxExecutionDuration returns the step time ceiling as a time.Duration.
func (c JobConfig) MaxExecutionDuration() time.Duration {
	return time.Duration(c.MaxExecutionTime * float64(time.Second))
}

// CompletedCleanupDelay resolves the configured completed-job deletion delay.
// The second return value is false when records are kept forever.
func (c JobConfig) CompletedCleanupDelay() (time.Duration, bool) {
	if c.DeleteCompletedJobDelay == CleanupNever {
		return 0, false
	}
	return time.Duration(c.DeleteCompletedJobDelay) * time.Second, true
}

// SchedulerConfig holds the tunables of the in-process continuation mechanism.
type SchedulerConfig struct {
	// MaxStepRetries is the number of times a failed step invocation is
	// re-attempted before the scheduler gives up on the job.
	MaxStepRetries int `yaml:"max_step_retries"`
	// RetryInitialInterval is the initial backoff between step retries, in milliseconds.
	RetryInitialInterval int `yaml:"retry_initial_interval"`
}

// RetryBackoff returns the initial retry backoff as a time.Duration.
func (c SchedulerConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryInitialInterval) * time.Millisecond
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// MonitorConfig holds settings of the monitoring/cancellation HTTP API.
type MonitorConfig struct {
	// Enabled controls whether the monitor server is started.
	Enabled bool `yaml:"enabled"`
	// Address is the listen address (e.g., ":8440").
	Address string `yaml:"address"`
	// ListLimit is the maximum number of jobs returned by the listing endpoint.
	ListLimit int `yaml:"list_limit"`
}

// RiptideConfig holds all configuration under the "riptide" top-level key.
type RiptideConfig struct {
	// Job contains the bulk engine tunables.
	Job JobConfig `yaml:"job"`
	// Scheduler contains the continuation mechanism tunables.
	Scheduler SchedulerConfig `yaml:"scheduler"`
	// System contains system-wide configurations.
	System SystemConfig `yaml:"system"`
	// Monitor contains the monitoring API configuration.
	Monitor MonitorConfig `yaml:"monitor"`
	// DatabaseConfigs holds named database connection settings, decoded by the
	// database providers.
	DatabaseConfigs map[string]interface{} `yaml:"database"`
}

// Config is the root structure for the entire riptide configuration.
type Config struct {
	// Riptide contains the top-level configuration.
	Riptide RiptideConfig `yaml:"riptide"`
}

// Validate rejects tunable values the engine cannot run with. Batch sizes and
// the fetch size must be positive; the sentinel-bearing tunables accept -1 or
// any non-negative value; durations must not be negative.
func (c *Config) Validate() error {
	job := c.Riptide.Job
	if job.PutBatchSize < 1 {
		return exception.NewBulkErrorf(moduleName, "put_batch_size must be at least 1, got %d", job.PutBatchSize)
	}
	if job.DeleteBatchSize < 1 {
		return exception.NewBulkErrorf(moduleName, "delete_batch_size must be at least 1, got %d", job.DeleteBatchSize)
	}
	if job.SourceFetchSize < 1 {
		return exception.NewBulkErrorf(moduleName, "source_fetch_size must be at least 1, got %d", job.SourceFetchSize)
	}
	if job.MaxExecutionTime < 0 {
		return exception.NewBulkErrorf(moduleName, "max_execution_time must not be negative, got %g", job.MaxExecutionTime)
	}
	if job.MaxFailures < UnlimitedFailures {
		return exception.NewBulkErrorf(moduleName, "max_failures must be -1 (unlimited) or non-negative, got %d", job.MaxFailures)
	}
	if job.DeleteCompletedJobDelay < CleanupNever {
		return exception.NewBulkErrorf(moduleName, "delete_completed_job_delay must be -1 (never) or non-negative, got %d", job.DeleteCompletedJobDelay)
	}

	sched := c.Riptide.Scheduler
	if sched.MaxStepRetries < 0 {
		return exception.NewBulkErrorf(moduleName, "max_step_retries must not be negative, got %d", sched.MaxStepRetries)
	}
	if sched.RetryInitialInterval < 0 {
		return exception.NewBulkErrorf(moduleName, "retry_initial_interval must not be negative, got %d", sched.RetryInitialInterval)
	}
	return nil
}

// NewConfig returns a new Config populated with the engine defaults.
func NewConfig() *Config {
	cfg := &Config{
		Riptide: RiptideConfig{
			Job: JobConfig{
				PutBatchSize:            20,
				DeleteBatchSize:         100,
				MaxExecutionTime:        20.0,
				MaxFailures:             0,
				DeleteCompletedJobDelay: 86400,
				DeleteFailedJobs:        true,
				SourceFetchSize:         100,
			},
			Scheduler: SchedulerConfig{
				MaxStepRetries:       3,
				RetryInitialInterval: 1000,
			},
			System: SystemConfig{
				Logging: LoggingConfig{Level: "INFO"},
			},
			Monitor: MonitorConfig{
				Enabled:   false,
				Address:   ":8440",
				ListLimit: 50,
			},
		},
	}
	cfg.Riptide.DatabaseConfigs = map[string]interface{}{}
	return cfg
}
