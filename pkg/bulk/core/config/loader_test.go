package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/riptide/pkg/bulk/core/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig("", nil)
	require.NoError(t, err)

	job := cfg.Riptide.Job
	assert.Equal(t, 20, job.PutBatchSize)
	assert.Equal(t, 100, job.DeleteBatchSize)
	assert.Equal(t, 20.0, job.MaxExecutionTime)
	assert.Equal(t, 0, job.MaxFailures)
	assert.Equal(t, 86400, job.DeleteCompletedJobDelay)
	assert.True(t, job.DeleteFailedJobs)
	assert.Equal(t, 100, job.SourceFetchSize)

	assert.Equal(t, 3, cfg.Riptide.Scheduler.MaxStepRetries)
	assert.Equal(t, "INFO", cfg.Riptide.System.Logging.Level)
	assert.False(t, cfg.Riptide.Monitor.Enabled)
	assert.Equal(t, ":8440", cfg.Riptide.Monitor.Address)
}

func TestLoadConfigEmbeddedYAMLOverridesDefaults(t *testing.T) {
	embedded := config.EmbeddedConfig(`
riptide:
  job:
    put_batch_size: 50
    max_failures: -1
    delete_failed_jobs: false
  monitor:
    enabled: true
    address: ":9000"
`)

	cfg, err := config.LoadConfig("", embedded)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Riptide.Job.PutBatchSize)
	assert.Equal(t, config.UnlimitedFailures, cfg.Riptide.Job.MaxFailures)
	assert.False(t, cfg.Riptide.Job.DeleteFailedJobs)
	// Keys absent from the document keep their defaults.
	assert.Equal(t, 100, cfg.Riptide.Job.DeleteBatchSize)
	assert.Equal(t, 20.0, cfg.Riptide.Job.MaxExecutionTime)

	assert.True(t, cfg.Riptide.Monitor.Enabled)
	assert.Equal(t, ":9000", cfg.Riptide.Monitor.Address)
}

func TestLoadConfigExpandsEnvironmentPlaceholders(t *testing.T) {
	t.Setenv("TEST_MONITOR_ADDR", ":7777")

	embedded := config.EmbeddedConfig(`
riptide:
  monitor:
    address: "${TEST_MONITOR_ADDR}"
`)

	cfg, err := config.LoadConfig("", embedded)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Riptide.Monitor.Address)
}

func TestLoadConfigEnvOverridesWinOverYAML(t *testing.T) {
	t.Setenv("RIPTIDE_PUT_BATCH_SIZE", "7")
	t.Setenv("RIPTIDE_MAX_EXECUTION_TIME", "2.5")
	t.Setenv("RIPTIDE_MAX_FAILURES", "-1")
	t.Setenv("RIPTIDE_DELETE_FAILED_JOBS", "false")

	embedded := config.EmbeddedConfig(`
riptide:
  job:
    put_batch_size: 50
`)

	cfg, err := config.LoadConfig("", embedded)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Riptide.Job.PutBatchSize)
	assert.Equal(t, 2.5, cfg.Riptide.Job.MaxExecutionTime)
	assert.Equal(t, config.UnlimitedFailures, cfg.Riptide.Job.MaxFailures)
	assert.False(t, cfg.Riptide.Job.DeleteFailedJobs)
}

func TestLoadConfigIgnoresMalformedEnvOverrides(t *testing.T) {
	t.Setenv("RIPTIDE_PUT_BATCH_SIZE", "not-a-number")
	t.Setenv("RIPTIDE_DELETE_FAILED_JOBS", "maybe")

	cfg, err := config.LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Riptide.Job.PutBatchSize)
	assert.True(t, cfg.Riptide.Job.DeleteFailedJobs)
}

func TestLoadConfigRejectsInvalidYAML(t *testing.T) {
	embedded := config.EmbeddedConfig("riptide: [unbalanced")

	_, err := config.LoadConfig("", embedded)
	require.Error(t, err)
}

func TestLoadConfigRejectsNonPositiveBatchSizes(t *testing.T) {
	embedded := config.EmbeddedConfig(`
riptide:
  job:
    put_batch_size: 0
`)

	_, err := config.LoadConfig("", embedded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put_batch_size")

	embedded = config.EmbeddedConfig(`
riptide:
  job:
    delete_batch_size: -3
`)

	_, err = config.LoadConfig("", embedded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete_batch_size")
}

func TestLoadConfigRejectsNonPositiveBatchSizeFromEnv(t *testing.T) {
	t.Setenv("RIPTIDE_PUT_BATCH_SIZE", "0")

	_, err := config.LoadConfig("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put_batch_size")
}

func TestLoadConfigRejectsOutOfRangeSentinels(t *testing.T) {
	embedded := config.EmbeddedConfig(`
riptide:
  job:
    max_failures: -2
`)

	_, err := config.LoadConfig("", embedded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_failures")

	embedded = config.EmbeddedConfig(`
riptide:
  job:
    delete_completed_job_delay: -2
`)

	_, err = config.LoadConfig("", embedded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete_completed_job_delay")
}

func TestLoadConfigAcceptsSentinelValues(t *testing.T) {
	embedded := config.EmbeddedConfig(`
riptide:
  job:
    max_failures: -1
    delete_completed_job_delay: -1
`)

	cfg, err := config.LoadConfig("", embedded)
	require.NoError(t, err)
	assert.Equal(t, config.UnlimitedFailures, cfg.Riptide.Job.MaxFailures)
	assert.Equal(t, config.CleanupNever, cfg.Riptide.Job.DeleteCompletedJobDelay)
}

func TestLoadConfigRejectsNegativeSchedulerTunables(t *testing.T) {
	embedded := config.EmbeddedConfig(`
riptide:
  scheduler:
    max_step_retries: -1
`)

	_, err := config.LoadConfig("", embedded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_step_retries")
}

func TestMaxExecutionDuration(t *testing.T) {
	job := config.JobConfig{MaxExecutionTime: 2.5}
	assert.Equal(t, "2.5s", job.MaxExecutionDuration().String())
}

func TestCompletedCleanupDelay(t *testing.T) {
	job := config.JobConfig{DeleteCompletedJobDelay: 60}
	delay, enabled := job.CompletedCleanupDelay()
	assert.True(t, enabled)
	assert.Equal(t, "1m0s", delay.String())

	job.DeleteCompletedJobDelay = config.CleanupNever
	_, enabled = job.CompletedCleanupDelay()
	assert.False(t, enabled)
}
