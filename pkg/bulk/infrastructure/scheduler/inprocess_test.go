package scheduler_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/riptide/pkg/bulk/core/config"
	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
	"github.com/tigerroll/riptide/pkg/bulk/core/port"
	"github.com/tigerroll/riptide/pkg/bulk/infrastructure/repository/memory"
	"github.com/tigerroll/riptide/pkg/bulk/infrastructure/scheduler"
	"github.com/tigerroll/riptide/pkg/bulk/job"
)

// recordingRunner counts step invocations and can fail the first N of them
// with the configured error.
type recordingRunner struct {
	mu          sync.Mutex
	calls       []int
	failUntil   int
	stepErr     error
	failReasons []string
	cleanupJobs []string
}

func (r *recordingRunner) RunStep(ctx context.Context, jobID string, stepIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, stepIndex)
	if len(r.calls) <= r.failUntil {
		if r.stepErr != nil {
			return r.stepErr
		}
		return errors.New("dial tcp: connection refused")
	}
	return nil
}

func (r *recordingRunner) FailJob(ctx context.Context, jobID string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failReasons = append(r.failReasons, reason)
	return nil
}

func (r *recordingRunner) RunCleanup(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanupJobs = append(r.cleanupJobs, jobID)
	return nil
}

func (r *recordingRunner) stepCalls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls...)
}

func (r *recordingRunner) abandonments() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failReasons...)
}

func (r *recordingRunner) cleanedJobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cleanupJobs...)
}

func newScheduler(retries int) *scheduler.InProcessScheduler {
	cfg := config.NewConfig()
	cfg.Riptide.Scheduler.MaxStepRetries = retries
	cfg.Riptide.Scheduler.RetryInitialInterval = 1
	return scheduler.NewInProcessScheduler(cfg)
}

func TestScheduleStepRequiresBinding(t *testing.T) {
	s := newScheduler(0)
	defer s.Close()

	err := s.ScheduleStep(context.Background(), "job-1", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not bound")
}

func TestScheduleStepRunsTheStep(t *testing.T) {
	s := newScheduler(0)
	defer s.Close()

	runner := &recordingRunner{}
	s.Bind(runner, runner)

	require.NoError(t, s.ScheduleStep(context.Background(), "job-1", 4))
	s.Drain()

	assert.Equal(t, []int{4}, runner.stepCalls())
}

func TestScheduleStepRetriesTransientFailures(t *testing.T) {
	s := newScheduler(3)
	defer s.Close()

	runner := &recordingRunner{failUntil: 2}
	s.Bind(runner, runner)

	require.NoError(t, s.ScheduleStep(context.Background(), "job-1", 0))
	s.Drain()

	// Two failed attempts, then the third succeeds; nothing was abandoned.
	assert.Equal(t, []int{0, 0, 0}, runner.stepCalls())
	assert.Empty(t, runner.abandonments())
}

func TestScheduleStepFailsJobAfterRetryLimit(t *testing.T) {
	s := newScheduler(2)
	defer s.Close()

	runner := &recordingRunner{failUntil: 100}
	s.Bind(runner, runner)

	require.NoError(t, s.ScheduleStep(context.Background(), "job-1", 0))
	s.Drain()

	// The first attempt plus two retries, then the job is reported failed.
	assert.Len(t, runner.stepCalls(), 3)
	reasons := runner.abandonments()
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "could not be delivered after 3 attempts")
}

func TestScheduleStepFailsJobOnNonTransientError(t *testing.T) {
	s := newScheduler(5)
	defer s.Close()

	runner := &recordingRunner{failUntil: 100, stepErr: errors.New("schema mismatch")}
	s.Bind(runner, runner)

	require.NoError(t, s.ScheduleStep(context.Background(), "job-1", 0))
	s.Drain()

	// An error that does not look transient is not retried at all.
	assert.Len(t, runner.stepCalls(), 1)
	reasons := runner.abandonments()
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "schema mismatch")
}

// brokenStoreWriter rejects every batch, as an unreachable or misconfigured
// target store would.
type brokenStoreWriter struct{}

func (brokenStoreWriter) PutBatch(ctx context.Context, records []port.Record) error {
	return errors.New("store unavailable")
}

func (brokenStoreWriter) DeleteBatch(ctx context.Context, keys []string) error {
	return errors.New("store unavailable")
}

type staticSource struct {
	records []port.Record
}

func (s *staticSource) Open(ctx context.Context, q port.Query, token model.ResumeToken) (port.RecordCursor, error) {
	return &staticCursor{records: s.records}, nil
}

type staticCursor struct {
	records []port.Record
	pos     int
}

func (c *staticCursor) Next(ctx context.Context) (*port.Record, error) {
	if c.pos >= len(c.records) {
		return nil, port.ErrNoMoreRecords
	}
	rec := c.records[c.pos]
	c.pos++
	return &rec, nil
}

func (c *staticCursor) Token() (model.ResumeToken, error) {
	return model.ResumeToken(strconv.Itoa(c.pos)), nil
}

func (c *staticCursor) Close() error { return nil }

type passThroughHandler struct{}

func (passThroughHandler) Query() port.Query { return port.Query{Collection: "items"} }

func (passThroughHandler) HandleRecord(ctx context.Context, ops port.Ops, rec *port.Record) error {
	return ops.Put(ctx, *rec)
}

func (passThroughHandler) Finish(ctx context.Context, success bool, status *model.Status) {}

// A job whose steps keep failing must end up FAILED with a recorded reason,
// not parked in RUNNING with no further work scheduled.
func TestAbandonedJobReachesFailedState(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Riptide.Scheduler.MaxStepRetries = 1
	cfg.Riptide.Scheduler.RetryInitialInterval = 1
	cfg.Riptide.Job.DeleteCompletedJobDelay = config.CleanupNever

	s := scheduler.NewInProcessScheduler(cfg)
	defer s.Close()

	repo := memory.NewStatusRepository()
	source := &staticSource{records: []port.Record{{Key: "k-1", Fields: map[string]interface{}{"n": 1}}}}
	ctrl := job.NewController(cfg, repo, source, brokenStoreWriter{}, s, nil)
	s.Bind(ctrl, ctrl)

	jobID, err := ctrl.Start(context.Background(), "doomed-job", passThroughHandler{})
	require.NoError(t, err)
	s.Drain()

	status, err := repo.FindStatusByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateFailed, status.State)
	assert.Contains(t, status.FailureReason, "could not be delivered")
	assert.NotNil(t, status.FinishTime)
	assert.NotEmpty(t, status.LogEntries)
}

func TestScheduleCleanupRunsAtPastTimeImmediately(t *testing.T) {
	s := newScheduler(0)
	defer s.Close()

	runner := &recordingRunner{}
	s.Bind(runner, runner)

	require.NoError(t, s.ScheduleCleanup(context.Background(), "job-1", time.Now().Add(-time.Minute)))
	s.Drain()

	assert.Equal(t, []string{"job-1"}, runner.cleanedJobs())
}

func TestScheduleCleanupWaitsForTheDeadline(t *testing.T) {
	s := newScheduler(0)
	defer s.Close()

	runner := &recordingRunner{}
	s.Bind(runner, runner)

	start := time.Now()
	require.NoError(t, s.ScheduleCleanup(context.Background(), "job-1", start.Add(50*time.Millisecond)))
	s.Drain()

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, []string{"job-1"}, runner.cleanedJobs())
}

func TestCloseRejectsNewWorkAndCancelsPendingCleanup(t *testing.T) {
	s := newScheduler(0)
	runner := &recordingRunner{}
	s.Bind(runner, runner)

	// A cleanup far in the future must be released by Close, not executed.
	require.NoError(t, s.ScheduleCleanup(context.Background(), "job-1", time.Now().Add(time.Hour)))
	s.Close()

	assert.Empty(t, runner.cleanedJobs())

	err := s.ScheduleStep(context.Background(), "job-1", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}
