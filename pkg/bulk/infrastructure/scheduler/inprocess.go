// Package scheduler provides the in-process implementation of the continuation
// mechanism: deferred, at-least-once re-invocation of job steps and cleanup
// outside the scheduling caller's execution context.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tigerroll/riptide/pkg/bulk/core/config"
	"github.com/tigerroll/riptide/pkg/bulk/core/port"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/exception"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/logger"
)

// InProcessScheduler runs scheduled work on goroutines within the current
// process. Steps of one job are never run concurrently: a step is only
// scheduled after the previous step's outcome was applied, so the serial
// chaining contract holds by construction.
//
// A failed step invocation is retried with linear backoff up to the configured
// limit; this is the at-least-once delivery the engine's idempotency story
// leans on.
type InProcessScheduler struct {
	cfg     config.SchedulerConfig
	runner  port.StepRunner
	cleaner port.CleanupRunner

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed chan struct{}
	once   sync.Once
}

// NewInProcessScheduler creates an unbound scheduler. Bind must be called
// before any work is scheduled; Fx wiring does this in the module.
func NewInProcessScheduler(cfg *config.Config) *InProcessScheduler {
	return &InProcessScheduler{
		cfg:    cfg.Riptide.Scheduler,
		closed: make(chan struct{}),
	}
}

// Bind attaches the step and cleanup runners. It breaks the construction cycle
// between the controller (which needs the continuation) and the scheduler
// (which needs the controller).
func (s *InProcessScheduler) Bind(runner port.StepRunner, cleaner port.CleanupRunner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runner = runner
	s.cleaner = cleaner
}

// ScheduleStep schedules the given step for eventual execution on a new
// goroutine. The step runs under a fresh context: invocation happens outside
// the caller's own execution context per the continuation contract.
func (s *InProcessScheduler) ScheduleStep(ctx context.Context, jobID string, stepIndex int) error {
	runner := s.boundRunner()
	if runner == nil {
		return fmt.Errorf("scheduler is not bound to a step runner")
	}
	select {
	case <-s.closed:
		return fmt.Errorf("scheduler is closed")
	default:
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runWithRetry(jobID, stepIndex, runner)
	}()
	return nil
}

// ScheduleCleanup schedules deletion of the job's records at the given time.
func (s *InProcessScheduler) ScheduleCleanup(ctx context.Context, jobID string, at time.Time) error {
	s.mu.RLock()
	cleaner := s.cleaner
	s.mu.RUnlock()
	if cleaner == nil {
		return fmt.Errorf("scheduler is not bound to a cleanup runner")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		delay := time.Until(at)
		if delay > 0 {
			select {
			case <-s.closed:
				return
			case <-time.After(delay):
			}
		}
		if err := cleaner.RunCleanup(context.Background(), jobID); err != nil {
			logger.Errorf("Cleanup of job %s failed: %v", jobID, err)
		}
	}()
	return nil
}

// runWithRetry invokes one step, retrying failed invocations with linear
// backoff up to the configured limit. Only errors that look transient are
// retried; any other failure, and retry exhaustion, abandon the step and move
// the job to FAILED through the runner.
func (s *InProcessScheduler) runWithRetry(jobID string, stepIndex int, runner port.StepRunner) {
	backoff := s.cfg.RetryBackoff()
	for attempt := 0; ; attempt++ {
		err := runner.RunStep(context.Background(), jobID, stepIndex)
		if err == nil {
			return
		}
		if !exception.IsTemporary(err) {
			logger.Errorf("Step %d of job %s failed with a non-transient error, giving up: %v", stepIndex, jobID, err)
			s.abandonStep(jobID, stepIndex, attempt+1, err, runner)
			return
		}
		if attempt >= s.cfg.MaxStepRetries {
			logger.Errorf("Step %d of job %s failed after %d attempts, giving up: %v", stepIndex, jobID, attempt+1, err)
			s.abandonStep(jobID, stepIndex, attempt+1, err, runner)
			return
		}
		logger.Warnf("Step %d of job %s failed (attempt %d/%d), retrying: %v", stepIndex, jobID, attempt+1, s.cfg.MaxStepRetries+1, err)
		select {
		case <-s.closed:
			return
		case <-time.After(backoff * time.Duration(attempt+1)):
		}
	}
}

// abandonStep reports an undeliverable step back to the runner so the job
// reaches a terminal state instead of staying RUNNING with no further steps.
func (s *InProcessScheduler) abandonStep(jobID string, stepIndex, attempts int, cause error, runner port.StepRunner) {
	reason := fmt.Sprintf("step %d could not be delivered after %d attempts: %v", stepIndex, attempts, cause)
	if err := runner.FailJob(context.Background(), jobID, reason); err != nil {
		logger.Errorf("Failed to record abandonment of job %s: %v", jobID, err)
	}
}

// boundRunner returns the bound step runner, or nil.
func (s *InProcessScheduler) boundRunner() port.StepRunner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runner
}

// Drain blocks until all currently scheduled work has finished.
// Intended for tests and graceful shutdown.
func (s *InProcessScheduler) Drain() {
	s.wg.Wait()
}

// Close stops accepting new work, wakes pending waits, and drains.
func (s *InProcessScheduler) Close() {
	s.once.Do(func() {
		close(s.closed)
	})
	s.wg.Wait()
}

var _ port.Continuation = (*InProcessScheduler)(nil)
