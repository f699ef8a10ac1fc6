// Package job implements the job controller: the owner of the bulk job
// lifecycle state machine. It creates and persists the Status record, drives
// time-boxed steps through the continuation mechanism, applies step deltas,
// finalizes terminal jobs and schedules deferred cleanup of their records.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tigerroll/riptide/pkg/bulk/core/config"
	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
	"github.com/tigerroll/riptide/pkg/bulk/core/domain/repository"
	"github.com/tigerroll/riptide/pkg/bulk/core/metrics"
	"github.com/tigerroll/riptide/pkg/bulk/core/port"
	"github.com/tigerroll/riptide/pkg/bulk/engine/failure"
	"github.com/tigerroll/riptide/pkg/bulk/engine/step"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/exception"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/logger"
)

const moduleName = "controller"

// Controller owns the Status lifecycle of bulk jobs and drives their steps to
// completion. Exactly one step is in flight for a given job at any time; the
// serial chaining through the continuation mechanism enforces this, so the
// Status record needs no lock beyond the repository's atomic update.
type Controller struct {
	cfg      *config.Config
	repo     repository.StatusRepository
	source   port.RecordSource
	writer   port.BatchWriter
	cont     port.Continuation
	recorder metrics.MetricRecorder

	// handlers maps job ID to the registered handler. Continuation state is
	// exactly the Status entity; handlers are re-registered by the embedding
	// application, never serialized.
	handlers map[string]port.Handler
	mu       sync.RWMutex
}

// NewController creates a job controller.
func NewController(
	cfg *config.Config,
	repo repository.StatusRepository,
	source port.RecordSource,
	writer port.BatchWriter,
	cont port.Continuation,
	recorder metrics.MetricRecorder,
) *Controller {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &Controller{
		cfg:      cfg,
		repo:     repo,
		source:   source,
		writer:   writer,
		cont:     cont,
		recorder: recorder,
		handlers: make(map[string]port.Handler),
	}
}

// Start creates the Status record for a new job and schedules its first step.
// It returns the job ID immediately; execution happens asynchronously through
// the continuation mechanism, and outcomes are reported only through the
// Status record and the handler's Finish callback.
func (c *Controller) Start(ctx context.Context, jobName string, handler port.Handler) (string, error) {
	status := model.NewStatus(jobName)
	if err := c.repo.SaveStatus(ctx, status); err != nil {
		return "", exception.NewBulkError(moduleName, "failed to create job status record", err, false)
	}

	c.mu.Lock()
	c.handlers[status.ID] = handler
	c.mu.Unlock()

	if err := c.cont.ScheduleStep(ctx, status.ID, 0); err != nil {
		return "", exception.NewBulkError(moduleName, "failed to schedule the first step", err, false)
	}

	logger.Infof("Job '%s' (%s) started.", jobName, status.ID)
	return status.ID, nil
}

// RunStep executes one step of the given job. It is invoked by the
// continuation mechanism, once per step, with at-least-once semantics: a
// returned error leaves the Status untouched so the same step can be retried.
func (c *Controller) RunStep(ctx context.Context, jobID string, stepIndex int) error {
	status, err := c.repo.FindStatusByID(ctx, jobID)
	if errors.Is(err, repository.ErrStatusNotFound) {
		logger.Errorf("Job status record %s not found.", jobID)
		return nil
	}
	if err != nil {
		return exception.NewBulkError(moduleName, "failed to load job status", err, false)
	}

	if !status.State.IsActive() {
		logger.Warnf("Terminating cancelled or finished job %s (state %s).", jobID, status.State)
		return nil
	}

	if status.State == model.JobStatePending {
		if err := status.MarkRunning(); err != nil {
			return exception.NewBulkError(moduleName, "failed to start job", err, false)
		}
		if err := c.repo.UpdateStatus(ctx, status); err != nil {
			return exception.NewBulkError(moduleName, "failed to persist RUNNING state", err, false)
		}
		c.recorder.RecordJobStart(ctx, status)
	}

	handler := c.handlerFor(jobID)
	if handler == nil {
		// No handler registered in this process for the job; nothing can run it.
		return c.failJob(ctx, status, fmt.Sprintf("no handler registered for job %s", jobID))
	}

	policy := failure.NewDefaultPolicyFactory().Create(c.cfg.Riptide.Job.MaxFailures, status.NumFailed)
	executor := step.NewExecutor(c.source, c.writer, c.cfg.Riptide.Job, c.recorder)

	stepStart := time.Now()
	result, err := executor.Execute(ctx, step.Input{
		JobName:   status.JobName,
		StepIndex: stepIndex,
		Token:     status.ResumeToken,
		Handler:   handler,
		Policy:    policy,
	})
	if err != nil {
		if errors.Is(err, step.ErrSourceOpen) {
			// Configuration error: the query cannot be opened resumably. Fatal for
			// the job, not worth retrying the step.
			return c.failJob(ctx, status, err.Error())
		}
		// Step-level failure (flush error, repository error). The resume token
		// was not advanced; the continuation mechanism's retry policy governs
		// re-invocation of this same step.
		return err
	}
	c.recorder.RecordStepEnd(ctx, status.JobName, result, time.Since(stepStart))

	// Reload the authoritative state before persisting the delta: an external
	// Cancel may have flipped the job to ABORTED while the step was in flight,
	// and ABORTED must never be overwritten with a continuation.
	fresh, err := c.repo.FindStatusByID(ctx, jobID)
	if err != nil {
		return exception.NewBulkError(moduleName, "failed to reload job status", err, false)
	}
	fresh.ApplyDelta(result.Delta)

	if fresh.State == model.JobStateAborted {
		logger.Warnf("Job %s was cancelled during step %d; recording the step delta and stopping.", jobID, stepIndex)
		if err := c.repo.UpdateStatus(ctx, fresh); err != nil {
			return exception.NewBulkError(moduleName, "failed to persist status of cancelled job", err, false)
		}
		return nil
	}

	switch result.Outcome {
	case model.StepOutcomeContinue:
		fresh.ResumeToken = result.ResumeToken
		if err := c.repo.UpdateStatus(ctx, fresh); err != nil {
			return exception.NewBulkError(moduleName, "failed to persist step progress", err, false)
		}
		if err := c.cont.ScheduleStep(ctx, jobID, stepIndex+1); err != nil {
			return exception.NewBulkError(moduleName, "failed to schedule the next step", err, false)
		}
		return nil

	case model.StepOutcomeDone:
		if err := fresh.MarkCompleted(); err != nil {
			return exception.NewBulkError(moduleName, "failed to complete job", err, false)
		}
		return c.finalizeJob(ctx, fresh, handler, true)

	case model.StepOutcomeAbort:
		if err := fresh.MarkFailed(result.Reason); err != nil {
			return exception.NewBulkError(moduleName, "failed to fail job", err, false)
		}
		return c.finalizeJob(ctx, fresh, handler, false)

	default:
		return exception.NewBulkErrorf(moduleName, "unknown step outcome %q", result.Outcome)
	}
}

// Cancel marks a PENDING or RUNNING job as ABORTED, preventing further steps
// from being scheduled. A step already in flight finishes its current records
// but observes the ABORTED state before scheduling a continuation.
func (c *Controller) Cancel(ctx context.Context, jobID string) error {
	status, err := c.repo.FindStatusByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !status.State.IsActive() {
		return fmt.Errorf("job %s is not cancellable in state %s", jobID, status.State)
	}
	if err := status.MarkAborted(); err != nil {
		return err
	}
	status.AppendLog(int(status.NumSteps), "job cancelled")
	if err := c.repo.UpdateStatus(ctx, status); err != nil {
		return exception.NewBulkError(moduleName, "failed to persist ABORTED state", err, false)
	}
	c.recorder.RecordJobEnd(ctx, status)
	c.unregister(jobID)
	logger.Infof("Job %s cancelled.", jobID)
	return nil
}

// FailJob marks an active job FAILED with the given reason. The continuation
// mechanism invokes it when a step can no longer be delivered, so the
// abandonment lands in the Status record instead of only the process log. A
// job already in a terminal state, or one unknown to the repository, is left
// untouched.
func (c *Controller) FailJob(ctx context.Context, jobID string, reason string) error {
	status, err := c.repo.FindStatusByID(ctx, jobID)
	if errors.Is(err, repository.ErrStatusNotFound) {
		return nil
	}
	if err != nil {
		return exception.NewBulkError(moduleName, "failed to load job status", err, false)
	}
	if !status.State.IsActive() {
		return nil
	}
	// A job abandoned before its first step ran is still PENDING; the FAILED
	// transition is only legal from RUNNING.
	if status.State == model.JobStatePending {
		if err := status.MarkRunning(); err != nil {
			return exception.NewBulkError(moduleName, "failed to start job", err, false)
		}
	}
	return c.failJob(ctx, status, reason)
}

// Delete removes the Status record of a terminal job immediately.
func (c *Controller) Delete(ctx context.Context, jobID string) error {
	status, err := c.repo.FindStatusByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !status.State.IsTerminal() {
		return fmt.Errorf("job %s is still %s; cancel it before deleting", jobID, status.State)
	}
	return c.repo.DeleteStatus(ctx, jobID)
}

// RunCleanup deletes the records of a terminal job. It is invoked by the
// continuation mechanism at the scheduled cleanup time.
func (c *Controller) RunCleanup(ctx context.Context, jobID string) error {
	status, err := c.repo.FindStatusByID(ctx, jobID)
	if errors.Is(err, repository.ErrStatusNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !status.State.IsTerminal() {
		logger.Warnf("Skipping cleanup of job %s: state %s is not terminal.", jobID, status.State)
		return nil
	}
	logger.Infof("Deleting records of job %s.", jobID)
	return c.repo.DeleteStatus(ctx, jobID)
}

// failJob moves a job to FAILED for a fatal configuration error and finalizes it.
func (c *Controller) failJob(ctx context.Context, status *model.Status, reason string) error {
	logger.Errorf("Job %s failed: %s", status.ID, reason)
	if err := status.MarkFailed(reason); err != nil {
		return exception.NewBulkError(moduleName, "failed to fail job", err, false)
	}
	status.AppendLog(int(status.NumSteps), reason)
	return c.finalizeJob(ctx, status, c.handlerFor(status.ID), false)
}

// finalizeJob persists the terminal status, schedules record cleanup per the
// configured delay, invokes the handler's Finish callback and releases the
// handler registration.
func (c *Controller) finalizeJob(ctx context.Context, status *model.Status, handler port.Handler, success bool) error {
	delay, cleanupEnabled := c.cfg.Riptide.Job.CompletedCleanupDelay()
	if !success && !c.cfg.Riptide.Job.DeleteFailedJobs {
		cleanupEnabled = false
	}
	if cleanupEnabled {
		at := time.Now().Add(delay)
		status.CleanupAt = &at
	}

	if err := c.repo.UpdateStatus(ctx, status); err != nil {
		return exception.NewBulkError(moduleName, "failed to persist terminal job status", err, false)
	}
	c.recorder.RecordJobEnd(ctx, status)

	if cleanupEnabled {
		if err := c.cont.ScheduleCleanup(ctx, status.ID, *status.CleanupAt); err != nil {
			logger.Errorf("Failed to schedule cleanup of job %s: %v", status.ID, err)
		}
	}

	logger.Infof("Job '%s' (%s) finished in state %s: processed %d records in %d steps, putting %d and deleting %d (%d failures).",
		status.JobName, status.ID, status.State, status.NumProcessed, status.NumSteps, status.NumPut, status.NumDeleted, status.NumFailed)

	if handler != nil {
		handler.Finish(ctx, success, status)
	}
	c.unregister(status.ID)
	return nil
}

// handlerFor returns the handler registered for a job, or nil.
func (c *Controller) handlerFor(jobID string) port.Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlers[jobID]
}

// unregister releases the handler registration of a finished job.
func (c *Controller) unregister(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, jobID)
}

var (
	_ port.StepRunner    = (*Controller)(nil)
	_ port.CleanupRunner = (*Controller)(nil)
)
