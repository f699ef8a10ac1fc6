// Package step implements the time-boxed processing unit of the bulk engine.
// One execution pulls records from a resumable sequence, invokes the user
// handler per record, batches writes, and stops at the configured wall-clock
// ceiling or when the sequence is exhausted.
package step

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tigerroll/riptide/pkg/bulk/core/config"
	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
	"github.com/tigerroll/riptide/pkg/bulk/core/metrics"
	"github.com/tigerroll/riptide/pkg/bulk/core/port"
	"github.com/tigerroll/riptide/pkg/bulk/engine/buffer"
	"github.com/tigerroll/riptide/pkg/bulk/engine/failure"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/exception"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/logger"
)

const moduleName = "step"

// ErrSourceOpen wraps failures to open the record sequence. Opening fails for
// configuration errors (a non-resumable query, an unknown collection), which
// are fatal for the whole job, not just the current step.
var ErrSourceOpen = errors.New("failed to open record source")

// Executor runs one bounded-duration unit of work for a job.
// It holds only the collaborators shared by all steps; per-step state (the
// batch buffer, the failure policy seed, the resume token) arrives in Input.
type Executor struct {
	source   port.RecordSource
	writer   port.BatchWriter
	cfg      config.JobConfig
	recorder metrics.MetricRecorder
}

// NewExecutor creates a step executor over the given source and writer.
func NewExecutor(source port.RecordSource, writer port.BatchWriter, cfg config.JobConfig, recorder metrics.MetricRecorder) *Executor {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &Executor{
		source:   source,
		writer:   writer,
		cfg:      cfg,
		recorder: recorder,
	}
}

// Input is the state one step execution starts from.
type Input struct {
	JobName   string
	StepIndex int
	// Token is the job's current resume token; zero opens the sequence at the start.
	Token   model.ResumeToken
	Handler port.Handler
	// Policy is the job's failure policy, seeded with failures from earlier steps.
	Policy failure.Policy
}

// Execute runs one step and reports its outcome.
//
// A returned error is a fatal step failure: buffered writes past the last
// successful flush are lost and the resume token must not be advanced. Errors
// wrapping ErrSourceOpen are configuration errors and fail the whole job;
// anything else is left to the continuation mechanism's retry policy.
func (e *Executor) Execute(ctx context.Context, in Input) (*model.StepResult, error) {
	cursor, err := e.source.Open(ctx, in.Handler.Query(), in.Token)
	if err != nil {
		return nil, exception.NewBulkError(moduleName, "cannot open record sequence", errors.Join(ErrSourceOpen, err), false)
	}
	defer cursor.Close()

	buf := buffer.NewBatchBuffer(e.writer, e.cfg.PutBatchSize, e.cfg.DeleteBatchSize, e.recorder, in.JobName)
	ops := &stepOps{buffer: buf, stepIndex: in.StepIndex}
	start := time.Now()
	deadline := start.Add(e.cfg.MaxExecutionDuration())

	var delta model.StepDelta

	for {
		if err := ctx.Err(); err != nil {
			return nil, exception.NewBulkError(moduleName, "step context cancelled", err, false)
		}

		rec, err := cursor.Next(ctx)
		if errors.Is(err, port.ErrNoMoreRecords) {
			if err := buf.Flush(ctx); err != nil {
				return nil, err
			}
			e.finalize(&delta, ops, buf)
			logger.Debugf("Step %d of job '%s' exhausted the sequence after %s.", in.StepIndex, in.JobName, time.Since(start))
			return &model.StepResult{Outcome: model.StepOutcomeDone, Delta: delta}, nil
		}
		if err != nil {
			return nil, exception.NewBulkError(moduleName, "failed to read next record", err, false)
		}

		ops.currentKey = rec.Key
		err = e.handleRecord(ctx, in.Handler, ops, rec)
		ops.currentKey = ""

		if err != nil {
			if exception.IsFatal(err) {
				// A buffered flush failed inside the handler's Put/Delete. The step
				// outcome is unknown to the handler; abort without advancing.
				return nil, err
			}

			logger.Errorf("Handler failed for record %q in job '%s': %v", rec.Key, in.JobName, err)
			delta.Failed++
			ops.appendError(rec.Key, err)
			e.recorder.RecordFailed(ctx, in.JobName, 1)

			if in.Policy.RecordFailure() {
				if ferr := buf.Flush(ctx); ferr != nil {
					return nil, ferr
				}
				e.finalize(&delta, ops, buf)
				reason := fmt.Sprintf("failure tolerance exceeded: %d failures, tolerance %d", in.Policy.FailureCount(), in.Policy.Tolerance())
				return &model.StepResult{Outcome: model.StepOutcomeAbort, Delta: delta, Reason: reason}, nil
			}
		} else {
			delta.Processed++
			e.recorder.RecordProcessed(ctx, in.JobName, 1)
		}

		// The deadline is checked at record granularity: the worst-case overrun
		// is bounded by one handler invocation.
		if time.Now().After(deadline) {
			if err := buf.Flush(ctx); err != nil {
				return nil, err
			}
			token, err := cursor.Token()
			if err != nil {
				return nil, exception.NewBulkError(moduleName, "failed to derive resume token", err, false)
			}
			e.finalize(&delta, ops, buf)
			logger.Debugf("Step %d of job '%s' hit the time ceiling after %s; continuing at a new token.", in.StepIndex, in.JobName, time.Since(start))
			return &model.StepResult{Outcome: model.StepOutcomeContinue, ResumeToken: token, Delta: delta}, nil
		}
	}
}

// handleRecord invokes the user handler, converting panics into record failures.
func (e *Executor) handleRecord(ctx context.Context, handler port.Handler, ops *stepOps, rec *port.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.HandleRecord(ctx, ops, rec)
}

// finalize folds the buffer counters and collected log entries into the delta.
func (e *Executor) finalize(delta *model.StepDelta, ops *stepOps, buf *buffer.BatchBuffer) {
	delta.Put, delta.Deleted = buf.Counts()
	delta.Logs = ops.logs
}

// stepOps is the port.Ops implementation handed to handlers for one step.
type stepOps struct {
	buffer     *buffer.BatchBuffer
	stepIndex  int
	currentKey string
	logs       []model.LogEntry
}

// Put enqueues records into the step's batch buffer.
func (o *stepOps) Put(ctx context.Context, records ...port.Record) error {
	return o.buffer.Put(ctx, records...)
}

// Delete enqueues keys into the step's batch buffer.
func (o *stepOps) Delete(ctx context.Context, keys ...string) error {
	return o.buffer.Delete(ctx, keys...)
}

// Log records a message on the job, tagged with the record being processed.
func (o *stepOps) Log(format string, args ...interface{}) {
	o.logs = append(o.logs, model.LogEntry{
		Timestamp: time.Now(),
		StepIndex: o.stepIndex,
		RecordKey: o.currentKey,
		Message:   fmt.Sprintf(format, args...),
	})
}

// appendError records a handler failure in the job log.
func (o *stepOps) appendError(key string, err error) {
	o.logs = append(o.logs, model.LogEntry{
		Timestamp: time.Now(),
		StepIndex: o.stepIndex,
		RecordKey: key,
		IsError:   true,
		Message:   err.Error(),
	})
}

var _ port.Ops = (*stepOps)(nil)
