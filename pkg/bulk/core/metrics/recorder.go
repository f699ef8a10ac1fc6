// Package metrics defines the abstract observability interfaces of the bulk
// engine. Concrete recorders live under pkg/bulk/infrastructure/metrics.
package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
)

// MetricRecorder records engine-level metrics for jobs and steps.
// Implementations must be safe for use from the single in-flight step of any
// number of jobs.
type MetricRecorder interface {
	// RecordJobStart records that a job entered the RUNNING state.
	RecordJobStart(ctx context.Context, status *model.Status)
	// RecordJobEnd records that a job reached a terminal state.
	RecordJobEnd(ctx context.Context, status *model.Status)
	// RecordStepEnd records the outcome and wall-clock duration of one step.
	RecordStepEnd(ctx context.Context, jobName string, result *model.StepResult, duration time.Duration)
	// RecordProcessed records successfully handled records.
	RecordProcessed(ctx context.Context, jobName string, n int64)
	// RecordFailed records counted handler failures.
	RecordFailed(ctx context.Context, jobName string, n int64)
	// RecordFlush records one flushed batch of the given kind ("put" or
	// "delete") and size.
	RecordFlush(ctx context.Context, jobName string, kind string, size int)
}
