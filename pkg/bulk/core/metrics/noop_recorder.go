package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

// RecordJobStart does nothing.
func (r *NoOpMetricRecorder) RecordJobStart(ctx context.Context, status *model.Status) {}

// RecordJobEnd does nothing.
func (r *NoOpMetricRecorder) RecordJobEnd(ctx context.Context, status *model.Status) {}

// RecordStepEnd does nothing.
func (r *NoOpMetricRecorder) RecordStepEnd(ctx context.Context, jobName string, result *model.StepResult, duration time.Duration) {
}

// RecordProcessed does nothing.
func (r *NoOpMetricRecorder) RecordProcessed(ctx context.Context, jobName string, n int64) {}

// RecordFailed does nothing.
func (r *NoOpMetricRecorder) RecordFailed(ctx context.Context, jobName string, n int64) {}

// RecordFlush does nothing.
func (r *NoOpMetricRecorder) RecordFlush(ctx context.Context, jobName string, kind string, size int) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)
