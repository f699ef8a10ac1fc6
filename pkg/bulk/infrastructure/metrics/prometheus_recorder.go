// Package metrics provides the Prometheus implementation of the engine's
// metric recorder.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
	metrics "github.com/tigerroll/riptide/pkg/bulk/core/metrics"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Job Metrics
	jobStatusCounter   *prometheus.CounterVec
	jobDurationSeconds *prometheus.HistogramVec

	// Step Metrics
	stepDurationSeconds *prometheus.HistogramVec
	stepOutcomeCounter  *prometheus.CounterVec

	// Record Metrics
	recordsProcessed *prometheus.CounterVec
	recordsFailed    *prometheus.CounterVec
	flushBatchSize   *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulk_job_status_total",
			Help: "Total number of bulk job state transitions by final status.",
		}, []string{"job_name", "status"}),
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bulk_job_duration_seconds",
			Help:    "Wall-clock duration of bulk jobs from creation to finish.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"job_name", "status"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bulk_step_duration_seconds",
			Help:    "Duration of bulk job step executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "outcome"}),
		stepOutcomeCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulk_step_outcome_total",
			Help: "Total number of bulk job steps by outcome.",
		}, []string{"job_name", "outcome"}),
		recordsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulk_records_processed_total",
			Help: "Total number of records successfully handled.",
		}, []string{"job_name"}),
		recordsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulk_records_failed_total",
			Help: "Total number of counted record handler failures.",
		}, []string{"job_name"}),
		flushBatchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bulk_flush_batch_size",
			Help:    "Size of flushed write and delete batches.",
			Buckets: []float64{1, 5, 10, 20, 50, 100, 200},
		}, []string{"job_name", "kind"}),
	}

	registry.MustRegister(
		r.jobStatusCounter,
		r.jobDurationSeconds,
		r.stepDurationSeconds,
		r.stepOutcomeCounter,
		r.recordsProcessed,
		r.recordsFailed,
		r.flushBatchSize,
	)
	return r
}

// Registry returns the underlying Prometheus registry, for exposition.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordJobStart records that a job entered the RUNNING state.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, status *model.Status) {
	r.jobStatusCounter.WithLabelValues(status.JobName, status.State.String()).Inc()
}

// RecordJobEnd records that a job reached a terminal state.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, status *model.Status) {
	r.jobStatusCounter.WithLabelValues(status.JobName, status.State.String()).Inc()
	r.jobDurationSeconds.WithLabelValues(status.JobName, status.State.String()).Observe(status.ElapsedSeconds())
}

// RecordStepEnd records the outcome and wall-clock duration of one step.
func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, jobName string, result *model.StepResult, duration time.Duration) {
	outcome := result.Outcome.String()
	r.stepOutcomeCounter.WithLabelValues(jobName, outcome).Inc()
	r.stepDurationSeconds.WithLabelValues(jobName, outcome).Observe(duration.Seconds())
}

// RecordProcessed records successfully handled records.
func (r *PrometheusRecorder) RecordProcessed(ctx context.Context, jobName string, n int64) {
	r.recordsProcessed.WithLabelValues(jobName).Add(float64(n))
}

// RecordFailed records counted handler failures.
func (r *PrometheusRecorder) RecordFailed(ctx context.Context, jobName string, n int64) {
	r.recordsFailed.WithLabelValues(jobName).Add(float64(n))
}

// RecordFlush records one flushed batch of the given kind and size.
func (r *PrometheusRecorder) RecordFlush(ctx context.Context, jobName string, kind string, size int) {
	r.flushBatchSize.WithLabelValues(jobName, kind).Observe(float64(size))
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
