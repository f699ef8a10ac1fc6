package metrics

import (
	"go.uber.org/fx"

	metrics "github.com/tigerroll/riptide/pkg/bulk/core/metrics"
)

// Module is an Fx module that provides the PrometheusRecorder as the engine's
// MetricRecorder. Include it instead of the core metrics module.
var Module = fx.Options(
	fx.Provide(
		NewPrometheusRecorder,
		func(r *PrometheusRecorder) metrics.MetricRecorder { return r },
	),
)
