package metrics

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides metrics-related components.
// By default it provides NoOpMetricRecorder; concrete recorders from the
// infrastructure layer take its place when their module is included instead.
var Module = fx.Options(
	fx.Provide(NewNoOpMetricRecorder),
)
