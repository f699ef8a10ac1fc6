// Package job wires the job controller into the application's dependency
// graph using Fx.
package job

import (
	"go.uber.org/fx"

	"github.com/tigerroll/riptide/pkg/bulk/core/port"
)

// Module is an Fx module that provides the job Controller, also exposed as the
// StepRunner and CleanupRunner the continuation mechanism invokes.
var Module = fx.Options(
	fx.Provide(
		NewController,
		func(c *Controller) port.StepRunner { return c },
		func(c *Controller) port.CleanupRunner { return c },
	),
)
