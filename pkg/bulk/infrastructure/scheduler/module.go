package scheduler

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/riptide/pkg/bulk/core/port"
)

// Module provides the in-process scheduler as the port.Continuation
// implementation and binds it to the step and cleanup runners once both
// exist in the graph.
var Module = fx.Options(
	fx.Provide(
		NewInProcessScheduler,
		func(s *InProcessScheduler) port.Continuation { return s },
	),
	fx.Invoke(func(lc fx.Lifecycle, s *InProcessScheduler, runner port.StepRunner, cleaner port.CleanupRunner) {
		s.Bind(runner, cleaner)
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				s.Close()
				return nil
			},
		})
	}),
)
