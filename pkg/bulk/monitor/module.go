package monitor

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/tigerroll/riptide/pkg/bulk/core/config"
	"github.com/tigerroll/riptide/pkg/bulk/core/domain/repository"
	"github.com/tigerroll/riptide/pkg/bulk/job"
	"github.com/tigerroll/riptide/pkg/bulk/infrastructure/metrics"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/logger"
)

// ServerParams collects the monitor server dependencies. The Prometheus
// recorder is optional; without it no metrics endpoint is exposed.
type ServerParams struct {
	fx.In

	Config     *config.Config
	Repo       repository.StatusRepository
	Controller *job.Controller
	Recorder   *metrics.PrometheusRecorder `optional:"true"`
}

// Module provides the monitor server and starts it when enabled.
var Module = fx.Options(
	fx.Provide(func(p ServerParams) *Server {
		var registry *prometheus.Registry
		if p.Recorder != nil {
			registry = p.Recorder.Registry()
		}
		return NewServer(p.Config, p.Repo, p.Controller, registry)
	}),
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, s *Server) {
		if !cfg.Riptide.Monitor.Enabled {
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					if err := s.Listen(); err != nil {
						logger.Errorf("Monitor API stopped: %v", err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return s.Shutdown(ctx)
			},
		})
	}),
)
