// Package monitor exposes a small HTTP API over the job status store:
// listing jobs, inspecting one job with its log and rates, cancelling a
// running job and deleting a finished one.
package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/tigerroll/riptide/pkg/bulk/core/config"
	"github.com/tigerroll/riptide/pkg/bulk/core/domain/repository"
	"github.com/tigerroll/riptide/pkg/bulk/job"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/logger"
)

// Server serves the monitoring API.
type Server struct {
	app        *fiber.App
	cfg        config.MonitorConfig
	repo       repository.StatusRepository
	controller *job.Controller
}

// NewServer builds the monitoring server. registry may be nil, in which case
// no metrics endpoint is exposed.
func NewServer(cfg *config.Config, repo repository.StatusRepository, controller *job.Controller, registry *prometheus.Registry) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		app:        app,
		cfg:        cfg.Riptide.Monitor,
		repo:       repo,
		controller: controller,
	}

	// Request logging middleware.
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		logger.Debugf("monitor: %s %s -> %d (%s) request_id=%s",
			c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start), reqID)
		return err
	})

	app.Get("/v1/jobs", s.listJobsHandler)
	app.Get("/v1/jobs/:id", s.jobDetailHandler)
	app.Post("/v1/jobs/:id/cancel", s.cancelJobHandler)
	app.Delete("/v1/jobs/:id", s.deleteJobHandler)

	if registry != nil {
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		app.Get("/metrics", func(c *fiber.Ctx) error {
			metricsHandler(c.Context())
			return nil
		})
	}

	return s
}

// Listen starts serving on the configured address. It blocks until Shutdown.
func (s *Server) Listen() error {
	logger.Infof("Monitor API listening on %s", s.cfg.Address)
	if err := s.app.Listen(s.cfg.Address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App returns the underlying fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
