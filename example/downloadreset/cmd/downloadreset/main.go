package main

import (
	"context"
	"errors"
	"time"

	_ "embed"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tigerroll/riptide/example/downloadreset/internal/app"
	"github.com/tigerroll/riptide/example/downloadreset/internal/handler"
	"github.com/tigerroll/riptide/pkg/bulk/core/config"
	"github.com/tigerroll/riptide/pkg/bulk/core/domain/repository"
	"github.com/tigerroll/riptide/pkg/bulk/infrastructure/database"
	_ "github.com/tigerroll/riptide/pkg/bulk/infrastructure/database/sqlite"
	inframetrics "github.com/tigerroll/riptide/pkg/bulk/infrastructure/metrics"
	sqlrepo "github.com/tigerroll/riptide/pkg/bulk/infrastructure/repository/sql"
	"github.com/tigerroll/riptide/pkg/bulk/infrastructure/scheduler"
	"github.com/tigerroll/riptide/pkg/bulk/job"
	"github.com/tigerroll/riptide/pkg/bulk/monitor"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/logger"
)

// embeddedConfig holds the application YAML configuration.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

const seedRecords = 250

func main() {
	fx.New(
		fx.Supply(config.EmbeddedConfig(embeddedConfig)),
		config.Module,
		database.Module,
		sqlrepo.Module,
		scheduler.Module,
		inframetrics.Module,
		job.Module,
		monitor.Module,
		app.Module,
		fx.Invoke(runJob),
	).Run()
}

// runJob seeds the workload table on startup, launches the reset job and
// shuts the application down once the job reaches a terminal state.
func runJob(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	controller *job.Controller,
	repo repository.StatusRepository,
	db *gorm.DB,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := app.Seed(db, seedRecords); err != nil {
				return err
			}

			jobID, err := controller.Start(ctx, "download-count-reset", handler.NewDownloadCountResetter())
			if err != nil {
				return err
			}

			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()
				waitForJob(jobID, repo)
			}()
			return nil
		},
	})
}

// waitForJob polls the status store until the job is terminal and logs a
// final summary.
func waitForJob(jobID string, repo repository.StatusRepository) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		status, err := repo.FindStatusByID(context.Background(), jobID)
		if err != nil {
			if errors.Is(err, repository.ErrStatusNotFound) {
				logger.Warnf("Job %s was cleaned up before its outcome could be read.", jobID)
				return
			}
			logger.Errorf("Failed to read job %s status: %v", jobID, err)
			return
		}
		if !status.State.IsTerminal() {
			continue
		}

		logger.Infof("Job %s finished: state=%s processed=%d failed=%d put=%d steps=%d runtime=%s",
			jobID, status.State, status.NumProcessed, status.NumFailed,
			status.NumPut, status.NumSteps, status.TotalRuntime())
		return
	}
}
