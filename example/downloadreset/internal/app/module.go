// Package app wires the download reset example's record source and batch
// writer over the workload database connection.
package app

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tigerroll/riptide/pkg/bulk/core/config"
	"github.com/tigerroll/riptide/pkg/bulk/core/port"
	"github.com/tigerroll/riptide/pkg/bulk/infrastructure/database"
	"github.com/tigerroll/riptide/pkg/bulk/infrastructure/source/gormsource"
)

// WorkloadDBName is the configuration key of the connection holding the
// downloads table.
const WorkloadDBName = "workload"

// DownloadsCollection is the table the example job iterates and rewrites.
const DownloadsCollection = "downloads"

// Module provides the GORM record source and batch writer of the example.
var Module = fx.Options(
	fx.Provide(
		func(p *database.Provider) (*gorm.DB, error) {
			return p.Open(WorkloadDBName)
		},
		func(db *gorm.DB, cfg *config.Config) port.RecordSource {
			return gormsource.NewSource(db, gormsource.WithFetchSize(cfg.Riptide.Job.SourceFetchSize))
		},
		func(db *gorm.DB) port.BatchWriter {
			return gormsource.NewWriter(db, DownloadsCollection)
		},
	),
)
