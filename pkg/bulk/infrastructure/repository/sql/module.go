package sql

import (
	"go.uber.org/fx"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/repository"
	"github.com/tigerroll/riptide/pkg/bulk/infrastructure/database"
)

// StatusDBName is the configuration key of the database connection that backs
// the job status store.
const StatusDBName = "status"

// Module provides the SQL-backed StatusRepository. The status store schema is
// migrated on construction.
var Module = fx.Options(
	fx.Provide(func(p *database.Provider) (repository.StatusRepository, error) {
		db, err := p.Open(StatusDBName)
		if err != nil {
			return nil, err
		}
		if err := RunMigrations(db); err != nil {
			return nil, err
		}
		return NewSQLStatusRepository(db), nil
	}),
)
