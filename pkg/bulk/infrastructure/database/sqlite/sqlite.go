// Package sqlite registers the SQLite dialector with the database provider.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/riptide/pkg/bulk/infrastructure/database"
)

func init() {
	database.RegisterDialector("sqlite", func(cfg database.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("sqlite database path cannot be empty")
		}
		// The SQLite dialector expects the file path directly.
		return sqlite.Open(cfg.Database), nil
	})
}
