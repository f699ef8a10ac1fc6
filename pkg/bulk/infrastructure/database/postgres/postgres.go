// Package postgres registers the PostgreSQL dialector with the database provider.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tigerroll/riptide/pkg/bulk/infrastructure/database"
)

func init() {
	database.RegisterDialector("postgres", func(cfg database.DatabaseConfig) (gorm.Dialector, error) {
		sslmode := cfg.Sslmode
		if sslmode == "" {
			sslmode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslmode)
		return postgres.Open(dsn), nil
	})
}
