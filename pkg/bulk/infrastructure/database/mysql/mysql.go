// Package mysql registers the MySQL dialector with the database provider.
package mysql

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/riptide/pkg/bulk/infrastructure/database"
)

func init() {
	database.RegisterDialector("mysql", func(cfg database.DatabaseConfig) (gorm.Dialector, error) {
		var authPart string
		if cfg.User != "" {
			authPart = cfg.User
			if cfg.Password != "" {
				authPart = fmt.Sprintf("%s:%s", cfg.User, cfg.Password)
			}
			authPart += "@"
		}
		dsn := fmt.Sprintf("%stcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			authPart, cfg.Host, cfg.Port, cfg.Database)
		return mysql.Open(dsn), nil
	})
}
