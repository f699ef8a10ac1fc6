package database

import (
	"fmt"
	"strings"
	"time"

	gorm_logger "gorm.io/gorm/logger"

	"github.com/tigerroll/riptide/pkg/bulk/support/util/logger"
)

// NewGormLogger creates a gorm logger that forwards output to the riptide
// logger, mapped from the configured log level.
func NewGormLogger(level string) gorm_logger.Interface {
	var gormLevel gorm_logger.LogLevel
	switch strings.ToUpper(level) {
	case "DEBUG":
		gormLevel = gorm_logger.Info
	case "INFO":
		gormLevel = gorm_logger.Warn
	case "WARN":
		gormLevel = gorm_logger.Warn
	case "ERROR":
		gormLevel = gorm_logger.Error
	default:
		gormLevel = gorm_logger.Silent
	}

	return gorm_logger.New(
		&gormWriter{},
		gorm_logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// gormWriter redirects GORM log output to the riptide logger.
type gormWriter struct{}

// Printf implements the gorm logger Writer interface. SQL statement traces
// are logged at DEBUG, everything else at INFO.
func (w *gormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if strings.Contains(msg, "SELECT") || strings.Contains(msg, "INSERT") || strings.Contains(msg, "UPDATE") || strings.Contains(msg, "DELETE") {
		logger.Debugf("[GORM] %s", msg)
	} else {
		logger.Infof("[GORM] %s", msg)
	}
}
