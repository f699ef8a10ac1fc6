package sql

import (
	"time"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
)

// StatusEntity is a schema model used for persistence.
type StatusEntity struct {
	ID            string `gorm:"primaryKey"`
	JobName       string
	State         string
	ResumeToken   string
	NumProcessed  int64
	NumFailed     int64
	NumPut        int64
	NumDeleted    int64
	NumSteps      int64
	FailureReason string
	CreateTime    time.Time
	LastUpdated   time.Time
	FinishTime    *time.Time
	CleanupAt     *time.Time
	LogEntries    model.LogEntries `gorm:"type:text"`
	Version       int
}

func (StatusEntity) TableName() string {
	return "riptide_job_status"
}
