// Package sql_test provides unit tests for the SQL status repository using a
// mocked database connection.
package sql_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
	"github.com/tigerroll/riptide/pkg/bulk/core/domain/repository"
	sqlrepo "github.com/tigerroll/riptide/pkg/bulk/infrastructure/repository/sql"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/exception"
)

// setupGormStatusMock sets up the GORM mock environment for status repository tests.
func setupGormStatusMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, repository.StatusRepository) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	t.Cleanup(func() {
		mock.ExpectClose()
		sqlDB.Close()
	})

	return gormDB, mock, sqlrepo.NewSQLStatusRepository(gormDB)
}

func statusRows(status *model.Status) *sqlmock.Rows {
	logJSON, _ := status.LogEntries.Value()
	if logJSON == nil {
		logJSON = "[]"
	}
	return sqlmock.NewRows([]string{
		"id", "job_name", "state", "resume_token",
		"num_processed", "num_failed", "num_put", "num_deleted", "num_steps",
		"failure_reason", "create_time", "last_updated", "finish_time", "cleanup_at",
		"log_entries", "version",
	}).AddRow(
		status.ID, status.JobName, string(status.State), string(status.ResumeToken),
		status.NumProcessed, status.NumFailed, status.NumPut, status.NumDeleted, status.NumSteps,
		status.FailureReason, status.CreateTime, status.LastUpdated, status.FinishTime, status.CleanupAt,
		logJSON, status.Version,
	)
}

func TestSQLStatusRepository_SaveStatus(t *testing.T) {
	_, mock, repo := setupGormStatusMock(t)

	status := model.NewStatus("sql-save")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `riptide_job_status`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.SaveStatus(context.Background(), status)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStatusRepository_UpdateStatus(t *testing.T) {
	_, mock, repo := setupGormStatusMock(t)

	status := model.NewStatus("sql-update")
	status.Version = 3

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `riptide_job_status` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), status)
	assert.NoError(t, err)
	assert.Equal(t, 4, status.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStatusRepository_UpdateStatus_OptimisticLocking(t *testing.T) {
	_, mock, repo := setupGormStatusMock(t)

	status := model.NewStatus("sql-update-stale")
	status.Version = 3

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `riptide_job_status` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), status)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrOptimisticLockingFailure))
	// The in-memory version is rolled back so the caller can reload and retry.
	assert.Equal(t, 3, status.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStatusRepository_FindStatusByID(t *testing.T) {
	_, mock, repo := setupGormStatusMock(t)

	status := model.NewStatus("sql-find")
	status.NumProcessed = 42
	status.AppendLog(0, "first step done")

	mock.ExpectQuery("SELECT \\* FROM `riptide_job_status` WHERE id = .+ LIMIT .+").
		WithArgs(status.ID, 1).
		WillReturnRows(statusRows(status))

	loaded, err := repo.FindStatusByID(context.Background(), status.ID)
	require.NoError(t, err)
	assert.Equal(t, status.ID, loaded.ID)
	assert.Equal(t, "sql-find", loaded.JobName)
	assert.Equal(t, model.JobStatePending, loaded.State)
	assert.Equal(t, int64(42), loaded.NumProcessed)
	require.Len(t, loaded.LogEntries, 1)
	assert.Equal(t, "first step done", loaded.LogEntries[0].Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStatusRepository_FindStatusByID_NotFound(t *testing.T) {
	_, mock, repo := setupGormStatusMock(t)

	mock.ExpectQuery("SELECT \\* FROM `riptide_job_status`").
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := repo.FindStatusByID(context.Background(), "missing-id")
	assert.True(t, errors.Is(err, repository.ErrStatusNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStatusRepository_ListStatuses(t *testing.T) {
	_, mock, repo := setupGormStatusMock(t)

	newer := model.NewStatus("newer-job")
	newer.CreateTime = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	older := model.NewStatus("older-job")
	older.CreateTime = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	rows := statusRows(newer)
	logJSON, _ := older.LogEntries.Value()
	if logJSON == nil {
		logJSON = "[]"
	}
	rows.AddRow(
		older.ID, older.JobName, string(older.State), string(older.ResumeToken),
		older.NumProcessed, older.NumFailed, older.NumPut, older.NumDeleted, older.NumSteps,
		older.FailureReason, older.CreateTime, older.LastUpdated, older.FinishTime, older.CleanupAt,
		logJSON, older.Version,
	)

	mock.ExpectQuery("SELECT \\* FROM `riptide_job_status` ORDER BY create_time DESC LIMIT .+").
		WillReturnRows(rows)

	listed, err := repo.ListStatuses(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "newer-job", listed[0].JobName)
	assert.Equal(t, "older-job", listed[1].JobName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStatusRepository_DeleteStatus(t *testing.T) {
	_, mock, repo := setupGormStatusMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `riptide_job_status` WHERE id = .+").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.DeleteStatus(context.Background(), "some-id")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStatusRepository_DeleteStatus_NotFound(t *testing.T) {
	_, mock, repo := setupGormStatusMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `riptide_job_status` WHERE id = .+").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.DeleteStatus(context.Background(), "missing-id")
	assert.True(t, errors.Is(err, repository.ErrStatusNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
