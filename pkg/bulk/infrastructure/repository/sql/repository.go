// Package sql provides the GORM-backed implementation of the job status repository.
package sql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
	"github.com/tigerroll/riptide/pkg/bulk/core/domain/repository"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/exception"
)

// SQLStatusRepository implements the repository.StatusRepository interface
// over a relational database through GORM.
type SQLStatusRepository struct {
	db *gorm.DB
}

// NewSQLStatusRepository creates a new SQLStatusRepository.
//
// Parameters:
//
//	db: The GORM database handle obtained from the database provider.
//
// Returns:
//
//	A new instance of repository.StatusRepository.
func NewSQLStatusRepository(db *gorm.DB) repository.StatusRepository {
	return &SQLStatusRepository{db: db}
}

// SaveStatus persists a new Status record. The insert fails if the ID exists.
func (r *SQLStatusRepository) SaveStatus(ctx context.Context, status *model.Status) error {
	const op = "SQLStatusRepository.SaveStatus"
	entity := fromDomainStatus(status)

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return exception.NewBulkError(op, fmt.Sprintf("failed to save job status (ID: %s)", status.ID), err, true)
	}
	return nil
}

// UpdateStatus persists changes to an existing Status record with optimistic
// locking on the record's version. A lost race surfaces as an optimistic
// locking failure, never as a silent overwrite.
func (r *SQLStatusRepository) UpdateStatus(ctx context.Context, status *model.Status) error {
	const op = "SQLStatusRepository.UpdateStatus"

	originalVersion := status.Version
	status.Version++
	entity := fromDomainStatus(status)

	result := r.db.WithContext(ctx).
		Model(&StatusEntity{}).
		Where("id = ? AND version = ?", entity.ID, originalVersion).
		Select("*").
		Updates(entity)
	if result.Error != nil {
		status.Version = originalVersion
		return exception.NewBulkError(op, fmt.Sprintf("failed to update job status (ID: %s)", status.ID), result.Error, true)
	}
	if result.RowsAffected == 0 {
		status.Version = originalVersion
		return exception.NewOptimisticLockingFailure(op,
			fmt.Sprintf("job status (ID: %s) was modified concurrently (expected version %d)", status.ID, originalVersion), nil)
	}
	return nil
}

// FindStatusByID loads the Status record for the given job ID.
func (r *SQLStatusRepository) FindStatusByID(ctx context.Context, id string) (*model.Status, error) {
	const op = "SQLStatusRepository.FindStatusByID"

	var entity StatusEntity
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrStatusNotFound
		}
		return nil, exception.NewBulkError(op, fmt.Sprintf("failed to load job status (ID: %s)", id), err, true)
	}
	return toDomainStatus(&entity), nil
}

// ListStatuses returns up to limit Status records, newest first.
func (r *SQLStatusRepository) ListStatuses(ctx context.Context, limit int) ([]*model.Status, error) {
	const op = "SQLStatusRepository.ListStatuses"

	var entities []StatusEntity
	q := r.db.WithContext(ctx).Order("create_time DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entities).Error; err != nil {
		return nil, exception.NewBulkError(op, "failed to list job statuses", err, true)
	}

	statuses := make([]*model.Status, 0, len(entities))
	for i := range entities {
		statuses = append(statuses, toDomainStatus(&entities[i]))
	}
	return statuses, nil
}

// DeleteStatus removes the Status record and its embedded log.
func (r *SQLStatusRepository) DeleteStatus(ctx context.Context, id string) error {
	const op = "SQLStatusRepository.DeleteStatus"

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&StatusEntity{})
	if result.Error != nil {
		return exception.NewBulkError(op, fmt.Sprintf("failed to delete job status (ID: %s)", id), result.Error, true)
	}
	if result.RowsAffected == 0 {
		return repository.ErrStatusNotFound
	}
	return nil
}

// Close is a no-op; the underlying connection is owned by the database provider.
func (r *SQLStatusRepository) Close() error {
	return nil
}

var _ repository.StatusRepository = (*SQLStatusRepository)(nil)
