// Package repository defines the persistence contract for job status records.
// Implementations live under pkg/bulk/infrastructure/repository.
package repository

import (
	"context"
	"errors"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
)

// ErrStatusNotFound is returned when no status record exists for the given job ID.
var ErrStatusNotFound = errors.New("job status not found")

// StatusRepository persists job Status records.
//
// UpdateStatus must be atomic with respect to a single step's write: no
// partially updated Status may become visible, and a lost version race must
// surface as an error rather than a silent overwrite.
type StatusRepository interface {
	// SaveStatus persists a new Status record. It fails if the ID already exists.
	SaveStatus(ctx context.Context, status *model.Status) error
	// UpdateStatus persists changes to an existing Status record, enforcing
	// optimistic locking on the record's Version.
	UpdateStatus(ctx context.Context, status *model.Status) error
	// FindStatusByID loads the Status record for the given job ID.
	FindStatusByID(ctx context.Context, id string) (*model.Status, error)
	// ListStatuses returns up to limit Status records ordered by creation time,
	// newest first. Log entries may be omitted from listings.
	ListStatuses(ctx context.Context, limit int) ([]*model.Status, error)
	// DeleteStatus removes the Status record and all of its log entries.
	DeleteStatus(ctx context.Context, id string) error
	// Close releases resources held by the repository.
	Close() error
}
