// Package memory provides an in-memory implementation of the StatusRepository
// interface. It stores job status records in a map, suitable for tests and for
// embedding the engine without external persistence.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
	"github.com/tigerroll/riptide/pkg/bulk/core/domain/repository"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/exception"
)

// StatusRepository is an in-memory implementation of repository.StatusRepository.
type StatusRepository struct {
	statuses map[string]*model.Status
	mu       sync.RWMutex
}

// NewStatusRepository creates and initializes a new in-memory StatusRepository.
func NewStatusRepository() *StatusRepository {
	return &StatusRepository{
		statuses: make(map[string]*model.Status),
	}
}

// SaveStatus persists a new Status record.
// It returns an error if a record with the same ID already exists.
func (r *StatusRepository) SaveStatus(ctx context.Context, status *model.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.statuses[status.ID]; exists {
		return fmt.Errorf("status with ID %s already exists", status.ID)
	}
	r.statuses[status.ID] = cloneStatus(status)
	return nil
}

// UpdateStatus updates an existing Status record, enforcing optimistic locking
// on the record's Version.
func (r *StatusRepository) UpdateStatus(ctx context.Context, status *model.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.statuses[status.ID]
	if !exists {
		return repository.ErrStatusNotFound
	}
	if current.Version != status.Version {
		return exception.NewOptimisticLockingFailure("memory",
			fmt.Sprintf("status %s version mismatch: have %d, stored %d", status.ID, status.Version, current.Version), nil)
	}
	status.Version++
	r.statuses[status.ID] = cloneStatus(status)
	return nil
}

// FindStatusByID loads a Status record by job ID.
func (r *StatusRepository) FindStatusByID(ctx context.Context, id string) (*model.Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, ok := r.statuses[id]
	if !ok {
		return nil, repository.ErrStatusNotFound
	}
	return cloneStatus(status), nil
}

// ListStatuses returns up to limit Status records, newest first.
func (r *StatusRepository) ListStatuses(ctx context.Context, limit int) ([]*model.Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*model.Status, 0, len(r.statuses))
	for _, s := range r.statuses {
		all = append(all, cloneStatus(s))
	}
	sort.Slice(all, func(i, j int) bool {
		return all[j].CreateTime.Before(all[i].CreateTime)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// DeleteStatus removes a Status record and its log entries.
func (r *StatusRepository) DeleteStatus(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.statuses[id]; !ok {
		return repository.ErrStatusNotFound
	}
	delete(r.statuses, id)
	return nil
}

// Close releases resources used by the repository.
// The in-memory repository holds no external resources, so this always returns nil.
func (r *StatusRepository) Close() error {
	return nil
}

// cloneStatus deep-copies a Status to prevent external mutation of stored state.
func cloneStatus(s *model.Status) *model.Status {
	clone := *s
	clone.LogEntries = make(model.LogEntries, len(s.LogEntries))
	copy(clone.LogEntries, s.LogEntries)
	if s.FinishTime != nil {
		t := *s.FinishTime
		clone.FinishTime = &t
	}
	if s.CleanupAt != nil {
		t := *s.CleanupAt
		clone.CleanupAt = &t
	}
	return &clone
}

var _ repository.StatusRepository = (*StatusRepository)(nil)
