package sql

import (
	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
)

// --- Mapper functions ---

func fromDomainStatus(s *model.Status) *StatusEntity {
	if s == nil {
		return nil
	}
	return &StatusEntity{
		ID:            s.ID,
		JobName:       s.JobName,
		State:         s.State.String(),
		ResumeToken:   string(s.ResumeToken),
		NumProcessed:  s.NumProcessed,
		NumFailed:     s.NumFailed,
		NumPut:        s.NumPut,
		NumDeleted:    s.NumDeleted,
		NumSteps:      s.NumSteps,
		FailureReason: s.FailureReason,
		CreateTime:    s.CreateTime,
		LastUpdated:   s.LastUpdated,
		FinishTime:    s.FinishTime,
		CleanupAt:     s.CleanupAt,
		LogEntries:    s.LogEntries,
		Version:       s.Version,
	}
}

func toDomainStatus(entity *StatusEntity) *model.Status {
	if entity == nil {
		return nil
	}
	return &model.Status{
		ID:            entity.ID,
		JobName:       entity.JobName,
		State:         model.JobState(entity.State),
		ResumeToken:   model.ResumeToken(entity.ResumeToken),
		NumProcessed:  entity.NumProcessed,
		NumFailed:     entity.NumFailed,
		NumPut:        entity.NumPut,
		NumDeleted:    entity.NumDeleted,
		NumSteps:      entity.NumSteps,
		FailureReason: entity.FailureReason,
		CreateTime:    entity.CreateTime,
		LastUpdated:   entity.LastUpdated,
		FinishTime:    entity.FinishTime,
		CleanupAt:     entity.CleanupAt,
		LogEntries:    entity.LogEntries,
		Version:       entity.Version,
	}
}
