package monitor

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
	"github.com/tigerroll/riptide/pkg/bulk/core/domain/repository"
)

// JobItem is the listing representation of one job.
type JobItem struct {
	ID           string     `json:"id"`
	JobName      string     `json:"jobName"`
	State        string     `json:"state"`
	NumProcessed int64      `json:"numProcessed"`
	NumFailed    int64      `json:"numFailed"`
	NumSteps     int64      `json:"numSteps"`
	CreateTime   time.Time  `json:"createTime"`
	LastUpdated  time.Time  `json:"lastUpdated"`
	FinishTime   *time.Time `json:"finishTime,omitempty"`
}

// LogItem is one job log line.
type LogItem struct {
	Timestamp time.Time `json:"timestamp"`
	StepIndex int       `json:"stepIndex"`
	RecordKey string    `json:"recordKey,omitempty"`
	IsError   bool      `json:"isError"`
	Message   string    `json:"message"`
}

// JobDetailItem is the full representation of one job, including rates and log.
type JobDetailItem struct {
	JobItem
	NumPut             int64      `json:"numPut"`
	NumDeleted         int64      `json:"numDeleted"`
	FailureReason      string     `json:"failureReason,omitempty"`
	CleanupAt          *time.Time `json:"cleanupAt,omitempty"`
	ProcessingRate     string     `json:"processingRate"`
	ErrorRate          string     `json:"errorRate"`
	PutRate            string     `json:"putRate"`
	DeleteRate         string     `json:"deleteRate"`
	StepProcessingRate string     `json:"stepProcessingRate"`
	TotalRuntime       string     `json:"totalRuntime"`
	Log                []LogItem  `json:"log"`
}

// ListJobsResponse is the envelope of the job listing endpoint.
type ListJobsResponse struct {
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
	Jobs    []JobItem `json:"jobs,omitempty"`
}

// JobDetailResponse is the envelope of the job detail endpoint.
type JobDetailResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Job     *JobDetailItem `json:"job,omitempty"`
}

// ActionResponse is the envelope of the cancel and delete endpoints.
type ActionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func toJobItem(s *model.Status) JobItem {
	return JobItem{
		ID:           s.ID,
		JobName:      s.JobName,
		State:        s.State.String(),
		NumProcessed: s.NumProcessed,
		NumFailed:    s.NumFailed,
		NumSteps:     s.NumSteps,
		CreateTime:   s.CreateTime,
		LastUpdated:  s.LastUpdated,
		FinishTime:   s.FinishTime,
	}
}

func toJobDetailItem(s *model.Status) *JobDetailItem {
	log := make([]LogItem, 0, len(s.LogEntries))
	for _, entry := range s.LogEntries {
		log = append(log, LogItem{
			Timestamp: entry.Timestamp,
			StepIndex: entry.StepIndex,
			RecordKey: entry.RecordKey,
			IsError:   entry.IsError,
			Message:   entry.Message,
		})
	}
	return &JobDetailItem{
		JobItem:            toJobItem(s),
		NumPut:             s.NumPut,
		NumDeleted:         s.NumDeleted,
		FailureReason:      s.FailureReason,
		CleanupAt:          s.CleanupAt,
		ProcessingRate:     s.ProcessingRate(),
		ErrorRate:          s.ErrorRate(),
		PutRate:            s.PutRate(),
		DeleteRate:         s.DeleteRate(),
		StepProcessingRate: s.StepProcessingRate(),
		TotalRuntime:       s.TotalRuntime(),
		Log:                log,
	}
}

// listJobsHandler returns the most recent jobs, newest first.
func (s *Server) listJobsHandler(c *fiber.Ctx) error {
	limit := s.cfg.ListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ListJobsResponse{
				Success: false,
				Error:   "limit must be a positive integer",
			})
		}
		limit = n
	}

	statuses, err := s.repo.ListStatuses(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ListJobsResponse{
			Success: false,
			Error:   err.Error(),
		})
	}

	jobs := make([]JobItem, 0, len(statuses))
	for _, status := range statuses {
		jobs = append(jobs, toJobItem(status))
	}
	return c.JSON(ListJobsResponse{Success: true, Jobs: jobs})
}

// jobDetailHandler returns one job with its rates and full log.
func (s *Server) jobDetailHandler(c *fiber.Ctx) error {
	status, err := s.repo.FindStatusByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repository.ErrStatusNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(JobDetailResponse{
				Success: false,
				Error:   "job not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(JobDetailResponse{
			Success: false,
			Error:   err.Error(),
		})
	}
	return c.JSON(JobDetailResponse{Success: true, Job: toJobDetailItem(status)})
}

// cancelJobHandler requests cancellation of a running job.
func (s *Server) cancelJobHandler(c *fiber.Ctx) error {
	if err := s.controller.Cancel(c.Context(), c.Params("id")); err != nil {
		return actionError(c, err)
	}
	return c.JSON(ActionResponse{Success: true})
}

// deleteJobHandler deletes the status record of a finished job.
func (s *Server) deleteJobHandler(c *fiber.Ctx) error {
	if err := s.controller.Delete(c.Context(), c.Params("id")); err != nil {
		return actionError(c, err)
	}
	return c.JSON(ActionResponse{Success: true})
}

func actionError(c *fiber.Ctx, err error) error {
	code := fiber.StatusConflict
	if errors.Is(err, repository.ErrStatusNotFound) {
		code = fiber.StatusNotFound
	}
	return c.Status(code).JSON(ActionResponse{
		Success: false,
		Error:   err.Error(),
	})
}
