package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/riptide/pkg/bulk/support/util/serialization"
)

// JobState represents the lifecycle state of a bulk job.
type JobState string

const (
	// JobStatePending indicates the status record exists but no step has run yet.
	JobStatePending JobState = "PENDING"
	// JobStateRunning indicates steps are being executed (or scheduled).
	JobStateRunning JobState = "RUNNING"
	// JobStateCompleted indicates the record sequence was exhausted without abort.
	JobStateCompleted JobState = "COMPLETED"
	// JobStateFailed indicates the failure tolerance was exceeded or a fatal
	// configuration error was detected.
	JobStateFailed JobState = "FAILED"
	// JobStateAborted indicates the job was cancelled externally.
	JobStateAborted JobState = "ABORTED"
)

// String returns the string representation of the JobState.
func (s JobState) String() string {
	return string(s)
}

// IsTerminal checks whether the state is final. Terminal states never change.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateAborted:
		return true
	default:
		return false
	}
}

// IsActive checks whether further steps may still be executed for a job in this state.
func (s JobState) IsActive() bool {
	return s == JobStatePending || s == JobStateRunning
}

// CanTransitionTo reports whether the state machine permits moving to next.
// Permitted transitions: PENDING -> RUNNING, RUNNING -> {COMPLETED, FAILED},
// and {PENDING, RUNNING} -> ABORTED. Terminal states permit nothing.
func (s JobState) CanTransitionTo(next JobState) bool {
	switch s {
	case JobStatePending:
		return next == JobStateRunning || next == JobStateAborted
	case JobStateRunning:
		return next == JobStateCompleted || next == JobStateFailed || next == JobStateAborted
	default:
		return false
	}
}

// ResumeToken is the opaque, store-specific continuation marker for a job.
// The empty token means "open the sequence at the start". Tokens are minted by
// the record source and passed through the Status record unmodified.
type ResumeToken string

// IsZero reports whether the token is the start-of-sequence marker.
func (t ResumeToken) IsZero() bool {
	return t == ""
}

// LogEntry is a single human-readable log line attached to a job.
type LogEntry struct {
	// Timestamp is when the entry was recorded.
	Timestamp time.Time `json:"timestamp"`
	// StepIndex is the index of the step that produced the entry.
	StepIndex int `json:"step_index"`
	// RecordKey is the key of the record being processed when the entry was
	// recorded, if any.
	RecordKey string `json:"record_key,omitempty"`
	// IsError marks entries produced by handler failures.
	IsError bool `json:"is_error"`
	// Message is the log message, or the error description for failures.
	Message string `json:"message"`
}

// LogEntries is the append-only ordered log of a job.
type LogEntries []LogEntry

// Value implements the `driver.Valuer` interface, converting the entries to a JSON string.
func (l LogEntries) Value() (driver.Value, error) {
	data, err := serialization.MarshalLogEntries([]LogEntry(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to LogEntries.
func (l *LogEntries) Scan(value interface{}) error {
	if value == nil {
		*l = make(LogEntries, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for LogEntries: %T", value)
	}
	if len(b) == 0 {
		*l = make(LogEntries, 0)
		return nil
	}
	return serialization.UnmarshalLogEntries(b, (*[]LogEntry)(l))
}

// Status is the persisted record describing one execution of a bulk job.
// It is the sole durable cross-step state: the resume token, the counters and
// the log. The Status record is mutated only by the job controller, and only
// one step holds the right to mutate it at a time.
type Status struct {
	ID           string
	JobName      string
	State        JobState
	ResumeToken  ResumeToken
	NumProcessed int64
	NumFailed    int64
	NumPut       int64
	NumDeleted   int64
	NumSteps     int64
	FailureReason string
	CreateTime   time.Time
	LastUpdated  time.Time
	FinishTime   *time.Time
	// CleanupAt is the scheduled deletion time of this record after it reaches
	// a terminal state. nil means the record is kept indefinitely.
	CleanupAt  *time.Time
	LogEntries LogEntries
	Version    int
}

// NewStatus creates a Status record for a new job in the PENDING state.
func NewStatus(jobName string) *Status {
	now := time.Now()
	return &Status{
		ID:          NewID(),
		JobName:     jobName,
		State:       JobStatePending,
		CreateTime:  now,
		LastUpdated: now,
		LogEntries:  LogEntries{},
	}
}

// transitionTo moves the status to the next state, enforcing the state machine.
func (s *Status) transitionTo(next JobState) error {
	if !s.State.CanTransitionTo(next) {
		return fmt.Errorf("invalid job state transition %s -> %s for job %s", s.State, next, s.ID)
	}
	s.State = next
	s.LastUpdated = time.Now()
	return nil
}

// MarkRunning moves the job from PENDING to RUNNING.
func (s *Status) MarkRunning() error {
	return s.transitionTo(JobStateRunning)
}

// MarkCompleted moves the job to COMPLETED and stamps the finish time.
func (s *Status) MarkCompleted() error {
	if err := s.transitionTo(JobStateCompleted); err != nil {
		return err
	}
	now := time.Now()
	s.FinishTime = &now
	return nil
}

// MarkFailed moves the job to FAILED, stamps the finish time and records the reason.
func (s *Status) MarkFailed(reason string) error {
	if err := s.transitionTo(JobStateFailed); err != nil {
		return err
	}
	now := time.Now()
	s.FinishTime = &now
	s.FailureReason = reason
	return nil
}

// MarkAborted moves the job to ABORTED. Used by external cancellation.
func (s *Status) MarkAborted() error {
	if err := s.transitionTo(JobStateAborted); err != nil {
		return err
	}
	now := time.Now()
	s.FinishTime = &now
	return nil
}

// IsRunning returns true while further steps may execute for this job.
func (s *Status) IsRunning() bool {
	return s.State.IsActive()
}

// ApplyDelta folds a step's counter and log delta into the status.
// Counters are monotonically non-decreasing; deltas are never negative.
func (s *Status) ApplyDelta(d StepDelta) {
	s.NumProcessed += d.Processed
	s.NumFailed += d.Failed
	s.NumPut += d.Put
	s.NumDeleted += d.Deleted
	s.NumSteps++
	s.LogEntries = append(s.LogEntries, d.Logs...)
	s.LastUpdated = time.Now()
}

// AppendLog appends a plain log entry to the job log.
func (s *Status) AppendLog(stepIndex int, message string) {
	s.LogEntries = append(s.LogEntries, LogEntry{
		Timestamp: time.Now(),
		StepIndex: stepIndex,
		Message:   message,
	})
}

// ElapsedSeconds returns the seconds elapsed between job creation and the last
// update (or the finish time, once terminal).
func (s *Status) ElapsedSeconds() float64 {
	end := s.LastUpdated
	if s.FinishTime != nil {
		end = *s.FinishTime
	}
	return end.Sub(s.CreateTime).Seconds()
}

// rate renders rise/run with one decimal, or "-" when run is zero.
func rate(rise float64, run float64) string {
	if run == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", rise/run)
}

// ProcessingRate returns records processed per second, humanized.
func (s *Status) ProcessingRate() string {
	return rate(float64(s.NumProcessed), s.ElapsedSeconds())
}

// ErrorRate returns handler failures per second, humanized.
func (s *Status) ErrorRate() string {
	return rate(float64(s.NumFailed), s.ElapsedSeconds())
}

// PutRate returns records written per second, humanized.
func (s *Status) PutRate() string {
	return rate(float64(s.NumPut), s.ElapsedSeconds())
}

// DeleteRate returns records deleted per second, humanized.
func (s *Status) DeleteRate() string {
	return rate(float64(s.NumDeleted), s.ElapsedSeconds())
}

// StepProcessingRate returns records processed per executed step, humanized.
func (s *Status) StepProcessingRate() string {
	return rate(float64(s.NumProcessed), float64(s.NumSteps))
}

// TotalRuntime returns the humanized wall-clock duration of the job so far.
func (s *Status) TotalRuntime() string {
	return HumanDuration(time.Duration(s.ElapsedSeconds() * float64(time.Second)))
}

// HumanDuration converts a duration into a coarse human readable description
// of elapsed time ("42 seconds", "3 minutes", "2 hours", "5 days").
func HumanDuration(d time.Duration) string {
	elapsed := d.Seconds()
	if elapsed <= 90 {
		return fmt.Sprintf("%d seconds", int(elapsed))
	}
	elapsed /= 60
	if elapsed <= 90 {
		return fmt.Sprintf("%d minutes", int(elapsed))
	}
	elapsed /= 60
	if elapsed <= 48 {
		return fmt.Sprintf("%d hours", int(elapsed))
	}
	elapsed /= 24
	return fmt.Sprintf("%d days", int(elapsed))
}

// NewID generates a new unique identifier.
func NewID() string {
	return uuid.NewString()
}
