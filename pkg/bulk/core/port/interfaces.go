// Package port defines the external collaborator contracts of the bulk engine:
// the record source, the store writer, the continuation mechanism, and the
// user-facing handler. The engine depends only on these interfaces; concrete
// implementations live under pkg/bulk/infrastructure.
package port

import (
	"context"
	"errors"
	"time"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
)

// ErrNoMoreRecords is returned by RecordCursor.Next when the sequence is exhausted.
var ErrNoMoreRecords = errors.New("no more records")

// Record is one item yielded by a record source.
// Key is the stable identity used for write deduplication and deletion.
// Fields holds the record's values; it is empty for keys-only sequences.
type Record struct {
	Key    string
	Fields map[string]interface{}
}

// Query describes the record selection for a job. The same Query must always
// resolve to the same underlying ordering, so that a resume token minted
// against it remains meaningful. Only equality filters are permitted: filters
// that constrain the ordering column with inequalities would break resumption
// and are rejected by sources at open time.
type Query struct {
	// Collection names the record collection (table) to iterate.
	Collection string
	// Filter holds equality-only constraints, column -> required value.
	Filter map[string]interface{}
	// KeysOnly selects the identifier-only variant of the sequence. The choice
	// is fixed for the job's lifetime; handlers of keys-only jobs receive
	// records whose Fields are empty.
	KeysOnly bool
}

// RecordSource opens resumable, deterministically ordered record sequences.
type RecordSource interface {
	// Open opens the sequence described by q at the given resume token, or at
	// the start when the token is zero. A query that cannot support resumption
	// is a configuration error and must fail here, before any record is read.
	Open(ctx context.Context, q Query, token model.ResumeToken) (RecordCursor, error)
}

// RecordCursor is one opened traversal of a record sequence.
//
// Token returns the continuation marker positioned strictly after the last
// record yielded by Next. Re-opening the source at that token yields exactly
// the remaining records, provided the underlying store was not mutated
// concurrently (a documented limitation, not a correctness guarantee).
type RecordCursor interface {
	// Next yields the next record, or ErrNoMoreRecords when the sequence is exhausted.
	Next(ctx context.Context) (*Record, error)
	// Token returns the resume token after the last yielded record.
	Token() (model.ResumeToken, error)
	// Close releases resources held by the cursor.
	Close() error
}

// BatchWriter applies buffered write and delete batches to the underlying store.
// Both operations are synchronous; an error means the batch was not durably
// applied and the step must not advance the resume token past it.
type BatchWriter interface {
	// PutBatch writes the given records, overwriting by key.
	PutBatch(ctx context.Context, records []Record) error
	// DeleteBatch removes the records with the given keys. Missing keys are not errors.
	DeleteBatch(ctx context.Context, keys []string) error
}

// Ops is the surface a handler uses to issue side effects during record
// processing. Put and Delete enqueue into the step's batch buffer and may
// trigger an immediate flush of a full batch; Log appends to the job log.
type Ops interface {
	// Put enqueues one or more records for batched writing. A later Put for the
	// same key within one step overwrites the pending record.
	Put(ctx context.Context, records ...Record) error
	// Delete enqueues one or more record keys for batched deletion.
	Delete(ctx context.Context, keys ...string) error
	// Log records a human-readable message on the job, tagged with the record
	// being processed.
	Log(format string, args ...interface{})
}

// Handler is the user-supplied bulk operation.
//
// HandleRecord is invoked once per record with at-least-once semantics: a
// retried step re-derives from the last flushed resume token and may
// re-process a bounded number of already-applied records. Handlers should
// therefore be idempotent, and each invocation should stay well under the
// configured execution time ceiling.
type Handler interface {
	// Query returns the record selection. It must be stable across calls.
	Query() Query
	// HandleRecord processes a single record. A returned error is treated as a
	// single-record failure: logged, counted against the failure tolerance, and
	// the step continues unless the tolerance is exceeded.
	HandleRecord(ctx context.Context, ops Ops, record *Record) error
	// Finish is called exactly once after the job reaches COMPLETED or FAILED,
	// with the final Status. It is not called for externally cancelled jobs.
	Finish(ctx context.Context, success bool, status *model.Status)
}

// StepRunner executes one step of a job. The job controller implements this;
// the continuation mechanism invokes it.
type StepRunner interface {
	RunStep(ctx context.Context, jobID string, stepIndex int) error
	// FailJob marks an active job FAILED with the given reason. The
	// continuation mechanism calls it when a step can no longer be delivered,
	// so the job reaches a terminal state instead of staying RUNNING forever.
	FailJob(ctx context.Context, jobID string, reason string) error
}

// CleanupRunner deletes the records of a terminal job. The job controller
// implements this; the continuation mechanism invokes it at the scheduled time.
type CleanupRunner interface {
	RunCleanup(ctx context.Context, jobID string) error
}

// Continuation is the deferred re-invocation mechanism that chains steps.
// It guarantees eventual, at-least-once invocation of the scheduled unit of
// work outside the caller's own execution context. It must never run two
// steps of the same job concurrently.
type Continuation interface {
	// ScheduleStep schedules the given step for eventual execution.
	ScheduleStep(ctx context.Context, jobID string, stepIndex int) error
	// ScheduleCleanup schedules deletion of the job's records at the given time.
	ScheduleCleanup(ctx context.Context, jobID string, at time.Time) error
}
