// Package buffer implements the write batching used during record processing.
// Put and delete operations issued by handlers accumulate here and are written
// to the underlying store in bounded groups.
package buffer

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/riptide/pkg/bulk/core/metrics"
	"github.com/tigerroll/riptide/pkg/bulk/core/port"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/exception"
)

const moduleName = "buffer"

// BatchBuffer accumulates pending put and delete operations for one step and
// flushes them in bounded-size batches. It is private to a single step's
// execution and never shared across steps.
//
// Pending puts are keyed by record identity: a later put for the same key
// within one step replaces the earlier pending record instead of producing a
// duplicate write. Flush errors are fatal for the step; they are returned as
// non-recoverable errors so the resume token is never advanced past records
// whose side effects were not durably applied.
type BatchBuffer struct {
	writer          port.BatchWriter
	putBatchSize    int
	deleteBatchSize int

	puts     []port.Record
	putIndex map[string]int

	deletes   []string
	deleteSet map[string]struct{}

	numPut     int64
	numDeleted int64

	recorder metrics.MetricRecorder
	jobName  string
}

// NewBatchBuffer creates a buffer flushing through the given writer.
// Batch sizes below one are clamped to one: the flush threshold loops require
// that every flush drains at least one pending item.
func NewBatchBuffer(writer port.BatchWriter, putBatchSize, deleteBatchSize int, recorder metrics.MetricRecorder, jobName string) *BatchBuffer {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	if putBatchSize < 1 {
		putBatchSize = 1
	}
	if deleteBatchSize < 1 {
		deleteBatchSize = 1
	}
	return &BatchBuffer{
		writer:          writer,
		putBatchSize:    putBatchSize,
		deleteBatchSize: deleteBatchSize,
		putIndex:        make(map[string]int),
		deleteSet:       make(map[string]struct{}),
		recorder:        recorder,
		jobName:         jobName,
	}
}

// Put enqueues one or more records for batched writing. When the pending count
// reaches the put batch size, one full batch is flushed immediately; a large
// single call is chunked into multiple batches.
func (b *BatchBuffer) Put(ctx context.Context, records ...port.Record) error {
	for _, rec := range records {
		if idx, ok := b.putIndex[rec.Key]; ok {
			b.puts[idx] = rec
			continue
		}
		b.putIndex[rec.Key] = len(b.puts)
		b.puts = append(b.puts, rec)
		b.numPut++
	}

	for len(b.puts) >= b.putBatchSize {
		if err := b.flushPuts(ctx, b.putBatchSize); err != nil {
			return err
		}
	}
	return nil
}

// Delete enqueues one or more record keys for batched deletion, with the same
// threshold behavior as Put.
func (b *BatchBuffer) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, ok := b.deleteSet[key]; ok {
			continue
		}
		b.deleteSet[key] = struct{}{}
		b.deletes = append(b.deletes, key)
		b.numDeleted++
	}

	for len(b.deletes) >= b.deleteBatchSize {
		if err := b.flushDeletes(ctx, b.deleteBatchSize); err != nil {
			return err
		}
	}
	return nil
}

// Flush forces writing of every remaining pending item regardless of batch
// size. It is called at the end of every step, before the step outcome is
// considered final and before the controller persists an updated resume token.
func (b *BatchBuffer) Flush(ctx context.Context) error {
	var result *multierror.Error

	for len(b.puts) > 0 {
		n := len(b.puts)
		if n > b.putBatchSize {
			n = b.putBatchSize
		}
		if err := b.flushPuts(ctx, n); err != nil {
			result = multierror.Append(result, err)
			break
		}
	}
	for len(b.deletes) > 0 {
		n := len(b.deletes)
		if n > b.deleteBatchSize {
			n = b.deleteBatchSize
		}
		if err := b.flushDeletes(ctx, n); err != nil {
			result = multierror.Append(result, err)
			break
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return exception.NewBulkError(moduleName, "failed to flush pending writes", err, false)
	}
	return nil
}

// Counts returns the number of records enqueued for put and delete so far.
func (b *BatchBuffer) Counts() (put int64, deleted int64) {
	return b.numPut, b.numDeleted
}

// PendingPuts returns the number of records currently awaiting a put flush.
func (b *BatchBuffer) PendingPuts() int {
	return len(b.puts)
}

// PendingDeletes returns the number of keys currently awaiting a delete flush.
func (b *BatchBuffer) PendingDeletes() int {
	return len(b.deletes)
}

// flushPuts writes the oldest n pending records as one batch.
func (b *BatchBuffer) flushPuts(ctx context.Context, n int) error {
	batch := make([]port.Record, n)
	copy(batch, b.puts[:n])

	if err := b.writer.PutBatch(ctx, batch); err != nil {
		return exception.NewBulkErrorf(moduleName, "failed to write a batch of %d records", n, err)
	}

	b.puts = b.puts[n:]
	b.putIndex = make(map[string]int, len(b.puts))
	for i, rec := range b.puts {
		b.putIndex[rec.Key] = i
	}
	b.recorder.RecordFlush(ctx, b.jobName, "put", n)
	return nil
}

// flushDeletes removes the oldest n pending keys as one batch.
func (b *BatchBuffer) flushDeletes(ctx context.Context, n int) error {
	batch := make([]string, n)
	copy(batch, b.deletes[:n])

	if err := b.writer.DeleteBatch(ctx, batch); err != nil {
		return exception.NewBulkErrorf(moduleName, "failed to delete a batch of %d records", n, err)
	}

	b.deletes = b.deletes[n:]
	for _, key := range batch {
		delete(b.deleteSet, key)
	}
	b.recorder.RecordFlush(ctx, b.jobName, "delete", n)
	return nil
}
