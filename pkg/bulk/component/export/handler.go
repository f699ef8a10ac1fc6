package export

import (
	"context"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
	"github.com/tigerroll/riptide/pkg/bulk/core/port"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/logger"
)

// Handler is the bulk handler that feeds every record of a collection into a
// ParquetExporter. The file is finalized in Finish, after the job completed;
// a failed or cancelled job produces no file.
type Handler[T any] struct {
	query    port.Query
	exporter *ParquetExporter[T]
	seen     map[string]struct{}
}

// NewHandler creates an export handler over the given query.
func NewHandler[T any](query port.Query, exporter *ParquetExporter[T]) *Handler[T] {
	return &Handler[T]{
		query:    query,
		exporter: exporter,
		seen:     make(map[string]struct{}),
	}
}

// Query returns the record selection being exported.
func (h *Handler[T]) Query() port.Query {
	return h.query
}

// HandleRecord buffers one record into the exporter. Records re-delivered by
// a retried step are skipped, keeping the handler idempotent. Export issues
// no store writes, so the batching surface goes unused.
func (h *Handler[T]) HandleRecord(ctx context.Context, ops port.Ops, rec *port.Record) error {
	if _, ok := h.seen[rec.Key]; ok {
		return nil
	}
	if err := h.exporter.Add(rec); err != nil {
		return err
	}
	h.seen[rec.Key] = struct{}{}
	return nil
}

// Finish finalizes the Parquet file for a completed job.
func (h *Handler[T]) Finish(ctx context.Context, success bool, status *model.Status) {
	if !success {
		logger.Warnf("Export job %s did not complete, discarding %d buffered rows", status.ID, h.exporter.Count())
		return
	}
	if err := h.exporter.Close(ctx); err != nil {
		logger.Errorf("Export job %s failed to finalize Parquet file: %v", status.ID, err)
	}
}

var _ port.Handler = (*Handler[struct{}])(nil)
