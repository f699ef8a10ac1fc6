// Package handler contains the bulk handlers of the download reset example.
package handler

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
	"github.com/tigerroll/riptide/pkg/bulk/core/port"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/logger"
)

// DownloadCountResetter resets the download_count column of every record in
// the downloads table to zero. Records already at zero are left untouched, so
// re-delivered records produce no extra writes and the handler stays
// idempotent under at-least-once step semantics.
type DownloadCountResetter struct {
	resets  atomic.Int64
	skipped atomic.Int64
}

// NewDownloadCountResetter creates the resetter handler.
func NewDownloadCountResetter() *DownloadCountResetter {
	return &DownloadCountResetter{}
}

// Query selects the whole downloads table.
func (h *DownloadCountResetter) Query() port.Query {
	return port.Query{Collection: "downloads"}
}

// HandleRecord zeroes the record's download count unless it already is zero.
func (h *DownloadCountResetter) HandleRecord(ctx context.Context, ops port.Ops, rec *port.Record) error {
	count, err := downloadCount(rec)
	if err != nil {
		return err
	}
	if count == 0 {
		h.skipped.Add(1)
		return nil
	}

	rec.Fields["download_count"] = int64(0)
	if err := ops.Put(ctx, *rec); err != nil {
		return err
	}
	h.resets.Add(1)
	return nil
}

// Finish logs the outcome summary.
func (h *DownloadCountResetter) Finish(ctx context.Context, success bool, status *model.Status) {
	if !success {
		logger.Errorf("Download count reset %s failed after %s: %s",
			status.ID, status.TotalRuntime(), status.FailureReason)
		return
	}
	logger.Infof("Download count reset %s completed in %s: %d reset, %d already zero, %s records/sec",
		status.ID, status.TotalRuntime(), h.resets.Load(), h.skipped.Load(), status.ProcessingRate())
}

// downloadCount extracts the numeric download_count field of a record.
func downloadCount(rec *port.Record) (int64, error) {
	switch v := rec.Fields["download_count"].(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("record %s has non-numeric download_count %T", rec.Key, v)
	}
}

var _ port.Handler = (*DownloadCountResetter)(nil)
