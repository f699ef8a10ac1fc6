package job

import (
	"context"

	"github.com/tigerroll/riptide/pkg/bulk/core/domain/model"
	"github.com/tigerroll/riptide/pkg/bulk/core/port"
)

// BulkPut is a convenience handler that rewrites every record matched by the
// query unchanged. Useful to force schema-level rewrites of a collection.
type BulkPut struct {
	query port.Query
}

// NewBulkPut creates a BulkPut over the given query.
func NewBulkPut(query port.Query) *BulkPut {
	query.KeysOnly = false
	return &BulkPut{query: query}
}

// Query returns the record selection.
func (b *BulkPut) Query() port.Query {
	return b.query
}

// HandleRecord enqueues the record for a batched put, unchanged.
func (b *BulkPut) HandleRecord(ctx context.Context, ops port.Ops, record *port.Record) error {
	return ops.Put(ctx, *record)
}

// Finish does nothing.
func (b *BulkPut) Finish(ctx context.Context, success bool, status *model.Status) {}

// BulkDelete is a convenience handler that deletes every record matched by the
// query. It runs over the keys-only variant of the sequence.
type BulkDelete struct {
	query port.Query
}

// NewBulkDelete creates a BulkDelete over the given query.
func NewBulkDelete(query port.Query) *BulkDelete {
	query.KeysOnly = true
	return &BulkDelete{query: query}
}

// Query returns the keys-only record selection.
func (b *BulkDelete) Query() port.Query {
	return b.query
}

// HandleRecord enqueues the record's key for a batched delete.
func (b *BulkDelete) HandleRecord(ctx context.Context, ops port.Ops, record *port.Record) error {
	return ops.Delete(ctx, record.Key)
}

// Finish does nothing.
func (b *BulkDelete) Finish(ctx context.Context, success bool, status *model.Status) {}

var (
	_ port.Handler = (*BulkPut)(nil)
	_ port.Handler = (*BulkDelete)(nil)
)
