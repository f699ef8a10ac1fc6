package handler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/riptide/example/downloadreset/internal/handler"
	"github.com/tigerroll/riptide/pkg/bulk/core/port"
)

// captureOps records put operations issued by the handler.
type captureOps struct {
	puts []port.Record
}

func (o *captureOps) Put(ctx context.Context, records ...port.Record) error {
	o.puts = append(o.puts, records...)
	return nil
}

func (o *captureOps) Delete(ctx context.Context, keys ...string) error { return nil }
func (o *captureOps) Log(format string, args ...interface{})           {}

func TestResetterZeroesNonZeroCounts(t *testing.T) {
	h := handler.NewDownloadCountResetter()
	ops := &captureOps{}

	rec := &port.Record{Key: "pkg-1", Fields: map[string]interface{}{"download_count": int64(42)}}
	require.NoError(t, h.HandleRecord(context.Background(), ops, rec))

	require.Len(t, ops.puts, 1)
	assert.Equal(t, int64(0), ops.puts[0].Fields["download_count"])
}

func TestResetterIsIdempotent(t *testing.T) {
	h := handler.NewDownloadCountResetter()
	ctx := context.Background()

	records := []*port.Record{
		{Key: "pkg-1", Fields: map[string]interface{}{"download_count": int64(3)}},
		{Key: "pkg-2", Fields: map[string]interface{}{"download_count": int64(0)}},
		{Key: "pkg-3", Fields: map[string]interface{}{"download_count": int(7)}},
	}

	firstRun := &captureOps{}
	for _, rec := range records {
		require.NoError(t, h.HandleRecord(ctx, firstRun, rec))
	}
	assert.Len(t, firstRun.puts, 2)

	// A second pass over the written state finds every count already at zero
	// and issues no writes.
	secondRun := &captureOps{}
	for _, rec := range firstRun.puts {
		written := rec
		require.NoError(t, h.HandleRecord(ctx, secondRun, &written))
	}
	assert.Empty(t, secondRun.puts)
}

func TestResetterRejectsNonNumericCount(t *testing.T) {
	h := handler.NewDownloadCountResetter()
	ops := &captureOps{}

	rec := &port.Record{Key: "pkg-bad", Fields: map[string]interface{}{"download_count": "many"}}
	err := h.HandleRecord(context.Background(), ops, rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-numeric")
	assert.Empty(t, ops.puts)
}

func TestResetterTreatsMissingCountAsZero(t *testing.T) {
	h := handler.NewDownloadCountResetter()
	ops := &captureOps{}

	rec := &port.Record{Key: "pkg-none", Fields: map[string]interface{}{}}
	require.NoError(t, h.HandleRecord(context.Background(), ops, rec))
	assert.Empty(t, ops.puts)
}
