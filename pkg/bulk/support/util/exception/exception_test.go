package exception_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/riptide/pkg/bulk/support/util/exception"
)

func TestNewBulkError(t *testing.T) {
	originalErr := errors.New("db connection refused")
	be := exception.NewBulkError("repository", "failed to connect", originalErr, true)

	assert.Equal(t, "repository", be.Module)
	assert.Equal(t, "failed to connect", be.Message)
	assert.Equal(t, originalErr, be.Unwrap())
	assert.True(t, be.IsRecoverable())
	assert.Contains(t, be.Error(), "[repository] failed to connect: db connection refused")
	assert.NotEmpty(t, be.StackTrace)
}

func TestNewBulkErrorf(t *testing.T) {
	// Only message args.
	be1 := exception.NewBulkErrorf("buffer", "failed to flush %d records", 20)
	assert.Nil(t, be1.Unwrap())
	assert.False(t, be1.IsRecoverable())
	assert.Contains(t, be1.Error(), "[buffer] failed to flush 20 records")

	// A trailing error argument is extracted and wrapped.
	originalErr := errors.New("disk full")
	be2 := exception.NewBulkErrorf("buffer", "failed to flush %d records", 20, originalErr)
	assert.Equal(t, originalErr, be2.Unwrap())
	assert.Contains(t, be2.Error(), "disk full")
}

func TestNewOptimisticLockingFailure(t *testing.T) {
	be := exception.NewOptimisticLockingFailure("repository", "version mismatch", nil)

	assert.False(t, be.IsRecoverable())
	assert.True(t, errors.Is(be, exception.ErrOptimisticLockingFailure))
	assert.Contains(t, be.Error(), "version mismatch")

	inner := errors.New("row changed")
	be2 := exception.NewOptimisticLockingFailure("repository", "version mismatch", inner)
	assert.True(t, errors.Is(be2, exception.ErrOptimisticLockingFailure))
	assert.True(t, errors.Is(be2, inner))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, exception.IsFatal(nil))
	assert.False(t, exception.IsFatal(errors.New("plain handler error")))

	recoverable := exception.NewBulkError("step", "record rejected", nil, true)
	assert.False(t, exception.IsFatal(recoverable))

	fatal := exception.NewBulkError("buffer", "flush failed", nil, false)
	assert.True(t, exception.IsFatal(fatal))

	// Fatal errors keep their classification through wrapping.
	wrapped := errors.Join(errors.New("context"), fatal)
	assert.True(t, exception.IsFatal(wrapped))
}

func TestIsBulkError(t *testing.T) {
	assert.False(t, exception.IsBulkError(nil))
	assert.False(t, exception.IsBulkError(errors.New("plain")))
	assert.True(t, exception.IsBulkError(exception.NewBulkError("m", "msg", nil, false)))
}

func TestIsTemporary(t *testing.T) {
	assert.False(t, exception.IsTemporary(nil))
	assert.True(t, exception.IsTemporary(errors.New("dial tcp: connection refused")))
	assert.True(t, exception.IsTemporary(errors.New("read timeout")))
	assert.False(t, exception.IsTemporary(errors.New("constraint violation")))
}
