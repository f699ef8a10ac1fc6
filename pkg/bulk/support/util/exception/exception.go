// Package exception provides the custom error types used by the riptide bulk engine.
// It standardizes errors raised during job execution so they can be categorized
// as recoverable (counted against the failure tolerance) or fatal (abort the step).
package exception

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrOptimisticLockingFailure is the sentinel error for concurrent status updates.
var ErrOptimisticLockingFailure = errors.New("optimistic locking failure")

// BulkError is a custom error type that occurs during bulk job processing.
// It holds the module where the error occurred, a message, the wrapped original
// error, and a flag indicating whether it is recoverable.
//
// A recoverable error is a single-record handler failure: it is logged, counted
// against the configured failure tolerance, and the step continues. A
// non-recoverable error (flush failure, non-resumable query, repository
// failure) aborts the current step without advancing the resume token.
type BulkError struct {
	// Module indicates the module where the error occurred (e.g., "buffer", "step", "controller").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// isRecoverable indicates whether this error may be absorbed by the failure tolerance.
	isRecoverable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewBulkError creates a new BulkError instance.
// module: The module where the error occurred.
// message: The error message.
// originalErr: The original error to wrap.
// isRecoverable: Whether this error may be counted against the failure tolerance.
// Returns: A new BulkError instance.
func NewBulkError(module, message string, originalErr error, isRecoverable bool) *BulkError {
	// Capture stack trace (for debugging purposes)
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	stackTrace := string(buf[:n])

	return &BulkError{
		Module:        module,
		Message:       message,
		OriginalErr:   originalErr,
		isRecoverable: isRecoverable,
		StackTrace:    stackTrace,
	}
}

// NewBulkErrorf creates a new fatal BulkError with a formatted message.
// An error value at the end of the variadic arguments is extracted and wrapped
// as the original error; the remaining arguments feed fmt.Sprintf.
//
// Example:
// NewBulkErrorf("buffer", "failed to flush %d records", 20, io.ErrShortWrite)
// -> message: "failed to flush 20 records", originalErr: io.ErrShortWrite
func NewBulkErrorf(module, format string, a ...interface{}) *BulkError {
	var originalErr error
	args := a

	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}

	message := fmt.Sprintf(format, args...)

	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	stackTrace := string(buf[:n])

	return &BulkError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  stackTrace,
	}
}

// NewOptimisticLockingFailure creates a BulkError indicating that a status
// update lost a version race. This error is fatal for the current step; the
// continuation mechanism's retry policy governs re-invocation.
func NewOptimisticLockingFailure(module, message string, originalErr error) *BulkError {
	var errToWrap error
	if originalErr != nil {
		errToWrap = errors.Join(ErrOptimisticLockingFailure, originalErr)
	} else {
		errToWrap = ErrOptimisticLockingFailure
	}
	return NewBulkError(module, message, errToWrap, false)
}

// Error implements the error interface.
// It returns the error's module, message, and the string representation of the original error.
func (e *BulkError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *BulkError) Unwrap() error {
	return e.OriginalErr
}

// IsRecoverable returns whether this error may be absorbed by the failure tolerance.
func (e *BulkError) IsRecoverable() bool {
	return e.isRecoverable
}

// IsBulkError determines if the given error is of type BulkError.
func IsBulkError(err error) bool {
	if err == nil {
		return false
	}
	var be *BulkError
	return errors.As(err, &be)
}

// IsFatal determines whether an error must abort the current step instead of
// being counted as a single-record failure. Any BulkError explicitly marked
// non-recoverable is fatal; plain errors returned by user handlers are not.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var be *BulkError
	if errors.As(err, &be) {
		return !be.IsRecoverable()
	}
	return false
}

// IsTemporary determines if an error looks transient (e.g., network error,
// temporary DB connection issue). The in-process scheduler uses this to decide
// whether a failed step invocation is worth retrying at all.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF")
}
