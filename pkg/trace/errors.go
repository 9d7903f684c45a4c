package trace

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInAdvance is returned when reading a trace at a time that has been logically
	// compacted.
	ErrNotInAdvance = errors.New("time is not in advance of the compaction frontier")
	// ErrReleased is returned when reading through a released agent.
	ErrReleased = errors.New("trace agent has been released")
	// ErrNotBeyond is returned when sealing a batch whose upper does not dominate the trace upper.
	ErrNotBeyond = errors.New("batch upper is not beyond the trace upper")
	// ErrUpdateNotInBatch is returned when sealing an update whose time is outside the batch.
	ErrUpdateNotInBatch = errors.New("update time outside of batch bounds")
	// ErrShape is returned when a keys-only arrangement receives a value.
	ErrShape = errors.New("keys-only arrangement cannot hold values")
	// ErrClosed is returned when writing to a closed arrangement.
	ErrClosed = errors.New("arrangement is closed")
	// ErrColumnOutOfRange is returned when a key projection refers to a missing column.
	ErrColumnOutOfRange = errors.New("key column out of range")
)

// EncodingError reports a row that cannot be encoded into a canonical key.
type EncodingError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *EncodingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *EncodingError) Unwrap() error { return e.Cause }

func newEncodingError(message string, cause error) error {
	return &EncodingError{Message: message, Cause: cause}
}
