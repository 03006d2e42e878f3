package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// InsufficientStockError is the expected business outcome of a reservation
// that asks for more than is available. It is returned to the caller, not
// logged as an error.
type InsufficientStockError struct {
	SizeID    string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for size %s: requested %d, %d available",
		e.SizeID, e.Requested, e.Available)
}

// Shortfall is how many units the request exceeded availability by.
func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}

// PreconditionError marks a scheduled transition whose pre-conditions no
// longer hold at execution time. It is terminal: the transition is recorded
// as failed and never retried automatically.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "pre-conditions not met: " + e.Reason
}

// InvariantError signals a programming-contract violation, such as a
// counter that would go negative. Callers must not swallow it.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "stock invariant violated: " + e.Msg
}

// TransientError wraps a storage failure that is expected to succeed on
// retry. The sweep executor leaves the affected transition unexecuted so
// the next tick picks it up again.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient storage error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
