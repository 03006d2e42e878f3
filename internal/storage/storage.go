// Package storage defines the persistence ports the core depends on.
// Adapters live in subpackages; the ledger and scheduler never talk to a
// database directly.
package storage

import (
	"context"
	"errors"
	"time"

	"orderledger/internal/domain"
)

// ErrDuplicateTransition is returned by TransitionStore.Create when an
// unexecuted transition of the same type already exists for the order.
// Losing this race is benign: the scheduler treats it as already scheduled.
var ErrDuplicateTransition = errors.New("unexecuted transition already scheduled")

// StockMutator inspects and mutates a stock record while its row lock is
// held. Returning a movement appends it atomically with the record update;
// returning an error aborts the mutation and nothing is written.
type StockMutator func(rec *domain.StockRecord) (*domain.StockMovement, error)

// StockStore persists stock records and their movement log.
type StockStore interface {
	// Get returns a read-only snapshot of the record for sizeID.
	Get(ctx context.Context, sizeID string) (*domain.StockRecord, error)

	// Create inserts a new record. It fails if one already exists.
	Create(ctx context.Context, rec *domain.StockRecord) error

	// Update acquires the exclusive per-size lock, reads the current
	// record, applies fn, and commits the record plus the returned
	// movement as one unit. The lock scope is the single sizeID; callers
	// touching different sizes never contend.
	Update(ctx context.Context, sizeID string, fn StockMutator) error

	// All returns every stock record, for reporting.
	All(ctx context.Context) ([]domain.StockRecord, error)

	// MovementsByReferencePrefix returns movements whose reference number
	// starts with prefix, in append order.
	MovementsByReferencePrefix(ctx context.Context, prefix string) ([]domain.StockMovement, error)
}

// OrderStore reads and writes the order fields the core owns.
type OrderStore interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	Create(ctx context.Context, order *domain.Order) error

	// UpdateStatus persists a lifecycle status change.
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error

	// UpdatePaymentStatus persists a payment status change.
	UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error
}

// TransitionStore persists pending auto-transitions.
type TransitionStore interface {
	Create(ctx context.Context, t *domain.PendingTransition) error

	// ExistsPending reports whether an unexecuted transition of this type
	// already exists for the order.
	ExistsPending(ctx context.Context, orderID string, tt domain.TransitionType) (bool, error)

	// Due returns all unexecuted transitions scheduled at or before now.
	Due(ctx context.Context, now time.Time) ([]domain.PendingTransition, error)

	// PendingByOrderAndType returns the unexecuted transitions of one type
	// for one order.
	PendingByOrderAndType(ctx context.Context, orderID string, tt domain.TransitionType) ([]domain.PendingTransition, error)

	// MarkExecuted performs the terminal write on a transition.
	MarkExecuted(ctx context.Context, id string, executedAt time.Time, result string) error
}
