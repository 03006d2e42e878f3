// Package reservation orchestrates multi-item stock holds as a saga. There
// is no cross-item transaction at the storage layer, so a failed item is
// compensated by explicitly releasing every hold the batch already placed.
package reservation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"orderledger/internal/platform/observability"
)

// RollbackSuffix marks compensating release references so the movement log
// distinguishes rollbacks from regular releases.
const RollbackSuffix = "_ROLLBACK"

// Line is one (size, quantity) pair of a batch.
type Line struct {
	SizeID   string `json:"sizeId"`
	Quantity int    `json:"quantity"`
}

type ledger interface {
	Reserve(ctx context.Context, sizeID string, qty int, ref string) (int, error)
	Release(ctx context.Context, sizeID string, qty int, ref string) error
}

// Coordinator reserves batches of items all-or-nothing on top of the
// per-item ledger operations.
type Coordinator struct {
	ledger ledger
	logger *zap.Logger
	tracer observability.Tracer
}

func NewCoordinator(l ledger, logger *zap.Logger, tracer observability.Tracer) *Coordinator {
	return &Coordinator{
		ledger: l,
		logger: logger,
		tracer: tracer,
	}
}

// ReserveBatch places one hold per line, deriving each item's reference
// from refPrefix. On the first failure it releases the already-placed holds
// in reverse order and returns the failure, leaving stock exactly as it was
// before the batch. On success it returns the per-item references the
// caller needs to later release or confirm the holds individually.
func (c *Coordinator) ReserveBatch(ctx context.Context, refPrefix string, lines []Line) ([]string, error) {
	ctx, span := c.tracer.Start(ctx, "reservation.reserve_batch")
	defer span.End()

	refs := make([]string, 0, len(lines))
	for i, line := range lines {
		ref := itemRef(refPrefix, line.SizeID)
		if _, err := c.ledger.Reserve(ctx, line.SizeID, line.Quantity, ref); err != nil {
			c.rollback(ctx, lines[:i], refPrefix)
			return nil, fmt.Errorf("reserving %d of size %s: %w", line.Quantity, line.SizeID, err)
		}
		refs = append(refs, ref)
	}

	c.logger.Info("batch reserved",
		zap.String("reference_prefix", refPrefix),
		zap.Int("items", len(lines)),
	)
	return refs, nil
}

// rollback releases the already-reserved prefix of the batch in reverse
// order. Release is best-effort; a failing compensation is logged and the
// remaining items are still released.
func (c *Coordinator) rollback(ctx context.Context, reserved []Line, refPrefix string) {
	for i := len(reserved) - 1; i >= 0; i-- {
		line := reserved[i]
		ref := itemRef(refPrefix, line.SizeID) + RollbackSuffix
		if err := c.ledger.Release(ctx, line.SizeID, line.Quantity, ref); err != nil {
			c.logger.Error("rollback release failed",
				zap.String("size_id", line.SizeID),
				zap.Int("quantity", line.Quantity),
				zap.String("reference", ref),
				zap.Error(err),
			)
		}
	}
	c.logger.Info("batch rolled back",
		zap.String("reference_prefix", refPrefix),
		zap.Int("items", len(reserved)),
	)
}

// UpdateHold adjusts an existing hold to a new quantity by reserving or
// releasing only the delta. A failed increase leaves the original hold
// untouched; nothing new was committed, so there is nothing to compensate.
func (c *Coordinator) UpdateHold(ctx context.Context, refPrefix, sizeID string, oldQty, newQty int) error {
	ctx, span := c.tracer.Start(ctx, "reservation.update_hold")
	defer span.End()

	delta := newQty - oldQty
	ref := itemRef(refPrefix, sizeID)
	switch {
	case delta > 0:
		if _, err := c.ledger.Reserve(ctx, sizeID, delta, ref); err != nil {
			return err
		}
	case delta < 0:
		if err := c.ledger.Release(ctx, sizeID, -delta, ref+RollbackSuffix); err != nil {
			return err
		}
	}
	return nil
}

func itemRef(prefix, sizeID string) string {
	return prefix + "-" + sizeID
}
