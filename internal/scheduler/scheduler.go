// Package scheduler persists delayed order transitions and executes them
// when due. Scheduling is idempotent per (order, transition type); the
// sweep executor owns the single terminal write on each entry.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"orderledger/internal/config"
	"orderledger/internal/domain"
	"orderledger/internal/order"
	"orderledger/internal/storage"
)

// CancelledBySystem is the terminal result written when a state change
// neutralizes a scheduled transition before it fires.
const CancelledBySystem = "FAILED: Cancelled by system"

// Scheduler enqueues pending transitions with business-hour-aware due
// times.
type Scheduler struct {
	cfg         config.AutoTransitionConfig
	transitions storage.TransitionStore
	logger      *zap.Logger
	now         func() time.Time
}

func NewScheduler(cfg config.AutoTransitionConfig, transitions storage.TransitionStore, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		transitions: transitions,
		logger:      logger,
		now:         time.Now,
	}
}

// Schedule enqueues the given transition for o. It is a no-op when the
// subsystem is disabled, when an unexecuted entry of the same type already
// exists, or when the order is not in the transition's from-status —
// scheduling an impossible transition is skipped, not an error.
func (s *Scheduler) Schedule(ctx context.Context, o *domain.Order, tt domain.TransitionType) error {
	if !s.cfg.Enabled {
		s.logger.Debug("auto transition disabled, not scheduling")
		return nil
	}

	spec, ok := order.SpecFor(tt)
	if !ok {
		return fmt.Errorf("unknown transition type %s", tt)
	}

	exists, err := s.transitions.ExistsPending(ctx, o.ID, tt)
	if err != nil {
		return err
	}
	if exists {
		s.logger.Debug("transition already scheduled",
			zap.String("order_id", o.ID),
			zap.String("transition_type", string(tt)),
		)
		return nil
	}

	if o.Status != spec.From {
		s.logger.Warn("not scheduling transition, order status does not match",
			zap.String("order_id", o.ID),
			zap.String("transition_type", string(tt)),
			zap.String("status", string(o.Status)),
			zap.String("expected", string(spec.From)),
		)
		return nil
	}

	scheduledAt := s.now().Add(s.cfg.DelayFor(tt))
	if s.cfg.RespectBusinessHours {
		scheduledAt = AdjustToBusinessHours(scheduledAt, s.cfg.BusinessStartHour, s.cfg.BusinessEndHour)
	}

	t := &domain.PendingTransition{
		ID:             uuid.NewString(),
		OrderID:        o.ID,
		TransitionType: tt,
		FromStatus:     spec.From,
		ToStatus:       spec.To,
		ScheduledAt:    scheduledAt,
	}
	if err := s.transitions.Create(ctx, t); err != nil {
		if errors.Is(err, storage.ErrDuplicateTransition) {
			// Lost the insert race; the winner's entry serves.
			return nil
		}
		return err
	}

	s.logger.Info("scheduled auto transition",
		zap.String("order_id", o.ID),
		zap.String("transition_type", string(tt)),
		zap.Time("scheduled_at", scheduledAt),
	)
	return nil
}

// CancelScheduledTransitions marks every not-yet-executed entry of the
// given type for the order as cancelled, so a later state change (for
// example, a payment completing) neutralizes a transition that would
// otherwise fire against stale preconditions.
func (s *Scheduler) CancelScheduledTransitions(ctx context.Context, orderID string, tt domain.TransitionType) error {
	pending, err := s.transitions.PendingByOrderAndType(ctx, orderID, tt)
	if err != nil {
		return err
	}
	for _, t := range pending {
		if err := s.transitions.MarkExecuted(ctx, t.ID, s.now(), CancelledBySystem); err != nil {
			return err
		}
	}
	s.logger.Info("cancelled pending transitions",
		zap.String("order_id", orderID),
		zap.String("transition_type", string(tt)),
		zap.Int("count", len(pending)),
	)
	return nil
}

// AdjustToBusinessHours moves t to the nearest weekday instant inside
// [startHour, endHour): weekends roll forward a day at a time keeping the
// time of day, a time before the window opens moves to the opening hour
// the same day, and a time at or past the closing hour moves to the
// opening hour of the next business day.
func AdjustToBusinessHours(t time.Time, startHour, endHour int) time.Time {
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, 1)
	}

	switch {
	case t.Hour() < startHour:
		t = atHour(t, startHour)
	case t.Hour() >= endHour:
		t = atHour(t.AddDate(0, 0, 1), startHour)
		// The next day may be a weekend again.
		return AdjustToBusinessHours(t, startHour, endHour)
	}
	return t
}

// InBusinessHours reports whether t is on a weekday inside
// [startHour, endHour).
func InBusinessHours(t time.Time, startHour, endHour int) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return t.Hour() >= startHour && t.Hour() < endHour
}

func atHour(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}
