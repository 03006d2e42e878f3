package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"orderledger/internal/config"
	"orderledger/internal/domain"
	"orderledger/internal/notify"
	"orderledger/internal/order"
	"orderledger/internal/platform/observability"
	"orderledger/internal/storage"
)

const (
	resultSuccess             = "SUCCESS"
	resultPreconditionsNotMet = "FAILED: Pre-conditions not met"
)

type compensator interface {
	Release(ctx context.Context, sizeID string, qty int, ref string) error
	Restock(ctx context.Context, sizeID string, qty int, ref, note string) error
}

// Executor is the periodic job that applies due transitions. One failing
// transition never aborts the sweep for the others; transient storage
// failures leave the entry unexecuted so the next tick retries it, while
// failed pre-conditions are terminal.
type Executor struct {
	cfg         config.AutoTransitionConfig
	transitions storage.TransitionStore
	orders      storage.OrderStore
	ledger      compensator
	scheduler   *Scheduler
	sender      notify.Sender
	logger      *zap.Logger
	tracer      observability.Tracer
	now         func() time.Time
}

func NewExecutor(
	cfg config.AutoTransitionConfig,
	transitions storage.TransitionStore,
	orders storage.OrderStore,
	ledger compensator,
	sched *Scheduler,
	sender notify.Sender,
	logger *zap.Logger,
	tracer observability.Tracer,
) *Executor {
	return &Executor{
		cfg:         cfg,
		transitions: transitions,
		orders:      orders,
		ledger:      ledger,
		scheduler:   sched,
		sender:      sender,
		logger:      logger,
		tracer:      tracer,
		now:         time.Now,
	}
}

// Run owns the ticker loop. It blocks until ctx is cancelled. A disabled
// subsystem returns immediately.
func (e *Executor) Run(ctx context.Context) error {
	if !e.cfg.Enabled {
		e.logger.Info("auto transition disabled, sweep loop not started")
		return nil
	}

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	e.logger.Info("sweep loop started", zap.Duration("interval", e.cfg.SweepInterval))
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("sweep loop stopped")
			return nil
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep performs one pass over the due, unexecuted transitions. Outside
// business hours (when enforced) all due work is deferred to the next
// in-window sweep; overdue entries are simply found later, and staleness
// is handled by re-validation, not by dropping them.
func (e *Executor) Sweep(ctx context.Context) {
	if !e.cfg.Enabled {
		return
	}

	now := e.now()
	if e.cfg.RespectBusinessHours && !InBusinessHours(now, e.cfg.BusinessStartHour, e.cfg.BusinessEndHour) {
		e.logger.Debug("outside business hours, skipping sweep")
		return
	}

	ctx, span := e.tracer.Start(ctx, "scheduler.sweep")
	defer span.End()

	due, err := e.transitions.Due(ctx, now)
	if err != nil {
		e.logger.Error("failed to fetch due transitions", zap.Error(err))
		return
	}
	span.SetAttributes(attribute.Int("sweep.due_count", len(due)))
	if len(due) == 0 {
		return
	}

	e.logger.Info("executing due transitions", zap.Int("count", len(due)))
	for _, t := range due {
		e.execute(ctx, t)
	}
}

func (e *Executor) execute(ctx context.Context, t domain.PendingTransition) {
	log := e.logger.With(
		zap.String("transition_id", t.ID),
		zap.String("order_id", t.OrderID),
		zap.String("transition_type", string(t.TransitionType)),
	)

	o, err := e.orders.Get(ctx, t.OrderID)
	if err != nil {
		if domain.IsTransient(err) {
			log.Error("transient failure loading order, will retry", zap.Error(err))
			return
		}
		e.markFailed(ctx, t, fmt.Sprintf("FAILED: %v", err), log)
		return
	}

	// Re-validate: the order may have moved on since scheduling.
	if err := order.CheckApplicable(o, t.TransitionType); err != nil {
		log.Warn("pre-conditions not met", zap.Error(err))
		e.markFailed(ctx, t, resultPreconditionsNotMet, log)
		return
	}

	spec, _ := order.SpecFor(t.TransitionType)
	statusBefore := o.Status

	if err := e.orders.UpdateStatus(ctx, o.ID, spec.To); err != nil {
		if domain.IsTransient(err) {
			log.Error("transient failure applying status, will retry", zap.Error(err))
			return
		}
		e.markFailed(ctx, t, fmt.Sprintf("FAILED: %v", err), log)
		return
	}
	o.Status = spec.To

	if err := e.runSideEffects(ctx, o, t.TransitionType, statusBefore); err != nil {
		if domain.IsTransient(err) {
			log.Error("transient failure in side effects, will retry", zap.Error(err))
			return
		}
		log.Error("side effects failed", zap.Error(err))
		e.markFailed(ctx, t, fmt.Sprintf("FAILED: %v", err), log)
		return
	}

	if err := e.transitions.MarkExecuted(ctx, t.ID, e.now(), resultSuccess); err != nil {
		log.Error("failed to record transition result, will retry", zap.Error(err))
		return
	}

	if spec.Next != "" {
		if err := e.scheduler.Schedule(ctx, o, spec.Next); err != nil {
			log.Error("failed to chain next transition", zap.Error(err))
		}
	}

	if e.cfg.NotifyCustomerOnTransition {
		if err := e.sender.NotifyStatusChange(ctx, o, statusBefore, spec.To); err != nil {
			log.Error("status change notification failed", zap.Error(err))
		}
	}

	log.Info("executed auto transition",
		zap.String("from", string(statusBefore)),
		zap.String("to", string(spec.To)),
	)
}

// runSideEffects performs the type-specific business logic after the
// status change. For cancellation the compensation depends on how far the
// order had progressed when the sweep caught it: a PENDING order only
// holds reservations, while a CONFIRMED one already had stock deducted and
// needs it restored.
func (e *Executor) runSideEffects(ctx context.Context, o *domain.Order, tt domain.TransitionType, statusBefore domain.OrderStatus) error {
	switch tt {
	case domain.PendingToCancelled:
		switch statusBefore {
		case domain.OrderStatusPending:
			e.releaseOrderStock(ctx, o)
		case domain.OrderStatusConfirmed:
			e.restoreOrderStock(ctx, o)
		}
		if o.PaymentStatus == domain.PaymentStatusPending {
			if err := e.orders.UpdatePaymentStatus(ctx, o.ID, domain.PaymentStatusCanceled); err != nil {
				return err
			}
			o.PaymentStatus = domain.PaymentStatusCanceled
			e.logger.Info("cancelled payment for auto-cancelled order", zap.String("order_id", o.ID))
		}
	}
	return nil
}

func (e *Executor) releaseOrderStock(ctx context.Context, o *domain.Order) {
	for _, item := range o.Items {
		ref := cancellationRef(o.OrderNumber, item.SizeID)
		if err := e.ledger.Release(ctx, item.SizeID, item.Quantity, ref); err != nil {
			e.logger.Error("failed to release stock for cancelled order",
				zap.String("order_id", o.ID),
				zap.String("size_id", item.SizeID),
				zap.Error(err),
			)
		}
	}
}

func (e *Executor) restoreOrderStock(ctx context.Context, o *domain.Order) {
	for _, item := range o.Items {
		ref := cancellationRef(o.OrderNumber, item.SizeID)
		err := e.ledger.Restock(ctx, item.SizeID, item.Quantity, ref,
			"Stock returned from CONFIRMED -> CANCELED order")
		if err != nil {
			e.logger.Error("failed to restore stock for cancelled order",
				zap.String("order_id", o.ID),
				zap.String("size_id", item.SizeID),
				zap.Error(err),
			)
		}
	}
}

func (e *Executor) markFailed(ctx context.Context, t domain.PendingTransition, result string, log *zap.Logger) {
	if err := e.transitions.MarkExecuted(ctx, t.ID, e.now(), result); err != nil {
		log.Error("failed to record transition failure", zap.Error(err))
	}
}

func cancellationRef(orderNumber, sizeID string) string {
	return "CANCEL-" + orderNumber + "-" + sizeID
}
