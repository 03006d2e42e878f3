// Package order holds the pure order lifecycle rules: which automatic
// transitions exist, what status they require, and their pre-condition
// validators. Side effects live with the sweep executor; nothing here
// touches storage.
package order

import (
	"fmt"

	"orderledger/internal/domain"
)

// Precondition validates an order against a transition's business rules.
// It is a pure function of the current order state.
type Precondition func(o *domain.Order) error

// Spec describes one transition type: the status edge it walks, its
// pre-condition, and the next transition to chain on success. Adding a
// transition type is a new table entry, not a new branch.
type Spec struct {
	From         domain.OrderStatus
	To           domain.OrderStatus
	Precondition Precondition
	Next         domain.TransitionType // empty marks the end of the chain
}

var transitions = map[domain.TransitionType]Spec{
	domain.ConfirmedToProcessing: {
		From:         domain.OrderStatusConfirmed,
		To:           domain.OrderStatusProcessing,
		Precondition: paymentCapturedIfRequired,
		Next:         domain.ProcessingToShipped,
	},
	domain.ProcessingToShipped: {
		From: domain.OrderStatusProcessing,
		To:   domain.OrderStatusShipped,
		Next: domain.ShippedToDelivered,
	},
	domain.ShippedToDelivered: {
		From: domain.OrderStatusShipped,
		To:   domain.OrderStatusDelivered,
	},
	domain.PendingToCancelled: {
		From:         domain.OrderStatusPending,
		To:           domain.OrderStatusCanceled,
		Precondition: paymentNotCompleted,
	},
}

// SpecFor looks up the spec for a transition type.
func SpecFor(tt domain.TransitionType) (Spec, bool) {
	spec, ok := transitions[tt]
	return spec, ok
}

// CheckApplicable reports whether the transition may run against the
// order's current state. A nil return means the status matches and the
// pre-condition passes; otherwise a *domain.PreconditionError explains
// what blocked it.
func CheckApplicable(o *domain.Order, tt domain.TransitionType) error {
	spec, ok := transitions[tt]
	if !ok {
		return &domain.PreconditionError{Reason: fmt.Sprintf("unknown transition type %s", tt)}
	}
	if o.Status != spec.From {
		return &domain.PreconditionError{Reason: fmt.Sprintf(
			"order status is %s, expected %s", o.Status, spec.From)}
	}
	if spec.Precondition != nil {
		return spec.Precondition(o)
	}
	return nil
}

// paymentCapturedIfRequired blocks CONFIRMED -> PROCESSING while an
// upfront-capture payment method has not completed.
func paymentCapturedIfRequired(o *domain.Order) error {
	if o.PaymentMethod.RequiresUpfrontCapture() && o.PaymentStatus != domain.PaymentStatusCompleted {
		return &domain.PreconditionError{Reason: fmt.Sprintf(
			"%s payment not completed, status is %s", o.PaymentMethod, o.PaymentStatus)}
	}
	return nil
}

// paymentNotCompleted blocks auto-cancellation of an order the customer
// already paid for.
func paymentNotCompleted(o *domain.Order) error {
	if o.PaymentStatus == domain.PaymentStatusCompleted {
		return &domain.PreconditionError{Reason: "order already paid, must not be auto-cancelled"}
	}
	return nil
}
