package domain

import "time"

// TransitionType names one step of the automatic order lifecycle.
type TransitionType string

const (
	ConfirmedToProcessing TransitionType = "CONFIRMED_TO_PROCESSING"
	ProcessingToShipped   TransitionType = "PROCESSING_TO_SHIPPED"
	ShippedToDelivered    TransitionType = "SHIPPED_TO_DELIVERED"
	PendingToCancelled    TransitionType = "PENDING_TO_CANCELLED"
)

// PendingTransition is a persisted, delayed status change. The scheduler
// inserts it; the sweep executor performs exactly one terminal write
// (ExecutedAt / IsExecuted / ExecutionResult). At most one unexecuted row
// may exist per (OrderID, TransitionType).
type PendingTransition struct {
	ID              string         `gorm:"primaryKey" json:"id"`
	OrderID         string         `gorm:"index;column:order_id" json:"orderId"`
	TransitionType  TransitionType `gorm:"column:transition_type" json:"transitionType"`
	FromStatus      OrderStatus    `json:"fromStatus"`
	ToStatus        OrderStatus    `json:"toStatus"`
	ScheduledAt     time.Time      `gorm:"index" json:"scheduledAt"`
	ExecutedAt      *time.Time     `json:"executedAt,omitempty"`
	IsExecuted      bool           `gorm:"index;column:is_executed" json:"isExecuted"`
	ExecutionResult string         `json:"executionResult,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}
