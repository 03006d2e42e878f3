// Package notify delivers order status-change notifications. Delivery is
// fire-and-log: the sweep executor calls it after a transition commits and
// ignores failures.
package notify

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"orderledger/internal/domain"
	"orderledger/internal/platform/kafka"
)

// Sender is the notification collaborator the core calls.
type Sender interface {
	NotifyStatusChange(ctx context.Context, order *domain.Order, from, to domain.OrderStatus) error
}

// StatusChangedEvent is the payload published for downstream surfaces
// (email rendering, webhooks) to act on.
type StatusChangedEvent struct {
	OrderID       string             `json:"orderId"`
	OrderNumber   string             `json:"orderNumber"`
	FromStatus    domain.OrderStatus `json:"fromStatus"`
	ToStatus      domain.OrderStatus `json:"toStatus"`
	CustomerEmail string             `json:"customerEmail,omitempty"`
	OccurredAt    time.Time          `json:"occurredAt"`
}

// KafkaSender publishes StatusChangedEvent messages keyed by order id.
type KafkaSender struct {
	producer kafka.Producer
	logger   *zap.Logger
}

func NewKafkaSender(producer kafka.Producer, logger *zap.Logger) *KafkaSender {
	return &KafkaSender{
		producer: producer,
		logger:   logger,
	}
}

func (s *KafkaSender) NotifyStatusChange(ctx context.Context, order *domain.Order, from, to domain.OrderStatus) error {
	event := StatusChangedEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		FromStatus:    from,
		ToStatus:      to,
		CustomerEmail: order.CustomerEmail,
		OccurredAt:    time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := s.producer.WriteMessage(ctx, kafkago.Message{
		Key:   []byte(order.ID),
		Value: payload,
	}); err != nil {
		return err
	}

	s.logger.Info("published status change",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return nil
}

// LogSender is the fallback when no broker is configured: status changes
// only land in the log.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) NotifyStatusChange(_ context.Context, order *domain.Order, from, to domain.OrderStatus) error {
	s.logger.Info("order status changed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return nil
}
