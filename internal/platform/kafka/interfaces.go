package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Producer abstracts the traced Kafka writer so notification publishing is
// testable without a broker.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}
