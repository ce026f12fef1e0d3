package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"online-storefront/internal/models"
)

// OrderStatusEvent is the message published on every order status change
type OrderStatusEvent struct {
	OrderID     int                `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Status      models.OrderStatus `json:"status"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

// Publisher publishes order status-change events to Kafka. A nil Publisher
// is safe to use and publishes nothing, so deployments without Kafka need no
// special casing.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher for the given brokers and topic
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           100 * time.Millisecond,
		},
	}
}

// PublishStatusChange publishes a status-change event keyed by order number
func (p *Publisher) PublishStatusChange(ctx context.Context, orderID int, orderNumber string, status models.OrderStatus) error {
	if p == nil || p.writer == nil {
		return nil
	}

	event := OrderStatusEvent{
		OrderID:     orderID,
		OrderNumber: orderNumber,
		Status:      status,
		OccurredAt:  time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(orderNumber),
		Value: data,
	})
}

// Close flushes and closes the underlying writer
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
