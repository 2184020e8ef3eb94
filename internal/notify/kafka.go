// Package notify publishes reward events to Kafka for downstream delivery
// (email, push). Publishing is best effort: the payment flow never depends
// on it.
package notify

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mercadito/shop-api/internal/domain/order"
)

// DefaultTopic is the topic reward events are published to.
const DefaultTopic = "coupon.issued"

var _ order.Notifier = (*KafkaNotifier)(nil)

// KafkaNotifier publishes reward events through a kafka.Writer.
type KafkaNotifier struct {
	writer *kafka.Writer
	lg     *zap.Logger
}

// NewKafkaNotifier creates a notifier writing to the given brokers and topic.
func NewKafkaNotifier(brokers []string, topic string, lg *zap.Logger) *KafkaNotifier {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
		// Payment latency must not wait on broker acks.
		Async: true,
	}
	return &KafkaNotifier{writer: w, lg: lg}
}

// RewardIssued publishes the event keyed by user, so one user's rewards
// stay ordered within a partition.
func (n *KafkaNotifier) RewardIssued(ctx context.Context, ev order.RewardIssued) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal reward event")
	}

	n.lg.Debug("publishing reward event",
		zap.String("code", ev.Code),
		zap.String("user_id", ev.UserID),
	)
	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.UserID),
		Value: payload,
	}); err != nil {
		return errors.Wrap(err, "write reward event")
	}
	return nil
}

// Close flushes pending messages and releases the writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
