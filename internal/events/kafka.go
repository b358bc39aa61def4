package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ridetrack/internal/observability"
)

// KafkaPublisher writes events to a Kafka topic keyed by ride id, so every
// event of one ride lands on the same partition in order.
type KafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.Hash{}})
	return &KafkaPublisher{writer: w, timeout: 2 * time.Second}
}

// Publish implements Publisher.
func (k *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	err = k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.RideID), Value: b})
	if err != nil {
		observability.EventsPublished.WithLabelValues("error").Inc()
		return err
	}
	observability.EventsPublished.WithLabelValues("ok").Inc()
	return nil
}

// Close flushes pending writes.
func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
