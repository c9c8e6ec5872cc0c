package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of kafka.Writer the tracker needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTracker publishes events as JSON, keyed by visitor so one visitor's
// events stay on one partition.
type KafkaTracker struct {
	Writer MessageWriter
}

// NewKafkaWriter returns a synchronous writer that flushes each message.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 250 * time.Millisecond,
		BatchSize:    1,
	}
}

// NewKafkaTracker returns a tracker publishing to topic, or ErrUnavailable
// when no brokers are configured.
func NewKafkaTracker(brokers []string, topic string) (*KafkaTracker, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, ErrUnavailable
	}
	return &KafkaTracker{Writer: NewKafkaWriter(brokers, topic)}, nil
}

func (k *KafkaTracker) Track(ctx context.Context, e Event) error {
	if k == nil || k.Writer == nil {
		return ErrUnavailable
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	key := e.VisitorID
	if key == "" {
		key = e.ID
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(e.Action)},
		},
	}
	if err := k.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaTracker) Close() error {
	if k == nil || k.Writer == nil {
		return nil
	}
	return k.Writer.Close()
}
