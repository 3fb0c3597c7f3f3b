package event

import (
	"context"
	"fmt"
	"time"

	"github.com/catalog/backend/internal/domain/shared"
	"github.com/catalog/backend/internal/infrastructure/telemetry"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// KafkaWriter is the subset of kafka-go's Writer the bus needs
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaBus publishes domain events to a Kafka topic. Messages are keyed by
// the aggregate id so all events for one product land on the same partition
// and keep their order.
type KafkaBus struct {
	writer KafkaWriter
	logger *zap.Logger
}

// NewKafkaBus creates a bus over an existing writer
func NewKafkaBus(writer KafkaWriter, logger *zap.Logger) *KafkaBus {
	return &KafkaBus{writer: writer, logger: logger}
}

// NewKafkaBusFromConfig creates a bus with its own writer
func NewKafkaBusFromConfig(brokers []string, topic string, writeTimeout time.Duration, logger *zap.Logger) *KafkaBus {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafkago.RequireAll,
		MaxAttempts:  5,
	}
	return NewKafkaBus(w, logger)
}

// Publish sends a single event to the topic
func (b *KafkaBus) Publish(ctx context.Context, event shared.DomainEvent) error {
	ctx, span := telemetry.StartSpan(ctx, "Kafka.Publish",
		telemetry.WithSpanKind(trace.SpanKindProducer),
		telemetry.WithAttribute("event.type", event.EventType()),
	)
	defer span.End()

	value, err := Encode(event)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	msg := kafkago.Message{
		Key:   []byte(event.AggregateID()),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event-type", Value: []byte(DetailType(event))},
			{Key: "event-id", Value: []byte(event.EventID().String())},
		},
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("kafka write: %w", err)
	}

	b.logger.Debug("event published to Kafka",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("product_id", event.AggregateID()),
	)
	return nil
}

// Close closes the underlying writer
func (b *KafkaBus) Close() error {
	return b.writer.Close()
}

var _ shared.EventPublisher = (*KafkaBus)(nil)
