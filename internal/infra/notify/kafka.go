package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/wonny/quantengine/internal/pkg/config"
)

// messageWriter is the part of *kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes decision and position events to their topics,
// keyed by symbol so one symbol's events stay ordered.
type KafkaPublisher struct {
	writer messageWriter
	topics map[EventType]string
	now    func() time.Time
}

// NewKafkaPublisher creates a synchronous writer over cfg.Brokers
func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: brokers are required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: cfg.BatchTimeout,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("decision_topic", cfg.DecisionTopic).
		Str("position_topic", cfg.PositionTopic).
		Msg("✅ Kafka producer ready")

	return newKafkaPublisher(writer, cfg), nil
}

func newKafkaPublisher(w messageWriter, cfg config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topics: map[EventType]string{
			EventDecision:       cfg.DecisionTopic,
			EventPositionClosed: cfg.PositionTopic,
		},
		now: time.Now,
	}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

// Publish writes evt to the topic of its type
func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	topic, ok := p.topics[evt.Type]
	if !ok || topic == "" {
		return fmt.Errorf("kafka: no topic for event %q", evt.Type)
	}

	value, err := evt.encode()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(evt.Symbol),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "event_id", Value: []byte(evt.ID.String())},
		},
		Time: p.now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "none":
		return 0
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}
