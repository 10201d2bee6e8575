package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/DUBIX17/dubix-stt3/internal/events"
	"github.com/segmentio/kafka-go"
)

const eventTypeUtteranceFinalized = "utterance.finalized"

// KafkaPublisher falls back to log-only mode when no brokers are configured.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if len(brokers) == 0 {
		slog.Info("event publishing disabled, KAFKA_BROKERS not set")
		return &KafkaPublisher{}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	slog.Info("kafka publisher initialized", "brokers", brokers, "topic", topic)
	return &KafkaPublisher{writer: writer, topic: topic}
}

func (p *KafkaPublisher) PublishUtteranceFinalized(ctx context.Context, event events.UtteranceFinalized) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if p.writer == nil {
		slog.Debug("event publishing disabled, dropping event",
			"session_id", event.SessionID,
			"correlation_id", event.CorrelationID)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(event.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventTypeUtteranceFinalized)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	slog.Debug("finalize event published",
		"session_id", event.SessionID,
		"correlation_id", event.CorrelationID,
		"topic", p.topic)
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
