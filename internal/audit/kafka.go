package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes audit events to a Kafka topic, one JSON message
// per event, keyed by user ID so a subject's events stay ordered within
// a partition.
type KafkaSink struct {
	writer *kafka.Writer
	log    *slog.Logger
}

func NewKafkaSink(brokers []string, topic string, log *slog.Logger) *KafkaSink {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 100 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
		log: log,
	}
}

func (s *KafkaSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}

	value, err := json.Marshal(event)
	if err != nil {
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Time:  event.Timestamp,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		// Audit delivery must never fail the request that produced it.
		s.log.Warn("audit kafka publish failed", "event_type", event.EventType, "error", err)
	}
}

func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
