package sms

import (
	"context"
	"fmt"
	"log/slog"
)

// Publisher publishes an event and waits for the broker acknowledgement
type Publisher interface {
	PublishSync(ctx context.Context, topic string, event any) error
}

// KafkaSender hands messages to the SMS service through Kafka. A confirmed
// publish counts as a successful dispatch.
type KafkaSender struct {
	publisher Publisher
	topic     string
	logger    *slog.Logger
}

// NewKafkaSender creates a sender publishing to topic
func NewKafkaSender(publisher Publisher, topic string, logger *slog.Logger) *KafkaSender {
	return &KafkaSender{publisher: publisher, topic: topic, logger: logger}
}

func (s *KafkaSender) Send(ctx context.Context, phone, message string) error {
	event := NewEvent(phone, message)
	if err := s.publisher.PublishSync(ctx, s.topic, event); err != nil {
		return fmt.Errorf("failed to publish sms event: %w", err)
	}
	s.logger.Debug("SMS event published", "message_id", event.MessageID, "topic", s.topic)
	return nil
}
