package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"emochat/internal/metrics"
)

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers       string
	Topic         string
	DLQTopic      string
	ConsumerGroup string
	MaxRetries    int
	// RetryBackoff is multiplied by the attempt number between retries
	RetryBackoff time.Duration
}

// outcome is what processing decided for one message
type outcome int

const (
	// outcomeSent: delivered and recorded, commit
	outcomeSent outcome = iota
	// outcomeDuplicate: delivered earlier, commit
	outcomeDuplicate
	// outcomeInvalid: unparseable or incomplete, commit to skip
	outcomeInvalid
	// outcomeDeadLetter: delivery kept failing, publish to DLQ and commit
	outcomeDeadLetter
	// outcomeRetry: idempotency store unavailable, leave uncommitted
	outcomeRetry
)

func (o outcome) String() string {
	switch o {
	case outcomeSent:
		return "sent"
	case outcomeDuplicate:
		return "duplicate"
	case outcomeInvalid:
		return "invalid"
	case outcomeDeadLetter:
		return "dead_letter"
	default:
		return "retry"
	}
}

// Stats are running counters exposed on /stats
type Stats struct {
	Sent        int64 `json:"sent"`
	Duplicates  int64 `json:"duplicates"`
	Invalid     int64 `json:"invalid"`
	DeadLetters int64 `json:"dead_letters"`
}

// processor delivers parsed events; it is independent of Kafka
type processor struct {
	sender Sender
	store  *IdempotencyStore
	config *ConsumerConfig
	logger *slog.Logger

	sent, duplicates, invalid, deadLetters atomic.Int64
}

// Consumer reads SMS events from Kafka and delivers them
type Consumer struct {
	*processor
	consumer    *kafka.Consumer
	dlqProducer *kafka.Producer
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config *ConsumerConfig, sender Sender, store *IdempotencyStore, logger *slog.Logger) (*Consumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  config.Brokers,
		"group.id":           config.ConsumerGroup,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	dlqProducer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": config.Brokers,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create DLQ producer: %w", err)
	}

	logger.Info("Kafka consumer initialized",
		"brokers", config.Brokers,
		"topic", config.Topic,
		"group", config.ConsumerGroup)

	return &Consumer{
		processor: &processor{
			sender: sender,
			store:  store,
			config: config,
			logger: logger,
		},
		consumer:    c,
		dlqProducer: dlqProducer,
	}, nil
}

// Start consumes messages until ctx is done
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.consumer.Subscribe(c.config.Topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %w", err)
	}

	c.logger.Info("Starting to consume messages", "topic", c.config.Topic)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer shutting down...")
			return nil
		default:
		}

		msg, err := c.consumer.ReadMessage(time.Second)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			c.logger.Error("Error reading message", "error", err)
			continue
		}

		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg *kafka.Message) {
	c.logger.Debug("Received sms event",
		"partition", msg.TopicPartition.Partition,
		"offset", msg.TopicPartition.Offset)

	event, result, err := c.handle(ctx, msg.Value)
	switch result {
	case outcomeRetry:
		// not committed; the message is read again after a rebalance or restart
		return
	case outcomeDeadLetter:
		c.sendToDLQ(event, err)
	}
	c.commitMessage(msg)
}

// handle parses and delivers one message value
func (p *processor) handle(ctx context.Context, value []byte) (Event, outcome, error) {
	result, event, err := p.decide(ctx, value)
	metrics.RecordSMSDelivery(result.String())

	switch result {
	case outcomeSent:
		p.sent.Add(1)
	case outcomeDuplicate:
		p.duplicates.Add(1)
	case outcomeInvalid:
		p.invalid.Add(1)
	case outcomeDeadLetter:
		p.deadLetters.Add(1)
	}
	return event, result, err
}

func (p *processor) decide(ctx context.Context, value []byte) (outcome, Event, error) {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		p.logger.Error("Failed to parse sms event", "error", err)
		return outcomeInvalid, event, err
	}
	if event.MessageID == "" || event.Phone == "" {
		p.logger.Error("SMS event missing message_id or phone", "type", event.EventType)
		return outcomeInvalid, event, errors.New("incomplete event")
	}

	processed, err := p.store.IsProcessed(ctx, event.MessageID)
	if err != nil {
		p.logger.Error("Failed to check idempotency", "messageID", event.MessageID, "error", err)
		return outcomeRetry, event, err
	}
	if processed {
		p.logger.Warn("Duplicate sms event detected, skipping", "messageID", event.MessageID)
		return outcomeDuplicate, event, nil
	}

	if err := p.deliverWithRetry(ctx, event); err != nil {
		p.logger.Error("Failed to deliver sms event after retries",
			"messageID", event.MessageID,
			"error", err)
		return outcomeDeadLetter, event, err
	}

	first, err := p.store.MarkAsProcessed(ctx, event)
	if err != nil {
		p.logger.Error("Failed to mark as processed", "messageID", event.MessageID, "error", err)
		return outcomeRetry, event, err
	}
	if !first {
		p.logger.Warn("Message was processed by another consumer (race condition)",
			"messageID", event.MessageID)
	}

	p.logger.Info("SMS event processed successfully", "messageID", event.MessageID)
	return outcomeSent, event, nil
}

func (p *processor) deliverWithRetry(ctx context.Context, event Event) error {
	maxRetries := p.config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := p.config.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := p.sender.Send(ctx, event.Phone, event.Message)
		if err == nil {
			if attempt > 1 {
				p.logger.Info("SMS sent after retry", "messageID", event.MessageID, "attempt", attempt)
			}
			return nil
		}

		lastErr = err
		p.logger.Warn("Failed to send sms, will retry",
			"messageID", event.MessageID,
			"attempt", attempt,
			"maxRetries", maxRetries,
			"error", err)

		if attempt < maxRetries {
			select {
			case <-time.After(time.Duration(attempt) * backoff):
			case <-ctx.Done():
				return fmt.Errorf("delivery interrupted: %w", ctx.Err())
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Stats returns a snapshot of the running counters
func (p *processor) Stats() Stats {
	return Stats{
		Sent:        p.sent.Load(),
		Duplicates:  p.duplicates.Load(),
		Invalid:     p.invalid.Load(),
		DeadLetters: p.deadLetters.Load(),
	}
}

func (c *Consumer) sendToDLQ(event Event, processingError error) {
	dlqEvent := map[string]any{
		"original_event": event,
		"error":          processingError.Error(),
		"failed_at":      time.Now().UTC(),
		"consumer_group": c.config.ConsumerGroup,
	}

	data, err := json.Marshal(dlqEvent)
	if err != nil {
		c.logger.Error("Failed to marshal DLQ event", "messageID", event.MessageID, "error", err)
		return
	}

	err = c.dlqProducer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &c.config.DLQTopic,
			Partition: kafka.PartitionAny,
		},
		Value: data,
	}, nil)
	if err != nil {
		c.logger.Error("Failed to send to DLQ", "messageID", event.MessageID, "error", err)
		return
	}

	c.logger.Warn("SMS event sent to DLQ",
		"messageID", event.MessageID,
		"dlq_topic", c.config.DLQTopic)
}

func (c *Consumer) commitMessage(msg *kafka.Message) {
	if _, err := c.consumer.CommitMessage(msg); err != nil {
		c.logger.Error("Failed to commit offset",
			"partition", msg.TopicPartition.Partition,
			"offset", msg.TopicPartition.Offset,
			"error", err)
	}
}

// Close flushes the DLQ producer and closes the consumer
func (c *Consumer) Close() {
	c.logger.Info("Closing Kafka consumer...")
	c.dlqProducer.Flush(5000)
	c.dlqProducer.Close()
	if err := c.consumer.Close(); err != nil {
		c.logger.Error("Failed to close consumer", "error", err)
	}
	c.logger.Info("Kafka consumer closed")
}
