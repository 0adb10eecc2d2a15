package kafka

import (
	"fmt"
	"os"
	"strings"

	"emochat/internal/config"
)

// Config holds Kafka configuration
type Config struct {
	Brokers           string
	SMSEventsTopic    string
	SMSDLQTopic       string
	ConsumerGroup     string
	EnableIdempotence bool
	Acks              string
}

// LoadConfig loads Kafka configuration from environment variables
func LoadConfig() (*Config, error) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}

	return &Config{
		Brokers:           brokers,
		SMSEventsTopic:    config.GetEnvOrDefault("KAFKA_TOPIC_SMS_EVENTS", "sms-events"),
		SMSDLQTopic:       config.GetEnvOrDefault("KAFKA_TOPIC_SMS_DLQ", "sms-events-dlq"),
		ConsumerGroup:     config.GetEnvOrDefault("KAFKA_CONSUMER_GROUP", "sms-service-group"),
		EnableIdempotence: true,
		Acks:              "all",
	}, nil
}

// GetBrokersList returns brokers as a slice
func (c *Config) GetBrokersList() []string {
	brokers := strings.Split(c.Brokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	return brokers
}
