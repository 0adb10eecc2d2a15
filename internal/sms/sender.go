// Package sms delivers verification codes by text message. It supports a
// development mode (log only), the Mobizon HTTP gateway, and asynchronous
// delivery through Kafka with a separate consumer service.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"emochat/internal/config"
)

// Sender delivers a text message to a phone number
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

const (
	// ModeLog logs messages instead of sending them
	ModeLog = "log"
	// ModeMobizon sends through the Mobizon HTTP API
	ModeMobizon = "mobizon"
	// ModeKafka publishes events for the SMS service
	ModeKafka = "kafka"
)

// Config holds SMS configuration
type Config struct {
	Mode string

	MobizonAPIKey  string
	MobizonFrom    string
	MobizonBaseURL string
	Timeout        time.Duration
}

// NewConfig creates a new SMS configuration from environment variables
func NewConfig() *Config {
	return &Config{
		Mode:           config.GetEnvOrDefault("SMS_MODE", ModeLog),
		MobizonAPIKey:  config.GetEnvOrDefault("MOBIZON_API_KEY", ""),
		MobizonFrom:    config.GetEnvOrDefault("MOBIZON_FROM", ""),
		MobizonBaseURL: config.GetEnvOrDefault("MOBIZON_BASE_URL", DefaultMobizonURL),
		Timeout:        config.GetEnvDuration("MOBIZON_TIMEOUT", 10*time.Second),
	}
}

// NewSender creates a direct sender for the log or mobizon mode. Kafka
// delivery is built with NewKafkaSender since it needs a producer.
func NewSender(cfg *Config, logger *slog.Logger) (Sender, error) {
	switch cfg.Mode {
	case ModeLog, "":
		return &logSender{logger: logger}, nil
	case ModeMobizon:
		if cfg.MobizonAPIKey == "" {
			return nil, fmt.Errorf("MOBIZON_API_KEY is required for sms mode %q", cfg.Mode)
		}
		return NewMobizonSender(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported sms mode %q", cfg.Mode)
	}
}

// logSender logs messages (development mode)
type logSender struct {
	logger *slog.Logger
}

func (s *logSender) Send(ctx context.Context, phone, message string) error {
	s.logger.Info("[DEV] SMS", "phone", phone, "message", message)
	return nil
}
