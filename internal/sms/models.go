package sms

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the kind of SMS to be sent
type EventType string

const (
	// TypeVerificationCode is a phone verification code message
	TypeVerificationCode EventType = "verification_code"
)

// Event is an SMS delivery request published to Kafka
type Event struct {
	// MessageID is a unique identifier (UUID v4) used for deduplication
	MessageID string    `json:"message_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
}

// NewEvent creates a verification code event with a fresh message id
func NewEvent(phone, message string) Event {
	return Event{
		MessageID: uuid.New().String(),
		EventType: TypeVerificationCode,
		Timestamp: time.Now().UTC(),
		Phone:     phone,
		Message:   message,
	}
}

// Metadata is stored in Redis once an event has been delivered
type Metadata struct {
	SentAt    time.Time `json:"sent_at"`
	Phone     string    `json:"phone"`
	EventType EventType `json:"event_type"`
}
