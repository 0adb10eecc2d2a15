package session

import (
	"context"
	"log/slog"
	"time"

	"emochat/internal/config"
	"emochat/internal/registration"
	"emochat/internal/verification"
)

// View is the observable state of a session after an operation, together
// with the one-shot event it produced, if any.
type View struct {
	SessionID string
	// RemainingMillis is nil when no code is outstanding or no tick has been seen
	RemainingMillis       *int64
	Verified              bool
	AgreedToPrivacyPolicy bool
	// Event is nil when nothing is pending. Reading a view drains it.
	Event registration.Event
}

// Fields carries a partial form update. Nil fields are left unchanged.
type Fields struct {
	ID              *string `json:"id"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"password_confirm"`
	Nickname        *string `json:"nickname"`
	Phone           *string `json:"phone"`
	Code            *string `json:"code"`
}

// ProfileStore persists the public profile of a newly registered user.
type ProfileStore interface {
	AddUser(ctx context.Context, user registration.User) error
}

// Dependencies are the collaborators shared by every session.
type Dependencies struct {
	Directory registration.Directory
	Accounts  registration.Accounts
	Sender    registration.Sender
	// Profiles may be nil when profiles are stored elsewhere
	Profiles ProfileStore
	Clock    verification.Clock
	Logger   *slog.Logger
}

// Config holds session tuning.
type Config struct {
	IdleTTL         time.Duration
	JanitorInterval time.Duration
	TickInterval    time.Duration
	TickMaxDuration time.Duration
	CallTimeout     time.Duration
}

// LoadConfigFromEnv loads session configuration from environment variables
func LoadConfigFromEnv() *Config {
	return &Config{
		IdleTTL:         config.GetEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		JanitorInterval: config.GetEnvDuration("SESSION_JANITOR_INTERVAL", time.Minute),
		TickInterval:    config.GetEnvDuration("TICK_INTERVAL", verification.DefaultTickInterval),
		TickMaxDuration: config.GetEnvDuration("TICK_MAX_DURATION", verification.DefaultTickMaxDuration),
		CallTimeout:     config.GetEnvDuration("COLLABORATOR_TIMEOUT", 10*time.Second),
	}
}

func (c *Config) withDefaults() *Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.IdleTTL <= 0 {
		out.IdleTTL = 30 * time.Minute
	}
	if out.JanitorInterval <= 0 {
		out.JanitorInterval = time.Minute
	}
	if out.CallTimeout <= 0 {
		out.CallTimeout = 10 * time.Second
	}
	return &out
}
