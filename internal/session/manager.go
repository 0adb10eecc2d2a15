// Package session hosts registration screens as server-side sessions.
// Each session serializes its operations through a mailbox goroutine and is
// reaped after a period of inactivity.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"emochat/internal/verification"
)

var (
	// ErrSessionNotFound is returned when a session is not found
	ErrSessionNotFound = errors.New("registration session not found")
	// ErrSessionClosed is returned when an operation reaches a closed session
	ErrSessionClosed = errors.New("registration session closed")
	// ErrManagerClosed is returned by Create after Shutdown
	ErrManagerClosed = errors.New("session manager closed")
)

// Manager defines the interface for registration session management
type Manager interface {
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	Close(ctx context.Context, sessionID string) error
	Count() int
	Shutdown()
}

// manager implements Manager with an in-memory table
type manager struct {
	deps Dependencies
	cfg  *Config

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	quit chan struct{}
	done chan struct{}
}

// NewManager creates a session manager and starts its idle janitor.
// Directory, Accounts and Sender are required.
func NewManager(deps Dependencies, cfg *Config) Manager {
	if deps.Clock == nil {
		deps.Clock = verification.SystemClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	m := &manager{
		deps:     deps,
		cfg:      cfg.withDefaults(),
		sessions: make(map[string]*Session),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go m.janitor()
	return m
}

// Create starts a new session
func (m *manager) Create(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	s := newSession(uuid.New().String(), m.deps, m.cfg)
	m.sessions[s.ID()] = s

	m.deps.Logger.Info("Registration session created", "session_id", s.ID())
	return s, nil
}

// Get retrieves a session by ID
func (m *manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close removes a session and releases its resources
func (m *manager) Close(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	s.Close()
	m.deps.Logger.Info("Registration session closed", "session_id", sessionID)
	return nil
}

// Count returns the number of live sessions
func (m *manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops the janitor and closes every session
func (m *manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	close(m.quit)
	<-m.done

	for _, s := range sessions {
		s.Close()
	}
	m.deps.Logger.Info("Session manager stopped", "closed_sessions", len(sessions))
}

func (m *manager) janitor() {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			m.reap(m.deps.Clock.Now())
		}
	}
}

// reap closes sessions idle for longer than the configured TTL
func (m *manager) reap(now time.Time) int {
	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.cfg.IdleTTL {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
		m.deps.Logger.Info("Idle registration session reaped", "session_id", s.ID())
	}
	return len(stale)
}
