package verification

import (
	"errors"
	"time"
	"unicode/utf8"
)

// Window is how long an issued code stays valid.
const Window = 60 * time.Second

// ErrAlreadyVerified is returned when a new code is requested for a phone that is already verified
var ErrAlreadyVerified = errors.New("phone already verified")

// Status names the state the machine is in.
type Status int

const (
	// StatusIdle means no code is outstanding and the phone is not verified
	StatusIdle Status = iota
	// StatusPending means a code was issued and is waiting for confirmation
	StatusPending
	// StatusVerified means the phone was confirmed
	StatusVerified
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusVerified:
		return "verified"
	default:
		return "idle"
	}
}

// state is the tagged union Idle | Pending{request} | Verified.
// Verified carries no request, so a confirmed phone can never be re-verified
// against a stale code.
type state interface {
	status() Status
}

type idle struct{}

type pending struct {
	request *Request
}

type verified struct{}

func (idle) status() Status     { return StatusIdle }
func (pending) status() Status  { return StatusPending }
func (verified) status() Status { return StatusVerified }

// VerifyResult describes the outcome of a Verify call.
type VerifyResult int

const (
	// VerifyIgnored means there was nothing to verify (idle or already verified)
	VerifyIgnored VerifyResult = iota
	// VerifyTooShort means the entered code has fewer than CodeLength characters
	VerifyTooShort
	// VerifyMismatch means the entered code differs from the issued one
	VerifyMismatch
	// VerifyConfirmed means the phone is now verified
	VerifyConfirmed
)

// Machine tracks the verification state of one registration form.
// It is not safe for concurrent use; callers serialize access.
type Machine struct {
	state state

	// last clock snapshot delivered by Tick; zero until the first tick
	now    time.Time
	hasNow bool
}

// NewMachine returns a machine in the idle state.
func NewMachine() *Machine {
	return &Machine{state: idle{}}
}

// Status reports the current state.
func (m *Machine) Status() Status {
	return m.state.status()
}

// IsVerified reports whether the phone has been confirmed.
func (m *Machine) IsVerified() bool {
	_, ok := m.state.(verified)
	return ok
}

// Pending returns the outstanding request, or nil when none is outstanding.
func (m *Machine) Pending() *Request {
	if p, ok := m.state.(pending); ok {
		return p.request
	}
	return nil
}

// Begin installs req as the outstanding request, replacing any previous one.
func (m *Machine) Begin(req *Request) error {
	if m.IsVerified() {
		return ErrAlreadyVerified
	}
	m.state = pending{request: req}
	return nil
}

// Cancel drops the outstanding request, if any. It is used when the code could
// not be delivered. A verified machine is left untouched.
func (m *Machine) Cancel() {
	if _, ok := m.state.(pending); ok {
		m.state = idle{}
	}
}

// Reset returns the machine to idle and forgets any verification. The phone
// number changed, so neither an outstanding code nor a past confirmation applies.
func (m *Machine) Reset() {
	m.state = idle{}
}

// Tick records now and expires the outstanding request once its window has
// passed. It reports true only on the tick that performed the expiry.
func (m *Machine) Tick(now time.Time) bool {
	m.now = now
	m.hasNow = true

	p, ok := m.state.(pending)
	if !ok {
		return false
	}
	if now.After(p.request.Deadline()) {
		m.state = idle{}
		return true
	}
	return false
}

// Verify compares entered against the outstanding code.
func (m *Machine) Verify(entered string) VerifyResult {
	p, ok := m.state.(pending)
	if !ok {
		return VerifyIgnored
	}
	if utf8.RuneCountInString(entered) < CodeLength {
		return VerifyTooShort
	}
	if entered != p.request.Code() {
		return VerifyMismatch
	}
	m.state = verified{}
	return VerifyConfirmed
}

// Remaining returns the time left on the outstanding request. The second value
// is false when there is no outstanding request or no tick has been seen yet.
func (m *Machine) Remaining() (time.Duration, bool) {
	p, ok := m.state.(pending)
	if !ok || !m.hasNow {
		return 0, false
	}
	left := p.request.Deadline().Sub(m.now)
	if left < 0 {
		left = 0
	}
	return left, true
}
