// Package registration implements the account registration flow: the form,
// its submission rules, and the controller that coordinates phone
// verification, the user directory, the SMS transport and account creation.
package registration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"emochat/internal/verification"
)

// ErrNoAccountID is reported when the account backend succeeds without returning an id
var ErrNoAccountID = errors.New("account created without id")

// Directory looks up existing users.
type Directory interface {
	// FindUserByPhone returns nil, nil when no user owns phone.
	FindUserByPhone(ctx context.Context, phone string) (*User, error)
}

// Accounts creates authenticated accounts.
type Accounts interface {
	CreateAccount(ctx context.Context, email, password string) (string, error)
}

// Sender delivers a text message to a phone number.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// Controller coordinates one registration form. It is not safe for concurrent
// use: every method must be called from a single serialized sequence, and
// collaborator results are fed back through the *Completed / Code* methods.
type Controller struct {
	form    Form
	machine *verification.Machine
	outbox  Outbox

	directory Directory
	accounts  Accounts
	sender    Sender

	clock    verification.Clock
	generate func() string
	logger   *slog.Logger

	// set by RequestSubmit, consumed by AccountCreated
	submitted *submission
}

// submission holds the field values a successful RequestSubmit validated.
type submission struct {
	id       string
	password string
	nickname string
	phone    string
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock sets the clock used to stamp issued codes.
func WithClock(c verification.Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithCodeGenerator replaces the random code generator.
func WithCodeGenerator(fn func() string) Option {
	return func(ctrl *Controller) { ctrl.generate = fn }
}

// WithLogger sets the logger used for collaborator failures.
func WithLogger(l *slog.Logger) Option {
	return func(ctrl *Controller) { ctrl.logger = l }
}

// NewController creates a controller for an empty form. sender may be nil when
// the host delivers SendVerificationCode events itself.
func NewController(directory Directory, accounts Accounts, sender Sender, opts ...Option) *Controller {
	c := &Controller{
		machine:   verification.NewMachine(),
		directory: directory,
		accounts:  accounts,
		sender:    sender,
		clock:     verification.SystemClock(),
		generate:  verification.GenerateCode,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Form returns a copy of the current field values.
func (c *Controller) Form() Form { return c.form }

// SetID stores the registration id.
func (c *Controller) SetID(v string) { c.form.SetID(v) }

// SetPassword stores the password.
func (c *Controller) SetPassword(v string) { c.form.SetPassword(v) }

// SetPasswordConfirm stores the password confirmation.
func (c *Controller) SetPasswordConfirm(v string) { c.form.SetPasswordConfirm(v) }

// SetNickname stores the nickname.
func (c *Controller) SetNickname(v string) { c.form.SetNickname(v) }

// SetCode stores the entered verification code.
func (c *Controller) SetCode(v string) { c.form.SetCode(v) }

// SetPhone stores the phone number and drops any verification progress, since
// a code issued for one number must not carry over to another.
func (c *Controller) SetPhone(v string) {
	c.form.SetPhone(v)
	c.machine.Reset()
}

// RemainingMillis returns the time left on the outstanding code in milliseconds.
// ok is false when no code is outstanding or the clock has not ticked yet.
func (c *Controller) RemainingMillis() (millis int64, ok bool) {
	left, ok := c.machine.Remaining()
	if !ok {
		return 0, false
	}
	return left.Milliseconds(), true
}

// IsVerified reports whether the phone number has been confirmed.
func (c *Controller) IsVerified() bool { return c.machine.IsVerified() }

// AgreedToPrivacyPolicy reports the privacy policy checkbox state.
func (c *Controller) AgreedToPrivacyPolicy() bool { return c.form.AgreedToPrivacyPolicy() }

// PendingRequest returns the outstanding verification request, or nil.
func (c *Controller) PendingRequest() *verification.Request { return c.machine.Pending() }

// TakeEvent removes and returns the outstanding event.
func (c *Controller) TakeEvent() (Event, bool) { return c.outbox.Take() }

func (c *Controller) emit(e Event) { c.outbox.Push(e) }

func (c *Controller) message(text string) { c.emit(ShowMessage{Text: text}) }

// RequestCode starts a send-code action. It returns the phone number to look
// up in the directory, or ok=false when the action stops here.
func (c *Controller) RequestCode() (phone string, ok bool) {
	if c.machine.IsVerified() {
		return "", false
	}
	if length(c.form.Phone()) != PhoneLength {
		c.message(MsgInvalidPhone)
		return "", false
	}
	return c.form.Phone(), true
}

// LookupCompleted feeds back the directory result for phone. When the number is
// free a new code is issued, a SendVerificationCode event is emitted and the new
// request is returned. Completions for a number that is no longer in the form,
// or that arrive after verification, are dropped.
func (c *Controller) LookupCompleted(phone string, existing *User, err error) *verification.Request {
	if phone != c.form.Phone() || c.machine.IsVerified() {
		return nil
	}
	if err != nil {
		c.logger.Warn("User lookup failed", "phone", MaskPhone(phone), "error", err)
		c.message(MsgCheckNetwork)
		return nil
	}
	if existing != nil {
		c.message(MsgPhoneRegistered)
		return nil
	}

	req := verification.NewRequest(phone, c.generate(), c.clock.Now())
	if err := c.machine.Begin(req); err != nil {
		return nil
	}
	c.emit(SendVerificationCode{Phone: phone, Code: req.Code()})
	return req
}

// CodeSent reports that the SMS carrying the outstanding code was delivered.
func (c *Controller) CodeSent() {
	c.message(MsgCodeSent)
}

// CodeNotSent reports that the SMS could not be delivered. The outstanding
// request is dropped so an undelivered code never stays live.
func (c *Controller) CodeNotSent() {
	c.machine.Cancel()
	c.message(MsgCodeNotSent)
}

// Tick delivers the current time and expires the outstanding code when its
// window has passed.
func (c *Controller) Tick(now time.Time) {
	if c.machine.Tick(now) {
		c.message(MsgVerificationExpired)
	}
}

// VerifyCode checks the entered code against the outstanding one. It does
// nothing when no code is outstanding or the phone is already verified.
func (c *Controller) VerifyCode() {
	switch c.machine.Verify(c.form.Code()) {
	case verification.VerifyTooShort:
		c.message(MsgEnterFourDigits)
	case verification.VerifyMismatch:
		c.message(MsgWrongCode)
	case verification.VerifyConfirmed:
		c.message(MsgVerified)
	}
}

// TogglePrivacyPolicy handles a tap on the privacy policy checkbox. Unchecking
// is immediate; checking asks the UI to show the policy first.
func (c *Controller) TogglePrivacyPolicy() {
	if c.form.AgreedToPrivacyPolicy() {
		c.form.setAgreed(false)
		return
	}
	c.emit(ShowPrivacyPolicyDialog{})
}

// AgreePrivacyPolicy records explicit agreement from the policy dialog.
func (c *Controller) AgreePrivacyPolicy() {
	c.form.setAgreed(true)
	c.emit(HideKeyboard{})
}

// RequestSubmit validates the form. On success it records the validated values
// and returns the login and password to pass to the account backend.
func (c *Controller) RequestSubmit() (email, password string, ok bool) {
	if err := c.form.Validate(c.machine.IsVerified()); err != nil {
		c.message(err.Error())
		return "", "", false
	}
	c.submitted = &submission{
		id:       c.form.ID(),
		password: c.form.Password(),
		nickname: c.form.Nickname(),
		phone:    c.form.Phone(),
	}
	return Emailize(c.submitted.id), c.submitted.password, true
}

// AccountCreated feeds back the account backend result. On success it emits
// NavigateBackWithResult and returns the new profile, built from the values
// RequestSubmit validated rather than from edits made while the call ran.
// A success with no submission outstanding is dropped.
func (c *Controller) AccountCreated(uid string, err error) *User {
	sub := c.submitted
	c.submitted = nil

	if err == nil && uid == "" {
		err = ErrNoAccountID
	}
	if err != nil {
		c.logger.Warn("Account creation failed", "id", c.form.ID(), "error", err)
		c.message(MsgRegistrationFailed)
		return nil
	}
	if sub == nil {
		return nil
	}

	user := User{
		UID:      uid,
		ID:       sub.id,
		Nickname: sub.nickname,
		Phone:    sub.phone,
	}
	c.emit(NavigateBackWithResult{
		ID:       sub.id,
		Password: sub.password,
		User:     user,
	})
	return &user
}

// SendCode runs the whole send-code action inline: directory lookup, code
// issue and, when a Sender is configured, SMS delivery.
func (c *Controller) SendCode(ctx context.Context) {
	phone, ok := c.RequestCode()
	if !ok {
		return
	}

	existing, err := c.directory.FindUserByPhone(ctx, phone)
	req := c.LookupCompleted(phone, existing, err)
	if req == nil || c.sender == nil {
		return
	}

	// the SendVerificationCode event is handled here instead of by the UI
	c.outbox.Take()
	if err := c.sender.Send(ctx, req.Phone(), VerificationMessage(req.Code())); err != nil {
		c.logger.Warn("Verification SMS failed", "phone", MaskPhone(req.Phone()), "error", err)
		c.CodeNotSent()
		return
	}
	c.CodeSent()
}

// Submit runs the whole submit action inline: validation and account creation.
func (c *Controller) Submit(ctx context.Context) *User {
	email, password, ok := c.RequestSubmit()
	if !ok {
		return nil
	}
	uid, err := c.accounts.CreateAccount(ctx, email, password)
	return c.AccountCreated(uid, err)
}

// MaskPhone hides all but the last four digits of a phone number for logging.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(phone)-4:], phone[len(phone)-4:])
	return string(masked)
}
