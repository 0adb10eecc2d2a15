package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"emochat/internal/registration"
	"emochat/internal/verification"
)

// Session hosts one registration screen. A single goroutine owns the
// controller; every operation is posted to its mailbox, and collaborator calls
// run outside it and post their completions back.
type Session struct {
	id     string
	ctrl   *registration.Controller
	deps   Dependencies
	cfg    *Config
	driver *verification.Driver
	logger *slog.Logger

	mailbox chan func()
	quit    chan struct{}
	done    chan struct{}

	// ctx bounds collaborator calls; cancelled on Close
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce  sync.Once
	lastActive atomic.Int64

	// owned by the mailbox goroutine
	ticks      *verification.Run
	submitting bool
}

func newSession(id string, deps Dependencies, cfg *Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	logger := deps.Logger.With("session_id", id)

	s := &Session{
		id: id,
		ctrl: registration.NewController(deps.Directory, deps.Accounts, nil,
			registration.WithClock(deps.Clock),
			registration.WithLogger(logger),
		),
		deps:    deps,
		cfg:     cfg,
		driver:  verification.NewDriver(cfg.TickInterval, cfg.TickMaxDuration, deps.Clock),
		logger:  logger,
		mailbox: make(chan func()),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.touch()

	go s.run()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case op := <-s.mailbox:
			op()
		case <-s.quit:
			return
		}
	}
}

func (s *Session) touch() {
	s.lastActive.Store(s.deps.Clock.Now().UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// exec runs op on the mailbox goroutine and waits for it. It reports false
// when the session closed before op could run.
func (s *Session) exec(op func()) bool {
	ran := make(chan struct{})
	select {
	case s.mailbox <- func() { op(); close(ran) }:
	case <-s.quit:
		return false
	}
	select {
	case <-ran:
		return true
	case <-s.done:
		return false
	}
}

// do runs op on the mailbox goroutine on behalf of a caller and waits for it.
func (s *Session) do(ctx context.Context, op func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.touch()

	ran := make(chan struct{})
	select {
	case s.mailbox <- func() { op(); close(ran) }:
	case <-s.quit:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ran:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// call runs op and returns the resulting view.
func (s *Session) call(ctx context.Context, op func()) (View, error) {
	var v View
	err := s.do(ctx, func() {
		if op != nil {
			op()
		}
		v = s.view()
	})
	return v, err
}

// await blocks until a background action finishes and then returns the view.
func (s *Session) await(ctx context.Context, finished <-chan struct{}) (View, error) {
	select {
	case <-finished:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.quit:
		return View{}, ErrSessionClosed
	}
	return s.View(ctx)
}

func (s *Session) view() View {
	v := View{
		SessionID:             s.id,
		Verified:              s.ctrl.IsVerified(),
		AgreedToPrivacyPolicy: s.ctrl.AgreedToPrivacyPolicy(),
	}
	if millis, ok := s.ctrl.RemainingMillis(); ok {
		v.RemainingMillis = &millis
	}
	if e, ok := s.ctrl.TakeEvent(); ok {
		v.Event = e
	}
	return v
}

// View returns the current state and drains the pending event.
func (s *Session) View(ctx context.Context) (View, error) {
	return s.call(ctx, nil)
}

// UpdateFields applies a partial form update. A phone edit drops any
// verification progress.
func (s *Session) UpdateFields(ctx context.Context, f Fields) (View, error) {
	return s.call(ctx, func() {
		if f.ID != nil {
			s.ctrl.SetID(*f.ID)
		}
		if f.Password != nil {
			s.ctrl.SetPassword(*f.Password)
		}
		if f.PasswordConfirm != nil {
			s.ctrl.SetPasswordConfirm(*f.PasswordConfirm)
		}
		if f.Nickname != nil {
			s.ctrl.SetNickname(*f.Nickname)
		}
		if f.Phone != nil {
			s.ctrl.SetPhone(*f.Phone)
		}
		if f.Code != nil {
			s.ctrl.SetCode(*f.Code)
		}
	})
}

// Activate starts delivering clock ticks. It is a no-op when ticks are
// already running.
func (s *Session) Activate(ctx context.Context) (View, error) {
	return s.call(ctx, func() {
		if s.ticks == nil {
			s.ticks = s.driver.Launch(s.ctx, s.onTick)
			go s.releaseWhenDone(s.ticks)
		}
	})
}

// releaseWhenDone frees the tick slot once run ends on its own, so a later
// Activate starts a fresh run.
func (s *Session) releaseWhenDone(run *verification.Run) {
	<-run.Done()
	s.exec(func() {
		if s.ticks == run {
			s.ticks = nil
		}
	})
}

// Deactivate stops clock ticks. No tick is delivered after it returns.
func (s *Session) Deactivate(ctx context.Context) (View, error) {
	return s.call(ctx, s.stopTicking)
}

func (s *Session) stopTicking() {
	if s.ticks != nil {
		// onTick watches its ctx, so stopping from the mailbox cannot deadlock
		s.ticks.Stop()
		s.ticks = nil
	}
}

func (s *Session) onTick(ctx context.Context, now time.Time) {
	select {
	case s.mailbox <- func() { s.ctrl.Tick(now) }:
	case <-ctx.Done():
	case <-s.quit:
	}
}

// SendCode checks the directory, issues a code and delivers it by SMS. It
// returns once the whole action has finished; ticks and other operations keep
// being served while it runs.
func (s *Session) SendCode(ctx context.Context) (View, error) {
	finished := make(chan struct{})
	err := s.do(ctx, func() {
		phone, ok := s.ctrl.RequestCode()
		if !ok {
			close(finished)
			return
		}
		go s.sendCode(phone, finished)
	})
	if err != nil {
		return View{}, err
	}
	return s.await(ctx, finished)
}

func (s *Session) sendCode(phone string, finished chan<- struct{}) {
	defer close(finished)

	lookupCtx, cancel := context.WithTimeout(s.ctx, s.cfg.CallTimeout)
	existing, lookupErr := s.deps.Directory.FindUserByPhone(lookupCtx, phone)
	cancel()

	var req *verification.Request
	if !s.exec(func() {
		req = s.ctrl.LookupCompleted(phone, existing, lookupErr)
		if req != nil {
			// SendVerificationCode is delivered here, not by the client
			s.ctrl.TakeEvent()
		}
	}) || req == nil {
		return
	}

	sendCtx, cancel := context.WithTimeout(s.ctx, s.cfg.CallTimeout)
	sendErr := s.deps.Sender.Send(sendCtx, req.Phone(), registration.VerificationMessage(req.Code()))
	cancel()
	if sendErr != nil {
		s.logger.Warn("Verification SMS failed",
			"phone", registration.MaskPhone(req.Phone()),
			"error", sendErr)
	}

	s.exec(func() {
		// a newer request or a phone edit supersedes this delivery report
		if s.ctrl.PendingRequest() != req {
			return
		}
		if sendErr != nil {
			s.ctrl.CodeNotSent()
			return
		}
		s.ctrl.CodeSent()
	})
}

// VerifyCode checks the entered code.
func (s *Session) VerifyCode(ctx context.Context) (View, error) {
	return s.call(ctx, s.ctrl.VerifyCode)
}

// TogglePrivacyPolicy handles a tap on the privacy policy checkbox.
func (s *Session) TogglePrivacyPolicy(ctx context.Context) (View, error) {
	return s.call(ctx, s.ctrl.TogglePrivacyPolicy)
}

// AgreePrivacyPolicy records agreement from the policy dialog.
func (s *Session) AgreePrivacyPolicy(ctx context.Context) (View, error) {
	return s.call(ctx, s.ctrl.AgreePrivacyPolicy)
}

// Submit validates the form and creates the account. A submit while another
// one is in flight is ignored.
func (s *Session) Submit(ctx context.Context) (View, error) {
	finished := make(chan struct{})
	err := s.do(ctx, func() {
		if s.submitting {
			close(finished)
			return
		}
		email, password, ok := s.ctrl.RequestSubmit()
		if !ok {
			close(finished)
			return
		}
		s.submitting = true
		go s.submit(email, password, finished)
	})
	if err != nil {
		return View{}, err
	}
	return s.await(ctx, finished)
}

func (s *Session) submit(email, password string, finished chan<- struct{}) {
	defer close(finished)

	createCtx, cancel := context.WithTimeout(s.ctx, s.cfg.CallTimeout)
	uid, createErr := s.deps.Accounts.CreateAccount(createCtx, email, password)
	cancel()

	var user *registration.User
	if !s.exec(func() {
		s.submitting = false
		user = s.ctrl.AccountCreated(uid, createErr)
	}) || user == nil {
		return
	}

	s.logger.Info("Account registered", "uid", user.UID, "id", user.ID)

	if s.deps.Profiles == nil {
		return
	}
	storeCtx, cancel := context.WithTimeout(s.ctx, s.cfg.CallTimeout)
	defer cancel()
	if err := s.deps.Profiles.AddUser(storeCtx, *user); err != nil {
		s.logger.Error("Failed to store user profile", "uid", user.UID, "error", err)
	}
}

// Close stops ticks and the mailbox goroutine and aborts in-flight
// collaborator calls. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.exec(s.stopTicking)
		close(s.quit)
		<-s.done
		s.cancel()
	})
}
