package verification

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultTickInterval is how often the driver delivers the current time
	DefaultTickInterval = 100 * time.Millisecond
	// DefaultTickMaxDuration bounds how long a single driver run lasts
	DefaultTickMaxDuration = 24 * time.Hour
)

// TickFunc receives the current time. ctx is cancelled when the driver is
// stopped, so a TickFunc that blocks must also watch ctx.
type TickFunc func(ctx context.Context, now time.Time)

// Driver periodically delivers the clock to a TickFunc while a verification
// screen is active.
type Driver struct {
	interval    time.Duration
	maxDuration time.Duration
	clock       Clock
}

// NewDriver creates a tick driver. Non-positive durations fall back to the defaults.
func NewDriver(interval, maxDuration time.Duration, clock Clock) *Driver {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if maxDuration <= 0 {
		maxDuration = DefaultTickMaxDuration
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Driver{
		interval:    interval,
		maxDuration: maxDuration,
		clock:       clock,
	}
}

// Run is one active period of ticking.
type Run struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop ends the run and blocks until the ticking goroutine has exited, so the
// TickFunc is never invoked after Stop returns. Stop may be called more than once.
func (r *Run) Stop() {
	r.once.Do(func() {
		r.cancel()
		<-r.done
	})
}

// Done is closed when the run has ended, whether stopped or expired.
func (r *Run) Done() <-chan struct{} { return r.done }

// Launch delivers ticks to fn until the run is stopped, ctx is done, or the
// maximum duration elapses.
func (d *Driver) Launch(ctx context.Context, fn TickFunc) *Run {
	ctx, cancel := context.WithCancel(ctx)
	r := &Run{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		deadline := time.NewTimer(d.maxDuration)
		defer deadline.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-deadline.C:
				return
			case <-ticker.C:
				// stop may race with a ready ticker; prefer stopping
				if ctx.Err() != nil {
					return
				}
				fn(ctx, d.clock.Now())
			}
		}
	}()

	return r
}
