// Package clock provides the interview countdown.
package clock

import (
	"errors"
	"sync"
	"time"
)

// ErrAlreadyStarted is returned when Start is called more than once.
var ErrAlreadyStarted = errors.New("countdown already started")

// Timer is the subset of *time.Timer used by Countdown.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

// Option configures a Countdown.
type Option func(*Countdown)

// WithNow overrides the time source.
func WithNow(now func() time.Time) Option {
	return func(c *Countdown) {
		c.now = now
	}
}

// WithAfterFunc overrides timer scheduling.
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Countdown) {
		c.afterFunc = fn
	}
}

// Countdown is a one-shot countdown. It can be started once, cannot be
// paused, and closes its Expired channel exactly once when time runs out.
type Countdown struct {
	mu        sync.Mutex
	now       func() time.Time
	afterFunc AfterFunc

	started  bool
	deadline time.Time
	timer    Timer

	expired    chan struct{}
	expireOnce sync.Once
}

// New creates an unstarted countdown.
func New(opts ...Option) *Countdown {
	c := &Countdown{
		now: time.Now,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		expired: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins counting down from d. A non-positive d expires immediately.
func (c *Countdown) Start(d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	c.deadline = c.now().Add(d)

	if d <= 0 {
		c.fire()
		return nil
	}
	c.timer = c.afterFunc(d, c.fire)
	return nil
}

// Remaining returns the time left, or zero once the deadline has passed or
// the countdown was never started.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return 0
	}
	select {
	case <-c.expired:
		return 0
	default:
	}
	if left := c.deadline.Sub(c.now()); left > 0 {
		return left
	}
	return 0
}

// Expired is closed exactly once when the countdown reaches zero.
func (c *Countdown) Expired() <-chan struct{} {
	return c.expired
}

// Stop cancels a pending expiry. Expired will not fire afterwards.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Countdown) fire() {
	c.expireOnce.Do(func() {
		close(c.expired)
	})
}
