package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := !m.stopped
	m.stopped = true
	return was
}

func (m *manualTimer) fire() {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if !stopped {
		m.f()
	}
}

func newManual(now *time.Time) (*Countdown, *manualTimer) {
	timer := &manualTimer{}
	c := New(
		WithNow(func() time.Time { return *now }),
		WithAfterFunc(func(d time.Duration, f func()) Timer {
			timer.d = d
			timer.f = f
			return timer
		}),
	)
	return c, timer
}

func expired(c *Countdown) bool {
	select {
	case <-c.Expired():
		return true
	default:
		return false
	}
}

func TestCountdownRemainingAndExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	c, timer := newManual(&now)

	assert.Zero(t, c.Remaining())
	require.NoError(t, c.Start(time.Minute))
	assert.Equal(t, time.Minute, timer.d)
	assert.Equal(t, time.Minute, c.Remaining())

	now = now.Add(20 * time.Second)
	assert.Equal(t, 40*time.Second, c.Remaining())
	assert.False(t, expired(c))

	now = now.Add(40 * time.Second)
	timer.fire()
	assert.True(t, expired(c))
	assert.Zero(t, c.Remaining())
}

func TestCountdownFiresOnce(t *testing.T) {
	now := time.Now()
	c, timer := newManual(&now)
	require.NoError(t, c.Start(time.Second))

	assert.NotPanics(t, func() {
		timer.fire()
		c.fire()
		timer.fire()
	})
	assert.True(t, expired(c))
}

func TestCountdownCannotRestart(t *testing.T) {
	now := time.Now()
	c, _ := newManual(&now)
	require.NoError(t, c.Start(time.Second))
	assert.ErrorIs(t, c.Start(time.Hour), ErrAlreadyStarted)
}

func TestCountdownStopPreventsExpiry(t *testing.T) {
	now := time.Now()
	c, timer := newManual(&now)
	require.NoError(t, c.Start(time.Second))

	c.Stop()
	timer.fire()
	assert.False(t, expired(c))
}

func TestCountdownZeroDurationExpiresImmediately(t *testing.T) {
	c := New()
	require.NoError(t, c.Start(0))
	assert.True(t, expired(c))
}

func TestCountdownRealTimer(t *testing.T) {
	c := New()
	require.NoError(t, c.Start(10*time.Millisecond))
	select {
	case <-c.Expired():
	case <-time.After(time.Second):
		t.Fatal("countdown did not expire")
	}
}
