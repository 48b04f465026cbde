package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AltairaLabs/InterviewKit/runtime/interview"
	"github.com/AltairaLabs/InterviewKit/runtime/logger"
)

// ErrDuplicateSession is returned when a session id is already registered.
var ErrDuplicateSession = errors.New("session: duplicate session id")

// ErrHubClosed is returned by Start after Shutdown.
var ErrHubClosed = errors.New("session: hub is shut down")

// Hub tracks live sessions by id and runs their event loops.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Manager
	closed   bool
	wg       sync.WaitGroup
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Manager)}
}

// Start registers m and runs it in a new goroutine. The manager is removed
// from the hub when Run returns.
func (h *Hub) Start(ctx context.Context, m *Manager) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	if _, ok := h.sessions[m.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, m.ID())
	}
	h.sessions[m.ID()] = m
	h.wg.Add(1)

	go func() {
		defer h.wg.Done()
		if err := m.Run(ctx); err != nil {
			logger.Warn("session finished with error", "session_id", m.ID(), "error", err)
		}
		h.mu.Lock()
		delete(h.sessions, m.ID())
		h.mu.Unlock()
	}()
	return nil
}

// Get returns the live session with the given id.
func (h *Hub) Get(id string) (*Manager, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.sessions[id]
	return m, ok
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown ends every live session with EndReasonShutdown and waits for
// their finalization attempts, or for ctx to be done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	live := make([]*Manager, 0, len(h.sessions))
	for _, m := range h.sessions {
		live = append(live, m)
	}
	h.mu.Unlock()

	logger.Info("ending live sessions", "count", len(live))
	for _, m := range live {
		m.End(interview.EndReasonShutdown)
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
