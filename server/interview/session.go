package interviewserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AltairaLabs/InterviewKit/runtime/audio"
	"github.com/AltairaLabs/InterviewKit/runtime/clock"
	"github.com/AltairaLabs/InterviewKit/runtime/events"
	"github.com/AltairaLabs/InterviewKit/runtime/interview"
	"github.com/AltairaLabs/InterviewKit/runtime/logger"
	"github.com/AltairaLabs/InterviewKit/runtime/recorder"
	"github.com/AltairaLabs/InterviewKit/runtime/session"
	"github.com/AltairaLabs/InterviewKit/runtime/transport/ws"
)

// Error codes sent before a session exists.
const (
	codeBadRequest  = "bad_request"
	codeUnsupported = "unsupported_capability"
	codeUnavailable = "unavailable"
	codeInternal    = "internal_error"
)

func (s *Server) handleInterview(w http.ResponseWriter, r *http.Request) {
	if s.closing.Load() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.conns.Add(1)
	defer s.conns.Done()

	hello, err := ws.ReadHello(conn, s.handshakeTimeout)
	if err != nil {
		reject(conn, codeBadRequest, err.Error())
		return
	}

	id := s.newID()
	ctx := logger.WithSessionID(s.baseCtx, id)

	if !hello.SpeechRecognition {
		logger.InfoContext(ctx, "rejecting client without speech recognition")
		reject(conn, codeUnsupported, interview.UnsupportedMessage)
		return
	}

	vad, err := audio.NewSimpleVAD(s.vadParams)
	if err != nil {
		logger.ErrorContext(ctx, "failed to create voice activity detector", "error", err)
		reject(conn, codeInternal, "could not start the session")
		return
	}
	dev := ws.NewDevice(conn, id, hello.SpeechRecognition, vad, s.device)

	bus := events.NewEventBus()
	bus.SubscribeAll(dev.HandleEvent)
	bus.SubscribeAll(s.metrics.Listener())
	if s.tracing != nil {
		s.tracing.StartSession(r.Context(), id)
		bus.SubscribeAll(s.tracing.OnEvent)
		ctx = s.tracing.SessionContext(ctx, id)
	}

	m, err := session.NewManager(
		interview.NewSession(id, hello.Job, s.sessionDuration(hello.DurationSeconds)),
		session.Config{
			Capture:  dev,
			Speech:   dev,
			Activity: dev,
			Recorder: recorder.New(dev,
				recorder.WithRequirements(s.requirements),
				recorder.WithMixSampleRate(s.mixRate),
			),
			Dialogue:  s.dialogue,
			Finalizer: s.finalizer,
			Clock:     clock.New(),
			Navigator: dev,
			Bus:       bus,
		},
	)
	if err == nil {
		err = s.hub.Start(ctx, m)
	}
	if err != nil {
		code := codeInternal
		if errors.Is(err, session.ErrHubClosed) {
			code = codeUnavailable
		}
		logger.WarnContext(ctx, "session not started", "error", err)
		s.release(id, bus)
		reject(conn, code, err.Error())
		dev.Close()
		return
	}

	logger.InfoContext(ctx, "session connected", "remote", r.RemoteAddr)
	if err := dev.Ready(); err != nil {
		logger.WarnContext(ctx, "failed to send ready", "error", err)
	}

	supervised := make(chan struct{})
	go func() {
		defer close(supervised)
		s.supervise(ctx, m, dev, bus)
	}()

	if err := dev.Serve(s.baseCtx); err != nil {
		logger.DebugContext(ctx, "connection closed", "error", err)
	}
	<-supervised
	<-m.Done()
	s.release(id, bus)
	logger.InfoContext(ctx, "session disconnected")
}

// supervise routes candidate requests to the session and ties the session
// and connection lifetimes together. After a failed finalization the
// connection stays open so the candidate can ask for a retry. The bus is
// drained before the device closes so the last notifications reach the
// client.
func (s *Server) supervise(ctx context.Context, m *session.Manager, dev *ws.Device, bus *events.EventBus) {
	done := m.Done()
	for {
		select {
		case <-s.baseCtx.Done():
			dev.Close()
			return

		case <-dev.Closed():
			m.End(interview.EndReasonStreamEnded)
			return

		case <-done:
			done = nil
			if m.FinalizeErr() == nil {
				bus.Close()
				dev.Close()
				return
			}
			logger.InfoContext(ctx, "awaiting finalization retry")

		case req := <-dev.Requests():
			switch req {
			case ws.RequestShare:
				m.BeginScreenShare()
			case ws.RequestEnd:
				m.End(interview.EndReasonUserEnded)
			case ws.RequestRetry:
				if s.retry(ctx, m) {
					bus.Close()
					dev.Close()
					return
				}
			}
		}
	}
}

// retry re-runs a failed finalization. It reports whether the session is
// now complete.
func (s *Server) retry(ctx context.Context, m *session.Manager) bool {
	select {
	case <-m.Done():
	default:
		logger.DebugContext(ctx, "ignoring retry for a live session")
		return false
	}
	if m.FinalizeErr() == nil {
		return true
	}
	res, err := m.RetryFinalize(ctx)
	if err != nil {
		logger.WarnContext(ctx, "finalization retry failed", "error", err)
		return false
	}
	if res != nil {
		logger.InfoContext(ctx, "finalization retry finished", "outcome", res.Outcome)
	}
	return true
}

func (s *Server) release(id string, bus *events.EventBus) {
	bus.Close()
	if s.tracing != nil {
		s.tracing.EndSession(id)
	}
}

// sessionDuration returns the configured duration, shortened when the
// client asks for less.
func (s *Server) sessionDuration(requestedSeconds int) time.Duration {
	d := s.duration
	if d <= 0 {
		d = interview.DefaultDuration
	}
	if requested := time.Duration(requestedSeconds) * time.Second; requested > 0 && requested < d {
		return requested
	}
	return d
}

// reject sends an error frame and closes a connection that never became a
// session.
func reject(conn *websocket.Conn, code, message string) {
	if err := ws.WriteError(conn, code, message); err != nil {
		logger.Debug("failed to send rejection", "code", code, "error", err)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code),
		time.Now().Add(time.Second))
	_ = conn.Close()
}
