package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/InterviewKit/runtime/events"
)

// sessionState tracks the root span for a session.
type sessionState struct {
	span trace.Span
	ctx  context.Context //nolint:containedctx // needed to parent child spans
}

// OTelEventListener records interview events on a per-session root span.
// State changes, questions, turns and errors become span events; the span
// ends when finalization completes or EndSession is called.
type OTelEventListener struct {
	tracer trace.Tracer

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewOTelEventListener creates a listener that creates OTel spans from interview events.
func NewOTelEventListener(tracer trace.Tracer) *OTelEventListener {
	return &OTelEventListener{
		tracer:   tracer,
		sessions: make(map[string]*sessionState),
	}
}

// StartSession creates a root span for the given session, optionally parented
// under the span context in parentCtx. Calling it twice for the same session
// is a no-op.
func (l *OTelEventListener) StartSession(parentCtx context.Context, sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sessions[sessionID]; ok {
		return
	}
	ctx, span := l.tracer.Start(parentCtx, "interview.session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	l.sessions[sessionID] = &sessionState{span: span, ctx: ctx}
}

// SessionContext returns a context carrying the session's root span, so
// work done on behalf of the session is parented under it.
func (l *OTelEventListener) SessionContext(ctx context.Context, sessionID string) context.Context {
	l.mu.Lock()
	ss, ok := l.sessions[sessionID]
	l.mu.Unlock()
	if !ok {
		return ctx
	}
	return trace.ContextWithSpan(ctx, ss.span)
}

// EndSession ends the root span for the given session.
func (l *OTelEventListener) EndSession(sessionID string) {
	l.mu.Lock()
	ss, ok := l.sessions[sessionID]
	if ok {
		delete(l.sessions, sessionID)
	}
	l.mu.Unlock()
	if ok {
		ss.span.End()
	}
}

// ActiveSessions returns the number of open session spans.
func (l *OTelEventListener) ActiveSessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// OnEvent handles a single interview event. It can be passed to
// EventBus.SubscribeAll.
func (l *OTelEventListener) OnEvent(evt *events.Event) {
	switch data := evt.Data.(type) {
	case events.StateChangedData:
		l.addEvent(evt.SessionID, "state_changed",
			attribute.String("state.from", data.From),
			attribute.String("state.to", data.To),
			attribute.String("state.reason", data.Reason),
		)
	case events.QuestionAskedData:
		l.addEvent(evt.SessionID, "question_asked",
			attribute.Int("question.chars", len(data.Text)),
		)
	case events.TurnRecordedData:
		l.addEvent(evt.SessionID, "turn_recorded",
			attribute.Int("turn.index", data.Index),
			attribute.Int("turn.answer_chars", len(data.Answer)),
		)
	case events.SessionErrorData:
		l.addEvent(evt.SessionID, "session_error",
			attribute.String("error.code", data.Code),
			attribute.Bool("error.retryable", data.Retryable),
		)
	case events.FinalizeFailedData:
		l.addEvent(evt.SessionID, "finalize_failed",
			attribute.String("finalize.step", data.Step),
			attribute.String("error.message", data.Error),
		)
	case events.FinalizeCompletedData:
		l.complete(evt.SessionID,
			attribute.String("record.id", data.RecordID),
			attribute.Float64("finalize.duration_seconds", data.Duration.Seconds()),
		)
	}
}

func (l *OTelEventListener) span(sessionID string) (trace.Span, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ss, ok := l.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return ss.span, true
}

func (l *OTelEventListener) addEvent(sessionID, name string, attrs ...attribute.KeyValue) {
	if span, ok := l.span(sessionID); ok {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

func (l *OTelEventListener) complete(sessionID string, attrs ...attribute.KeyValue) {
	l.mu.Lock()
	ss, ok := l.sessions[sessionID]
	if ok {
		delete(l.sessions, sessionID)
	}
	l.mu.Unlock()
	if !ok {
		return
	}
	ss.span.SetAttributes(attrs...)
	ss.span.SetStatus(codes.Ok, "")
	ss.span.End()
}
