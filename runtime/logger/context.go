package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields. Values stored under these keys are
// added to every record logged with that context.
const (
	// ContextKeySessionID identifies the interview session.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyState is the session state when the record was logged.
	ContextKeyState contextKey = "state"

	// ContextKeyComponent names the emitting component (recorder, finalize, ...).
	ContextKeyComponent contextKey = "component"

	// ContextKeyRequestID identifies an individual inbound or outbound request.
	ContextKeyRequestID contextKey = "request_id"
)

// allContextKeys lists all context keys that should be extracted for logging.
var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyState,
	ContextKeyComponent,
	ContextKeyRequestID,
}

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithState returns a new context with the session state set.
func WithState(ctx context.Context, state string) context.Context {
	return context.WithValue(ctx, ContextKeyState, state)
}

// WithComponent returns a new context with the component name set.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, ContextKeyComponent, component)
}

// WithRequestID returns a new context with the request ID set.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// LoggingFields holds all standard logging context fields.
type LoggingFields struct {
	SessionID string
	State     string
	Component string
	RequestID string
}

// ExtractLoggingFields extracts all logging fields from a context.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	fields := LoggingFields{}
	if v := ctx.Value(ContextKeySessionID); v != nil {
		fields.SessionID, _ = v.(string)
	}
	if v := ctx.Value(ContextKeyState); v != nil {
		fields.State, _ = v.(string)
	}
	if v := ctx.Value(ContextKeyComponent); v != nil {
		fields.Component, _ = v.(string)
	}
	if v := ctx.Value(ContextKeyRequestID); v != nil {
		fields.RequestID, _ = v.(string)
	}
	return fields
}
