// Package httputil builds the outbound HTTP clients used by the dialogue
// and analysis integrations, so every client carries the same timeout
// defaults and OpenTelemetry instrumentation.
package httputil

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Standard timeout defaults.
const (
	// DefaultDialogueTimeout bounds one chat completions attempt.
	DefaultDialogueTimeout = 30 * time.Second

	// DefaultAnalysisTimeout bounds the post-interview analysis hook.
	DefaultAnalysisTimeout = 15 * time.Second
)

// NewHTTPClient returns an *http.Client with the given timeout whose
// transport records a client span per request and propagates trace
// context. A zero timeout leaves the client unbounded; callers then rely
// on request contexts.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
