// Package interviewserver exposes live interview sessions over HTTP. Each
// WebSocket connection on /ws/interview becomes one session whose device
// capabilities are bridged to the candidate's browser.
package interviewserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AltairaLabs/InterviewKit/runtime/audio"
	"github.com/AltairaLabs/InterviewKit/runtime/logger"
	prommetrics "github.com/AltairaLabs/InterviewKit/runtime/metrics/prometheus"
	"github.com/AltairaLabs/InterviewKit/runtime/recorder"
	"github.com/AltairaLabs/InterviewKit/runtime/session"
	"github.com/AltairaLabs/InterviewKit/runtime/telemetry"
	"github.com/AltairaLabs/InterviewKit/runtime/transport/ws"
)

const (
	// defaultReadHeaderTimeout prevents Slowloris attacks.
	defaultReadHeaderTimeout = 10 * time.Second

	// defaultIdleTimeout is the maximum amount of time to wait for the
	// next request when keep-alives are enabled.
	defaultIdleTimeout = 120 * time.Second

	wsBufferSize = 32 * 1024

	// Routes.
	PathInterview = "/ws/interview"
	PathHealth    = "/healthz"
	PathMetrics   = "/metrics"
)

// Option configures a [Server].
type Option func(*Server)

// WithAddr sets the listen address for ListenAndServe.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithReadHeaderTimeout overrides the header read timeout.
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) { s.readHeaderTimeout = d }
}

// WithAllowedOrigins restricts WebSocket upgrades to the given origins.
// "*" allows any origin. With no origins only same-host requests are
// accepted.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithDeviceConfig sets the per-connection device settings.
func WithDeviceConfig(cfg ws.Config) Option {
	return func(s *Server) { s.device = cfg }
}

// WithHandshakeTimeout bounds the wait for the hello frame.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Server) { s.handshakeTimeout = d }
}

// WithInterviewDuration sets the allotted interview length. Clients may
// only ask for less.
func WithInterviewDuration(d time.Duration) Option {
	return func(s *Server) { s.duration = d }
}

// WithRequirements sets the screen capture validation gate.
func WithRequirements(req recorder.Requirements) Option {
	return func(s *Server) { s.requirements = req }
}

// WithMixSampleRate sets the sample rate of the recorded audio track.
func WithMixSampleRate(rate int) Option {
	return func(s *Server) { s.mixRate = rate }
}

// WithVADParams sets the voice activity detector tuning.
func WithVADParams(p audio.VADParams) Option {
	return func(s *Server) { s.vadParams = p }
}

// WithMetrics mounts the exporter's handler on /metrics.
func WithMetrics(exp *prommetrics.Exporter) Option {
	return func(s *Server) { s.exporter = exp }
}

// WithTracing records a span per session.
func WithTracing(l *telemetry.OTelEventListener) Option {
	return func(s *Server) { s.tracing = l }
}

// WithHandler mounts an additional handler, e.g. locally stored recordings.
func WithHandler(pattern string, h http.Handler) Option {
	return func(s *Server) { s.extra = append(s.extra, route{pattern, h}) }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) { s.newID = fn }
}

// WithCloser registers a function run at the end of Shutdown, after every
// session has finished.
func WithCloser(fn func(context.Context) error) Option {
	return func(s *Server) { s.closers = append(s.closers, fn) }
}

type route struct {
	pattern string
	handler http.Handler
}

// Server runs interview sessions for WebSocket clients.
type Server struct {
	dialogue  session.DialogueClient
	finalizer session.Finalizer

	addr              string
	readHeaderTimeout time.Duration
	allowedOrigins    []string
	device            ws.Config
	handshakeTimeout  time.Duration
	duration          time.Duration
	requirements      recorder.Requirements
	mixRate           int
	vadParams         audio.VADParams
	exporter          *prommetrics.Exporter
	tracing           *telemetry.OTelEventListener
	metrics           *prommetrics.MetricsListener
	extra             []route
	newID             func() string
	closers           []func(context.Context) error

	hub      *session.Hub
	upgrader websocket.Upgrader

	// baseCtx outlives requests; sessions and devices run under it.
	baseCtx  context.Context //nolint:containedctx // server lifetime context
	cancel   context.CancelFunc
	closing  atomic.Bool
	conns    sync.WaitGroup
	httpSrv  *http.Server
	httpMu   sync.Mutex
	shutOnce sync.Once
	shutErr  error
}

// NewServer creates a server that asks dialogue for questions and hands
// ended sessions to finalizer.
func NewServer(dialogue session.DialogueClient, finalizer session.Finalizer, opts ...Option) (*Server, error) {
	if dialogue == nil {
		return nil, errors.New("interviewserver: dialogue client is required")
	}
	if finalizer == nil {
		return nil, errors.New("interviewserver: finalizer is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		dialogue:          dialogue,
		finalizer:         finalizer,
		addr:              ":8080",
		readHeaderTimeout: defaultReadHeaderTimeout,
		handshakeTimeout:  ws.DefaultHandshakeTimeout,
		requirements:      recorder.DefaultRequirements(),
		mixRate:           audio.SampleRate16kHz,
		vadParams:         audio.DefaultVADParams(),
		metrics:           prommetrics.NewMetricsListener(),
		newID:             uuid.NewString,
		hub:               session.NewHub(),
		baseCtx:           ctx,
		cancel:            cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.vadParams.Validate(); err != nil {
		cancel()
		return nil, err
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  wsBufferSize,
		WriteBufferSize: wsBufferSize,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

// Hub returns the registry of live sessions.
func (s *Server) Hub() *session.Hub {
	return s.hub
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PathInterview, s.handleInterview)
	mux.HandleFunc("GET "+PathHealth, s.handleHealth)
	if s.exporter != nil {
		mux.Handle("GET "+PathMetrics, s.exporter.Handler())
	}
	for _, r := range s.extra {
		mux.Handle(r.pattern, r.handler)
	}
	return otelhttp.NewHandler(mux, "interview-server")
}

// ListenAndServe serves on the configured address until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves HTTP on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.readHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}

	s.httpMu.Lock()
	if s.closing.Load() {
		s.httpMu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.httpSrv = srv
	s.httpMu.Unlock()

	logger.Info("interview server listening", "addr", ln.Addr().String())
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting sessions, ends the live ones with reason
// shutdown and waits for their finalization, then closes the listener and
// runs the registered closers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutOnce.Do(func() {
		s.closing.Store(true)
		var errs []error

		if err := s.hub.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.cancel()

		s.httpMu.Lock()
		srv := s.httpSrv
		s.httpMu.Unlock()
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		done := make(chan struct{})
		go func() {
			s.conns.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}

		for _, fn := range s.closers {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		s.shutErr = errors.Join(errs...)
	})
	return s.shutErr
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Sessions: s.hub.Count()}
	code := http.StatusOK
	if s.closing.Load() {
		resp.Status = "shutting_down"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	return slices.Contains(s.allowedOrigins, "*") || slices.ContainsFunc(s.allowedOrigins, func(o string) bool {
		return strings.EqualFold(strings.TrimSuffix(o, "/"), origin)
	})
}
