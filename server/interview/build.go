package interviewserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/InterviewKit/pkg/config"
	"github.com/AltairaLabs/InterviewKit/runtime/analysis"
	"github.com/AltairaLabs/InterviewKit/runtime/audio"
	"github.com/AltairaLabs/InterviewKit/runtime/dialogue"
	"github.com/AltairaLabs/InterviewKit/runtime/finalize"
	"github.com/AltairaLabs/InterviewKit/runtime/logger"
	prommetrics "github.com/AltairaLabs/InterviewKit/runtime/metrics/prometheus"
	"github.com/AltairaLabs/InterviewKit/runtime/recorder"
	memrecords "github.com/AltairaLabs/InterviewKit/runtime/records/memory"
	sbrecords "github.com/AltairaLabs/InterviewKit/runtime/records/supabase"
	"github.com/AltairaLabs/InterviewKit/runtime/storage/local"
	sbstorage "github.com/AltairaLabs/InterviewKit/runtime/storage/supabase"
	"github.com/AltairaLabs/InterviewKit/runtime/telemetry"
	"github.com/AltairaLabs/InterviewKit/runtime/transport/ws"
	"github.com/AltairaLabs/InterviewKit/runtime/version"
)

// Build constructs a Server and all of its collaborators from a loaded
// configuration. Extra options are applied after the configured ones.
// Resources opened here are released by Server.Shutdown.
func Build(ctx context.Context, cfg *config.Config, extra ...Option) (*Server, error) {
	var (
		opts    []Option
		closers []func(context.Context) error
		ok      bool
	)
	defer func() {
		if ok {
			return
		}
		for _, fn := range closers {
			_ = fn(ctx)
		}
	}()

	tracer, closeTracing, err := buildTracing(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	if closeTracing != nil {
		closers = append(closers, closeTracing)
	}

	store, storeOpts, err := buildObjectStore(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, storeOpts...)

	recs, err := buildRecordStore(cfg)
	if err != nil {
		return nil, err
	}

	fcfg := finalize.Config{
		Store:     store,
		Records:   recs,
		KeyPrefix: cfg.Storage.KeyPrefix,
		Tracer:    tracer,
	}
	if cfg.Analysis.Enabled() {
		trigger, err := analysis.NewHTTPTrigger(analysis.Config{
			Endpoint: cfg.Analysis.Endpoint,
			APIKey:   cfg.Analysis.APIKey,
			Timeout:  cfg.Analysis.Timeout,
		})
		if err != nil {
			return nil, err
		}
		fcfg.Analysis = trigger
	}
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func(context.Context) error { return client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		guardOpts := []finalize.RedisGuardOption{finalize.WithGuardTTL(cfg.Redis.GuardTTL)}
		if cfg.Redis.KeyPrefix != "" {
			guardOpts = append(guardOpts, finalize.WithGuardPrefix(cfg.Redis.KeyPrefix))
		}
		fcfg.Guard = finalize.NewRedisGuard(client, guardOpts...)
	}
	pipeline, err := finalize.New(fcfg)
	if err != nil {
		return nil, err
	}
	// Outstanding analysis triggers are awaited before the clients close.
	closers = append([]func(context.Context) error{waitCloser(pipeline.Wait)}, closers...)

	dlg, err := dialogue.New(dialogue.Config{
		BaseURL:        cfg.Dialogue.BaseURL,
		APIKey:         cfg.Dialogue.APIKey,
		Model:          cfg.Dialogue.Model,
		Temperature:    cfg.Dialogue.Temperature,
		MaxTokens:      cfg.Dialogue.MaxTokens,
		MaxAttempts:    cfg.Dialogue.MaxAttempts,
		InitialBackoff: cfg.Dialogue.InitialBackoff,
		Timeout:        cfg.Dialogue.Timeout,
		Tracer:         tracer,
	})
	if err != nil {
		return nil, err
	}

	opts = append(opts,
		WithAddr(cfg.Server.Addr),
		WithReadHeaderTimeout(cfg.Server.ReadHeaderTimeout),
		WithAllowedOrigins(cfg.Server.AllowedOrigins...),
		WithHandshakeTimeout(cfg.Server.HandshakeTimeout),
		WithDeviceConfig(ws.Config{
			PongWait:          cfg.Server.PongWait,
			MaxMessageSize:    cfg.Server.MaxMessageBytes,
			MessagesPerSecond: cfg.Server.MessagesPerSecond,
			Burst:             cfg.Server.Burst,
			CaptureTimeout:    cfg.Server.CaptureTimeout,
			ResultsPath:       cfg.Server.ResultsPath,
		}),
		WithInterviewDuration(cfg.Interview.Duration),
		WithRequirements(requirements(cfg.Interview)),
		WithVADParams(vadParams(cfg.VAD)),
		WithMetrics(prommetrics.NewExporter(prommetrics.WithBuildInfo(version.Get()))),
		WithTracing(telemetry.NewOTelEventListener(tracer)),
	)
	if cfg.Interview.MixSampleRate > 0 {
		opts = append(opts, WithMixSampleRate(cfg.Interview.MixSampleRate))
	}
	for _, fn := range closers {
		opts = append(opts, WithCloser(fn))
	}
	opts = append(opts, extra...)

	srv, err := NewServer(dlg, pipeline, opts...)
	if err != nil {
		return nil, err
	}
	ok = true

	logger.Info("interview server configured",
		"name", cfg.Name,
		"storage", cfg.Storage.Backend,
		"records", cfg.Records.Backend,
		"analysis", cfg.Analysis.Enabled(),
		"guard", cfg.Redis.Enabled(),
		"tracing", cfg.Telemetry.Enabled(),
	)
	return srv, nil
}

func buildTracing(ctx context.Context, cfg config.TelemetryConfig) (trace.Tracer, func(context.Context) error, error) {
	telemetry.SetupPropagation(cfg.XRay)
	if !cfg.Enabled() {
		return telemetry.Tracer(nil), nil, nil
	}
	tp, err := telemetry.NewTracerProvider(ctx, cfg.Endpoint, cfg.ServiceName, cfg.SampleRatio)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: %w", err)
	}
	otel.SetTracerProvider(tp)
	return telemetry.Tracer(tp), tp.Shutdown, nil
}

func buildObjectStore(cfg *config.Config) (finalize.ObjectStore, []Option, error) {
	switch cfg.Storage.Backend {
	case config.StorageSupabase:
		store, err := sbstorage.New(sbstorage.Config{
			URL:            cfg.Supabase.URL,
			ServiceRoleKey: cfg.Supabase.ServiceRoleKey,
			Bucket:         cfg.Storage.Bucket,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %w", err)
		}
		return store, nil, nil
	default:
		prefix := strings.TrimSuffix(cfg.Server.RecordingsPath, "/")
		baseURL := cfg.Storage.Local.BaseURL
		if baseURL == "" {
			baseURL = prefix
		}
		store, err := local.NewFileStore(local.FileStoreConfig{
			BaseDir: cfg.Storage.Local.BaseDir,
			BaseURL: baseURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %w", err)
		}
		serve := WithHandler("GET "+cfg.Server.RecordingsPath, http.StripPrefix(prefix, store.Handler()))
		return store, []Option{serve}, nil
	}
}

func buildRecordStore(cfg *config.Config) (finalize.RecordStore, error) {
	if cfg.Records.Backend != config.RecordsSupabase {
		return memrecords.New(), nil
	}
	store, err := sbrecords.New(sbrecords.Config{
		URL:            cfg.Supabase.URL,
		ServiceRoleKey: cfg.Supabase.ServiceRoleKey,
		Table:          cfg.Records.Table,
	})
	if err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}
	return store, nil
}

func requirements(cfg config.InterviewConfig) recorder.Requirements {
	req := recorder.DefaultRequirements()
	if len(cfg.AllowedSurfaces) > 0 {
		req.AllowedSurfaces = cfg.AllowedSurfaces
	}
	if cfg.MinWidth > 0 {
		req.MinWidth = cfg.MinWidth
	}
	if cfg.MinHeight > 0 {
		req.MinHeight = cfg.MinHeight
	}
	return req
}

// vadParams overlays the configured values on the defaults.
func vadParams(cfg config.VADConfig) audio.VADParams {
	p := audio.DefaultVADParams()
	if cfg.Confidence > 0 {
		p.Confidence = cfg.Confidence
	}
	if cfg.StartSecs > 0 {
		p.StartSecs = cfg.StartSecs
	}
	if cfg.StopSecs > 0 {
		p.StopSecs = cfg.StopSecs
	}
	if cfg.MinVolume > 0 {
		p.MinVolume = cfg.MinVolume
	}
	if cfg.SampleRate > 0 {
		p.SampleRate = cfg.SampleRate
	}
	if cfg.NoiseSuppression != nil {
		p.NoiseSuppression = *cfg.NoiseSuppression
	}
	return p
}

// waitCloser adapts a blocking wait to a closer bounded by ctx.
func waitCloser(wait func()) func(context.Context) error {
	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
