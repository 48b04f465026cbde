// Package finalize completes an interview exactly once: it uploads the
// recording, persists the interview record, links the two, triggers
// analysis and sends the candidate to the results view.
package finalize

import (
	"context"
	"errors"
	"path"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AltairaLabs/InterviewKit/runtime/interview"
	"github.com/AltairaLabs/InterviewKit/runtime/logger"
	prommetrics "github.com/AltairaLabs/InterviewKit/runtime/metrics/prometheus"
	"github.com/AltairaLabs/InterviewKit/runtime/recorder"
	"github.com/AltairaLabs/InterviewKit/runtime/records"
	"github.com/AltairaLabs/InterviewKit/runtime/telemetry"
)

const defaultKeyPrefix = "recordings"

// ObjectStore uploads recording artifacts and returns their URL.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// RecordStore persists interview records.
type RecordStore interface {
	Create(ctx context.Context, rec *interview.InterviewRecord) (string, error)
	Update(ctx context.Context, id string, fields map[string]any) error
}

// AnalysisTrigger starts post-interview analysis. Failures are never fatal.
type AnalysisTrigger interface {
	Trigger(ctx context.Context, recordID string, transcript []interview.Turn) error
}

// Navigator sends the candidate to the results view for a record.
type Navigator interface {
	Navigate(ctx context.Context, recordID string) error
}

// Config wires the pipeline's collaborators. Store and Records are required.
type Config struct {
	Store    ObjectStore
	Records  RecordStore
	Analysis AnalysisTrigger
	Guard    Guard

	// KeyPrefix is prepended to recording object keys. Default "recordings".
	KeyPrefix string

	Tracer trace.Tracer
	Now    func() time.Time
}

// Outcome describes how a Finalize call ended when it returned no error.
type Outcome string

// Outcomes.
const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
)

// Request is one finalization attempt.
type Request struct {
	Session *interview.Session

	// Transcript is the frozen snapshot taken when the session ended.
	Transcript []interview.Turn

	// Recording resolves to the session's artifact. A nil Recording means no
	// artifact will ever arrive and the attempt is skipped.
	Recording *recorder.Pending

	EndReason interview.EndReason
	EndedAt   time.Time

	// Navigator is optional.
	Navigator Navigator
}

// Result reports a finished attempt.
type Result struct {
	Outcome      Outcome
	RecordID     string
	RecordingURL string
	Duration     time.Duration
}

// Pipeline runs finalization. It is safe for concurrent use.
type Pipeline struct {
	store     ObjectStore
	records   RecordStore
	analysis  AnalysisTrigger
	guard     Guard
	keyPrefix string
	tracer    trace.Tracer
	now       func() time.Time

	// analyses tracks fire-and-forget analysis triggers.
	analyses sync.WaitGroup
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, errors.New("finalize: object store is required")
	}
	if cfg.Records == nil {
		return nil, errors.New("finalize: record store is required")
	}
	p := &Pipeline{
		store:     cfg.Store,
		records:   cfg.Records,
		analysis:  cfg.Analysis,
		guard:     cfg.Guard,
		keyPrefix: cfg.KeyPrefix,
		tracer:    cfg.Tracer,
		now:       cfg.Now,
	}
	if p.keyPrefix == "" {
		p.keyPrefix = defaultKeyPrefix
	}
	if p.tracer == nil {
		p.tracer = telemetry.Tracer(nil)
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// Finalize runs the pipeline for req.Session at most once. Concurrent and
// repeated calls after the first return OutcomeSkipped. A returned error is
// a *Error; the session's guard has been cleared and the call may be
// retried.
//
// Cancellation of ctx does not interrupt an attempt that has started.
func (p *Pipeline) Finalize(ctx context.Context, req Request) (*Result, error) {
	sess := req.Session
	if sess == nil || sess.ID == "" {
		logger.Warn("finalize skipped: no session id")
		return p.skip(), nil
	}
	if req.Recording == nil {
		logger.Warn("finalize skipped: no recording will arrive", "session_id", sess.ID)
		return p.skip(), nil
	}
	if !sess.TryBeginFinalize() {
		logger.Debug("finalize skipped: already running or done", "session_id", sess.ID)
		return p.skip(), nil
	}

	ctx = logger.WithSessionID(context.WithoutCancel(ctx), sess.ID)
	ctx, span := p.tracer.Start(ctx, "interview.finalize",
		trace.WithAttributes(
			attribute.String("session.id", sess.ID),
			attribute.String("session.end_reason", string(req.EndReason)),
		),
	)
	defer span.End()

	start := p.now()
	owned := false
	if p.guard != nil {
		ok, err := p.guard.Acquire(ctx, sess.ID)
		if err != nil {
			sess.ReleaseFinalize()
			return nil, p.fail(ctx, span, &Error{Step: StepGuard, Cause: err})
		}
		if !ok {
			// Another replica owns this session. The local flag stays set.
			logger.InfoContext(ctx, "finalize skipped: guard held elsewhere")
			return p.skip(), nil
		}
		owned = true
	}

	res, err := p.run(ctx, req)
	if StepOf(err) == StepRecording {
		// The artifact failed to build and no retry can produce it. The
		// guards stay set so later attempts skip as well.
		logger.ErrorContext(ctx, "finalize skipped: recording failed", "error", err)
		span.RecordError(err)
		return p.skip(), nil
	}
	if err != nil {
		if owned {
			if rerr := p.guard.Release(ctx, sess.ID); rerr != nil {
				logger.WarnContext(ctx, "finalize guard release failed", "error", rerr)
			}
		}
		sess.ReleaseFinalize()
		return nil, p.fail(ctx, span, err)
	}

	res.Duration = p.now().Sub(start)
	span.SetAttributes(attribute.String("record.id", res.RecordID))
	span.SetStatus(codes.Ok, "")
	logger.InfoContext(ctx, "finalization completed",
		"record_id", res.RecordID,
		"turns", len(req.Transcript),
		"duration", res.Duration,
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, req Request) (*Result, error) {
	sess := req.Session

	artifact, err := req.Recording.Wait(ctx)
	if err != nil {
		return nil, &Error{Step: StepRecording, Cause: err}
	}

	endedAt := req.EndedAt
	if endedAt.IsZero() {
		endedAt = p.now()
	}
	record := &interview.InterviewRecord{
		SessionID:     sess.ID,
		Role:          sess.Job.Role,
		CandidateName: sess.Job.CandidateName,
		Skills:        sess.Job.Skills,
		Transcript:    req.Transcript,
		Status:        interview.RecordStatusCompleted,
		EndReason:     req.EndReason,
		StartedAt:     sess.StartedAt,
		EndedAt:       endedAt,
	}
	key := path.Join(p.keyPrefix, sess.ID+artifact.Extension())

	// Upload and create are independent. Neither is cancelled when the
	// other fails.
	var url, recordID string
	var g errgroup.Group
	g.Go(func() error {
		return p.step(ctx, StepUpload, func(ctx context.Context) error {
			u, err := p.store.Upload(ctx, key, artifact.ContentType, artifact.Data)
			if err == nil && u == "" {
				err = errEmptyResult
			}
			url = u
			return err
		})
	})
	g.Go(func() error {
		return p.step(ctx, StepCreate, func(ctx context.Context) error {
			id, err := p.records.Create(ctx, record)
			if err == nil && id == "" {
				err = errEmptyResult
			}
			recordID = id
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	err = p.step(ctx, StepUpdate, func(ctx context.Context) error {
		return p.records.Update(ctx, recordID, map[string]any{records.FieldRecordingURL: url})
	})
	if err != nil {
		return nil, err
	}

	p.triggerAnalysis(ctx, recordID, req.Transcript)

	if req.Navigator != nil {
		if err := req.Navigator.Navigate(ctx, recordID); err != nil {
			logger.WarnContext(ctx, "navigation to results failed", "record_id", recordID, "error", err)
		}
	}

	return &Result{Outcome: OutcomeCompleted, RecordID: recordID, RecordingURL: url}, nil
}

// step runs fn inside a child span and wraps its error with the step name.
func (p *Pipeline) step(ctx context.Context, step Step, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "interview.finalize."+string(step))
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &Error{Step: step, Cause: err}
	}
	return nil
}

func (p *Pipeline) triggerAnalysis(ctx context.Context, recordID string, transcript []interview.Turn) {
	if p.analysis == nil {
		return
	}
	p.analyses.Add(1)
	go func() {
		defer p.analyses.Done()
		if err := p.analysis.Trigger(ctx, recordID, transcript); err != nil {
			logger.WarnContext(ctx, "analysis trigger failed", "record_id", recordID, "error", err)
		}
	}()
}

// Wait blocks until every analysis trigger started by the pipeline returns.
func (p *Pipeline) Wait() {
	p.analyses.Wait()
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.ErrorContext(ctx, "finalization failed", "step", StepOf(err), "error", err)
	return err
}

func (p *Pipeline) skip() *Result {
	prommetrics.RecordFinalization(prommetrics.OutcomeSkipped, 0)
	return &Result{Outcome: OutcomeSkipped}
}
