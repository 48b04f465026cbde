package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AltairaLabs/InterviewKit/runtime/events"
	"github.com/AltairaLabs/InterviewKit/runtime/finalize"
	"github.com/AltairaLabs/InterviewKit/runtime/interview"
	"github.com/AltairaLabs/InterviewKit/runtime/logger"
	"github.com/AltairaLabs/InterviewKit/runtime/recorder"
)

const eventBuffer = 64

// ErrAlreadyRunning is returned when Run is called more than once.
var ErrAlreadyRunning = errors.New("session: manager already running")

// Config wires a Manager to its capabilities. Every field except Navigator,
// Bus and Now is required.
type Config struct {
	Capture   SpeechCapture
	Speech    Synthesizer
	Activity  ActivityDetector
	Recorder  Recorder
	Dialogue  DialogueClient
	Finalizer Finalizer
	Clock     Clock

	Navigator finalize.Navigator
	Bus       *events.EventBus
	Now       func() time.Time
}

func (c *Config) validate() error {
	switch {
	case c.Capture == nil:
		return errors.New("speech capture is required")
	case c.Speech == nil:
		return errors.New("speech synthesizer is required")
	case c.Activity == nil:
		return errors.New("activity detector is required")
	case c.Recorder == nil:
		return errors.New("recorder is required")
	case c.Dialogue == nil:
		return errors.New("dialogue client is required")
	case c.Finalizer == nil:
		return errors.New("finalizer is required")
	case c.Clock == nil:
		return errors.New("clock is required")
	}
	return nil
}

// Manager is the Turn Manager for one session. A single goroutine (Run)
// owns the model: device callbacks, timers and network replies are turned
// into Events and applied in arrival order, and the effects of each
// transition are executed before the next event is read.
type Manager struct {
	session *interview.Session
	cfg     Config
	emitter *events.Emitter
	now     func() time.Time

	events  chan Event
	done    chan struct{}
	running atomic.Bool

	// Owned by the Run goroutine.
	queue     []Event
	recording *recorder.Pending
	ctx       context.Context //nolint:containedctx // detached session context for effects
	loopCtx   context.Context //nolint:containedctx // cancelled when Run returns

	mu      sync.RWMutex
	model   Model
	request *finalize.Request
	result  *finalize.Result
}

// NewManager creates a Manager for sess. It fails with
// interview.ErrUnsupportedCapability when speech capture is unavailable.
func NewManager(sess *interview.Session, cfg Config) (*Manager, error) {
	if sess == nil || sess.ID == "" {
		return nil, errors.New("session: session with an id is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if !cfg.Capture.Supported() {
		return nil, fmt.Errorf("%w: %s", interview.ErrUnsupportedCapability, interview.UnsupportedMessage)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		session: sess,
		cfg:     cfg,
		emitter: events.NewEmitter(cfg.Bus, sess.ID),
		now:     now,
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
		model:   NewModel(),
	}, nil
}

// ID returns the session id.
func (m *Manager) ID() string {
	return m.session.ID
}

// Session returns the managed session.
func (m *Manager) Session() *interview.Session {
	return m.session
}

// State returns the current state.
func (m *Manager) State() State {
	return m.snapshot().State
}

// Transcript returns a copy of the turns recorded so far.
func (m *Manager) Transcript() []interview.Turn {
	turns := m.snapshot().Turns
	out := make([]interview.Turn, len(turns))
	copy(out, turns)
	return out
}

// Result returns the completed finalization result, if any.
func (m *Manager) Result() *finalize.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.result
}

// FinalizeErr returns the error of the finalization attempt made when the
// session ended. It is nil while the session is live and after a
// successful or skipped attempt.
func (m *Manager) FinalizeErr() error {
	return m.snapshot().FinalizeErr
}

// Done is closed when the event loop exits.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Dispatch queues ev for the event loop. It returns false once the loop has
// exited. Dispatch must not be called from inside an effect.
func (m *Manager) Dispatch(ev Event) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

// BeginScreenShare asks the candidate to share their screen.
func (m *Manager) BeginScreenShare() bool {
	return m.Dispatch(Event{Kind: EventShareRequested})
}

// End asks the session to end. Repeated calls are harmless.
func (m *Manager) End(reason interview.EndReason) bool {
	return m.Dispatch(Event{Kind: EventEndRequested, Reason: reason})
}

// Run drives the session until it has ended and its finalization attempt
// has returned. Cancelling ctx ends the session with EndReasonShutdown; the
// finalization attempt itself is never cancelled. Run returns the
// finalization error, if any; RetryFinalize may be used afterwards.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	m.ctx = logger.WithSessionID(context.WithoutCancel(ctx), m.session.ID)
	loopCtx, cancel := context.WithCancel(m.ctx)
	m.loopCtx = loopCtx

	var wg sync.WaitGroup
	m.forward(loopCtx, &wg)
	defer func() {
		// Closing done first unblocks forwarders parked in Dispatch.
		close(m.done)
		cancel()
		wg.Wait()
	}()

	logger.InfoContext(m.ctx, "session opened", "role", m.session.Job.Role, "duration", m.session.Duration)

	cancelled := ctx.Done()
	for !m.snapshot().Done() {
		select {
		case <-cancelled:
			cancelled = nil
			m.apply(Event{Kind: EventEndRequested, Reason: interview.EndReasonShutdown})
		case ev := <-m.events:
			m.apply(ev)
		}
	}

	final := m.snapshot()
	logger.InfoContext(m.ctx, "session closed",
		"end_reason", final.EndReason,
		"turns", len(final.Turns),
	)
	return final.FinalizeErr
}

// RetryFinalize re-runs finalization with the transcript and recording of
// the original attempt. It is intended for use after Run returned a
// finalization error.
func (m *Manager) RetryFinalize(ctx context.Context) (*finalize.Result, error) {
	m.mu.RLock()
	req := m.request
	m.mu.RUnlock()
	if req == nil {
		return nil, fmt.Errorf("%w: session %s has not been finalized", interview.ErrNoActiveSession, m.session.ID)
	}
	logger.InfoContext(logger.WithSessionID(ctx, m.session.ID), "retrying finalization")
	return m.runFinalize(ctx, *req)
}

func (m *Manager) snapshot() Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model
}

// post queues a follow-up event from inside the loop.
func (m *Manager) post(ev Event) {
	m.queue = append(m.queue, ev)
}

func (m *Manager) apply(ev Event) {
	m.post(ev)
	for len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.step(next)
	}
}

func (m *Manager) step(ev Event) {
	prev := m.snapshot()
	next, effects := Reduce(prev, ev)

	m.mu.Lock()
	m.model = next
	m.mu.Unlock()

	if prev.State != next.State {
		reason := string(ev.Kind)
		if next.State == StateEnding || (next.State == StateEnded && prev.State == StateIdle) {
			reason = string(next.EndReason)
		}
		logger.StateChange(logger.WithState(m.ctx, string(next.State)), string(prev.State), string(next.State), reason)
		m.emitter.StateChanged(string(prev.State), string(next.State), reason)
	}

	for _, eff := range effects {
		m.execute(eff)
	}
}

func (m *Manager) execute(eff Effect) {
	ctx := m.ctx
	switch eff.Kind {
	case EffectStartRecording:
		go func() {
			if err := m.cfg.Recorder.ValidateAndStart(m.loopCtx); err != nil {
				m.Dispatch(Event{Kind: EventCaptureFailed, Err: err})
				return
			}
			m.Dispatch(Event{Kind: EventCaptureReady})
		}()

	case EffectStopRecording:
		if p := m.cfg.Recorder.Stop(); p != nil && m.recording == nil {
			m.recording = p
		}

	case EffectStartClock:
		m.session.StartedAt = m.now()
		if err := m.cfg.Clock.Start(m.session.Duration); err != nil {
			logger.WarnContext(ctx, "clock start failed", "error", err)
		}

	case EffectStopClock:
		m.cfg.Clock.Stop()

	case EffectStartListening:
		if err := m.cfg.Capture.StartListening(ctx, true); err != nil {
			logger.WarnContext(ctx, "speech capture start failed", "error", err)
		}

	case EffectStopListening:
		if err := m.cfg.Capture.StopListening(ctx); err != nil {
			logger.WarnContext(ctx, "speech capture stop failed", "error", err)
		}

	case EffectResetTranscript:
		m.cfg.Capture.ResetTranscript()

	case EffectRequestQuestion:
		m.requestQuestion(eff.Seq, eff.History)

	case EffectSpeak:
		m.emitter.QuestionAsked(eff.Text)
		if err := m.cfg.Speech.Speak(ctx, eff.Text); err != nil {
			// Without playback there is no stop signal; resume listening.
			logger.WarnContext(ctx, "speech synthesis failed", "error", err)
			m.post(Event{Kind: EventSpeechStopped})
		}

	case EffectStopSpeaking:
		if err := m.cfg.Speech.StopSpeaking(ctx); err != nil {
			logger.WarnContext(ctx, "speech synthesis stop failed", "error", err)
		}

	case EffectTurnRecorded:
		logger.TurnRecorded(ctx, eff.Index, len(eff.Turn.Answer))
		m.emitter.TurnRecorded(eff.Index, eff.Turn.Question, eff.Turn.Answer)

	case EffectReportError:
		m.reportError(eff)

	case EffectFinishEnding:
		m.post(Event{Kind: EventStopped})

	case EffectFinalize:
		req := finalize.Request{
			Session:    m.session,
			Transcript: eff.History,
			Recording:  m.recording,
			EndReason:  eff.Reason,
			EndedAt:    m.now(),
			Navigator:  m.cfg.Navigator,
		}
		m.mu.Lock()
		m.request = &req
		m.mu.Unlock()
		go func() {
			_, err := m.runFinalize(m.ctx, req)
			m.Dispatch(Event{Kind: EventFinalized, Err: err})
		}()

	case EffectFinalizeDone:
		if eff.Err != nil {
			logger.WarnContext(ctx, "session ended without a saved record", "error", eff.Err)
		}
	}
}

func (m *Manager) requestQuestion(seq int, history []interview.Turn) {
	job := m.session.Job
	go func() {
		text, err := m.cfg.Dialogue.NextQuestion(m.loopCtx, job, history)
		if err != nil {
			m.Dispatch(Event{Kind: EventDialogueFailed, Seq: seq, Err: err})
			return
		}
		m.Dispatch(Event{Kind: EventQuestionReady, Seq: seq, Text: text})
	}()
}

func (m *Manager) runFinalize(ctx context.Context, req finalize.Request) (*finalize.Result, error) {
	res, err := m.cfg.Finalizer.Finalize(ctx, req)
	if err != nil {
		m.emitter.FinalizeFailed(string(finalize.StepOf(err)), err)
		m.emitter.SessionError(CodeFinalizationFailed, "your interview could not be saved; please retry", true)
		return nil, err
	}
	if res != nil && res.Outcome == finalize.OutcomeCompleted {
		m.mu.Lock()
		m.result = res
		m.mu.Unlock()
		m.emitter.FinalizeCompleted(res.RecordID, res.RecordingURL, res.Duration)
	}
	return res, nil
}

func (m *Manager) reportError(eff Effect) {
	retryable := eff.Code != CodeDialogueFailed
	message := eff.Code
	if eff.Err != nil {
		message = eff.Err.Error()
	}
	logger.WarnContext(m.ctx, "session error", "code", eff.Code, "error", eff.Err)
	m.emitter.SessionError(eff.Code, message, retryable)
}

// forward turns device and timer signals into events.
func (m *Manager) forward(ctx context.Context, wg *sync.WaitGroup) {
	goForward := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	goForward(func() {
		transcripts := m.cfg.Capture.Transcripts()
		for {
			select {
			case <-ctx.Done():
				return
			case text, ok := <-transcripts:
				if !ok {
					return
				}
				m.Dispatch(Event{Kind: EventTranscript, Text: text})
			}
		}
	})

	goForward(func() {
		signals := m.cfg.Speech.Signals()
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				kind := EventSpeechStarted
				if sig == SpeechStopped {
					kind = EventSpeechStopped
				}
				m.Dispatch(Event{Kind: kind})
			}
		}
	})

	goForward(func() {
		noVoice := m.cfg.Activity.NoVoice()
		for {
			select {
			case <-ctx.Done():
				return
			case silent, ok := <-noVoice:
				if !ok {
					return
				}
				m.Dispatch(Event{Kind: EventVoiceActivity, Silent: silent})
			}
		}
	})

	goForward(func() {
		select {
		case <-ctx.Done():
		case <-m.cfg.Clock.Expired():
			m.Dispatch(Event{Kind: EventClockExpired})
		}
	})

	goForward(func() {
		select {
		case <-ctx.Done():
		case <-m.cfg.Recorder.Ended():
			m.Dispatch(Event{Kind: EventStreamEnded})
		}
	})
}
