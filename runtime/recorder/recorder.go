package recorder

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AltairaLabs/InterviewKit/runtime/audio"
	"github.com/AltairaLabs/InterviewKit/runtime/logger"
	prommetrics "github.com/AltairaLabs/InterviewKit/runtime/metrics/prometheus"
)

// State is the recorder lifecycle state.
type State int

// Recorder states.
const (
	StateIdle State = iota
	StateStarting
	StateRecording
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithRequirements overrides the validation gate.
func WithRequirements(req Requirements) Option {
	return func(r *Recorder) {
		r.req = req
	}
}

// WithMixSampleRate sets the sample rate of the mixed audio track.
func WithMixSampleRate(rate int) Option {
	return func(r *Recorder) {
		r.mixRate = rate
	}
}

// WithClock overrides the time source used for artifact timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// Recorder owns the capture streams for one session. No other component
// reads or writes the tracks directly.
type Recorder struct {
	src     CaptureSource
	req     Requirements
	mixRate int
	now     func() time.Time

	mu        sync.Mutex
	state     State
	display   DisplayStream
	mic       MicrophoneStream
	settings  TrackSettings
	startedAt time.Time
	video     bytes.Buffer
	mixer     *audio.Mixer
	lastErr   error

	stop      chan struct{}
	loopDone  chan struct{}
	ended     chan struct{}
	endedOnce sync.Once
	pending   *Pending
}

// New creates a recorder over a capture source.
func New(src CaptureSource, opts ...Option) *Recorder {
	r := &Recorder{
		src:     src,
		req:     DefaultRequirements(),
		mixRate: audio.SampleRate16kHz,
		now:     time.Now,
		ended:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ValidateAndStart requests a display stream, validates it and, only when it
// passes, requests the microphone and begins recording. On any failure the
// recorder stays idle and every granted stream is released.
func (r *Recorder) ValidateAndStart(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle || r.display != nil {
		r.mu.Unlock()
		return &CaptureError{Kind: KindInvalidState, Message: "recorder already used"}
	}
	r.state = StateStarting
	r.mu.Unlock()

	display, err := r.src.RequestDisplay(ctx)
	if err != nil {
		return r.fail(captureFailure("screen", err))
	}
	if !display.HasVideo() {
		_ = display.Close()
		return r.fail(&CaptureError{Kind: KindNoVideoTrack, Message: "the shared stream has no video"})
	}
	settings := display.Settings()
	if err := r.req.Check(settings); err != nil {
		_ = display.Close()
		return r.fail(err)
	}

	mic, err := r.src.RequestMicrophone(ctx)
	if err != nil {
		_ = display.Close()
		return r.fail(captureFailure("microphone", err))
	}

	r.mu.Lock()
	r.state = StateRecording
	r.display = display
	r.mic = mic
	r.settings = settings
	r.startedAt = r.now()
	r.mixer = audio.NewMixer(r.mixRate)
	r.lastErr = nil
	r.stop = make(chan struct{})
	r.loopDone = make(chan struct{})
	r.mu.Unlock()

	go r.captureLoop(display, mic)

	logger.Info("recording started",
		"surface", settings.DisplaySurface,
		"width", settings.Width,
		"height", settings.Height,
	)
	return nil
}

func (r *Recorder) fail(err error) error {
	r.mu.Lock()
	r.state = StateIdle
	r.lastErr = err
	r.mu.Unlock()
	var verr *ValidationError
	if errors.As(err, &verr) {
		prommetrics.RecordValidationFailure(verr.Field)
	}
	logger.Warn("recording not started", "error", err)
	return err
}

// captureLoop appends frames until Stop is called or the display ends.
func (r *Recorder) captureLoop(display DisplayStream, mic MicrophoneStream) {
	defer close(r.loopDone)

	video := display.Video()
	displayAudio := display.Audio()
	micAudio := mic.Audio()
	ended := display.Ended()

	for {
		select {
		case <-r.stop:
			return
		case <-ended:
			r.trackEnded()
			return
		case chunk, ok := <-video:
			if !ok {
				r.trackEnded()
				return
			}
			r.mu.Lock()
			if r.state == StateRecording {
				r.video.Write(chunk)
			}
			r.mu.Unlock()
		case chunk, ok := <-displayAudio:
			if !ok {
				displayAudio = nil
				continue
			}
			r.writeAudio(audio.SourceDisplay, chunk)
		case chunk, ok := <-micAudio:
			if !ok {
				micAudio = nil
				continue
			}
			r.writeAudio(audio.SourceMicrophone, chunk)
		}
	}
}

func (r *Recorder) writeAudio(src audio.Source, chunk AudioChunk) {
	if !r.Recording() {
		return
	}
	rate := chunk.SampleRate
	if rate == 0 {
		rate = r.mixRate
	}
	if err := r.mixer.Write(src, chunk.PCM, rate); err != nil {
		logger.Warn("dropping audio chunk", "error", err)
	}
}

// trackEnded resets the recorder to not-recording after the capture stopped
// underneath it. Frames captured so far are kept for Stop.
func (r *Recorder) trackEnded() {
	r.mu.Lock()
	if r.state == StateRecording {
		r.state = StateIdle
		r.lastErr = &CaptureError{Kind: KindTrackEnded, Message: "screen sharing stopped"}
	}
	r.mu.Unlock()
	r.endedOnce.Do(func() { close(r.ended) })
	logger.Warn("display track ended unexpectedly")
}

// Ended is closed when the display track ends without Stop being called.
func (r *Recorder) Ended() <-chan struct{} {
	return r.ended
}

// Recording reports whether frames are currently being captured.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateRecording
}

// Err returns the last capture error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Stop ends capture and returns the pending artifact. Repeated calls return
// the same Pending. It returns nil when recording never started, since no
// artifact will ever exist.
func (r *Recorder) Stop() *Pending {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending != nil {
		return r.pending
	}
	if r.display == nil {
		return nil
	}

	r.pending = newPending()
	r.state = StateStopped
	close(r.stop)
	go r.finish(r.pending)
	return r.pending
}

func (r *Recorder) finish(p *Pending) {
	<-r.loopDone
	_ = r.display.Close()
	_ = r.mic.Close()

	r.mu.Lock()
	video := bytes.Clone(r.video.Bytes())
	settings := r.settings
	started := r.startedAt
	r.mu.Unlock()

	mixed := r.mixer.Flush()
	artifact, err := buildArtifact(video, mixed, r.mixRate, settings, started, r.now())
	if err != nil {
		logger.Error("failed to build recording artifact", "error", err)
	} else {
		logger.Info("recording stopped",
			"bytes", len(artifact.Data),
			"duration", artifact.Duration().String(),
			"audio_secs", r.mixer.Duration(),
		)
	}
	p.resolve(artifact, err)
}
