package audio

import (
	"context"
	"time"
)

// Default VAD parameter values.
const (
	DefaultVADConfidence = 0.5
	DefaultVADStartSecs  = 0.2
	DefaultVADStopSecs   = 1.2
	DefaultVADMinVolume  = 0.01
	DefaultVADSampleRate = SampleRate16kHz
)

// VADState represents the current voice activity state.
type VADState int

const (
	// VADStateQuiet indicates no voice activity detected.
	VADStateQuiet VADState = iota
	// VADStateStarting indicates voice is starting (within start threshold).
	VADStateStarting
	// VADStateSpeaking indicates active speech.
	VADStateSpeaking
	// VADStateStopping indicates voice is stopping (within stop threshold).
	VADStateStopping
)

// String returns a human-readable representation of the VAD state.
func (s VADState) String() string {
	switch s {
	case VADStateQuiet:
		return "quiet"
	case VADStateStarting:
		return "starting"
	case VADStateSpeaking:
		return "speaking"
	case VADStateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// VADParams configures voice activity detection behavior.
type VADParams struct {
	// Confidence threshold for voice detection (0.0-1.0).
	Confidence float64 `yaml:"confidence" json:"confidence"`

	// StartSecs is seconds of speech required before speech is reported.
	StartSecs float64 `yaml:"start_secs" json:"start_secs"`

	// StopSecs is seconds of silence required before the utterance is
	// considered complete. This is the main false-positive/false-negative knob.
	StopSecs float64 `yaml:"stop_secs" json:"stop_secs"`

	// MinVolume is the noise gate: RMS at or below it (after subtracting the
	// tracked noise floor) counts as silence.
	MinVolume float64 `yaml:"min_volume" json:"min_volume"`

	// SampleRate is the audio sample rate in Hz.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// NoiseSuppression enables adaptive noise floor tracking.
	NoiseSuppression bool `yaml:"noise_suppression" json:"noise_suppression"`
}

// DefaultVADParams returns the defaults used for interview microphones.
func DefaultVADParams() VADParams {
	return VADParams{
		Confidence:       DefaultVADConfidence,
		StartSecs:        DefaultVADStartSecs,
		StopSecs:         DefaultVADStopSecs,
		MinVolume:        DefaultVADMinVolume,
		SampleRate:       DefaultVADSampleRate,
		NoiseSuppression: true,
	}
}

// Validate checks that VAD parameters are within acceptable ranges.
func (p VADParams) Validate() error {
	if p.Confidence < 0 || p.Confidence > 1 {
		return &ValidationError{Field: "Confidence", Message: "must be between 0.0 and 1.0"}
	}
	if p.StartSecs < 0 {
		return &ValidationError{Field: "StartSecs", Message: "must be non-negative"}
	}
	if p.StopSecs < 0 {
		return &ValidationError{Field: "StopSecs", Message: "must be non-negative"}
	}
	if p.MinVolume < 0 || p.MinVolume > 1 {
		return &ValidationError{Field: "MinVolume", Message: "must be between 0.0 and 1.0"}
	}
	if p.SampleRate <= 0 {
		return &ValidationError{Field: "SampleRate", Message: "must be positive"}
	}
	return nil
}

// ValidationError represents a parameter validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Message
}

// VADEvent represents a state transition in VAD.
type VADEvent struct {
	State      VADState
	PrevState  VADState
	Timestamp  time.Time
	Duration   time.Duration // time spent in PrevState
	Confidence float64
}

// VADAnalyzer analyzes audio for voice activity.
type VADAnalyzer interface {
	// Name returns the analyzer identifier.
	Name() string

	// Analyze processes audio and returns voice probability (0.0-1.0).
	Analyze(ctx context.Context, audio []byte) (float64, error)

	// State returns the current VAD state based on accumulated analysis.
	State() VADState

	// OnStateChange returns a channel that receives state transitions.
	// The channel is buffered and may drop events if not consumed.
	OnStateChange() <-chan VADEvent

	// Reset clears accumulated state.
	Reset()
}
