package audio

import (
	"context"
	"math"
	"sync"
	"time"
)

const (
	stateChangeBufferSize = 16
	defaultSmoothingAlpha = 0.3
	// maxExpectedRMS is the RMS treated as certain speech.
	maxExpectedRMS = 0.5
	// noiseFloorRise is how fast the noise floor follows rising energy.
	// Falling energy is followed immediately.
	noiseFloorRise = 0.005
)

// SimpleVAD is a voice activity detector based on smoothed RMS energy with a
// noise gate. It needs no model files.
type SimpleVAD struct {
	params VADParams
	now    func() time.Time

	mu          sync.RWMutex
	state       VADState
	stateChange chan VADEvent
	stateStart  time.Time

	smoothedRMS float64
	noiseFloor  float64
	floorSet    bool
	alpha       float64
}

// SimpleVADOption configures a SimpleVAD.
type SimpleVADOption func(*SimpleVAD)

// WithVADClock overrides the time source used for state durations.
func WithVADClock(now func() time.Time) SimpleVADOption {
	return func(v *SimpleVAD) {
		v.now = now
	}
}

// NewSimpleVAD creates a SimpleVAD analyzer with the given parameters.
func NewSimpleVAD(params VADParams, opts ...SimpleVADOption) (*SimpleVAD, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	v := &SimpleVAD{
		params:      params,
		now:         time.Now,
		state:       VADStateQuiet,
		stateChange: make(chan VADEvent, stateChangeBufferSize),
		alpha:       defaultSmoothingAlpha,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.stateStart = v.now()
	return v, nil
}

// Name returns the analyzer identifier.
func (v *SimpleVAD) Name() string {
	return "simple-rms"
}

// Analyze processes a PCM16 chunk and returns the voice probability.
func (v *SimpleVAD) Analyze(_ context.Context, audio []byte) (float64, error) {
	if len(audio) < pcmBytesPerSample {
		return 0, nil
	}

	rms := RMS(audio)

	v.mu.Lock()
	v.smoothedRMS = v.alpha*rms + (1-v.alpha)*v.smoothedRMS
	level := v.smoothedRMS
	if v.params.NoiseSuppression {
		v.trackNoiseFloor(level)
		level -= v.noiseFloor
	}
	v.mu.Unlock()

	probability := v.rmsToProbability(level)
	v.updateState(probability)
	return probability, nil
}

// trackNoiseFloor follows the quietest recent level. The floor only rises
// while no speech is detected. Must hold mu.
func (v *SimpleVAD) trackNoiseFloor(level float64) {
	if !v.floorSet || level < v.noiseFloor {
		v.noiseFloor = level
		v.floorSet = true
		return
	}
	if v.state == VADStateQuiet {
		v.noiseFloor += noiseFloorRise * (level - v.noiseFloor)
	}
}

// RMS computes the root mean square of 16-bit little-endian PCM, normalized
// to 0.0-1.0.
func RMS(audio []byte) float64 {
	samples := PCM16Samples(audio)
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		normalized := float64(s) / pcmMaxAmplitude
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}

func (v *SimpleVAD) rmsToProbability(rms float64) float64 {
	if rms <= v.params.MinVolume {
		return 0
	}
	probability := (rms - v.params.MinVolume) / (maxExpectedRMS - v.params.MinVolume)
	return math.Min(1, math.Max(0, probability))
}

// computeNextState is the pure transition function of the VAD state machine.
func (v *SimpleVAD) computeNextState(current VADState, probability, stateDurationSecs float64) VADState {
	aboveThreshold := probability >= v.params.Confidence

	switch current {
	case VADStateQuiet:
		if aboveThreshold {
			return VADStateStarting
		}
	case VADStateStarting:
		if !aboveThreshold {
			return VADStateQuiet
		}
		if stateDurationSecs >= v.params.StartSecs {
			return VADStateSpeaking
		}
	case VADStateSpeaking:
		if !aboveThreshold {
			return VADStateStopping
		}
	case VADStateStopping:
		if aboveThreshold {
			return VADStateSpeaking
		}
		if stateDurationSecs >= v.params.StopSecs {
			return VADStateQuiet
		}
	}
	return current
}

func (v *SimpleVAD) updateState(probability float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	stateDuration := now.Sub(v.stateStart)
	newState := v.computeNextState(v.state, probability, stateDuration.Seconds())
	if newState == v.state {
		return
	}

	event := VADEvent{
		State:      newState,
		PrevState:  v.state,
		Timestamp:  now,
		Duration:   stateDuration,
		Confidence: probability,
	}
	v.state = newState
	v.stateStart = now

	select {
	case v.stateChange <- event:
	default:
	}
}

// State returns the current VAD state.
func (v *SimpleVAD) State() VADState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// OnStateChange returns a channel that receives state transitions.
func (v *SimpleVAD) OnStateChange() <-chan VADEvent {
	return v.stateChange
}

// Reset clears accumulated state.
func (v *SimpleVAD) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state = VADStateQuiet
	v.stateStart = v.now()
	v.smoothedRMS = 0
	v.noiseFloor = 0
	v.floorSet = false

	for len(v.stateChange) > 0 {
		<-v.stateChange
	}
}
