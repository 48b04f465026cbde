package audio

import (
	"sync"
	"time"
)

// SilenceDetector finds the end of an utterance from VAD state changes.
// An utterance ends when the analyzer returns to quiet at least Threshold
// after speech started to stop. Starting without reaching speaking is
// treated as noise.
type SilenceDetector struct {
	// Threshold is the silence required after a stop before the utterance
	// counts as finished. Zero ends it on the first quiet state.
	Threshold time.Duration

	mu           sync.Mutex
	silenceStart time.Time
	inSilence    bool
	userSpeaking bool
	hadSpeech    bool
	lastState    VADState
}

// NewSilenceDetector creates a SilenceDetector with the given threshold.
func NewSilenceDetector(threshold time.Duration) *SilenceDetector {
	return &SilenceDetector{
		Threshold: threshold,
		inSilence: true,
		lastState: VADStateQuiet,
	}
}

// ProcessVADEvent applies one state transition and reports whether it ended
// an utterance.
func (d *SilenceDetector) ProcessVADEvent(ev VADEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.lastState
	d.lastState = ev.State

	switch ev.State {
	case VADStateSpeaking:
		d.userSpeaking = true
		d.hadSpeech = true
		d.inSilence = false

	case VADStateStopping:
		if prev == VADStateSpeaking {
			d.silenceStart = ev.Timestamp
			d.inSilence = true
		}

	case VADStateQuiet:
		d.userSpeaking = false
		if d.hadSpeech && d.inSilence {
			if ev.Timestamp.Sub(d.silenceStart) >= d.Threshold {
				d.hadSpeech = false
				return true
			}
			return false
		}
		if !d.inSilence {
			d.silenceStart = ev.Timestamp
			d.inSilence = true
		}

	case VADStateStarting:
		d.inSilence = false
	}
	return false
}

// IsUserSpeaking reports whether speech is in progress.
func (d *SilenceDetector) IsUserSpeaking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.userSpeaking
}

// Reset forgets the current utterance.
func (d *SilenceDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silenceStart = time.Time{}
	d.inSilence = true
	d.userSpeaking = false
	d.hadSpeech = false
	d.lastState = VADStateQuiet
}
