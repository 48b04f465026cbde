package audio

import (
	"sync"
)

// Source identifies a Mixer input.
type Source int

const (
	// SourceDisplay is the shared screen's system audio.
	SourceDisplay Source = iota
	// SourceMicrophone is the candidate's microphone.
	SourceMicrophone
)

// Mixer combines two independently delivered PCM16 sources into a single
// mono track at a fixed sample rate. Samples are summed as soon as both
// sources have delivered them; Flush mixes whatever remains against silence.
// Mixer is safe for concurrent use.
type Mixer struct {
	sampleRate int

	mu      sync.Mutex
	pending [2][]int16
	mixed   []int16
	closed  bool
}

// NewMixer creates a mixer producing audio at sampleRate.
func NewMixer(sampleRate int) *Mixer {
	return &Mixer{sampleRate: sampleRate}
}

// SampleRate returns the output sample rate.
func (m *Mixer) SampleRate() int {
	return m.sampleRate
}

// Write appends PCM16 audio from src, resampling from rate when it differs
// from the mixer rate. Writes after Flush are discarded.
func (m *Mixer) Write(src Source, pcm []byte, rate int) error {
	if rate != m.sampleRate {
		var err error
		pcm, err = ResamplePCM16(pcm[:len(pcm)-len(pcm)%pcmBytesPerSample], rate, m.sampleRate)
		if err != nil {
			return err
		}
	}
	samples := PCM16Samples(pcm)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.pending[src] = append(m.pending[src], samples...)
	m.drainLocked(false)
	return nil
}

// drainLocked moves aligned samples into the mixed track. With all set the
// longer source is mixed against silence. Must hold mu.
func (m *Mixer) drainLocked(all bool) {
	a, b := m.pending[SourceDisplay], m.pending[SourceMicrophone]
	n := min(len(a), len(b))
	if all {
		n = max(len(a), len(b))
	}
	for i := 0; i < n; i++ {
		var v int32
		if i < len(a) {
			v += int32(a[i])
		}
		if i < len(b) {
			v += int32(b[i])
		}
		m.mixed = append(m.mixed, clampInt16(v))
	}
	m.pending[SourceDisplay] = a[min(n, len(a)):]
	m.pending[SourceMicrophone] = b[min(n, len(b)):]
}

// Flush mixes any unaligned remainder, stops accepting writes and returns
// the complete mixed track as PCM16.
func (m *Mixer) Flush() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.drainLocked(true)
		m.closed = true
	}
	return PCM16Bytes(m.mixed)
}

// Duration returns the length of audio mixed so far.
func (m *Mixer) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(len(m.mixed)) / float64(m.sampleRate)
}
