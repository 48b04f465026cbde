package audio

import (
	"context"
	"sync"
)

const noVoiceBufferSize = 8

// ActivityMonitor turns VAD state changes into the boolean "no voice
// currently detected" signal. It starts in the no-voice state and only
// emits on change: false when speech starts, true once the SilenceDetector
// reports the end of the utterance.
type ActivityMonitor struct {
	vad      VADAnalyzer
	detector *SilenceDetector

	mu      sync.Mutex
	noVoice bool
	out     chan bool
	closed  bool
}

// NewActivityMonitor wraps a VAD analyzer. The analyzer's StopSecs is the
// only hold applied before silence is reported.
func NewActivityMonitor(vad VADAnalyzer) *ActivityMonitor {
	return &ActivityMonitor{
		vad:      vad,
		detector: NewSilenceDetector(0),
		noVoice:  true,
		out:      make(chan bool, noVoiceBufferSize),
	}
}

// Feed analyzes one PCM chunk and publishes any resulting signal change.
func (m *ActivityMonitor) Feed(ctx context.Context, pcm []byte) error {
	if _, err := m.vad.Analyze(ctx, pcm); err != nil {
		return err
	}
	for {
		select {
		case ev := <-m.vad.OnStateChange():
			m.apply(ev)
		default:
			return nil
		}
	}
}

func (m *ActivityMonitor) apply(ev VADEvent) {
	switch {
	case m.detector.ProcessVADEvent(ev):
		m.publish(true)
	case m.detector.IsUserSpeaking():
		m.publish(false)
	}
}

func (m *ActivityMonitor) publish(noVoice bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || noVoice == m.noVoice {
		return
	}
	m.noVoice = noVoice
	select {
	case m.out <- noVoice:
	default:
	}
}

// NoVoice delivers signal changes.
func (m *ActivityMonitor) NoVoice() <-chan bool {
	return m.out
}

// Reset discards the analyzer and utterance state, e.g. echo picked up while
// the interviewer was talking. A pending voice signal is cleared with true.
func (m *ActivityMonitor) Reset() {
	m.vad.Reset()
	m.detector.Reset()
	m.publish(true)
}

// Close stops publishing and closes the NoVoice channel.
func (m *ActivityMonitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.out)
	}
}
