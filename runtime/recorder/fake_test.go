package recorder

import (
	"context"
	"sync"
)

type fakeDisplay struct {
	settings TrackSettings
	hasVideo bool
	video    chan []byte
	audio    chan AudioChunk
	ended    chan struct{}

	mu     sync.Mutex
	closed bool
}

func newFakeDisplay(surface string, w, h int) *fakeDisplay {
	return &fakeDisplay{
		settings: TrackSettings{DisplaySurface: surface, Width: w, Height: h},
		hasVideo: true,
		video:    make(chan []byte, 16),
		audio:    make(chan AudioChunk, 16),
		ended:    make(chan struct{}),
	}
}

func (d *fakeDisplay) Settings() TrackSettings  { return d.settings }
func (d *fakeDisplay) HasVideo() bool           { return d.hasVideo }
func (d *fakeDisplay) Video() <-chan []byte     { return d.video }
func (d *fakeDisplay) Audio() <-chan AudioChunk { return d.audio }
func (d *fakeDisplay) Ended() <-chan struct{}   { return d.ended }
func (d *fakeDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDisplay) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type fakeMic struct {
	audio  chan AudioChunk
	mu     sync.Mutex
	closed bool
}

func newFakeMic() *fakeMic {
	return &fakeMic{audio: make(chan AudioChunk, 16)}
}

func (m *fakeMic) Audio() <-chan AudioChunk { return m.audio }
func (m *fakeMic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type fakeSource struct {
	display    *fakeDisplay
	mic        *fakeMic
	displayErr error
	micErr     error
	// gate, when set, holds RequestDisplay until it is closed.
	gate chan struct{}

	mu         sync.Mutex
	micAsked   int
	displayAsk int
}

func (s *fakeSource) RequestDisplay(context.Context) (DisplayStream, error) {
	s.mu.Lock()
	s.displayAsk++
	s.mu.Unlock()
	if s.gate != nil {
		<-s.gate
	}
	if s.displayErr != nil {
		return nil, s.displayErr
	}
	return s.display, nil
}

func (s *fakeSource) RequestMicrophone(context.Context) (MicrophoneStream, error) {
	s.mu.Lock()
	s.micAsked++
	s.mu.Unlock()
	if s.micErr != nil {
		return nil, s.micErr
	}
	return s.mic, nil
}
