package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AltairaLabs/InterviewKit/runtime/interview"
	"github.com/AltairaLabs/InterviewKit/runtime/logger"
	"github.com/AltairaLabs/InterviewKit/runtime/recorder"
)

const (
	captureBuffer = 256
	deviceScreen  = "screen"
	deviceMic     = "microphone"
)

// ErrCaptureTimeout is returned when the client does not answer a capture
// request in time.
var ErrCaptureTimeout = errors.New("ws: capture request timed out")

// grant is the client's answer to a capture request.
type grant struct {
	msg ClientMessage
}

type displayStream struct {
	dev      *Device
	settings recorder.TrackSettings
	hasVideo bool

	video chan []byte
	audio chan recorder.AudioChunk

	ended     chan struct{}
	endOnce   sync.Once
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *displayStream) Settings() recorder.TrackSettings  { return s.settings }
func (s *displayStream) HasVideo() bool                    { return s.hasVideo }
func (s *displayStream) Video() <-chan []byte              { return s.video }
func (s *displayStream) Audio() <-chan recorder.AudioChunk { return s.audio }
func (s *displayStream) Ended() <-chan struct{}            { return s.ended }

func (s *displayStream) end() {
	s.endOnce.Do(func() { close(s.ended) })
}

func (s *displayStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.dev.releaseDisplay(s)
		_ = s.dev.send(ServerMessage{Type: TypeReleaseCapture, Device: deviceScreen})
	})
	return nil
}

func (s *displayStream) pushVideo(chunk []byte) {
	select {
	case s.video <- chunk:
	case <-s.closed:
	case <-s.dev.closed:
	}
}

func (s *displayStream) pushAudio(chunk recorder.AudioChunk) {
	select {
	case s.audio <- chunk:
	default:
		logger.Debug("dropping display audio chunk", "session_id", s.dev.sessionID)
	}
}

type micStream struct {
	dev       *Device
	audio     chan recorder.AudioChunk
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *micStream) Audio() <-chan recorder.AudioChunk { return s.audio }

func (s *micStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.dev.releaseMic(s)
		_ = s.dev.send(ServerMessage{Type: TypeReleaseCapture, Device: deviceMic})
	})
	return nil
}

func (s *micStream) push(chunk recorder.AudioChunk) {
	select {
	case <-s.closed:
	case s.audio <- chunk:
	default:
		logger.Debug("dropping microphone chunk", "session_id", s.dev.sessionID)
	}
}

// RequestDisplay asks the client to share its screen and waits for the answer.
func (d *Device) RequestDisplay(ctx context.Context) (recorder.DisplayStream, error) {
	msg, err := d.request(ctx, TypeRequestDisplay, &d.displayGrant)
	if err != nil {
		return nil, err
	}
	if msg.Type == TypeDisplayDenied {
		return nil, denial(deviceScreen, msg)
	}

	s := &displayStream{
		dev:    d,
		video:  make(chan []byte, captureBuffer),
		audio:  make(chan recorder.AudioChunk, captureBuffer),
		ended:  make(chan struct{}),
		closed: make(chan struct{}),
	}
	if msg.Settings != nil {
		s.settings = *msg.Settings
	}
	s.hasVideo = msg.HasVideo == nil || *msg.HasVideo

	d.mu.Lock()
	d.display = s
	d.mu.Unlock()
	return s, nil
}

// RequestMicrophone asks the client for microphone access.
func (d *Device) RequestMicrophone(ctx context.Context) (recorder.MicrophoneStream, error) {
	msg, err := d.request(ctx, TypeRequestMic, &d.micGrant)
	if err != nil {
		return nil, err
	}
	if msg.Type == TypeMicDenied {
		return nil, denial(deviceMic, msg)
	}

	s := &micStream{
		dev:    d,
		audio:  make(chan recorder.AudioChunk, captureBuffer),
		closed: make(chan struct{}),
	}
	d.mu.Lock()
	d.mic = s
	d.mu.Unlock()
	return s, nil
}

// request sends a capture request and waits for its grant or denial.
// slot holds the channel the read loop answers on.
func (d *Device) request(ctx context.Context, msgType string, slot *chan grant) (ClientMessage, error) {
	ch := make(chan grant, 1)
	d.mu.Lock()
	if *slot != nil {
		d.mu.Unlock()
		return ClientMessage{}, fmt.Errorf("ws: %s already pending", msgType)
	}
	*slot = ch
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		*slot = nil
		d.mu.Unlock()
	}()

	if err := d.send(ServerMessage{Type: msgType}); err != nil {
		return ClientMessage{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.CaptureTimeout)
	defer cancel()
	select {
	case g := <-ch:
		return g.msg, nil
	case <-d.closed:
		return ClientMessage{}, ErrClosed
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ClientMessage{}, ErrCaptureTimeout
		}
		return ClientMessage{}, ctx.Err()
	}
}

// answer routes a grant or denial to the pending request, if any.
func (d *Device) answer(slot *chan grant, msg ClientMessage) {
	d.mu.Lock()
	ch := *slot
	d.mu.Unlock()
	if ch == nil {
		logger.Warn("unsolicited capture answer", "session_id", d.sessionID, "type", msg.Type)
		return
	}
	select {
	case ch <- grant{msg: msg}:
	default:
	}
}

func (d *Device) releaseDisplay(s *displayStream) {
	d.mu.Lock()
	if d.display == s {
		d.display = nil
	}
	d.mu.Unlock()
}

func (d *Device) releaseMic(s *micStream) {
	d.mu.Lock()
	if d.mic == s {
		d.mic = nil
	}
	d.mu.Unlock()
}

func denial(device string, msg ClientMessage) error {
	reason := msg.Reason
	if reason == "" {
		reason = device + " access was not granted"
	}
	if msg.Kind == DeniedPermission || msg.Kind == "" {
		return fmt.Errorf("%w: %s", interview.ErrPermissionDenied, reason)
	}
	return errors.New(reason)
}
