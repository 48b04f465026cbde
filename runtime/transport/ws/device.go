// Package ws bridges a candidate's browser, connected over a WebSocket, to
// the capability ports of an interview session: speech capture, speech
// synthesis, voice activity, screen and microphone capture, and navigation.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/AltairaLabs/InterviewKit/runtime/audio"
	"github.com/AltairaLabs/InterviewKit/runtime/events"
	"github.com/AltairaLabs/InterviewKit/runtime/logger"
	"github.com/AltairaLabs/InterviewKit/runtime/recorder"
	"github.com/AltairaLabs/InterviewKit/runtime/session"
)

// Default connection constants.
const (
	DefaultWriteWait         = 10 * time.Second
	DefaultPongWait          = 60 * time.Second
	DefaultMaxMessageSize    = 4 * 1024 * 1024 // 4MB
	DefaultMessagesPerSecond = 200
	DefaultBurst             = 400
	DefaultCaptureTimeout    = 2 * time.Minute
	DefaultResultsPath       = "/interviews/"
	DefaultHandshakeTimeout  = 10 * time.Second

	signalBuffer     = 16
	transcriptBuffer = 64
	requestBuffer    = 8
)

// ErrClosed is returned when writing to a closed device.
var ErrClosed = errors.New("ws: device closed")

// Config configures a Device.
type Config struct {
	// WriteWait is the write deadline for each frame.
	WriteWait time.Duration

	// PongWait is how long the connection may stay silent. Pings are sent
	// at nine tenths of this interval.
	PongWait time.Duration

	// MaxMessageSize is the read limit.
	MaxMessageSize int64

	// MessagesPerSecond and Burst limit inbound frames.
	MessagesPerSecond float64
	Burst             int

	// CaptureTimeout bounds how long a screen or microphone request waits
	// for the candidate to answer.
	CaptureTimeout time.Duration

	// ResultsPath prefixes the record id in navigate messages.
	ResultsPath string
}

func (c *Config) defaults() {
	if c.WriteWait <= 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = DefaultPongWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.MessagesPerSecond <= 0 {
		c.MessagesPerSecond = DefaultMessagesPerSecond
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
	if c.CaptureTimeout <= 0 {
		c.CaptureTimeout = DefaultCaptureTimeout
	}
	if c.ResultsPath == "" {
		c.ResultsPath = DefaultResultsPath
	}
}

// RequestKind is a candidate action that the session owner must handle.
type RequestKind string

// Candidate actions.
const (
	RequestShare RequestKind = "share"
	RequestEnd   RequestKind = "end"
	RequestRetry RequestKind = "retry_finalize"
)

// Device adapts one WebSocket connection to the session capability ports.
type Device struct {
	conn      *websocket.Conn
	cfg       Config
	sessionID string
	supported bool
	limiter   *rate.Limiter
	monitor   *audio.ActivityMonitor

	writeMu sync.Mutex // serializes writes (gorilla/websocket requirement)

	mu           sync.Mutex
	listening    bool
	speaking     bool
	display      *displayStream
	mic          *micStream
	displayGrant chan grant
	micGrant     chan grant

	transcripts chan string
	signals     chan session.SpeechSignal
	requests    chan RequestKind

	closed    chan struct{}
	closeOnce sync.Once
}

var (
	_ session.SpeechCapture    = (*Device)(nil)
	_ session.Synthesizer      = (*Device)(nil)
	_ session.ActivityDetector = (*Device)(nil)
	_ recorder.CaptureSource   = (*Device)(nil)
)

// NewDevice wraps an upgraded connection. supported reports whether the
// client can run speech recognition; vad analyzes microphone audio.
func NewDevice(conn *websocket.Conn, sessionID string, supported bool, vad audio.VADAnalyzer, cfg Config) *Device {
	cfg.defaults()
	conn.SetReadLimit(cfg.MaxMessageSize)
	return &Device{
		conn:        conn,
		cfg:         cfg,
		sessionID:   sessionID,
		supported:   supported,
		limiter:     rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.Burst),
		monitor:     audio.NewActivityMonitor(vad),
		transcripts: make(chan string, transcriptBuffer),
		signals:     make(chan session.SpeechSignal, signalBuffer),
		requests:    make(chan RequestKind, requestBuffer),
		closed:      make(chan struct{}),
	}
}

// ReadHello reads and validates the handshake frame.
func ReadHello(conn *websocket.Conn, timeout time.Duration) (*Hello, error) {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read hello: %w", err)
	}
	if msgType != websocket.TextMessage {
		return nil, errors.New("first frame must be a text hello")
	}
	return DecodeHello(data)
}

// WriteError sends an error frame directly on conn. It is used before a
// Device exists.
func WriteError(conn *websocket.Conn, code, message string) error {
	data, err := json.Marshal(ServerMessage{Type: TypeError, Code: code, Message: message})
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(DefaultWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Supported reports whether the client can run speech recognition.
func (d *Device) Supported() bool { return d.supported }

// Transcripts delivers the running transcript while listening.
func (d *Device) Transcripts() <-chan string { return d.transcripts }

// Signals delivers playback notifications.
func (d *Device) Signals() <-chan session.SpeechSignal { return d.signals }

// NoVoice delivers the voice activity signal computed from microphone audio.
func (d *Device) NoVoice() <-chan bool { return d.monitor.NoVoice() }

// Requests delivers candidate actions.
func (d *Device) Requests() <-chan RequestKind { return d.requests }

// Closed is closed once the connection is gone.
func (d *Device) Closed() <-chan struct{} { return d.closed }

// Ready tells the client the session exists.
func (d *Device) Ready() error {
	return d.send(ServerMessage{Type: TypeReady, SessionID: d.sessionID})
}

// StartListening starts speech recognition on the client. Voice activity
// carried over from playback is discarded.
func (d *Device) StartListening(_ context.Context, continuous bool) error {
	d.monitor.Reset()
	d.mu.Lock()
	d.listening = true
	d.mu.Unlock()
	return d.send(ServerMessage{Type: TypeListenStart, Continuous: continuous})
}

// StopListening stops speech recognition on the client. Transcripts that
// arrive afterwards are dropped.
func (d *Device) StopListening(context.Context) error {
	d.mu.Lock()
	d.listening = false
	d.mu.Unlock()
	return d.send(ServerMessage{Type: TypeListenStop})
}

// ResetTranscript clears the client's running transcript.
func (d *Device) ResetTranscript() {
	if err := d.send(ServerMessage{Type: TypeTranscriptReset}); err != nil {
		logger.Debug("transcript reset not sent", "session_id", d.sessionID, "error", err)
	}
}

// Speak asks the client to play text. SpeechStopped follows when the client
// reports the end of playback or StopSpeaking is called.
func (d *Device) Speak(_ context.Context, text string) error {
	d.mu.Lock()
	d.speaking = true
	d.mu.Unlock()
	if err := d.send(ServerMessage{Type: TypeSpeak, Text: text}); err != nil {
		d.mu.Lock()
		d.speaking = false
		d.mu.Unlock()
		return err
	}
	return nil
}

// StopSpeaking cancels playback.
func (d *Device) StopSpeaking(context.Context) error {
	if !d.finishSpeaking() {
		return nil
	}
	return d.send(ServerMessage{Type: TypeSpeakStop})
}

// finishSpeaking clears the speaking flag and emits SpeechStopped once per
// Speak.
func (d *Device) finishSpeaking() bool {
	d.mu.Lock()
	was := d.speaking
	d.speaking = false
	d.mu.Unlock()
	if was {
		d.signal(session.SpeechStopped)
	}
	return was
}

// Navigate sends the client to the results page of a record.
func (d *Device) Navigate(_ context.Context, recordID string) error {
	return d.send(ServerMessage{
		Type:     TypeNavigate,
		RecordID: recordID,
		Path:     d.cfg.ResultsPath + url.PathEscape(recordID),
	})
}

// HandleEvent forwards session events to the client. It is an
// events.Listener.
func (d *Device) HandleEvent(ev *events.Event) {
	if ev == nil || ev.SessionID != d.sessionID {
		return
	}
	var msg ServerMessage
	switch data := ev.Data.(type) {
	case events.StateChangedData:
		msg = ServerMessage{Type: TypeState, State: data.To}
	case events.QuestionAskedData:
		msg = ServerMessage{Type: TypeQuestion, Text: data.Text}
	case events.TurnRecordedData:
		msg = ServerMessage{Type: TypeTurn, Index: data.Index}
	case events.SessionErrorData:
		msg = ServerMessage{Type: TypeError, Code: data.Code, Message: data.Message, Retryable: data.Retryable}
	case events.FinalizeCompletedData:
		msg = ServerMessage{Type: TypeFinalized, RecordID: data.RecordID, RecordingURL: data.RecordingURL}
	default:
		return
	}
	if err := d.send(msg); err != nil && !errors.Is(err, ErrClosed) {
		logger.Warn("failed to forward event", "session_id", d.sessionID, "type", msg.Type, "error", err)
	}
}

// Serve runs the read loop and heartbeat until the connection fails or ctx
// is done, then closes the device.
func (d *Device) Serve(ctx context.Context) error {
	defer d.Close()

	_ = d.conn.SetReadDeadline(time.Now().Add(d.cfg.PongWait))
	d.conn.SetPongHandler(func(string) error {
		return d.conn.SetReadDeadline(time.Now().Add(d.cfg.PongWait))
	})

	heartbeatCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go d.heartbeat(heartbeatCtx)
	go func() {
		select {
		case <-ctx.Done():
			d.Close()
		case <-d.closed:
		}
	}()

	for {
		msgType, data, err := d.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || d.isClosed() {
				return nil
			}
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if !d.limiter.Allow() {
			_ = d.send(ServerMessage{Type: TypeError, Code: "rate_limited", Message: "too many messages", Retryable: true})
			continue
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = d.send(ServerMessage{Type: TypeError, Code: "bad_request", Message: "invalid frame"})
			continue
		}
		d.handle(ctx, msg)
	}
}

func (d *Device) handle(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case TypeShare:
		d.enqueue(RequestShare)
	case TypeEnd:
		d.enqueue(RequestEnd)
	case TypeRetryFinalize:
		d.enqueue(RequestRetry)
	case TypeTranscript:
		d.mu.Lock()
		listening := d.listening
		d.mu.Unlock()
		if !listening {
			return
		}
		select {
		case d.transcripts <- msg.Text:
		case <-d.closed:
		}
	case TypeSpeechStarted:
		d.mu.Lock()
		speaking := d.speaking
		d.mu.Unlock()
		if speaking {
			d.signal(session.SpeechStarted)
		}
	case TypeSpeechEnded:
		d.finishSpeaking()
	case TypeDisplayGranted, TypeDisplayDenied:
		d.answer(&d.displayGrant, msg)
	case TypeMicGranted, TypeMicDenied:
		d.answer(&d.micGrant, msg)
	case TypeDisplayEnded:
		if s := d.currentDisplay(); s != nil {
			s.end()
		}
	case TypeVideo:
		if s := d.currentDisplay(); s != nil {
			s.pushVideo(msg.Data)
		}
	case TypeAudio:
		d.handleAudio(ctx, msg)
	default:
		_ = d.send(ServerMessage{Type: TypeError, Code: "bad_request", Message: "unknown message type " + msg.Type})
	}
}

func (d *Device) handleAudio(ctx context.Context, msg ClientMessage) {
	chunk := recorder.AudioChunk{PCM: msg.Data, SampleRate: msg.SampleRate}
	switch msg.Source {
	case SourceDisplay:
		if s := d.currentDisplay(); s != nil {
			s.pushAudio(chunk)
		}
	default:
		if err := d.monitor.Feed(ctx, msg.Data); err != nil {
			logger.Debug("voice activity analysis failed", "session_id", d.sessionID, "error", err)
		}
		d.mu.Lock()
		mic := d.mic
		d.mu.Unlock()
		if mic != nil {
			mic.push(chunk)
		}
	}
}

func (d *Device) currentDisplay() *displayStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.display
}

func (d *Device) enqueue(kind RequestKind) {
	select {
	case d.requests <- kind:
	default:
		logger.Warn("dropping candidate request", "session_id", d.sessionID, "kind", kind)
	}
}

func (d *Device) signal(sig session.SpeechSignal) {
	select {
	case d.signals <- sig:
	case <-d.closed:
	}
}

func (d *Device) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.closed:
			return
		case <-ticker.C:
			d.writeMu.Lock()
			_ = d.conn.SetWriteDeadline(time.Now().Add(d.cfg.WriteWait))
			err := d.conn.WriteMessage(websocket.PingMessage, nil)
			d.writeMu.Unlock()
			if err != nil {
				logger.Warn("ping failed", "session_id", d.sessionID, "error", err)
				return
			}
		}
	}
}

// send JSON-encodes msg and writes it to the connection.
func (d *Device) send(msg ServerMessage) error {
	if d.isClosed() {
		return ErrClosed
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if err := d.conn.SetWriteDeadline(time.Now().Add(d.cfg.WriteWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := d.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (d *Device) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

// Close ends any active display capture, stops the activity monitor and
// closes the connection. It is safe to call more than once.
func (d *Device) Close() {
	d.closeOnce.Do(func() {
		if s := d.currentDisplay(); s != nil {
			s.end()
		}

		d.writeMu.Lock()
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = d.conn.SetWriteDeadline(time.Now().Add(d.cfg.WriteWait))
		_ = d.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		d.writeMu.Unlock()

		close(d.closed)
		d.monitor.Close()
		_ = d.conn.Close()
	})
}
