package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AltairaLabs/InterviewKit/runtime/interview"
	"github.com/AltairaLabs/InterviewKit/runtime/recorder"
)

// ProtocolVersion1 is the only protocol version the device accepts.
const ProtocolVersion1 = "1"

// Client message types.
const (
	TypeHello          = "hello"
	TypeShare          = "share"
	TypeEnd            = "end"
	TypeDisplayGranted = "display_granted"
	TypeDisplayDenied  = "display_denied"
	TypeDisplayEnded   = "display_ended"
	TypeMicGranted     = "mic_granted"
	TypeMicDenied      = "mic_denied"
	TypeVideo          = "video"
	TypeAudio          = "audio"
	TypeTranscript     = "transcript"
	TypeSpeechStarted  = "speech_started"
	TypeSpeechEnded    = "speech_ended"
	TypeRetryFinalize  = "retry_finalize"
)

// Server message types.
const (
	TypeReady           = "ready"
	TypeListenStart     = "listen_start"
	TypeListenStop      = "listen_stop"
	TypeTranscriptReset = "transcript_reset"
	TypeSpeak           = "speak"
	TypeSpeakStop       = "speak_stop"
	TypeRequestDisplay  = "request_display"
	TypeRequestMic      = "request_microphone"
	TypeReleaseCapture  = "release_capture"
	TypeState           = "state"
	TypeQuestion        = "question"
	TypeTurn            = "turn"
	TypeError           = "error"
	TypeFinalized       = "finalized"
	TypeNavigate        = "navigate"
)

// Audio sources carried by TypeAudio messages.
const (
	SourceMicrophone = "mic"
	SourceDisplay    = "display"
)

// Denial kinds carried by TypeDisplayDenied and TypeMicDenied.
const (
	DeniedPermission  = "permission_denied"
	DeniedUnavailable = "unavailable"
)

// Hello is the first frame a client sends.
type Hello struct {
	Type              string               `json:"type"`
	ProtocolVersion   string               `json:"protocol_version"`
	Job               interview.JobContext `json:"job"`
	DurationSeconds   int                  `json:"duration_seconds,omitempty"`
	SpeechRecognition bool                 `json:"speech_recognition"`
}

// Validate checks the handshake fields.
func (h *Hello) Validate() error {
	if h.Type != TypeHello {
		return errors.New("first frame must be hello")
	}
	if strings.TrimSpace(h.ProtocolVersion) != ProtocolVersion1 {
		return fmt.Errorf("unsupported protocol_version %q", h.ProtocolVersion)
	}
	if h.DurationSeconds < 0 {
		return errors.New("duration_seconds must not be negative")
	}
	return h.Job.Validate()
}

// DecodeHello parses and validates a hello frame.
func DecodeHello(data []byte) (*Hello, error) {
	var h Hello
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("invalid hello frame: %w", err)
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return &h, nil
}

// ClientMessage is any frame after hello.
type ClientMessage struct {
	Type       string                  `json:"type"`
	Text       string                  `json:"text,omitempty"`
	Settings   *recorder.TrackSettings `json:"settings,omitempty"`
	HasVideo   *bool                   `json:"has_video,omitempty"`
	Kind       string                  `json:"kind,omitempty"`
	Reason     string                  `json:"reason,omitempty"`
	Source     string                  `json:"source,omitempty"`
	Data       []byte                  `json:"data,omitempty"`
	SampleRate int                     `json:"sample_rate,omitempty"`
}

// ServerMessage is any frame the device sends.
type ServerMessage struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id,omitempty"`
	Text         string `json:"text,omitempty"`
	Continuous   bool   `json:"continuous,omitempty"`
	Device       string `json:"device,omitempty"`
	State        string `json:"state,omitempty"`
	Index        int    `json:"index,omitempty"`
	Code         string `json:"code,omitempty"`
	Message      string `json:"message,omitempty"`
	Retryable    bool   `json:"retryable,omitempty"`
	RecordID     string `json:"record_id,omitempty"`
	RecordingURL string `json:"recording_url,omitempty"`
	Path         string `json:"path,omitempty"`
}
