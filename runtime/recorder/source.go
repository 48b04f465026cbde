package recorder

import "context"

// Display surfaces reported by capture devices.
const (
	SurfaceMonitor = "monitor"
	SurfaceScreen  = "screen"
	SurfaceWindow  = "window"
	SurfaceBrowser = "browser"
)

// TrackSettings describes the video track of a display stream.
type TrackSettings struct {
	DisplaySurface string  `json:"displaySurface"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	FrameRate      float64 `json:"frameRate,omitempty"`
}

// AudioChunk is a block of 16-bit little-endian mono PCM.
type AudioChunk struct {
	PCM        []byte
	SampleRate int
}

// DisplayStream is a granted screen capture.
type DisplayStream interface {
	// Settings returns the video track settings.
	Settings() TrackSettings
	// HasVideo reports whether the stream carries a video track.
	HasVideo() bool
	// Video delivers encoded video chunks in order.
	Video() <-chan []byte
	// Audio delivers system audio. It is nil when none was shared.
	Audio() <-chan AudioChunk
	// Ended is closed when the capture stops outside the recorder's control.
	Ended() <-chan struct{}
	// Close releases the capture.
	Close() error
}

// MicrophoneStream is a granted microphone capture.
type MicrophoneStream interface {
	Audio() <-chan AudioChunk
	Close() error
}

// CaptureSource grants access to capture devices. Implementations return an
// error wrapping interview.ErrPermissionDenied when the candidate refuses.
type CaptureSource interface {
	RequestDisplay(ctx context.Context) (DisplayStream, error)
	RequestMicrophone(ctx context.Context) (MicrophoneStream, error)
}
