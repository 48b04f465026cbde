package session

import (
	"context"
	"time"

	"github.com/AltairaLabs/InterviewKit/runtime/finalize"
	"github.com/AltairaLabs/InterviewKit/runtime/interview"
	"github.com/AltairaLabs/InterviewKit/runtime/recorder"
)

// SpeechCapture is a speech-to-text engine. Transcripts delivers the full
// running transcript of the current utterance each time it changes.
type SpeechCapture interface {
	Supported() bool
	StartListening(ctx context.Context, continuous bool) error
	StopListening(ctx context.Context) error
	ResetTranscript()
	Transcripts() <-chan string
}

// SpeechSignal is a playback notification from a Synthesizer.
type SpeechSignal int

// Playback notifications.
const (
	SpeechStarted SpeechSignal = iota
	SpeechStopped
)

// Synthesizer plays interviewer questions. Every Speak that does not return
// an error is followed by SpeechStopped on Signals once playback ends or is
// stopped.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
	StopSpeaking(ctx context.Context) error
	Signals() <-chan SpeechSignal
}

// ActivityDetector raises the "no voice currently detected" signal.
type ActivityDetector interface {
	NoVoice() <-chan bool
}

// Recorder captures the combined screen and microphone recording.
type Recorder interface {
	ValidateAndStart(ctx context.Context) error
	Stop() *recorder.Pending
	Ended() <-chan struct{}
}

// DialogueClient produces the next interviewer utterance. An empty history
// asks for the opening question.
type DialogueClient interface {
	NextQuestion(ctx context.Context, job interview.JobContext, history []interview.Turn) (string, error)
}

// Finalizer completes a session after it ends.
type Finalizer interface {
	Finalize(ctx context.Context, req finalize.Request) (*finalize.Result, error)
}

// Clock is the interview countdown.
type Clock interface {
	Start(d time.Duration) error
	Stop()
	Expired() <-chan struct{}
}
