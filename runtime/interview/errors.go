package interview

import "errors"

// Error taxonomy. Component errors wrap one of these so callers can branch
// with errors.Is.
var (
	// ErrPermissionDenied is returned when the candidate refuses camera,
	// microphone or screen access.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnsupportedCapability is returned when the device cannot run speech
	// recognition.
	ErrUnsupportedCapability = errors.New("unsupported capability")

	// ErrRecordingValidation is returned when the shared screen does not meet
	// the recording requirements.
	ErrRecordingValidation = errors.New("recording validation failed")

	// ErrDialogueService is returned when no next question can be produced.
	ErrDialogueService = errors.New("dialogue service error")

	// ErrFinalizationFailed is returned when upload or record creation fails.
	// The finalization guard is cleared and the attempt may be retried.
	ErrFinalizationFailed = errors.New("finalization failed")

	// ErrAnalysisFailed marks a failed analysis trigger. It is logged only.
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrNoActiveSession is returned when an operation targets a session that
	// does not exist or has already ended.
	ErrNoActiveSession = errors.New("no active session")
)

// UnsupportedMessage is shown to candidates whose device lacks speech recognition.
const UnsupportedMessage = "speech recognition is not available on this device; " +
	"use a current Chrome, Edge or Safari browser on desktop"
