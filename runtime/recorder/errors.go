package recorder

import (
	"errors"

	"github.com/AltairaLabs/InterviewKit/runtime/interview"
)

// CaptureErrorKind classifies capture failures.
type CaptureErrorKind string

// Capture error kinds.
const (
	KindPermissionDenied CaptureErrorKind = "permission_denied"
	KindNoVideoTrack     CaptureErrorKind = "no_video_track"
	KindTrackEnded       CaptureErrorKind = "track_ended"
	KindUnavailable      CaptureErrorKind = "unavailable"
	KindInvalidState     CaptureErrorKind = "invalid_state"
)

// ErrNotRecording is returned when an operation needs an active recording.
var ErrNotRecording = errors.New("recorder is not recording")

// CaptureError is a typed capture failure.
type CaptureError struct {
	Kind    CaptureErrorKind
	Message string
	Cause   error
}

func (e *CaptureError) Error() string {
	msg := "capture " + string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CaptureError) Unwrap() error {
	return e.Cause
}

// Is matches permission failures against interview.ErrPermissionDenied.
func (e *CaptureError) Is(target error) bool {
	return e.Kind == KindPermissionDenied && target == interview.ErrPermissionDenied
}

func captureFailure(device string, err error) *CaptureError {
	if errors.Is(err, interview.ErrPermissionDenied) {
		return &CaptureError{Kind: KindPermissionDenied, Message: device + " access was refused", Cause: err}
	}
	return &CaptureError{Kind: KindUnavailable, Message: device + " capture failed", Cause: err}
}
