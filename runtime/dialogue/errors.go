package dialogue

import (
	"fmt"
	"net/http"

	"github.com/AltairaLabs/InterviewKit/runtime/interview"
)

// ServiceError describes a failed call to the dialogue service.
type ServiceError struct {
	StatusCode int
	Message    string
	Retryable  bool
	Cause      error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dialogue service error (status %d): %s", e.StatusCode, e.Message)
	}
	return "dialogue service error: " + e.Message
}

func (e *ServiceError) Unwrap() error { return e.Cause }

// Is matches interview.ErrDialogueService.
func (e *ServiceError) Is(target error) bool {
	return target == interview.ErrDialogueService
}

// retryableStatus reports whether a response status is worth another attempt.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= http.StatusInternalServerError
}
