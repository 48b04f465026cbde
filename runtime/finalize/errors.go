package finalize

import (
	"errors"
	"fmt"

	"github.com/AltairaLabs/InterviewKit/runtime/interview"
)

// Step names a stage of the pipeline.
type Step string

// Pipeline steps.
const (
	StepGuard     Step = "guard"
	StepRecording Step = "recording"
	StepUpload    Step = "upload"
	StepCreate    Step = "create"
	StepUpdate    Step = "update"
)

var errEmptyResult = errors.New("collaborator returned an empty result")

// Error is a failed, retryable finalization attempt. It matches
// interview.ErrFinalizationFailed with errors.Is.
type Error struct {
	Step  Step
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("finalize %s: %v", e.Step, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the finalization failure sentinel.
func (e *Error) Is(target error) bool {
	return target == interview.ErrFinalizationFailed
}

// StepOf returns the failed step of err, or "" when err is not a pipeline
// error.
func StepOf(err error) Step {
	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr.Step
	}
	return ""
}
