// Package records persists interview records: one row per finalized session,
// created with the transcript and then updated with the recording URL.
package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/AltairaLabs/InterviewKit/runtime/interview"
)

// Column names accepted by Update.
const (
	FieldRecordingURL = "recording_url"
	FieldStatus       = "status"
	FieldEndReason    = "end_reason"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("records: record not found")

// ErrUnknownField is returned by Update for a column the store does not know.
var ErrUnknownField = errors.New("records: unknown field")

// Store creates, updates and reads interview records.
type Store interface {
	// Create inserts rec and returns the id the store assigned.
	Create(ctx context.Context, rec *interview.InterviewRecord) (string, error)

	// Update sets the given columns on the record with id.
	Update(ctx context.Context, id string, fields map[string]any) error

	// GetByID returns the record with id.
	GetByID(ctx context.Context, id string) (*interview.InterviewRecord, error)
}

// ValidateFields checks that every key in fields is an updatable column.
func ValidateFields(fields map[string]any) error {
	for k := range fields {
		switch k {
		case FieldRecordingURL, FieldStatus, FieldEndReason:
		default:
			return fmt.Errorf("%w: %s", ErrUnknownField, k)
		}
	}
	return nil
}
