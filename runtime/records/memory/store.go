// Package memory provides an in-process record store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/AltairaLabs/InterviewKit/runtime/interview"
	"github.com/AltairaLabs/InterviewKit/runtime/records"
)

// Store keeps records in a map keyed by a generated UUID.
type Store struct {
	mu      sync.RWMutex
	records map[string]*interview.InterviewRecord
}

var _ records.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{records: make(map[string]*interview.InterviewRecord)}
}

// Create stores a copy of rec under a new id.
func (s *Store) Create(ctx context.Context, rec *interview.InterviewRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if rec == nil {
		return "", fmt.Errorf("record is nil")
	}
	id := uuid.NewString()
	stored := clone(rec)
	stored.ID = id

	s.mu.Lock()
	s.records[id] = stored
	s.mu.Unlock()
	return id, nil
}

// Update applies fields to the record with id.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := records.ValidateFields(fields); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", records.ErrNotFound, id)
	}
	for k, v := range fields {
		str := fmt.Sprint(v)
		switch k {
		case records.FieldRecordingURL:
			rec.RecordingURL = str
		case records.FieldStatus:
			rec.Status = interview.RecordStatus(str)
		case records.FieldEndReason:
			rec.EndReason = interview.EndReason(str)
		}
	}
	return nil
}

// GetByID returns a copy of the record with id.
func (s *Store) GetByID(ctx context.Context, id string) (*interview.InterviewRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", records.ErrNotFound, id)
	}
	return clone(rec), nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func clone(rec *interview.InterviewRecord) *interview.InterviewRecord {
	c := *rec
	c.Skills = append([]string(nil), rec.Skills...)
	c.Transcript = append([]interview.Turn(nil), rec.Transcript...)
	return &c
}
