package interview

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultDuration is the allotted interview length when none is configured.
const DefaultDuration = 30 * time.Minute

// JobContext describes the position the candidate is interviewing for.
type JobContext struct {
	Role          string   `json:"role"`
	CandidateName string   `json:"candidate_name"`
	Skills        []string `json:"skills"`
}

// Validate checks that the job context carries enough to generate questions.
func (j JobContext) Validate() error {
	if strings.TrimSpace(j.Role) == "" {
		return errors.New("job role is required")
	}
	return nil
}

// Session identifies one interview attempt.
//
// The zero value is not usable; create sessions with NewSession.
type Session struct {
	ID        string
	Job       JobContext
	Duration  time.Duration
	StartedAt time.Time

	finalizing atomic.Bool
}

// NewSession creates a session. A non-positive duration selects DefaultDuration.
func NewSession(id string, job JobContext, duration time.Duration) *Session {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Session{
		ID:       id,
		Job:      job,
		Duration: duration,
	}
}

// TryBeginFinalize sets the finalization guard. It returns false when the
// guard was already set, in which case the caller must not finalize.
func (s *Session) TryBeginFinalize() bool {
	return s.finalizing.CompareAndSwap(false, true)
}

// ReleaseFinalize clears the finalization guard so a later attempt can proceed.
func (s *Session) ReleaseFinalize() {
	s.finalizing.Store(false)
}

// Finalizing reports whether the finalization guard is currently set.
func (s *Session) Finalizing() bool {
	return s.finalizing.Load()
}
