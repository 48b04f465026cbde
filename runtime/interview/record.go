package interview

import "time"

// EndReason records why a session left the conversational states.
type EndReason string

// End reasons.
const (
	EndReasonNone           EndReason = ""
	EndReasonTimeExpired    EndReason = "time_expired"
	EndReasonUserEnded      EndReason = "user_ended"
	EndReasonStreamEnded    EndReason = "stream_ended"
	EndReasonDialogueFailed EndReason = "dialogue_failed"
	EndReasonShutdown       EndReason = "shutdown"
)

// RecordStatus is the lifecycle status of a persisted interview record.
type RecordStatus string

// Record statuses.
const (
	RecordStatusCompleted RecordStatus = "completed"
)

// InterviewRecord is the persisted result of a session.
type InterviewRecord struct {
	ID            string       `json:"id,omitempty"`
	SessionID     string       `json:"session_id"`
	Role          string       `json:"role"`
	CandidateName string       `json:"candidate_name"`
	Skills        []string     `json:"skills"`
	Transcript    []Turn       `json:"transcript"`
	RecordingURL  string       `json:"recording_url,omitempty"`
	Status        RecordStatus `json:"status"`
	EndReason     EndReason    `json:"end_reason,omitempty"`
	StartedAt     time.Time    `json:"started_at"`
	EndedAt       time.Time    `json:"ended_at"`
}

// Fields returns the record as a column map suitable for a record store.
// The id is never included; stores assign it.
func (r *InterviewRecord) Fields() map[string]any {
	fields := map[string]any{
		"session_id":     r.SessionID,
		"role":           r.Role,
		"candidate_name": r.CandidateName,
		"skills":         r.Skills,
		"transcript":     r.Transcript,
		"status":         string(r.Status),
		"end_reason":     string(r.EndReason),
		"started_at":     r.StartedAt.UTC().Format(time.RFC3339),
		"ended_at":       r.EndedAt.UTC().Format(time.RFC3339),
	}
	if r.RecordingURL != "" {
		fields["recording_url"] = r.RecordingURL
	}
	return fields
}
