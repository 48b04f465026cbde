package events

import "time"

// EventType identifies the type of event emitted during an interview.
type EventType string

const (
	// EventStateChanged marks a session state transition.
	EventStateChanged EventType = "session.state_changed"
	// EventTurnRecorded marks a turn appended to the transcript.
	EventTurnRecorded EventType = "session.turn_recorded"
	// EventQuestionAsked marks an interviewer utterance handed to speech synthesis.
	EventQuestionAsked EventType = "session.question_asked"
	// EventSessionError marks an error surfaced to the candidate.
	EventSessionError EventType = "session.error"

	// EventFinalizeCompleted marks a successful finalization.
	EventFinalizeCompleted EventType = "finalize.completed"
	// EventFinalizeFailed marks a failed, retryable finalization.
	EventFinalizeFailed EventType = "finalize.failed"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event represents an interview event delivered to listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	Data      EventData
}

type baseEventData struct{}

func (baseEventData) eventData() {}

// StateChangedData contains data for state transition events.
type StateChangedData struct {
	baseEventData
	From   string
	To     string
	Reason string
}

// TurnRecordedData contains data for turn events.
type TurnRecordedData struct {
	baseEventData
	Index    int
	Question string
	Answer   string
}

// QuestionAskedData contains the interviewer utterance.
type QuestionAskedData struct {
	baseEventData
	Text string
}

// SessionErrorData describes an error shown to the candidate.
type SessionErrorData struct {
	baseEventData
	Code      string
	Message   string
	Retryable bool
}

// FinalizeCompletedData contains the persisted record identity.
type FinalizeCompletedData struct {
	baseEventData
	RecordID     string
	RecordingURL string
	Duration     time.Duration
}

// FinalizeFailedData describes a failed finalization attempt.
type FinalizeFailedData struct {
	baseEventData
	Step  string
	Error string
}
