package events

import "time"

// Emitter publishes events stamped with a session id.
type Emitter struct {
	bus       *EventBus
	sessionID string
}

// NewEmitter creates a new event emitter. A nil bus yields an emitter that
// drops everything.
func NewEmitter(bus *EventBus, sessionID string) *Emitter {
	return &Emitter{bus: bus, sessionID: sessionID}
}

func (e *Emitter) emit(eventType EventType, data EventData) {
	if e == nil || e.bus == nil {
		return
	}
	e.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Data:      data,
	})
}

// StateChanged emits the session.state_changed event.
func (e *Emitter) StateChanged(from, to, reason string) {
	e.emit(EventStateChanged, StateChangedData{From: from, To: to, Reason: reason})
}

// TurnRecorded emits the session.turn_recorded event.
func (e *Emitter) TurnRecorded(index int, question, answer string) {
	e.emit(EventTurnRecorded, TurnRecordedData{Index: index, Question: question, Answer: answer})
}

// QuestionAsked emits the session.question_asked event.
func (e *Emitter) QuestionAsked(text string) {
	e.emit(EventQuestionAsked, QuestionAskedData{Text: text})
}

// SessionError emits the session.error event.
func (e *Emitter) SessionError(code, message string, retryable bool) {
	e.emit(EventSessionError, SessionErrorData{Code: code, Message: message, Retryable: retryable})
}

// FinalizeCompleted emits the finalize.completed event.
func (e *Emitter) FinalizeCompleted(recordID, recordingURL string, duration time.Duration) {
	e.emit(EventFinalizeCompleted, FinalizeCompletedData{
		RecordID:     recordID,
		RecordingURL: recordingURL,
		Duration:     duration,
	})
}

// FinalizeFailed emits the finalize.failed event.
func (e *Emitter) FinalizeFailed(step string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	e.emit(EventFinalizeFailed, FinalizeFailedData{Step: step, Error: msg})
}
