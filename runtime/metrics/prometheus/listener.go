package prometheus

import (
	"github.com/AltairaLabs/InterviewKit/runtime/events"
)

// Label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Session states the listener reacts to.
const (
	stateListening = "listening"
	stateEnding    = "ending"
	stateAwaiting  = "awaiting_permission"
)

// MetricsListener records session events as Prometheus metrics. Register
// it with EventBus.SubscribeAll.
type MetricsListener struct{}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Handle processes an event and records relevant metrics.
func (l *MetricsListener) Handle(event *events.Event) {
	//exhaustive:ignore
	switch event.Type {
	case events.EventStateChanged:
		l.handleStateChanged(event)
	case events.EventTurnRecorded:
		RecordTurn()
	case events.EventSessionError:
		if data, ok := event.Data.(events.SessionErrorData); ok {
			RecordSessionError(data.Code)
		}
	case events.EventFinalizeCompleted:
		if data, ok := event.Data.(events.FinalizeCompletedData); ok {
			RecordFinalization(OutcomeCompleted, data.Duration.Seconds())
		}
	case events.EventFinalizeFailed:
		RecordFinalization(OutcomeFailed, 0)
	default:
	}
}

// handleStateChanged counts a session as active from the moment it starts
// listening until it starts ending.
func (l *MetricsListener) handleStateChanged(event *events.Event) {
	data, ok := event.Data.(events.StateChangedData)
	if !ok {
		return
	}
	switch {
	case data.From == stateAwaiting && data.To == stateListening:
		RecordSessionStart()
	case data.To == stateEnding && data.From != stateAwaiting && data.From != "idle":
		RecordSessionEnd(data.Reason)
	}
}

// Listener returns the handler as an events.Listener.
func (l *MetricsListener) Listener() events.Listener {
	return l.Handle
}
