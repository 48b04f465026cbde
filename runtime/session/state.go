package session

import (
	"github.com/AltairaLabs/InterviewKit/runtime/interview"
)

// State is the Turn Manager's lifecycle state.
type State string

// Lifecycle states.
const (
	StateIdle               State = "idle"
	StateAwaitingPermission State = "awaiting_permission"
	StateListening          State = "listening"
	StateProcessing         State = "processing"
	StateSpeaking           State = "speaking"
	StateEnding             State = "ending"
	StateEnded              State = "ended"
)

// Terminal reports whether the session is shutting down or done.
func (s State) Terminal() bool {
	return s == StateEnding || s == StateEnded
}

// EventKind identifies an input to the reducer.
type EventKind string

// Event kinds. Inputs from devices, timers and the dialogue service are all
// funneled through these so that the reducer sees one ordered stream.
const (
	EventShareRequested EventKind = "share_requested"
	EventCaptureReady   EventKind = "capture_ready"
	EventCaptureFailed  EventKind = "capture_failed"
	EventTranscript     EventKind = "transcript"
	EventVoiceActivity  EventKind = "voice_activity"
	EventQuestionReady  EventKind = "question_ready"
	EventDialogueFailed EventKind = "dialogue_failed"
	EventSpeechStarted  EventKind = "speech_started"
	EventSpeechStopped  EventKind = "speech_stopped"
	EventClockExpired   EventKind = "clock_expired"
	EventEndRequested   EventKind = "end_requested"
	EventStreamEnded    EventKind = "stream_ended"
	EventStopped        EventKind = "stopped"
	EventFinalized      EventKind = "finalized"
)

// Event is a single reducer input.
type Event struct {
	Kind EventKind

	// Text carries the running transcript or the next question.
	Text string

	// Silent is the voice activity value for EventVoiceActivity.
	Silent bool

	// Seq ties a dialogue reply to the request that produced it.
	Seq int

	// Reason overrides the end reason for EventEndRequested.
	Reason interview.EndReason

	Err error
}

// EffectKind identifies a side effect requested by the reducer.
type EffectKind string

// Effect kinds.
const (
	EffectStartRecording  EffectKind = "start_recording"
	EffectStopRecording   EffectKind = "stop_recording"
	EffectStartClock      EffectKind = "start_clock"
	EffectStopClock       EffectKind = "stop_clock"
	EffectStartListening  EffectKind = "start_listening"
	EffectStopListening   EffectKind = "stop_listening"
	EffectResetTranscript EffectKind = "reset_transcript"
	EffectRequestQuestion EffectKind = "request_question"
	EffectSpeak           EffectKind = "speak"
	EffectStopSpeaking    EffectKind = "stop_speaking"
	EffectTurnRecorded    EffectKind = "turn_recorded"
	EffectReportError     EffectKind = "report_error"
	EffectFinishEnding    EffectKind = "finish_ending"
	EffectFinalize        EffectKind = "finalize"
	EffectFinalizeDone    EffectKind = "finalize_done"
)

// Effect is a side effect the executor performs after a transition. Effects
// returned from a single Reduce call are executed in order.
type Effect struct {
	Kind EffectKind

	Text  string
	Seq   int
	Index int
	Turn  interview.Turn

	// History is a snapshot of the transcript at the time of the effect.
	History []interview.Turn

	Reason interview.EndReason
	Err    error
	Code   string
}

// Error codes reported through EffectReportError.
const (
	CodePermissionDenied   = "permission_denied"
	CodeRecordingInvalid   = "recording_validation"
	CodeCaptureFailed      = "capture_failed"
	CodeDialogueFailed     = "dialogue_failed"
	CodeFinalizationFailed = "finalization_failed"
)

// Model is the reducer's complete view of a session.
type Model struct {
	State State

	// Question is the most recent interviewer question.
	Question string

	// Buffer holds the candidate's in-progress utterance.
	Buffer string

	// Turns is append-only. Reduce never mutates a slice it was handed.
	Turns []interview.Turn

	// Listening and Speaking track what the devices were last told to do.
	Listening bool
	Speaking  bool

	// Silent is the last voice activity value seen.
	Silent bool

	// Seq is the sequence number of the outstanding dialogue request, or
	// zero when none is in flight.
	Seq     int
	lastSeq int

	EndReason       interview.EndReason
	FinalizePending bool
	FinalizeErr     error
}

// NewModel returns the initial model.
func NewModel() Model {
	return Model{State: StateIdle}
}

// Done reports whether the session has ended and no finalization attempt is
// still running.
func (m Model) Done() bool {
	return m.State == StateEnded && !m.FinalizePending
}
