package session

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/InterviewKit/runtime/interview"
	"github.com/AltairaLabs/InterviewKit/runtime/recorder"
)

func kinds(effects []Effect) []EffectKind {
	out := make([]EffectKind, 0, len(effects))
	for _, e := range effects {
		out = append(out, e.Kind)
	}
	return out
}

// run folds events into a fresh model and returns the final model and the
// effects of the last event.
func run(t *testing.T, evs ...Event) (Model, []Effect) {
	t.Helper()
	m := NewModel()
	var effects []Effect
	for _, ev := range evs {
		m, effects = Reduce(m, ev)
	}
	return m, effects
}

// listeningModel returns a model that has asked Q1 and is listening again.
func listeningModel(t *testing.T) Model {
	t.Helper()
	m, _ := run(t,
		Event{Kind: EventShareRequested},
		Event{Kind: EventCaptureReady},
		Event{Kind: EventQuestionReady, Seq: 1, Text: "Q1"},
		Event{Kind: EventSpeechStopped},
	)
	require.Equal(t, StateListening, m.State)
	return m
}

func TestReduce_StartupSequence(t *testing.T) {
	m, effects := Reduce(NewModel(), Event{Kind: EventShareRequested})
	assert.Equal(t, StateAwaitingPermission, m.State)
	assert.Equal(t, []EffectKind{EffectStartRecording}, kinds(effects))

	m, effects = Reduce(m, Event{Kind: EventCaptureReady})
	assert.Equal(t, StateListening, m.State)
	assert.True(t, m.Listening)
	assert.Equal(t, []EffectKind{EffectStartClock, EffectStartListening, EffectRequestQuestion}, kinds(effects))
	assert.Equal(t, 1, effects[2].Seq)
	assert.Empty(t, effects[2].History)

	m, effects = Reduce(m, Event{Kind: EventQuestionReady, Seq: 1, Text: "Q1"})
	assert.Equal(t, StateSpeaking, m.State)
	assert.Equal(t, "Q1", m.Question)
	assert.False(t, m.Listening)
	assert.Equal(t, []EffectKind{EffectStopListening, EffectResetTranscript, EffectSpeak}, kinds(effects))
	assert.Equal(t, "Q1", effects[2].Text)

	m, effects = Reduce(m, Event{Kind: EventSpeechStopped})
	assert.Equal(t, StateListening, m.State)
	assert.Equal(t, []EffectKind{EffectStartListening}, kinds(effects))
}

func TestReduce_CaptureFailureReturnsToIdle(t *testing.T) {
	denied := &recorder.CaptureError{Kind: recorder.KindPermissionDenied}
	m, effects := run(t,
		Event{Kind: EventShareRequested},
		Event{Kind: EventCaptureFailed, Err: denied},
	)
	assert.Equal(t, StateIdle, m.State)
	require.Len(t, effects, 1)
	assert.Equal(t, EffectReportError, effects[0].Kind)
	assert.Equal(t, CodePermissionDenied, effects[0].Code)

	_, effects = run(t,
		Event{Kind: EventShareRequested},
		Event{Kind: EventCaptureFailed, Err: &recorder.ValidationError{Field: "resolution"}},
	)
	assert.Equal(t, CodeRecordingInvalid, effects[0].Code)

	_, effects = run(t,
		Event{Kind: EventShareRequested},
		Event{Kind: EventCaptureFailed, Err: errors.New("no devices")},
	)
	assert.Equal(t, CodeCaptureFailed, effects[0].Code)
}

func TestReduce_UtteranceBoundaryCommitsOnce(t *testing.T) {
	m := listeningModel(t)

	m, _ = Reduce(m, Event{Kind: EventTranscript, Text: "Hello"})
	assert.Equal(t, "Hello", m.Buffer)

	m, effects := Reduce(m, Event{Kind: EventVoiceActivity, Silent: true})
	assert.Equal(t, StateProcessing, m.State)
	assert.Equal(t, []interview.Turn{{Question: "Q1", Answer: "Hello"}}, m.Turns)
	assert.Empty(t, m.Buffer)
	assert.False(t, m.Listening)
	assert.Equal(t,
		[]EffectKind{EffectStopListening, EffectResetTranscript, EffectTurnRecorded, EffectRequestQuestion},
		kinds(effects))
	assert.Equal(t, 0, effects[2].Index)
	assert.Equal(t, 2, effects[3].Seq)
	assert.Equal(t, m.Turns, effects[3].History)

	// A late transcript while processing and a repeated silence value do
	// not produce a second turn.
	m, effects = Reduce(m, Event{Kind: EventTranscript, Text: "Hello"})
	assert.Empty(t, effects)
	m, effects = Reduce(m, Event{Kind: EventVoiceActivity, Silent: true})
	assert.Empty(t, effects)
	assert.Len(t, m.Turns, 1)
	assert.Empty(t, m.Buffer)
}

func TestReduce_SilenceRequiresEdgeAndText(t *testing.T) {
	m := listeningModel(t)

	// Silence with nothing said keeps listening.
	m, effects := Reduce(m, Event{Kind: EventVoiceActivity, Silent: true})
	assert.Equal(t, StateListening, m.State)
	assert.Empty(t, effects)

	// Still silent: no edge even once text arrives.
	m, _ = Reduce(m, Event{Kind: EventTranscript, Text: "  "})
	m, _ = Reduce(m, Event{Kind: EventTranscript, Text: "I built"})
	m, effects = Reduce(m, Event{Kind: EventVoiceActivity, Silent: true})
	assert.Equal(t, StateListening, m.State)
	assert.Empty(t, effects)

	m, _ = Reduce(m, Event{Kind: EventVoiceActivity, Silent: false})
	m, _ = Reduce(m, Event{Kind: EventTranscript, Text: "I built a cache"})
	m, _ = Reduce(m, Event{Kind: EventVoiceActivity, Silent: true})
	assert.Equal(t, StateProcessing, m.State)
	assert.Equal(t, "I built a cache", m.Turns[0].Answer)
}

func TestReduce_StaleRepliesAreDropped(t *testing.T) {
	m := listeningModel(t)
	m, _ = Reduce(m, Event{Kind: EventTranscript, Text: "answer"})
	m, _ = Reduce(m, Event{Kind: EventVoiceActivity, Silent: true})
	require.Equal(t, 2, m.Seq)

	next, effects := Reduce(m, Event{Kind: EventQuestionReady, Seq: 1, Text: "old"})
	assert.Equal(t, m, next)
	assert.Empty(t, effects)

	next, effects = Reduce(m, Event{Kind: EventDialogueFailed, Seq: 1, Err: errors.New("late")})
	assert.Equal(t, StateProcessing, next.State)
	assert.Empty(t, effects)

	next, effects = Reduce(m, Event{Kind: EventQuestionReady, Seq: 2, Text: "Q2"})
	assert.Equal(t, StateSpeaking, next.State)
	assert.Equal(t, []EffectKind{EffectSpeak}, kinds(effects))
}

func TestReduce_EmptyQuestionResumesListening(t *testing.T) {
	m := listeningModel(t)
	m, _ = Reduce(m, Event{Kind: EventTranscript, Text: "answer"})
	m, _ = Reduce(m, Event{Kind: EventVoiceActivity, Silent: true})

	m, effects := Reduce(m, Event{Kind: EventQuestionReady, Seq: 2, Text: " "})
	assert.Equal(t, StateListening, m.State)
	assert.True(t, m.Listening)
	assert.Equal(t, []EffectKind{EffectStartListening}, kinds(effects))
	assert.Zero(t, m.Seq)
}

func TestReduce_DialogueFailures(t *testing.T) {
	t.Run("opening question keeps listening", func(t *testing.T) {
		m, effects := run(t,
			Event{Kind: EventShareRequested},
			Event{Kind: EventCaptureReady},
			Event{Kind: EventDialogueFailed, Seq: 1, Err: errors.New("503")},
		)
		assert.Equal(t, StateListening, m.State)
		assert.True(t, m.Listening)
		assert.Equal(t, []EffectKind{EffectReportError}, kinds(effects))
		assert.Equal(t, CodeDialogueFailed, effects[0].Code)
	})

	t.Run("processing ends the session", func(t *testing.T) {
		m := listeningModel(t)
		m, _ = Reduce(m, Event{Kind: EventTranscript, Text: "answer"})
		m, _ = Reduce(m, Event{Kind: EventVoiceActivity, Silent: true})

		m, effects := Reduce(m, Event{Kind: EventDialogueFailed, Seq: 2, Err: errors.New("503")})
		assert.Equal(t, StateEnding, m.State)
		assert.Equal(t, interview.EndReasonDialogueFailed, m.EndReason)
		assert.Equal(t,
			[]EffectKind{EffectReportError, EffectStopClock, EffectStopRecording, EffectFinishEnding},
			kinds(effects))
	})
}

func TestReduce_EndingFromEachState(t *testing.T) {
	t.Run("idle ends without finalizing", func(t *testing.T) {
		m, effects := Reduce(NewModel(), Event{Kind: EventEndRequested})
		assert.Equal(t, StateEnded, m.State)
		assert.Equal(t, interview.EndReasonUserEnded, m.EndReason)
		assert.Empty(t, effects)
		assert.True(t, m.Done())
	})

	t.Run("awaiting permission", func(t *testing.T) {
		m, effects := run(t, Event{Kind: EventShareRequested}, Event{Kind: EventClockExpired})
		assert.Equal(t, StateEnding, m.State)
		assert.Equal(t, []EffectKind{EffectStopClock, EffectStopRecording, EffectFinishEnding}, kinds(effects))

		// The capture finishing after the end signal is released.
		m, effects = Reduce(m, Event{Kind: EventCaptureReady})
		assert.Equal(t, StateEnding, m.State)
		assert.Equal(t, []EffectKind{EffectStopRecording}, kinds(effects))
	})

	t.Run("speaking", func(t *testing.T) {
		m, _ := run(t,
			Event{Kind: EventShareRequested},
			Event{Kind: EventCaptureReady},
			Event{Kind: EventQuestionReady, Seq: 1, Text: "Q1"},
		)
		require.Equal(t, StateSpeaking, m.State)
		m, effects := Reduce(m, Event{Kind: EventStreamEnded})
		assert.Equal(t, interview.EndReasonStreamEnded, m.EndReason)
		assert.False(t, m.Speaking)
		assert.Equal(t,
			[]EffectKind{EffectStopClock, EffectStopSpeaking, EffectStopRecording, EffectFinishEnding},
			kinds(effects))
	})

	t.Run("listening flushes the pending answer", func(t *testing.T) {
		m := listeningModel(t)
		m, _ = Reduce(m, Event{Kind: EventTranscript, Text: "half an answer"})
		m, effects := Reduce(m, Event{Kind: EventClockExpired})
		assert.Equal(t, StateEnding, m.State)
		assert.Equal(t, []interview.Turn{{Question: "Q1", Answer: "half an answer"}}, m.Turns)
		assert.Equal(t,
			[]EffectKind{EffectTurnRecorded, EffectStopClock, EffectStopListening, EffectStopRecording, EffectFinishEnding},
			kinds(effects))
	})
}

func TestReduce_EndIsReentrant(t *testing.T) {
	m := listeningModel(t)
	m, _ = Reduce(m, Event{Kind: EventClockExpired})
	require.Equal(t, StateEnding, m.State)

	for _, ev := range []Event{
		{Kind: EventClockExpired},
		{Kind: EventEndRequested},
		{Kind: EventStreamEnded},
		{Kind: EventQuestionReady, Seq: 1, Text: "Q"},
		{Kind: EventShareRequested},
	} {
		next, effects := Reduce(m, ev)
		assert.Equal(t, m, next, "event %s", ev.Kind)
		assert.Empty(t, effects, "event %s", ev.Kind)
	}
	assert.Equal(t, interview.EndReasonTimeExpired, m.EndReason)
}

func TestReduce_StoppedThenFinalized(t *testing.T) {
	m := listeningModel(t)
	m, _ = Reduce(m, Event{Kind: EventTranscript, Text: "done"})
	m, _ = Reduce(m, Event{Kind: EventVoiceActivity, Silent: true})
	m, _ = Reduce(m, Event{Kind: EventEndRequested, Reason: interview.EndReasonShutdown})

	m, effects := Reduce(m, Event{Kind: EventStopped})
	assert.Equal(t, StateEnded, m.State)
	assert.True(t, m.FinalizePending)
	assert.False(t, m.Done())
	require.Equal(t, []EffectKind{EffectFinalize}, kinds(effects))
	assert.Equal(t, interview.EndReasonShutdown, effects[0].Reason)
	assert.Len(t, effects[0].History, 1)

	// Nothing reopens an ended session.
	next, effects := Reduce(m, Event{Kind: EventStopped})
	assert.Equal(t, m, next)
	assert.Empty(t, effects)

	failure := errors.New("upload failed")
	m, effects = Reduce(m, Event{Kind: EventFinalized, Err: failure})
	assert.True(t, m.Done())
	assert.Equal(t, failure, m.FinalizeErr)
	assert.Equal(t, []EffectKind{EffectFinalizeDone}, kinds(effects))
}

func TestReduce_DoesNotMutateInputTurns(t *testing.T) {
	m := listeningModel(t)
	m, _ = Reduce(m, Event{Kind: EventTranscript, Text: "first"})
	m, _ = Reduce(m, Event{Kind: EventVoiceActivity, Silent: true})
	m, _ = Reduce(m, Event{Kind: EventQuestionReady, Seq: 2, Text: "Q2"})
	m, _ = Reduce(m, Event{Kind: EventSpeechStopped})
	m, _ = Reduce(m, Event{Kind: EventVoiceActivity, Silent: false})
	m, _ = Reduce(m, Event{Kind: EventTranscript, Text: "second"})

	before := m
	after, _ := Reduce(before, Event{Kind: EventVoiceActivity, Silent: true})
	assert.Len(t, before.Turns, 1)
	assert.Len(t, after.Turns, 2)
	assert.Equal(t, "Q2", after.Turns[1].Question)
}

// TestReduce_RandomSequences drives the reducer with random inputs against
// a simulated device and checks that capture and playback never overlap,
// that turns never shrink and that terminal states are never left.
func TestReduce_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	inputs := []EventKind{
		EventShareRequested, EventCaptureReady, EventCaptureFailed, EventTranscript,
		EventVoiceActivity, EventQuestionReady, EventDialogueFailed, EventSpeechStarted,
		EventClockExpired, EventEndRequested, EventStreamEnded, EventStopped,
	}

	for iter := 0; iter < 500; iter++ {
		m := NewModel()
		var devListening, devSpeaking bool
		for step := 0; step < 60; step++ {
			var ev Event
			if devSpeaking && rng.Intn(4) == 0 {
				devSpeaking = false
				ev = Event{Kind: EventSpeechStopped}
			} else {
				ev = Event{Kind: inputs[rng.Intn(len(inputs))]}
				switch ev.Kind {
				case EventTranscript:
					ev.Text = []string{"", "yes", "I like Go"}[rng.Intn(3)]
				case EventVoiceActivity:
					ev.Silent = rng.Intn(2) == 0
				case EventQuestionReady, EventDialogueFailed:
					ev.Seq = rng.Intn(m.lastSeq + 2)
					ev.Text = []string{"", "Next?"}[rng.Intn(2)]
				}
			}

			prev := m
			var effects []Effect
			m, effects = Reduce(m, ev)

			for _, eff := range effects {
				switch eff.Kind {
				case EffectStartListening:
					devListening = true
				case EffectStopListening:
					devListening = false
				case EffectSpeak:
					devSpeaking = true
				case EffectStopSpeaking:
					devSpeaking = false
				}
				require.False(t, devListening && devSpeaking,
					"iteration %d step %d: capture active while speaking after %s", iter, step, eff.Kind)
			}

			require.False(t, m.Listening && m.Speaking)
			require.GreaterOrEqual(t, len(m.Turns), len(prev.Turns))
			if prev.State.Terminal() {
				require.True(t, m.State.Terminal(), "left %s via %s", prev.State, ev.Kind)
			}
			if m.State.Terminal() {
				require.False(t, devListening, "capture active in %s", m.State)
			}
		}
	}
}
