package session

import (
	"errors"
	"strings"

	"github.com/AltairaLabs/InterviewKit/runtime/interview"
)

// Reduce applies ev to m and returns the next model together with the side
// effects the executor must perform, in order. Reduce is pure: it never
// blocks, performs no I/O and never mutates m's backing slices.
//
// Two invariants hold for every model Reduce returns:
//   - Listening and Speaking are never both true.
//   - Turns only grow, and a buffered answer is consumed at most once.
func Reduce(m Model, ev Event) (Model, []Effect) {
	switch ev.Kind {
	case EventClockExpired:
		return end(m, interview.EndReasonTimeExpired)
	case EventStreamEnded:
		return end(m, interview.EndReasonStreamEnded)
	case EventEndRequested:
		reason := ev.Reason
		if reason == "" {
			reason = interview.EndReasonUserEnded
		}
		return end(m, reason)
	case EventVoiceActivity:
		return voiceActivity(m, ev.Silent)
	}

	switch m.State {
	case StateIdle:
		if ev.Kind == EventShareRequested {
			m.State = StateAwaitingPermission
			return m, []Effect{{Kind: EffectStartRecording}}
		}
	case StateAwaitingPermission:
		return awaitingPermission(m, ev)
	case StateListening:
		return listening(m, ev)
	case StateProcessing:
		return processing(m, ev)
	case StateSpeaking:
		return speaking(m, ev)
	case StateEnding:
		if ev.Kind == EventStopped {
			m.State = StateEnded
			m.FinalizePending = true
			return m, []Effect{{
				Kind:    EffectFinalize,
				History: m.Turns,
				Reason:  m.EndReason,
			}}
		}
		return terminal(m, ev)
	case StateEnded:
		if ev.Kind == EventFinalized && m.FinalizePending {
			m.FinalizePending = false
			m.FinalizeErr = ev.Err
			return m, []Effect{{Kind: EffectFinalizeDone, Err: ev.Err}}
		}
		return terminal(m, ev)
	}
	return m, nil
}

func awaitingPermission(m Model, ev Event) (Model, []Effect) {
	switch ev.Kind {
	case EventCaptureReady:
		m.State = StateListening
		m.Listening = true
		m = nextSeq(m)
		return m, []Effect{
			{Kind: EffectStartClock},
			{Kind: EffectStartListening},
			{Kind: EffectRequestQuestion, Seq: m.Seq},
		}
	case EventCaptureFailed:
		m.State = StateIdle
		return m, []Effect{{Kind: EffectReportError, Code: captureErrorCode(ev.Err), Err: ev.Err}}
	}
	return m, nil
}

func listening(m Model, ev Event) (Model, []Effect) {
	switch ev.Kind {
	case EventTranscript:
		m.Buffer = ev.Text
	case EventQuestionReady:
		if ev.Seq != m.Seq || m.Seq == 0 {
			return m, nil
		}
		m.Seq = 0
		if strings.TrimSpace(ev.Text) == "" {
			return m, nil
		}
		// Anything heard before the question was asked is discarded.
		m.Buffer = ""
		return speak(m, ev.Text, Effect{Kind: EffectResetTranscript})
	case EventDialogueFailed:
		if ev.Seq != m.Seq || m.Seq == 0 {
			return m, nil
		}
		m.Seq = 0
		return m, []Effect{{Kind: EffectReportError, Code: CodeDialogueFailed, Err: ev.Err}}
	}
	return m, nil
}

func processing(m Model, ev Event) (Model, []Effect) {
	switch ev.Kind {
	case EventQuestionReady:
		if ev.Seq != m.Seq {
			return m, nil
		}
		m.Seq = 0
		if strings.TrimSpace(ev.Text) == "" {
			m.State = StateListening
			m.Listening = true
			return m, []Effect{{Kind: EffectStartListening}}
		}
		return speak(m, ev.Text)
	case EventDialogueFailed:
		if ev.Seq != m.Seq {
			return m, nil
		}
		m.Seq = 0
		next, effects := end(m, interview.EndReasonDialogueFailed)
		report := Effect{Kind: EffectReportError, Code: CodeDialogueFailed, Err: ev.Err}
		return next, append([]Effect{report}, effects...)
	}
	return m, nil
}

func speaking(m Model, ev Event) (Model, []Effect) {
	if ev.Kind != EventSpeechStopped {
		return m, nil
	}
	m.State = StateListening
	m.Speaking = false
	m.Listening = true
	return m, []Effect{{Kind: EffectStartListening}}
}

// terminal handles late inputs after the session started ending. A capture
// that completes after the end signal is released immediately.
func terminal(m Model, ev Event) (Model, []Effect) {
	if ev.Kind == EventCaptureReady {
		return m, []Effect{{Kind: EffectStopRecording}}
	}
	return m, nil
}

// voiceActivity commits the buffered answer on a false-to-true edge of the
// no-voice signal while listening.
func voiceActivity(m Model, silent bool) (Model, []Effect) {
	edge := silent && !m.Silent
	m.Silent = silent
	if !edge || m.State != StateListening {
		return m, nil
	}
	answer := strings.TrimSpace(m.Buffer)
	if answer == "" {
		return m, nil
	}

	m, recorded := commitTurn(m, answer)
	m.State = StateProcessing
	m.Listening = false
	m = nextSeq(m)
	return m, []Effect{
		{Kind: EffectStopListening},
		{Kind: EffectResetTranscript},
		recorded,
		{Kind: EffectRequestQuestion, Seq: m.Seq, History: m.Turns},
	}
}

func speak(m Model, text string, extra ...Effect) (Model, []Effect) {
	m.State = StateSpeaking
	m.Question = text
	effects := make([]Effect, 0, 2+len(extra))
	if m.Listening {
		effects = append(effects, Effect{Kind: EffectStopListening})
		m.Listening = false
	}
	effects = append(effects, extra...)
	m.Speaking = true
	effects = append(effects, Effect{Kind: EffectSpeak, Text: text})
	return m, effects
}

// end moves any live state to Ending. Idle sessions have nothing to save and
// go straight to Ended. Repeated end signals are no-ops.
func end(m Model, reason interview.EndReason) (Model, []Effect) {
	switch m.State {
	case StateEnding, StateEnded:
		return m, nil
	case StateIdle:
		m.State = StateEnded
		m.EndReason = reason
		return m, nil
	}

	var effects []Effect
	if answer := strings.TrimSpace(m.Buffer); answer != "" && m.State == StateListening {
		var recorded Effect
		m, recorded = commitTurn(m, answer)
		effects = append(effects, recorded)
	}

	m.State = StateEnding
	m.EndReason = reason
	m.Seq = 0
	m.Buffer = ""
	effects = append(effects, Effect{Kind: EffectStopClock})
	if m.Listening {
		effects = append(effects, Effect{Kind: EffectStopListening})
		m.Listening = false
	}
	if m.Speaking {
		effects = append(effects, Effect{Kind: EffectStopSpeaking})
		m.Speaking = false
	}
	effects = append(effects,
		Effect{Kind: EffectStopRecording},
		Effect{Kind: EffectFinishEnding},
	)
	return m, effects
}

func commitTurn(m Model, answer string) (Model, Effect) {
	turn := interview.Turn{Question: m.Question, Answer: answer}
	turns := make([]interview.Turn, len(m.Turns), len(m.Turns)+1)
	copy(turns, m.Turns)
	m.Turns = append(turns, turn)
	m.Buffer = ""
	return m, Effect{Kind: EffectTurnRecorded, Index: len(m.Turns) - 1, Turn: turn}
}

func nextSeq(m Model) Model {
	m.lastSeq++
	m.Seq = m.lastSeq
	return m
}

func captureErrorCode(err error) string {
	switch {
	case errors.Is(err, interview.ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, interview.ErrRecordingValidation):
		return CodeRecordingInvalid
	default:
		return CodeCaptureFailed
	}
}
