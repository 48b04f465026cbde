// Package prometheus provides Prometheus metrics for interview sessions.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "interviewkit"

var (
	// sessionsActive is a gauge of sessions between start and end.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of interview sessions currently running",
		},
	)

	// sessionsTotal counts ended sessions by end reason.
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of ended interview sessions",
		},
		[]string{"end_reason"},
	)

	// turnsTotal counts turns appended to transcripts.
	turnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of question/answer turns recorded",
		},
	)

	// sessionErrorsTotal counts errors surfaced to candidates.
	sessionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Total number of errors surfaced to candidates",
		},
		[]string{"code"},
	)

	// finalizationsTotal counts finalization attempts by outcome.
	finalizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalizations_total",
			Help:      "Total number of finalization attempts",
		},
		[]string{"outcome"}, // completed, failed, skipped
	)

	// finalizeDuration is a histogram of successful finalization duration.
	finalizeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "finalize_duration_seconds",
			Help:      "Duration of successful finalizations in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// dialogueRequestDuration is a histogram of dialogue service latency.
	dialogueRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dialogue_request_duration_seconds",
			Help:      "Duration of dialogue service calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"model"},
	)

	// dialogueRequestsTotal counts dialogue service calls.
	dialogueRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogue_requests_total",
			Help:      "Total number of dialogue service calls",
		},
		[]string{"model", "status"}, // status: success, error
	)

	// recordingValidationFailures counts rejected screen shares by field.
	recordingValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_validation_failures_total",
			Help:      "Total number of screen shares rejected by recording validation",
		},
		[]string{"field"},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		sessionsActive,
		sessionsTotal,
		turnsTotal,
		sessionErrorsTotal,
		finalizationsTotal,
		finalizeDuration,
		dialogueRequestDuration,
		dialogueRequestsTotal,
		recordingValidationFailures,
	}
)

// RecordSessionStart records a session entering the conversational states.
func RecordSessionStart() {
	sessionsActive.Inc()
}

// RecordSessionEnd records a session leaving them.
func RecordSessionEnd(endReason string) {
	sessionsActive.Dec()
	sessionsTotal.WithLabelValues(endReason).Inc()
}

// RecordTurn records an appended turn.
func RecordTurn() {
	turnsTotal.Inc()
}

// RecordSessionError records an error surfaced to a candidate.
func RecordSessionError(code string) {
	sessionErrorsTotal.WithLabelValues(code).Inc()
}

// RecordFinalization records a finalization outcome. Duration is observed
// only for completed attempts.
func RecordFinalization(outcome string, durationSeconds float64) {
	finalizationsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeCompleted {
		finalizeDuration.Observe(durationSeconds)
	}
}

// RecordDialogueRequest records a dialogue service call.
func RecordDialogueRequest(model, status string, durationSeconds float64) {
	dialogueRequestDuration.WithLabelValues(model).Observe(durationSeconds)
	dialogueRequestsTotal.WithLabelValues(model, status).Inc()
}

// RecordValidationFailure records a rejected screen share.
func RecordValidationFailure(field string) {
	recordingValidationFailures.WithLabelValues(field).Inc()
}
