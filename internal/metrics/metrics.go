// Package metrics exposes Prometheus counters for chat turns, completions,
// gate transitions and end-of-session analyses.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes
const (
	TurnAnswered = "answered"
	TurnGated    = "gated"
	TurnFailed   = "failed"
)

// Analysis results
const (
	AnalysisOK       = "ok"
	AnalysisFallback = "fallback"
	AnalysisSkipped  = "skipped"
	AnalysisError    = "error"
)

// Metrics bundles the service counters on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	turns              *prometheus.CounterVec
	completionAttempts prometheus.Counter
	completionFailures prometheus.Counter
	gateTransitions    *prometheus.CounterVec
	analyses           *prometheus.CounterVec
}

// New creates and registers all counters
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "leadchat",
				Subsystem: "conversation",
				Name:      "turns_total",
				Help:      "Visitor messages by outcome",
			},
			[]string{"outcome"}, // answered, gated, failed
		),
		completionAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadchat",
			Subsystem: "llm",
			Name:      "completion_attempts_total",
			Help:      "Completion calls including retries",
		}),
		completionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadchat",
			Subsystem: "llm",
			Name:      "completion_failures_total",
			Help:      "Completion calls that returned an error",
		}),
		gateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "leadchat",
				Subsystem: "gate",
				Name:      "transitions_total",
				Help:      "Lead capture gate transitions by target state",
			},
			[]string{"state"},
		),
		analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "leadchat",
				Subsystem: "analyzer",
				Name:      "runs_total",
				Help:      "End-of-session analyses by trigger and result",
			},
			[]string{"trigger", "result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.turns,
		m.completionAttempts,
		m.completionFailures,
		m.gateTransitions,
		m.analyses,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Turn counts one visitor message
func (m *Metrics) Turn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

// CompletionAttempt counts one completion call
func (m *Metrics) CompletionAttempt(err error) {
	if m == nil {
		return
	}
	m.completionAttempts.Inc()
	if err != nil {
		m.completionFailures.Inc()
	}
}

// GateTransition counts a move of the gate into state
func (m *Metrics) GateTransition(state string) {
	if m == nil {
		return
	}
	m.gateTransitions.WithLabelValues(state).Inc()
}

// Analysis counts one analyzer run
func (m *Metrics) Analysis(trigger, result string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(trigger, result).Inc()
}
