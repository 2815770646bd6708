package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TobiWan1995/statemcp/pkg/domain"
)

// Rejection reasons recorded by the proxies.
const (
	ReasonNotAvailable = "not_available"
	ReasonConcluded    = "concluded"
	ReasonUnbound      = "unbound_outcome"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	transitions    *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	effectFailures prometheus.Counter
	activeSessions prometheus.Gauge
}

// NewMetrics creates and registers the collectors with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statemcp_transitions_total",
				Help: "Total number of committed automaton transitions",
			},
			[]string{"outcome", "terminal"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statemcp_rejections_total",
				Help: "Total number of invocations rejected by the state gate",
			},
			[]string{"reason"},
		),
		effectFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "statemcp_effect_failures_total",
				Help: "Total number of transition effects that failed",
			},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "statemcp_active_sessions",
				Help: "Number of tracked sessions",
			},
		),
	}
	reg.MustRegister(m.transitions, m.rejections, m.effectFailures, m.activeSessions)
	return m
}

// RecordTransition counts one committed transition.
func (m *Metrics) RecordTransition(res domain.TransitionResult) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(res.Outcome), strconv.FormatBool(res.Terminal)).Inc()
}

// RecordRejection counts one gated-out invocation.
func (m *Metrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// RecordEffectFailure counts one failed effect.
func (m *Metrics) RecordEffectFailure() {
	if m == nil {
		return
	}
	m.effectFailures.Inc()
}

// SessionStarted increments the active-session gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionEnded decrements the active-session gauge.
func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
