// Package metrics provides Prometheus collectors for invocations.
//
// Collectors are created per Metrics value and registered on a caller-supplied
// registerer, so nothing here is process-wide.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LLMBuckets are histogram buckets suited to LLM round trips, 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeUnsupported = "unsupported_model"
	OutcomeRemote      = "remote_error"
	OutcomeMalformed   = "malformed_response"
)

// Metrics holds the invocation collectors.
type Metrics struct {
	invocations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	historyLen  *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llminvoke_invocations_total",
				Help: "Invocations by backend family and outcome",
			},
			[]string{"family", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llminvoke_remote_call_duration_seconds",
				Help:    "Duration of the remote call to the backend",
				Buckets: LLMBuckets,
			},
			[]string{"family"},
		),
		historyLen: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llminvoke_sent_messages",
				Help:    "Number of messages sent per call",
				Buckets: prometheus.ExponentialBuckets(1, 2, 8),
			},
			[]string{"family"},
		),
	}
	reg.MustRegister(m.invocations, m.latency, m.historyLen)
	return m
}

// ObserveInvocation records the outcome of one invocation. family is empty
// for models that never resolved to a family.
func (m *Metrics) ObserveInvocation(family, outcome string) {
	if m == nil {
		return
	}
	if family == "" {
		family = "unknown"
	}
	m.invocations.WithLabelValues(family, outcome).Inc()
}

// ObserveCall records the duration of a remote call and how many messages
// it carried.
func (m *Metrics) ObserveCall(family string, d time.Duration, messages int) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(family).Observe(d.Seconds())
	m.historyLen.WithLabelValues(family).Observe(float64(messages))
}
