// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the continuity engine. It is strictly an observer: core
// logic calls into it through nil-safe methods and never depends on a
// metric or span succeeding.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors, registered on a custom
// registry — no global state.
type Metrics struct {
	Registry *prometheus.Registry

	ThreadLookupsTotal   *prometheus.CounterVec
	TurnAppendsTotal     *prometheus.CounterVec
	ReconstructionsTotal *prometheus.CounterVec
	HistoryTokens        prometheus.Histogram
	RemainingTokens      prometheus.Histogram
}

// NewMetrics creates a Metrics with all collectors registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		ThreadLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threadline",
			Subsystem: "thread",
			Name:      "lookups_total",
			Help:      "Thread store lookups by result.",
		}, []string{"result"}),

		TurnAppendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threadline",
			Subsystem: "thread",
			Name:      "turn_appends_total",
			Help:      "Turn append attempts by outcome.",
		}, []string{"outcome"}),

		ReconstructionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threadline",
			Subsystem: "continuation",
			Name:      "reconstructions_total",
			Help:      "Continuation reconstruction passes by status.",
		}, []string{"status"}),

		HistoryTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "threadline",
			Subsystem: "continuation",
			Name:      "history_tokens",
			Help:      "Estimated token cost of assembled history.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		}),

		RemainingTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "threadline",
			Subsystem: "continuation",
			Name:      "remaining_tokens",
			Help:      "Content tokens left for files and new input after history.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		}),
	}

	reg.MustRegister(
		m.ThreadLookupsTotal,
		m.TurnAppendsTotal,
		m.ReconstructionsTotal,
		m.HistoryTokens,
		m.RemainingTokens,
	)
	return m
}

// ObserveLookup records a thread store lookup. Nil-safe.
func (m *Metrics) ObserveLookup(found bool) {
	if m == nil {
		return
	}
	result := "miss"
	if found {
		result = "hit"
	}
	m.ThreadLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveAppend records a turn append attempt. Nil-safe.
func (m *Metrics) ObserveAppend(ok bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if ok {
		outcome = "ok"
	}
	m.TurnAppendsTotal.WithLabelValues(outcome).Inc()
}

// ObserveReconstruction records the outcome of a reconstruction pass
// together with its token figures. Nil-safe.
func (m *Metrics) ObserveReconstruction(status string, historyTokens, remainingTokens int) {
	if m == nil {
		return
	}
	m.ReconstructionsTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		m.HistoryTokens.Observe(float64(historyTokens))
		m.RemainingTokens.Observe(float64(remainingTokens))
	}
}
