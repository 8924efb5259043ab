// Package metrics holds the Prometheus collectors the bot reports to.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "threadbot"

// Metrics reports dispatch outcomes, sweep results and model latency.
// A nil *Metrics discards everything.
type Metrics struct {
	dispatch     *prometheus.CounterVec
	sweepEntries *prometheus.CounterVec
	llmSeconds   prometheus.Histogram
}

// MustNew registers the collectors with reg and panics if that fails.
// Tests pass a fresh prometheus.NewRegistry.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		dispatch: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Inbound messages by dispatch outcome.",
			},
			[]string{"outcome"},
		),
		sweepEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_entries_total",
				Help:      "Scheduled prompt and reminder entries processed, by result.",
			},
			[]string{"sweep", "result"},
		),
		llmSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_seconds",
				Help:      "Time spent waiting for a completion, tool rounds included.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
		),
	}
	reg.MustRegister(m.dispatch, m.sweepEntries, m.llmSeconds)
	return m
}

// Dispatch counts one message with the given outcome.
func (m *Metrics) Dispatch(outcome string) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(outcome).Inc()
}

// SweepEntry counts one sweep entry. result is done, skipped or failed.
func (m *Metrics) SweepEntry(sweep, result string) {
	if m == nil {
		return
	}
	m.sweepEntries.WithLabelValues(sweep, result).Inc()
}

// ObserveLLM records how long a completion took.
func (m *Metrics) ObserveLLM(d time.Duration) {
	if m == nil {
		return
	}
	m.llmSeconds.Observe(d.Seconds())
}
