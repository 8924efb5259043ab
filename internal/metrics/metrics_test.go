package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNew(reg)

	m.Dispatch("command")
	m.Dispatch("command")
	m.Dispatch("ignored")
	m.SweepEntry("daily", "done")
	m.SweepEntry("reminders", "failed")
	m.ObserveLLM(1500 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatch.WithLabelValues("command")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatch.WithLabelValues("ignored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepEntries.WithLabelValues("daily", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepEntries.WithLabelValues("reminders", "failed")))

	n, err := testutil.GatherAndCount(reg, "threadbot_llm_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Dispatch("command")
		m.SweepEntry("daily", "done")
		m.ObserveLLM(time.Second)
	})
}

func TestMustNew_PanicsOnDuplicate(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustNew(reg)
	assert.Panics(t, func() { MustNew(reg) })
}
