package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.ObserveLine(false)
	m.ObserveLine(true)
	m.ObserveLine(true)
	m.ObserveSkip("bad_port")
	m.ObserveWrite("text", nil)
	m.ObserveWrite("clickhouse", errors.New("down"))
	m.SetLookupEntries(42)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.LinesProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records.WithLabelValues(OutcomeTagged)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Records.WithLabelValues(OutcomeUntagged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinesSkipped.WithLabelValues("bad_port")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportsWritten.WithLabelValues("text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WriteErrors.WithLabelValues("clickhouse")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.LookupEntries))
}

func TestMetrics_DoubleRegister(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLine(true)
		m.ObserveSkip("field_count")
		m.ObserveWrite("text", nil)
		m.SetLookupEntries(1)
	})
}
