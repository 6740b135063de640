package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the classification pipeline's Prometheus metrics.
type Metrics struct {
	LinesProcessed prometheus.Counter
	LinesSkipped   *prometheus.CounterVec
	Records        *prometheus.CounterVec

	LookupEntries prometheus.Gauge

	ReportsWritten *prometheus.CounterVec
	WriteErrors    *prometheus.CounterVec
}

// NewMetrics creates a new, unregistered metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		LinesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowtagger_lines_processed_total",
			Help: "Total number of flow-log lines classified",
		}),
		LinesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowtagger_lines_skipped_total",
			Help: "Total number of flow-log lines skipped, by reason",
		}, []string{"reason"}),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowtagger_records_total",
			Help: "Total number of classified records, by outcome (tagged or untagged)",
		}, []string{"outcome"}),
		LookupEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowtagger_lookup_entries",
			Help: "Number of (port, protocol) entries in the loaded lookup table",
		}),
		ReportsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowtagger_reports_written_total",
			Help: "Total number of reports persisted, by writer",
		}, []string{"writer"}),
		WriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowtagger_write_errors_total",
			Help: "Total number of failed report writes, by writer",
		}, []string{"writer"}),
	}
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.LinesProcessed.Describe(ch)
	m.LinesSkipped.Describe(ch)
	m.Records.Describe(ch)
	m.LookupEntries.Describe(ch)
	m.ReportsWritten.Describe(ch)
	m.WriteErrors.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.LinesProcessed.Collect(ch)
	m.LinesSkipped.Collect(ch)
	m.Records.Collect(ch)
	m.LookupEntries.Collect(ch)
	m.ReportsWritten.Collect(ch)
	m.WriteErrors.Collect(ch)
}

// Register registers all metrics with reg, or with the default registry when reg is nil.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return reg.Register(m)
}

// Outcome labels for Records.
const (
	OutcomeTagged   = "tagged"
	OutcomeUntagged = "untagged"
)

// ObserveLine records one classified line. A nil receiver is a no-op so
// components can run without metrics.
func (m *Metrics) ObserveLine(untagged bool) {
	if m == nil {
		return
	}
	m.LinesProcessed.Inc()
	if untagged {
		m.Records.WithLabelValues(OutcomeUntagged).Inc()
	} else {
		m.Records.WithLabelValues(OutcomeTagged).Inc()
	}
}

// ObserveSkip records one skipped line.
func (m *Metrics) ObserveSkip(reason string) {
	if m == nil {
		return
	}
	m.LinesSkipped.WithLabelValues(reason).Inc()
}

// ObserveWrite records the outcome of one writer call.
func (m *Metrics) ObserveWrite(writer string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.WriteErrors.WithLabelValues(writer).Inc()
		return
	}
	m.ReportsWritten.WithLabelValues(writer).Inc()
}

// SetLookupEntries publishes the size of the loaded lookup table.
func (m *Metrics) SetLookupEntries(n int) {
	if m == nil {
		return
	}
	m.LookupEntries.Set(float64(n))
}
