// Package metrics records pipeline counters in a Prometheus registry and
// writes them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "logsift"

// Metrics holds the counters for one run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	linesRead       prometheus.Counter
	recordsParsed   prometheus.Counter
	parseFailures   prometheus.Counter
	duplicates      prometheus.Counter
	missingDropped  prometheus.Counter
	cleanRecords    prometheus.Counter
	rowsPersisted   prometheus.Counter
	persistFailures prometheus.Counter
	chartsRendered  prometheus.Counter

	pipelineDuration prometheus.Histogram
}

func counter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

// New creates a Metrics with its own registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		linesRead:       counter("source", "lines_read_total", "Total raw lines read from log sources"),
		recordsParsed:   counter("parser", "records_total", "Total lines parsed into records"),
		parseFailures:   counter("parser", "failures_total", "Total lines that did not match the access log grammar"),
		duplicates:      counter("normalizer", "duplicates_total", "Total records dropped as duplicates"),
		missingDropped:  counter("normalizer", "missing_total", "Total records dropped for missing fields"),
		cleanRecords:    counter("normalizer", "clean_records_total", "Total records surviving normalization"),
		rowsPersisted:   counter("store", "rows_total", "Total rows inserted into the database"),
		persistFailures: counter("store", "failures_total", "Total rows that failed to insert"),
		chartsRendered:  counter("charts", "rendered_total", "Total chart images written"),

		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.linesRead,
		m.recordsParsed,
		m.parseFailures,
		m.duplicates,
		m.missingDropped,
		m.cleanRecords,
		m.rowsPersisted,
		m.persistFailures,
		m.chartsRendered,
		m.pipelineDuration,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// LineRead counts one line read from a source.
func (m *Metrics) LineRead() {
	if m != nil {
		m.linesRead.Inc()
	}
}

// RecordParsed counts one line that parsed into a record.
func (m *Metrics) RecordParsed() {
	if m != nil {
		m.recordsParsed.Inc()
	}
}

// ParseFailed counts one line that failed to parse.
func (m *Metrics) ParseFailed() {
	if m != nil {
		m.parseFailures.Inc()
	}
}

// Normalized adds the normalizer's drop and keep counts.
func (m *Metrics) Normalized(duplicates, missing, clean int) {
	if m == nil {
		return
	}
	m.duplicates.Add(float64(duplicates))
	m.missingDropped.Add(float64(missing))
	m.cleanRecords.Add(float64(clean))
}

// Persisted adds store insert results.
func (m *Metrics) Persisted(inserted, failed int) {
	if m == nil {
		return
	}
	m.rowsPersisted.Add(float64(inserted))
	m.persistFailures.Add(float64(failed))
}

// ChartsRendered adds the number of chart files written.
func (m *Metrics) ChartsRendered(n int) {
	if m != nil {
		m.chartsRendered.Add(float64(n))
	}
}

// ObserveDuration records one pipeline run.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m != nil {
		m.pipelineDuration.Observe(d.Seconds())
	}
}

// WriteTextfile writes all metrics to path atomically, for the node_exporter
// textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
