// Package telemetry exposes grouptop's own health as Prometheus metrics and
// optionally pushes the same registry to an OTLP collector.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nixlim/grouptop/internal/report"
	"github.com/nixlim/grouptop/internal/storage"
)

const namespace = "grouptop"

// Metrics collects fetch and view metrics in a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	fetchesTotal    *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	fetchRows       prometheus.Histogram
	fetchAttempts   prometheus.Counter
	malformedTrees  prometheus.Counter
	formattingFails *prometheus.CounterVec
	treeNodes       prometheus.Gauge
	visibleRows     prometheus.Gauge
	selectedRows    prometheus.Gauge
	loading         prometheus.Gauge
	lastSuccess     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		fetchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Engine fetches by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		fetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Engine fetch latency including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		fetchRows: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_rows",
				Help:      "Rows returned per successful fetch",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		fetchAttempts: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "HTTP attempts made, including retries",
			},
		),
		malformedTrees: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "malformed_trees_total",
				Help:      "Responses rejected because the group tree was inconsistent",
			},
		),
		formattingFails: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "formatting_errors_total",
				Help:      "Cells rendered with the default style after a rule failed",
			},
			[]string{"column"},
		),
		treeNodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tree_nodes",
			Help:      "Nodes in the current group tree",
		}),
		visibleRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "visible_rows",
			Help:      "Rows in the flattened visible list",
		}),
		selectedRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_rows",
			Help:      "Rows currently selected",
		}),
		loading: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loading",
			Help:      "1 while a fetch is outstanding",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last applied response",
		}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveFetch records a completed fetch.
func (m *Metrics) ObserveFetch(rec storage.FetchRecord) {
	if m == nil {
		return
	}
	mode := "report"
	if rec.Realtime {
		mode = "realtime"
	}
	m.fetchesTotal.WithLabelValues(mode, rec.Outcome).Inc()
	m.fetchAttempts.Add(float64(rec.Attempts))
	if rec.Duration > 0 {
		m.fetchDuration.WithLabelValues(mode).Observe(rec.Duration.Seconds())
	}
	switch rec.Outcome {
	case storage.OutcomeOK:
		m.fetchRows.Observe(float64(rec.Rows))
	case storage.OutcomeMalformed:
		m.malformedTrees.Inc()
	}
}

// FormattingError counts a cell whose rule could not be applied.
func (m *Metrics) FormattingError(column string) {
	if m == nil {
		return
	}
	m.formattingFails.WithLabelValues(column).Inc()
}

// TrackDroppedWrites exposes the fetch log's dropped write counter.
func (m *Metrics) TrackDroppedWrites(fn func() int64) {
	if m == nil || fn == nil {
		return
	}
	promauto.With(m.reg).NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_log_dropped_writes_total",
		Help:      "Fetch records dropped because the write queue was full",
	}, func() float64 { return float64(fn()) })
}

// StateChanged updates the view gauges. It makes *Metrics a report.Observer.
func (m *Metrics) StateChanged(s report.State) {
	if m == nil {
		return
	}
	m.treeNodes.Set(float64(s.Tree.Len()))
	m.visibleRows.Set(float64(len(s.Visible)))
	m.selectedRows.Set(float64(s.Selection.Len()))
	if s.Loading {
		m.loading.Set(1)
	} else {
		m.loading.Set(0)
	}
	if !s.LoadedAt.IsZero() {
		m.lastSuccess.Set(float64(s.LoadedAt.UnixNano()) / float64(time.Second))
	}
}

var _ report.Observer = (*Metrics)(nil)
