package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "funddata"

// Ingestion outcomes.
const (
	OutcomePublished    = "published"
	OutcomeUnavailable  = "unavailable"
	OutcomeFetchFailed  = "fetch_failed"
	OutcomeSchemaFailed = "schema_failed"
	OutcomeWriteFailed  = "write_failed"
	OutcomeLoadFailed   = "load_failed"
	OutcomeLoaded       = "loaded"
)

// Metrics holds every collector the tools export.
type Metrics struct {
	MonthsProcessed     *prometheus.CounterVec
	RowsPublished       prometheus.Counter
	RowsDropped         prometheus.Counter
	CoercionWarnings    prometheus.Counter
	LoadDuration        *prometheus.HistogramVec
	BenchmarkRefreshes  *prometheus.CounterVec
	AggregationRequests *prometheus.CounterVec
	AggregationDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MonthsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "months_total",
			Help:      "Months processed by outcome.",
		}, []string{"outcome"}),
		RowsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_published_total",
			Help:      "Rows written to published partitions.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_dropped_total",
			Help:      "Source rows dropped for a missing key or date.",
		}),
		CoercionWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "coercion_warnings_total",
			Help:      "Cells nulled because they could not be parsed.",
		}),
		LoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "warehouse",
			Name:      "load_duration_seconds",
			Help:      "Month replacement latency by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"outcome"}),
		BenchmarkRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "benchmark",
			Name:      "refreshes_total",
			Help:      "Benchmark series downloads by rate and outcome.",
		}, []string{"rate", "outcome"}),
		AggregationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "returns",
			Name:      "requests_total",
			Help:      "Return aggregation requests by outcome.",
		}, []string{"outcome"}),
		AggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "returns",
			Name:      "duration_seconds",
			Help:      "Return aggregation latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.MonthsProcessed,
			m.RowsPublished,
			m.RowsDropped,
			m.CoercionWarnings,
			m.LoadDuration,
			m.BenchmarkRefreshes,
			m.AggregationRequests,
			m.AggregationDuration,
		)
	}
	return m
}

// MonthOutcome counts one month with the given outcome.
func (m *Metrics) MonthOutcome(outcome string) {
	if m == nil {
		return
	}
	m.MonthsProcessed.WithLabelValues(outcome).Inc()
}

// Normalized records the counters of one normalized month.
func (m *Metrics) Normalized(rows, dropped, warnings int64) {
	if m == nil {
		return
	}
	m.RowsPublished.Add(float64(rows))
	m.RowsDropped.Add(float64(dropped))
	m.CoercionWarnings.Add(float64(warnings))
}

// ObserveLoad records one month replacement.
func (m *Metrics) ObserveLoad(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.LoadDuration.WithLabelValues(outcome(err)).Observe(d.Seconds())
}

// BenchmarkRefresh counts one series download.
func (m *Metrics) BenchmarkRefresh(rate string, err error) {
	if m == nil {
		return
	}
	m.BenchmarkRefreshes.WithLabelValues(rate, outcome(err)).Inc()
}

// ObserveAggregation records one aggregation request. The outcome is "ok",
// "error", or the kind of the first diagnostic.
func (m *Metrics) ObserveAggregation(d time.Duration, result string) {
	if m == nil {
		return
	}
	m.AggregationRequests.WithLabelValues(result).Inc()
	m.AggregationDuration.Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// WriteTextfile writes every metric in g to path in the node_exporter
// textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
