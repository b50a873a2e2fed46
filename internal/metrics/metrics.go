package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "masader"

	MetricRefreshes        = "refreshes_total"
	MetricRefreshJobs      = "refresh_jobs_total"
	MetricRefreshJobTime   = "refresh_job_duration_seconds"
	MetricSnapshotRecords  = "snapshot_records"
	MetricSnapshotVersion  = "snapshot_version"
	MetricSchemaMismatches = "snapshot_schema_mismatches"
	MetricQueryErrors      = "query_errors_total"
	MetricRequestDuration  = "http_request_duration_seconds"
)

// CounterRefreshes counts snapshot reloads by result (ok, error).
var CounterRefreshes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRefreshes,
		Help:      "Snapshot reloads from the cache store.",
	},
	[]string{"result"},
)

var CounterRefreshJobs = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRefreshJobs,
		Help:      "External refresh jobs run, by result.",
	},
	[]string{"result"},
)

var HistogramRefreshJobTime = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricRefreshJobTime,
		Help:      "Duration of external refresh jobs.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	},
)

var GaugeSnapshotRecords = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      MetricSnapshotRecords,
		Help:      "Datasets in the served snapshot.",
	},
)

var GaugeSnapshotVersion = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      MetricSnapshotVersion,
		Help:      "Version of the served snapshot.",
	},
)

var GaugeSchemaMismatches = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      MetricSchemaMismatches,
		Help:      "Records of the served snapshot that disagree with its schema.",
	},
)

var CounterQueryErrors = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricQueryErrors,
		Help:      "Rejected filter expressions.",
	},
)

var HistogramRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricRequestDuration,
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

func init() {
	prometheus.MustRegister(CounterRefreshes)
	prometheus.MustRegister(CounterRefreshJobs)
	prometheus.MustRegister(HistogramRefreshJobTime)
	prometheus.MustRegister(GaugeSnapshotRecords)
	prometheus.MustRegister(GaugeSnapshotVersion)
	prometheus.MustRegister(GaugeSchemaMismatches)
	prometheus.MustRegister(CounterQueryErrors)
	prometheus.MustRegister(HistogramRequestDuration)
}

// Result labels a counter with ok or error.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
