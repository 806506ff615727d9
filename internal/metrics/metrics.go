// Package metrics defines Prometheus metrics for pwc-deal-tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pwc"

// HTTP metrics.
var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HealthzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "healthz_up",
		Help:      "1 when the last /healthz probe succeeded.",
	})

	ReadyzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "readyz_up",
		Help:      "1 when the last /readyz probe succeeded.",
	})
)

// Import metrics.
var (
	ImportRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "import_records_total",
		Help:      "Total imported records by outcome (added, merged, conflicted, rejected).",
	}, []string{"outcome"})

	ImportBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "import_batches_total",
		Help:      "Total imported batches by source transport.",
	}, []string{"transport"})

	ImportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "import_duration_seconds",
		Help:      "Duration of batch imports in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Dedup metrics.
var (
	ConflictRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conflict_records_total",
		Help:      "Total conflict records created.",
	})

	FuzzyDuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fuzzy_duplicates_total",
		Help:      "Total listings flagged as probable duplicates for review.",
	})
)

// Analysis metrics.
var (
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_duration_seconds",
		Help:      "Duration of single-listing analyses in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	AnalysisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analysis_total",
		Help:      "Total analyses by recommendation.",
	}, []string{"recommendation"})

	AnalysisNoReferenceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analysis_no_reference_total",
		Help:      "Analyses that fell back to the statistical outlier check.",
	})
)

// Transport metrics.
var (
	TransportUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transport_uploads_total",
		Help:      "Cloud code uploads by provider and result.",
	}, []string{"provider", "result"})

	TransportFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transport_failures_total",
		Help:      "Transport operations that exhausted all providers.",
	}, []string{"transport"})

	LiveMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "live_messages_total",
		Help:      "Live session messages by direction.",
	}, []string{"direction"})
)

// Trend job metrics.
var (
	TrendRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "trend_refresh_duration_seconds",
		Help:      "Duration of trend snapshot recomputation in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	TrendSnapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trend_snapshots_total",
		Help:      "Total trend snapshots written.",
	})
)
