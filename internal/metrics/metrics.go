package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	RunCount     prometheus.Counter
	SavedCount   prometheus.Counter
	SkippedCount prometheus.Counter
	FailedCount  prometheus.Counter
	RunDuration  prometheus.Histogram
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RunCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "report_ingest_run_count",
			Help: "Total number of ingestion runs",
		}),
		SavedCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "report_ingest_saved_count",
			Help: "Total number of reports persisted",
		}),
		SkippedCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "report_ingest_skipped_count",
			Help: "Total number of messages skipped by the eligibility gates",
		}),
		FailedCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "report_ingest_failed_count",
			Help: "Total number of messages that failed processing",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "report_ingest_run_duration_seconds",
			Help:    "Time spent per ingestion run",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
