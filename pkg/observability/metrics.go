package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// SyncsTotal tracks completed target syncs by mode and status
	SyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statsync_syncs_total",
			Help: "Total number of target syncs",
		},
		[]string{"target", "mode", "status"}, // status: success, failed, noop
	)

	// SyncDuration measures end-to-end sync duration per target
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "statsync_sync_duration_seconds",
			Help:    "Target sync duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~34m
		},
		[]string{"target", "mode"},
	)

	// RowsWrittenTotal counts rows written to the destination store
	RowsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statsync_rows_written_total",
			Help: "Total rows written to the destination store",
		},
		[]string{"target"},
	)

	// RetryAttemptsTotal counts failed remote attempts by failure class
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statsync_retry_attempts_total",
			Help: "Failed remote call attempts by failure class",
		},
		[]string{"system", "class"},
	)

	// QuotaWaitSeconds accumulates time spent blocked on quota windows
	QuotaWaitSeconds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statsync_quota_wait_seconds_total",
			Help: "Total seconds spent waiting on remote quota windows",
		},
		[]string{"system"},
	)

	// HeaderRepairsTotal counts destination header rows rewritten
	HeaderRepairsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statsync_header_repairs_total",
			Help: "Destination header rows repaired after drift",
		},
		[]string{"target"},
	)

	// CheckpointResumesTotal counts syncs that skipped checkpointed dates
	CheckpointResumesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statsync_checkpoint_resumes_total",
			Help: "Syncs that resumed from a persisted checkpoint",
		},
		[]string{"target"},
	)

	// ScheduledRunsTotal counts scheduler-triggered sync enqueues
	ScheduledRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statsync_scheduled_runs_total",
			Help: "Sync tasks enqueued by the scheduler",
		},
		[]string{"target", "status"}, // status: enqueued, skipped, failed
	)
)

// RecordSync records the outcome of one target sync
func RecordSync(target, mode, status string, seconds float64) {
	SyncsTotal.WithLabelValues(target, mode, status).Inc()
	SyncDuration.WithLabelValues(target, mode).Observe(seconds)
}
