package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Import processing metrics
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_import_records_total",
			Help: "Total number of records processed per source type and outcome",
		},
		[]string{"source_type", "status"},
	)

	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_import_runs_total",
			Help: "Total number of import runs per source type and mode",
		},
		[]string{"source_type", "mode"},
	)

	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caseflow_import_run_duration_seconds",
			Help:    "Duration of import runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source_type"},
	)

	// Webhook gateway metrics
	WebhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_import_webhook_requests_total",
			Help: "Total number of webhook deliveries per outcome",
		},
		[]string{"status"},
	)

	WebhookDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caseflow_import_webhook_duplicates_total",
			Help: "Total number of webhook deliveries suppressed as duplicates",
		},
	)

	// Materializer metrics
	PersistDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caseflow_import_persist_duration_seconds",
			Help:    "Duration of per-record materialization transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caseflow_import_persist_errors_total",
			Help: "Total number of rolled-back record transactions",
		},
	)

	// Scheduled sync metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_import_sync_runs_total",
			Help: "Total number of scheduled sync runs per outcome",
		},
		[]string{"status"},
	)

	SyncSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caseflow_import_sync_skipped_total",
			Help: "Scheduled sync ticks skipped because a run was in flight",
		},
	)
)
