// Package metrics holds AUDITOR's Prometheus instrumentation, registered
// directly against the default registry via promauto rather than through
// the teacher's k8s.io/component-base wrapper — there is no apiserver
// /metrics endpoint machinery here to integrate with, just a plain
// net/http server (started by cmd/auditor's serve command, separate from
// internal/apiserver) that mounts promhttp.Handler().
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auditor"

var (
	// StoreOperationDuration tracks Store operation latency by operation name
	// (insert, bulk_insert, update, scan, delete_range).
	StoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "store_operation_duration_seconds",
		Help:      "Duration of sqlstore operations in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"operation"})

	// StoreOperationsTotal counts Store operations by operation and outcome.
	StoreOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_operations_total",
		Help:      "Total number of sqlstore operations",
	}, []string{"operation", "outcome"})

	// ServerRequestsTotal counts HTTP requests by route and status class.
	ServerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "server_requests_total",
		Help:      "Total number of HTTP requests handled by the server",
	}, []string{"route", "status"})

	// ServerRequestDuration tracks HTTP request latency by route.
	ServerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "server_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"route"})

	// ServerQueryResults tracks the number of records streamed per query.
	ServerQueryResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "server_query_results_total",
		Help:      "Distribution of the number of records returned per query",
		Buckets:   prometheus.ExponentialBuckets(1, 10, 6),
	})

	// ArchiveRunsTotal counts archival scheduler runs by outcome.
	ArchiveRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_runs_total",
		Help:      "Total number of archival runs",
	}, []string{"outcome"})

	// ArchiveRunDuration tracks the wall-clock duration of an archival run.
	ArchiveRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "archive_run_duration_seconds",
		Help:      "Duration of a single archival run in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 16),
	})

	// ArchiveRowsWritten tracks rows written per archived month.
	ArchiveRowsWritten = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "archive_rows_written",
		Help:      "Number of rows written per archival window",
		Buckets:   prometheus.ExponentialBuckets(1, 10, 8),
	})

	// ArchiveSkippedTotal counts archival ticks skipped because an
	// overlapping run was already in progress.
	ArchiveSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_skipped_total",
		Help:      "Total number of archival runs skipped due to an overlapping run",
	})

	// QueuedClientQueueDepth tracks the number of un-drained rows in the
	// embedded client-side queue, by table (inserts, updates).
	QueuedClientQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queued_client_queue_depth",
		Help:      "Number of undrained rows in the queued client's local buffer",
	}, []string{"table"})

	// QueuedClientDrainTotal counts drain attempts by outcome.
	QueuedClientDrainTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queued_client_drain_total",
		Help:      "Total number of queued client drain attempts by outcome",
	}, []string{"outcome"})

	// EventsPublishedTotal counts ingest-notification events published to
	// NATS, by subject.
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total number of ingest-notification events published",
	}, []string{"subject"})

	// EventsPublishErrorsTotal counts failed NATS publish attempts.
	EventsPublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_publish_errors_total",
		Help:      "Total number of failed NATS event publish attempts",
	})

	// DatabaseRecordCount is the store-wide record count, refreshed on
	// metrics_database.frequency_seconds (§6.4).
	DatabaseRecordCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "database_record_count",
		Help:      "Total number of records currently in the store",
	})

	// DatabaseRecordCountByMeta is DatabaseRecordCount broken down by the
	// value under a configured meta key (site, group, or user): one gauge
	// vec for all keys, labelled by dimension and value (§6.4's
	// RecordCountPer{Site,Group,User}).
	DatabaseRecordCountByMeta = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "database_record_count_by_meta",
		Help:      "Number of records whose meta carries a given value under a configured grouping key",
	}, []string{"dimension", "value"})
)
