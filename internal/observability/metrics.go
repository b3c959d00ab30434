package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace defines the global prefix for all metrics (e.g., rondo_...).
const namespace = "rondo"

var (
	// -------------------------------------------------------------------------
	// INSIGHTS API (HTTP)
	// -------------------------------------------------------------------------

	// APIReqDuration measures the latency of HTTP requests.
	// Metric: rondo_api_http_handling_seconds
	APIReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// APIReqTotal counts the total number of HTTP requests.
	// Metric: rondo_api_http_requests_total
	APIReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "route", "code"})

	// -------------------------------------------------------------------------
	// INSIGHTS ENGINE
	// -------------------------------------------------------------------------

	// ReportDuration measures end-to-end virtual queue report computation.
	// Metric: rondo_insights_report_seconds
	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "insights",
		Name:      "report_seconds",
		Help:      "Time taken to compute a virtual queue report",
	})

	// ReportsTotal counts report computations by outcome
	// (ok, disabled, error).
	// Metric: rondo_insights_reports_total
	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "insights",
		Name:      "reports_total",
		Help:      "Total virtual queue report computations by outcome",
	}, []string{"outcome"})

	// QueuesBuilt counts virtual queues emitted by the builder.
	// Metric: rondo_insights_queues_built_total
	QueuesBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "insights",
		Name:      "queues_built_total",
		Help:      "Total virtual queues derived from routing forms",
	})

	// QueuesSkipped counts queues dropped during report assembly by reason
	// (configuration, data_integrity).
	// Metric: rondo_insights_queues_skipped_total
	QueuesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "insights",
		Name:      "queues_skipped_total",
		Help:      "Total virtual queues skipped during report assembly",
	}, []string{"reason"})

	// SelectorRuns counts weighted assignment selector invocations.
	// Metric: rondo_insights_selector_runs_total
	SelectorRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "insights",
		Name:      "selector_runs_total",
		Help:      "Total weighted assignment selector runs",
	})

	// -------------------------------------------------------------------------
	// FORM CACHE (L1 + L2)
	// -------------------------------------------------------------------------

	CacheL1Hits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "l1_hits_total",
		Help:      "Total L1 form cache hits (in-memory)",
	})

	CacheL1Misses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "l1_misses_total",
		Help:      "Total L1 form cache misses",
	})

	CacheL2Hits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "l2_hits_total",
		Help:      "Total L2 form cache hits (redis)",
	})

	CacheL2Misses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "l2_misses_total",
		Help:      "Total L2 form cache misses",
	})

	// -------------------------------------------------------------------------
	// DATABASE POOL
	// -------------------------------------------------------------------------

	// DBPoolConnections tracks pool connections by state
	// (total, idle, in_use, max).
	// Metric: rondo_database_pool_connections
	DBPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_connections",
		Help:      "PostgreSQL pool connections by state",
	}, []string{"state"})

	// DBPoolAcquireCount mirrors pgx's cumulative acquire counter. Sampled
	// as a gauge because pgx owns the counter.
	// Metric: rondo_database_pool_acquire_count_total
	DBPoolAcquireCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_count_total",
		Help:      "Cumulative number of pool acquires",
	})

	// DBPoolAcquireDuration mirrors pgx's cumulative acquire wait time.
	// Metric: rondo_database_pool_acquire_duration_seconds_total
	DBPoolAcquireDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_duration_seconds_total",
		Help:      "Cumulative time spent acquiring pool connections",
	})

	// DBPoolWaitCount counts acquires that had to wait for a free
	// connection.
	// Metric: rondo_database_pool_wait_count_total
	DBPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_wait_count_total",
		Help:      "Cumulative number of acquires that waited on an exhausted pool",
	})

	// -------------------------------------------------------------------------
	// SYNCER
	// -------------------------------------------------------------------------

	// SyncCycles counts syncer cycles by outcome (ok, error).
	// Metric: rondo_syncer_cycles_total
	SyncCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "cycles_total",
		Help:      "Total form sync cycles by outcome",
	}, []string{"outcome"})

	// FormsSynced counts forms pushed to the L2 cache.
	// Metric: rondo_syncer_forms_synced_total
	FormsSynced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "forms_synced_total",
		Help:      "Total forms written to the redis cache",
	})

	// FormsUnchanged counts forms skipped because their fingerprint did not
	// change since the previous cycle.
	// Metric: rondo_syncer_forms_unchanged_total
	FormsUnchanged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "forms_unchanged_total",
		Help:      "Total forms skipped by the fingerprint check",
	})
)
