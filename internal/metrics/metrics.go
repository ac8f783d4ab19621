package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcache_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPThumbnailOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_http_thumbnail_outcomes_total",
			Help: "Thumbnail API responses by how they were produced",
		},
		[]string{"outcome"},
	)
)

// Pipeline metrics
var (
	PipelineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_pipeline_requests_total",
			Help: "Thumbnail requests by kind and how the coordinator handled them",
		},
		[]string{"kind", "disposition"}, // kind: load|prefetch; disposition: new|coalesced|rejected
	)

	PipelineCancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_pipeline_cancellations_total",
			Help: "Cancel calls by outcome",
		},
		[]string{"result"}, // "removed", "not_found", "aborted"
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcache_pipeline_stage_duration_seconds",
			Help:    "Time spent running a pipeline stage",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	PipelineStageResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_pipeline_stage_results_total",
			Help: "Pipeline stage outcomes",
		},
		[]string{"stage", "status"}, // status: success|failure
	)

	PipelineDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_pipeline_deliveries_total",
			Help: "Terminal callbacks delivered to load observers",
		},
		[]string{"result"}, // "success", "failure"
	)

	PipelinePrefetchesReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcache_pipeline_prefetches_released_total",
			Help: "Prefetch requests released without a delivered value",
		},
	)

	PipelineDiscardedResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcache_pipeline_discarded_results_total",
			Help: "Stage results dropped because their request pool was no longer registered",
		},
	)

	PipelinePoolsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_pipeline_pools_in_flight",
			Help: "Number of cache keys with an active request pool",
		},
	)

	PipelineQueuePending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbcache_pipeline_queue_pending",
			Help: "Tasks waiting in a pipeline work queue",
		},
		[]string{"queue"},
	)

	PipelineQueueRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbcache_pipeline_queue_running",
			Help: "Tasks currently executing in a pipeline work queue",
		},
		[]string{"queue"},
	)
)

// Cache tier metrics
var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_cache_lookups_total",
			Help: "Cache probes by tier and result",
		},
		[]string{"tier", "result"}, // tier: memory|disk; result: hit|miss
	)

	CacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_cache_writes_total",
			Help: "Cache insertions by tier and status",
		},
		[]string{"tier", "status"},
	)

	CacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcache_cache_invalidations_total",
			Help: "Number of cache invalidation requests",
		},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbcache_cache_entries",
			Help: "Number of entries held by a cache tier",
		},
		[]string{"tier"},
	)

	CacheSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbcache_cache_size_bytes",
			Help: "Bytes held by a cache tier (disk tiers only)",
		},
		[]string{"tier"},
	)

	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_cache_evictions_total",
			Help: "Entries evicted by a cache tier's own capacity policy",
		},
		[]string{"tier"},
	)
)

// Codec metrics
var (
	CodecDecodeByFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_codec_decode_total",
			Help: "Source images decoded, by sniffed format",
		},
		[]string{"format"},
	)

	CodecEncodeByFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_codec_encode_total",
			Help: "Thumbnails encoded, by output format",
		},
		[]string{"format"}, // "jpeg", "png"
	)

	CodecBackendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_codec_downsample_backend_total",
			Help: "Downsample operations by backend",
		},
		[]string{"backend"}, // "vips", "imaging"
	)
)

// Source loader metrics
var (
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcache_source_fetch_duration_seconds",
			Help:    "Time to fetch original image bytes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"loader"},
	)

	SourceFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_source_fetch_errors_total",
			Help: "Failed original image fetches",
		},
		[]string{"loader"},
	)

	SourceBytesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_source_bytes_fetched_total",
			Help: "Bytes of original image data fetched",
		},
		[]string{"loader"},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcache_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_filesystem_retry_attempts_total",
			Help: "Retries after stale NFS file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbcache_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbcache_filesystem_retry_duration_seconds",
			Help:    "Total duration of retried filesystem operations",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_memory_usage_ratio",
			Help: "Go heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbcache_memory_paused",
			Help: "Whether decoding is paused for memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbcache_memory_gc_pauses_total",
			Help: "Times the memory monitor paused decoding and forced a GC",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbcache_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
