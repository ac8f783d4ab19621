// Package metrics provides Prometheus instrumentation for the thumbnail cache.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "thumbcache_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//   - HTTPThumbnailOutcomes: Counter of thumbnail API responses by outcome
//     (encoded, reused, not_modified, unavailable, ...)
//
// ## Pipeline Metrics
//
// Track how the coordinator handles loads and prefetches:
//   - PipelineRequestsTotal: Counter by kind (load/prefetch) and disposition
//     (new/coalesced/rejected)
//   - PipelineCancellationsTotal: Counter of cancel calls by result
//   - PipelineStageDuration: Histogram of stage run time by stage
//   - PipelineStageResults: Counter of stage outcomes by stage and status
//   - PipelineDeliveriesTotal: Counter of load callbacks by result
//   - PipelinePrefetchesReleased: Counter of prefetches released without a value
//   - PipelineDiscardedResults: Counter of stage results for retired pools
//   - PipelinePoolsInFlight: Gauge of active request pools
//   - PipelineQueuePending / PipelineQueueRunning: Gauges of work queue occupancy
//
// ## Cache Metrics
//
//   - CacheLookupsTotal: Counter of probes by tier (memory/disk) and result
//   - CacheWritesTotal: Counter of insertions by tier and status
//   - CacheInvalidationsTotal: Counter of invalidation requests
//   - CacheEntries / CacheSizeBytes: Gauges published by the [Collector]
//   - CacheEvictionsTotal: Counter of capacity evictions by tier
//
// ## Codec, Source and Filesystem Metrics
//
//   - CodecDecodeByFormat, CodecEncodeByFormat, CodecBackendTotal
//   - SourceFetchDuration, SourceFetchErrors, SourceBytesFetched
//   - Filesystem* metrics recorded through [NewFilesystemObserver]
//
// ## Memory Metrics
//
//   - MemoryUsageRatio: Gauge of heap usage as ratio of the limit
//   - MemoryPaused: Gauge indicating decoding is paused for memory pressure
//   - MemoryGCPauses: Counter of times decoding was paused
//
// # Collector
//
// [Collector] periodically reads a [StatsProvider] and publishes the
// gauge-style values:
//
//	collector := metrics.NewCollector(handlers, 30*time.Second)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Memory tier hit rate:
//
//	sum(rate(thumbcache_cache_lookups_total{tier="memory",result="hit"}[5m])) /
//	sum(rate(thumbcache_cache_lookups_total{tier="memory"}[5m]))
//
// Coalescing ratio:
//
//	sum(rate(thumbcache_pipeline_requests_total{disposition="coalesced"}[5m])) /
//	sum(rate(thumbcache_pipeline_requests_total[5m]))
//
// P95 downsample time:
//
//	histogram_quantile(0.95, sum(rate(thumbcache_pipeline_stage_duration_seconds_bucket{stage="downsample"}[5m])) by (le))
package metrics
