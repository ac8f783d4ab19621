package metrics

// Label values pre-populated by InitializeMetrics.
var (
	// Stages lists the pipeline stage labels in execution order.
	Stages = []string{"disk_probe", "fetch_original", "downsample", "encode", "decompress", "disk_write"}

	// Queues lists the pipeline work queue labels.
	Queues = []string{"coordinator", "data_loading", "disk_io", "downsampling", "encoding", "decompression"}

	// Outcomes lists how a thumbnail API request can be answered.
	Outcomes = []string{
		"encoded", "reused", "not_modified", "unavailable", "timeout",
		"closed", "canceled", "bad_request", "encode_failed", "invalidated", "prefetched",
	}

	tiers = []string{"memory", "disk"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, outcome := range Outcomes {
		HTTPThumbnailOutcomes.WithLabelValues(outcome)
	}

	for _, kind := range []string{"load", "prefetch"} {
		for _, disposition := range []string{"new", "coalesced", "rejected"} {
			PipelineRequestsTotal.WithLabelValues(kind, disposition)
		}
	}

	for _, result := range []string{"removed", "not_found", "aborted"} {
		PipelineCancellationsTotal.WithLabelValues(result)
	}

	for _, stage := range Stages {
		PipelineStageDuration.WithLabelValues(stage)
		PipelineStageResults.WithLabelValues(stage, "success")
		PipelineStageResults.WithLabelValues(stage, "failure")
	}

	PipelineDeliveriesTotal.WithLabelValues("success")
	PipelineDeliveriesTotal.WithLabelValues("failure")

	for _, queue := range Queues {
		PipelineQueuePending.WithLabelValues(queue)
		PipelineQueueRunning.WithLabelValues(queue)
	}

	for _, tier := range tiers {
		CacheLookupsTotal.WithLabelValues(tier, "hit")
		CacheLookupsTotal.WithLabelValues(tier, "miss")
		CacheWritesTotal.WithLabelValues(tier, "success")
		CacheWritesTotal.WithLabelValues(tier, "failure")
		CacheEntries.WithLabelValues(tier)
		CacheEvictionsTotal.WithLabelValues(tier)
	}
	CacheSizeBytes.WithLabelValues("disk")

	for _, format := range []string{"jpeg", "png", "gif", "webp", "bmp", "tiff", "heif", "avif", "unknown"} {
		CodecDecodeByFormat.WithLabelValues(format)
	}
	CodecEncodeByFormat.WithLabelValues("jpeg")
	CodecEncodeByFormat.WithLabelValues("png")
	CodecBackendTotal.WithLabelValues("vips")
	CodecBackendTotal.WithLabelValues("imaging")

	for _, loader := range []string{"dir", "http"} {
		SourceFetchDuration.WithLabelValues(loader)
		SourceFetchErrors.WithLabelValues(loader)
		SourceBytesFetched.WithLabelValues(loader)
	}

	volumes := []string{"source", "cache", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"read", "write", "stat", "remove"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open", "read", "write"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
