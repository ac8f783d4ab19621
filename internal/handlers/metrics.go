package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"thumbcache/internal/metrics"
)

// MetricsHandler serves Prometheus metrics. Pipeline occupancy and the memory
// tier size are refreshed on every scrape; disk tier totals need a scan and
// come from the periodic collector.
func (h *Handlers) MetricsHandler() http.Handler {
	exporter := promhttp.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.pipeline != nil {
			metrics.PublishOccupancy(h.occupancy())
		}
		exporter.ServeHTTP(w, r)
	})
}

// occupancy reads the pipeline and memory tier without touching the disk.
func (h *Handlers) occupancy() metrics.Stats {
	ps := h.pipeline.Stats()
	stats := metrics.Stats{
		PoolsInFlight: ps.PoolsInFlight,
		Queues:        make([]metrics.QueueStats, 0, len(ps.Queues)),
	}
	for _, q := range ps.Queues {
		stats.Queues = append(stats.Queues, metrics.QueueStats{
			Name:    q.Name,
			Pending: q.Pending,
			Running: q.Running,
		})
	}
	if h.memory != nil {
		stats.MemoryEntries = h.memory.Len()
	}
	return stats
}

// GetStats implements metrics.StatsProvider.
func (h *Handlers) GetStats() metrics.Stats {
	stats := h.occupancy()
	if h.disk == nil {
		return stats
	}
	disk, err := h.disk.Stats()
	if err != nil {
		log.Warn("Disk cache stats failed: %v", err)
		return stats
	}
	stats.DiskEntries = disk.Entries
	stats.DiskBytes = disk.Bytes
	return stats
}
