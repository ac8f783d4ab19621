package handlers

import (
	"net/http"
	"time"

	"thumbcache/internal/cache"
	"thumbcache/internal/thumbnail"
)

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Pipeline      thumbnail.Stats `json:"pipeline"`
	MemoryEntries int             `json:"memoryEntries"`
	Disk          cache.Stats     `json:"disk"`
	DiskError     string          `json:"diskError,omitempty"`
	Uptime        string          `json:"uptime"`
}

func (h *Handlers) snapshot() StatsResponse {
	response := StatsResponse{
		Pipeline: h.pipeline.Stats(),
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.memory != nil {
		response.MemoryEntries = h.memory.Len()
	}
	if h.disk != nil {
		stats, err := h.disk.Stats()
		if err != nil {
			log.Warn("Disk cache stats failed: %v", err)
			response.DiskError = err.Error()
		} else {
			response.Disk = stats
		}
	}
	return response
}

// GetPipelineStats returns queue, pool and cache occupancy.
func (h *Handlers) GetPipelineStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, h.snapshot())
}
