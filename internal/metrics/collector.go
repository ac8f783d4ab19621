package metrics

import (
	"sync"
	"time"

	"thumbcache/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// QueueStats is the occupancy of one pipeline work queue.
type QueueStats struct {
	Name    string
	Pending int
	Running int64
}

// Stats holds the current pipeline and cache statistics
type Stats struct {
	PoolsInFlight int
	Queues        []QueueStats
	MemoryEntries int
	DiskEntries   int
	DiskBytes     int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()
	Publish(stats)

	logging.Debug("Metrics collected: pools=%d, memory_entries=%d, disk_entries=%d, disk_bytes=%d",
		stats.PoolsInFlight, stats.MemoryEntries, stats.DiskEntries, stats.DiskBytes)
}

// PublishOccupancy sets the gauges that are cheap to read: pools in flight,
// queue occupancy and memory tier entries.
func PublishOccupancy(stats Stats) {
	PipelinePoolsInFlight.Set(float64(stats.PoolsInFlight))
	for _, q := range stats.Queues {
		PipelineQueuePending.WithLabelValues(q.Name).Set(float64(q.Pending))
		PipelineQueueRunning.WithLabelValues(q.Name).Set(float64(q.Running))
	}
	CacheEntries.WithLabelValues("memory").Set(float64(stats.MemoryEntries))
}

// Publish sets every stats gauge, including the disk tier totals.
func Publish(stats Stats) {
	PublishOccupancy(stats)
	CacheEntries.WithLabelValues("disk").Set(float64(stats.DiskEntries))
	CacheSizeBytes.WithLabelValues("disk").Set(float64(stats.DiskBytes))
}
