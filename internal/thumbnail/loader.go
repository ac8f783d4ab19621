package thumbnail

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"thumbcache/internal/metrics"
	"thumbcache/internal/workers"
)

// Loader is the entry point of the pipeline. All methods are safe for
// concurrent use and, apart from the start callback of Load, return without
// doing any pipeline work on the caller's goroutine.
type Loader struct {
	coord *coordinator

	closed    atomic.Bool
	closeOnce sync.Once
}

// Stats is a snapshot of pipeline occupancy.
type Stats struct {
	PoolsInFlight int                  `json:"pools_in_flight"`
	Queues        []workers.QueueStats `json:"queues"`
}

// New validates cfg and starts the pipeline's queues.
func New(cfg Config) (*Loader, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	log.Debug("Starting pipeline: data=%d disk=%d downsample=%d encode=%d decompress=%d quality=%.2f disk_tier=%t",
		cfg.Concurrency.DataLoading, cfg.Concurrency.DiskIO, cfg.Concurrency.Downsampling,
		cfg.Concurrency.Encoding, cfg.Concurrency.Decompression, cfg.CompressionQuality, cfg.Disk != nil)

	return &Loader{coord: newCoordinator(cfg)}, nil
}

// Load requests a thumbnail for display. observer.DidStartLoading runs before
// Load returns; DidSucceed or DidFail follows later unless req is cancelled.
func (l *Loader) Load(req Request, observer LoadObserver) {
	if observer != nil {
		observer.DidStartLoading(req)
	}

	if l.closed.Load() {
		l.reject(kindLoad, req, observer)
		return
	}
	if _, err := l.coord.serial.Submit(func(context.Context) {
		l.coord.register(req, observer, nil, false)
	}); err != nil {
		l.reject(kindLoad, req, observer)
	}
}

// Prefetch warms the caches for req. observer, if any, is told when the work
// finishes, without an outcome.
func (l *Loader) Prefetch(req Request, observer PrefetchObserver) {
	if l.closed.Load() {
		l.reject(kindPrefetch, req, nil)
		return
	}
	if _, err := l.coord.serial.Submit(func(context.Context) {
		l.coord.register(req, nil, observer, true)
	}); err != nil {
		l.reject(kindPrefetch, req, nil)
	}
}

func (l *Loader) reject(kind string, req Request, observer LoadObserver) {
	metrics.PipelineRequestsTotal.WithLabelValues(kind, "rejected").Inc()
	log.Debug("Rejected %s %s for %s: loader closed", kind, req.ID, req.CacheKey)
	if observer != nil {
		observer.DidFail(req)
	}
}

// Cancel withdraws req. The pipeline for its key stops once no other request
// is waiting on it. Cancelling an unknown or already finished request is a
// no-op.
func (l *Loader) Cancel(req Request) {
	_, _ = l.coord.serial.Submit(func(context.Context) {
		l.coord.cancel(req)
	})
}

// InvalidateCache removes key from both cache tiers. Pipelines already in
// flight for key are unaffected; loads issued afterwards never see the
// removed entry.
func (l *Loader) InvalidateCache(key string) {
	_, _ = l.coord.serial.Submit(func(context.Context) {
		l.coord.invalidate(key)
	})
}

// Fetch loads req and waits for the result. When ctx ends first, req is
// cancelled and ctx.Err() is returned.
func (l *Loader) Fetch(ctx context.Context, req Request) (image.Image, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}

	type outcome struct {
		img image.Image
		ok  bool
	}
	done := make(chan outcome, 1)

	l.Load(req, LoadFuncs{
		Success: func(_ Request, img image.Image) { done <- outcome{img: img, ok: true} },
		Failure: func(Request) { done <- outcome{} },
	})

	select {
	case o := <-done:
		if !o.ok {
			if l.closed.Load() {
				return nil, ErrClosed
			}
			return nil, ErrUnavailable
		}
		return o.img, nil
	case <-ctx.Done():
		l.Cancel(req)
		return nil, ctx.Err()
	}
}

// Close stops accepting requests, lets queued work drain and fails anything
// still waiting. Close is idempotent. A Gate that can block must be released
// before calling Close, and Close must not be called from an observer
// callback.
func (l *Loader) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)

		for _, q := range l.coord.stageQueues() {
			q.Close()
		}
		l.coord.serial.Close()
		l.coord.failRemaining()

		log.Debug("Pipeline closed")
	})
}

// Stats returns pool and queue occupancy.
func (l *Loader) Stats() Stats {
	queues := []*workers.Queue{l.coord.serial}
	queues = append(queues, l.coord.stageQueues()...)

	stats := Stats{
		PoolsInFlight: int(l.coord.inFlight.Load()),
		Queues:        make([]workers.QueueStats, 0, len(queues)),
	}
	for _, q := range queues {
		stats.Queues = append(stats.Queues, q.Stats())
	}
	return stats
}
