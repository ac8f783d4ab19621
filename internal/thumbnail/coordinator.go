package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"thumbcache/internal/logging"
	"thumbcache/internal/metrics"
	"thumbcache/internal/workers"
)

var log = logging.For("thumbnail")

const (
	kindLoad     = "load"
	kindPrefetch = "prefetch"
)

// result is the outcome of one stage run. Exactly one of data or img is set
// on success.
type result struct {
	data []byte
	img  image.Image
	err  error
}

func (r result) ok() bool {
	return r.err == nil
}

// coordinator owns the pool map. Every read or write of pools happens inside
// a task on serial; stage work runs on the stage queues and hands its result
// back to serial.
type coordinator struct {
	cfg Config

	serial        *workers.Queue
	dataLoading   *workers.Queue
	diskIO        *workers.Queue
	downsampling  *workers.Queue
	encoding      *workers.Queue
	decompression *workers.Queue

	pools    map[string]*requestPool
	inFlight atomic.Int64

	// invalidating counts disk removals per key that have not finished yet.
	// New pools for such a key skip the disk probe.
	invalidating map[string]int
}

func newCoordinator(cfg Config) *coordinator {
	cc := cfg.Concurrency
	return &coordinator{
		cfg:           cfg,
		serial:        workers.NewQueue("coordinator", 1),
		dataLoading:   workers.NewQueue("data_loading", cc.DataLoading),
		diskIO:        workers.NewQueue("disk_io", cc.DiskIO),
		downsampling:  workers.NewQueue("downsampling", cc.Downsampling),
		encoding:      workers.NewQueue("encoding", cc.Encoding),
		decompression: workers.NewQueue("decompression", cc.Decompression),
		pools:         make(map[string]*requestPool),
		invalidating:  make(map[string]int),
	}
}

// stageQueues lists the stage queues in pipeline order.
func (c *coordinator) stageQueues() []*workers.Queue {
	return []*workers.Queue{c.diskIO, c.dataLoading, c.downsampling, c.encoding, c.decompression}
}

func (c *coordinator) queueFor(s stage) *workers.Queue {
	switch s {
	case stageProbeDisk:
		return c.diskIO
	case stageFetchOriginal:
		return c.dataLoading
	case stageDownsample:
		return c.downsampling
	case stageEncode:
		return c.encoding
	case stageDecompress:
		return c.decompression
	default:
		return nil
	}
}

// register adds a load or prefetch request. Runs on serial.
func (c *coordinator) register(req Request, load LoadObserver, prefetch PrefetchObserver, isPrefetch bool) {
	kind := kindLoad
	if isPrefetch {
		kind = kindPrefetch
	}

	if pool, ok := c.pools[req.CacheKey]; ok {
		if isPrefetch {
			pool.addPrefetch(req, prefetch)
		} else {
			pool.addLoad(req, load)
		}
		metrics.PipelineRequestsTotal.WithLabelValues(kind, "coalesced").Inc()
		log.Debug("Coalesced %s %s into pool for %s", kind, req.ID, req.CacheKey)
		return
	}

	pool := newRequestPool(req)
	if isPrefetch {
		pool.addPrefetch(req, prefetch)
	} else {
		pool.addLoad(req, load)
	}
	c.pools[req.CacheKey] = pool
	c.inFlight.Add(1)
	metrics.PipelineRequestsTotal.WithLabelValues(kind, "new").Inc()

	if img, ok := c.cfg.Memory.Get(req.CacheKey); ok && img != nil {
		log.Debug("Memory hit for %s", req.CacheKey)
		c.finish(pool, img)
		return
	}

	probeDisk := c.cfg.Disk != nil && c.invalidating[req.CacheKey] == 0
	if !probeDisk && c.cfg.Disk != nil {
		log.Debug("Skipping disk probe for %s: removal pending", req.CacheKey)
	}
	c.dispatch(pool, firstStage(probeDisk), nil)
}

// dispatch submits stage s for pool with the previous stage's output. Runs
// on serial.
func (c *coordinator) dispatch(pool *requestPool, s stage, in *result) {
	if s == stageDeliver {
		var img image.Image
		if in != nil && in.ok() {
			img = in.img
		}
		c.finish(pool, img)
		return
	}

	pool.stage = s
	var input result
	if in != nil {
		input = *in
	}

	task, err := c.queueFor(s).Submit(func(ctx context.Context) {
		out := c.run(ctx, pool.req, s, input)
		if _, err := c.serial.Submit(func(context.Context) {
			c.advance(pool, s, out)
		}); err != nil {
			log.Debug("Dropping %s result for %s: %v", s, pool.key, err)
		}
	})
	if err != nil {
		log.Debug("Cannot dispatch %s for %s: %v", s, pool.key, err)
		c.finish(pool, nil)
		return
	}
	pool.task = task
}

// advance handles a finished stage. Runs on serial.
func (c *coordinator) advance(pool *requestPool, s stage, out result) {
	if c.pools[pool.key] != pool {
		metrics.PipelineDiscardedResults.Inc()
		log.Debug("Discarding %s result for unregistered pool %s", s, pool.key)
		return
	}
	pool.task = nil

	if !out.ok() && s != stageProbeDisk {
		log.Debug("Stage %s failed for %s: %v", s, pool.key, out.err)
	}

	if s == stageEncode && out.ok() {
		c.writeDisk(pool.key, out.data)
	}

	next := transition(s, out.ok())
	if next == stageFetchOriginal {
		c.dispatch(pool, next, nil)
		return
	}
	c.dispatch(pool, next, &out)
}

// run executes stage s on its stage queue.
func (c *coordinator) run(ctx context.Context, req Request, s stage, in result) (out result) {
	start := time.Now()
	defer func() {
		status := "success"
		if !out.ok() {
			status = "failure"
		}
		metrics.PipelineStageDuration.WithLabelValues(s.String()).Observe(time.Since(start).Seconds())
		metrics.PipelineStageResults.WithLabelValues(s.String(), status).Inc()
	}()

	if err := ctx.Err(); err != nil {
		return result{err: err}
	}

	switch s {
	case stageProbeDisk:
		data, ok := c.cfg.Disk.Get(req.CacheKey)
		if !ok || len(data) == 0 {
			return result{err: errDiskMiss}
		}
		return result{data: data}

	case stageFetchOriginal:
		data, err := c.cfg.DataLoader.LoadData(ctx, req)
		if err != nil {
			return result{err: fmt.Errorf("%w: %w", ErrDataUnavailable, err)}
		}
		if len(data) == 0 {
			return result{err: fmt.Errorf("%w: empty data for %s", ErrDataUnavailable, req.Source)}
		}
		return result{data: data}

	case stageDownsample:
		if c.cfg.Gate != nil && !c.cfg.Gate.WaitIfPaused() {
			return result{err: fmt.Errorf("%w: memory gate closed", ErrDecode)}
		}
		img, err := c.cfg.Codec.Downsample(in.data, req.PixelSize())
		if err != nil {
			return result{err: fmt.Errorf("%w: %w", ErrDecode, err)}
		}
		return result{img: img}

	case stageEncode:
		data, err := c.cfg.Codec.Encode(in.img, c.cfg.CompressionQuality)
		if err != nil {
			return result{err: fmt.Errorf("%w: %w", ErrEncode, err)}
		}
		if len(data) == 0 {
			return result{err: fmt.Errorf("%w: empty output", ErrEncode)}
		}
		return result{data: data}

	case stageDecompress:
		img, err := c.cfg.Codec.Decode(in.data)
		if err != nil {
			return result{err: fmt.Errorf("%w: %w", ErrDecode, err)}
		}
		c.cfg.Memory.Insert(req.CacheKey, img)
		return result{img: img}
	}

	return result{err: fmt.Errorf("unexpected stage %s", s)}
}

var errDiskMiss = errors.New("disk cache miss")

// writeDisk stores encoded bytes in the disk tier without waiting. Failures
// are only logged. Once the disk queue is closed the write runs inline.
func (c *coordinator) writeDisk(key string, data []byte) {
	if c.cfg.Disk == nil {
		return
	}
	write := func(context.Context) {
		start := time.Now()
		err := c.cfg.Disk.Insert(key, data)
		metrics.PipelineStageDuration.WithLabelValues(diskWriteLabel).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.PipelineStageResults.WithLabelValues(diskWriteLabel, "failure").Inc()
			log.Warn("Disk cache write failed for %s: %v", key, err)
			return
		}
		metrics.PipelineStageResults.WithLabelValues(diskWriteLabel, "success").Inc()
	}
	if _, err := c.diskIO.Submit(write); err != nil {
		write(context.Background())
	}
}

// finish delivers img (nil for failure) to the pool and unregisters it. Runs
// on serial.
func (c *coordinator) finish(pool *requestPool, img image.Image) {
	pool.stage = stageDeliver
	if n := pool.releasePrefetches(); n > 0 {
		metrics.PipelinePrefetchesReleased.Add(float64(n))
	}

	status := "success"
	if img == nil {
		status = "failure"
	}
	if n := pool.deliver(img); n > 0 {
		metrics.PipelineDeliveriesTotal.WithLabelValues(status).Add(float64(n))
	}

	c.unregister(pool)
}

func (c *coordinator) unregister(pool *requestPool) {
	if c.pools[pool.key] == pool {
		delete(c.pools, pool.key)
		c.inFlight.Add(-1)
	}
}

// cancel removes one request from its pool. Runs on serial.
func (c *coordinator) cancel(req Request) {
	pool, ok := c.pools[req.CacheKey]
	if !ok || !pool.remove(req.ID) {
		metrics.PipelineCancellationsTotal.WithLabelValues("not_found").Inc()
		return
	}

	if !pool.empty() {
		metrics.PipelineCancellationsTotal.WithLabelValues("removed").Inc()
		return
	}

	if pool.task != nil {
		pool.task.Cancel()
		pool.task = nil
	}
	c.unregister(pool)
	metrics.PipelineCancellationsTotal.WithLabelValues("aborted").Inc()
	log.Debug("Aborted pipeline for %s at %s", pool.key, pool.stage)
}

// invalidate removes key from both tiers. Runs on serial. The disk removal
// is handed to the disk queue, or runs inline once that queue is closed.
// Until it completes, loads for key go to the original instead of the disk
// tier.
func (c *coordinator) invalidate(key string) {
	c.cfg.Memory.Remove(key)
	metrics.CacheInvalidationsTotal.Inc()

	if c.cfg.Disk == nil {
		return
	}
	removeDisk := func() {
		if err := c.cfg.Disk.Remove(key); err != nil {
			log.Warn("Disk cache remove failed for %s: %v", key, err)
		}
	}

	c.invalidating[key]++
	_, err := c.diskIO.Submit(func(context.Context) {
		removeDisk()
		if _, err := c.serial.Submit(func(context.Context) {
			c.removalDone(key)
		}); err != nil {
			log.Debug("Dropping removal completion for %s: %v", key, err)
		}
	})
	if err != nil {
		removeDisk()
		c.removalDone(key)
	}
}

// removalDone marks one disk removal for key as finished. Runs on serial.
func (c *coordinator) removalDone(key string) {
	if c.invalidating[key] <= 1 {
		delete(c.invalidating, key)
		return
	}
	c.invalidating[key]--
}

// failRemaining delivers failure to every pool still registered. Only safe
// once serial has been closed.
func (c *coordinator) failRemaining() {
	for _, pool := range c.pools {
		c.finish(pool, nil)
	}
}
