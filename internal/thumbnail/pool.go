package thumbnail

import (
	"image"

	"github.com/google/uuid"

	"thumbcache/internal/workers"
)

type loadEntry struct {
	req      Request
	observer LoadObserver
}

type prefetchEntry struct {
	req      Request
	observer PrefetchObserver
}

// requestPool groups every outstanding request for one cache key. It is only
// touched from the coordination queue.
type requestPool struct {
	key string

	// req is the request that created the pool. Its Source, TargetSize and
	// Scale drive the pipeline for every member.
	req Request

	loads      []loadEntry
	prefetches []prefetchEntry

	stage stage
	task  *workers.Task
}

func newRequestPool(req Request) *requestPool {
	return &requestPool{key: req.CacheKey, req: req}
}

func (p *requestPool) addLoad(req Request, observer LoadObserver) {
	p.loads = append(p.loads, loadEntry{req: req, observer: observer})
}

func (p *requestPool) addPrefetch(req Request, observer PrefetchObserver) {
	p.prefetches = append(p.prefetches, prefetchEntry{req: req, observer: observer})
}

// remove drops the first request with the given ID. It reports whether one
// was found.
func (p *requestPool) remove(id uuid.UUID) bool {
	for i, e := range p.loads {
		if e.req.ID == id {
			p.loads = append(p.loads[:i], p.loads[i+1:]...)
			return true
		}
	}
	for i, e := range p.prefetches {
		if e.req.ID == id {
			p.prefetches = append(p.prefetches[:i], p.prefetches[i+1:]...)
			return true
		}
	}
	return false
}

func (p *requestPool) empty() bool {
	return len(p.loads) == 0 && len(p.prefetches) == 0
}

// releasePrefetches notifies and drops every prefetch member. It returns the
// number released.
func (p *requestPool) releasePrefetches() int {
	n := len(p.prefetches)
	for _, e := range p.prefetches {
		if e.observer != nil {
			e.observer.DidFinishPrefetching(e.req)
		}
	}
	p.prefetches = nil
	return n
}

// deliver sends exactly one terminal callback to every load member and drops
// them. A nil image means failure.
func (p *requestPool) deliver(img image.Image) int {
	n := len(p.loads)
	for _, e := range p.loads {
		if e.observer == nil {
			continue
		}
		if img != nil {
			e.observer.DidSucceed(e.req, img)
		} else {
			e.observer.DidFail(e.req)
		}
	}
	p.loads = nil
	return n
}
