package handlers

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"thumbcache/internal/cache"
	"thumbcache/internal/codec"
	"thumbcache/internal/logging"
	"thumbcache/internal/thumbnail"
)

var log = logging.For("handlers")

const (
	// DefaultSize is the thumbnail edge in points when a request gives none.
	DefaultSize = 256
	// MaxSize caps the requested edge in points.
	MaxSize = 1024
	// MaxScale caps the requested display scale.
	MaxScale = 4.0
	// MaxPrefetchPaths caps one prefetch batch.
	MaxPrefetchPaths = 1000
)

// Pipeline is the part of thumbnail.Loader the HTTP surface uses.
type Pipeline interface {
	Fetch(ctx context.Context, req thumbnail.Request) (image.Image, error)
	Prefetch(req thumbnail.Request, observer thumbnail.PrefetchObserver)
	InvalidateCache(key string)
	Stats() thumbnail.Stats
}

// Encoder turns a delivered bitmap into response bytes.
type Encoder func(img image.Image, quality float64) ([]byte, error)

// MemoryTier reports the size of the memory cache.
type MemoryTier interface {
	Len() int
}

// DiskTier reports the size of the persistent cache.
type DiskTier interface {
	Stats() (cache.Stats, error)
}

// Options configures Handlers. Memory and Disk are optional and only feed
// /api/stats. EncodedEntries bounds the encoded response cache.
type Options struct {
	Memory         MemoryTier
	Disk           DiskTier
	Encode         Encoder
	Quality        float64
	EncodedEntries int
}

type Handlers struct {
	pipeline Pipeline
	memory   MemoryTier
	disk     DiskTier
	encode   Encoder
	quality  float64

	responses *encodedCache

	ready     atomic.Bool
	startTime time.Time
}

func New(pipeline Pipeline, opts Options) *Handlers {
	if opts.Quality <= 0 || opts.Quality > 1 {
		opts.Quality = thumbnail.DefaultCompressionQuality
	}
	if opts.Encode == nil {
		opts.Encode = codec.Encode
	}
	return &Handlers{
		pipeline:  pipeline,
		memory:    opts.Memory,
		disk:      opts.Disk,
		encode:    opts.Encode,
		quality:   opts.Quality,
		responses: newEncodedCache(opts.EncodedEntries),
		startTime: time.Now(),
	}
}

// SetReady flips the readiness probe.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}

// RegisterRoutes attaches every API and probe route to r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET", "HEAD")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", h.GetPipelineStats).Methods("GET")
	api.HandleFunc("/prefetch", h.Prefetch).Methods("POST")
	api.HandleFunc("/thumbnail/{path:.*}", h.GetThumbnail).Methods("GET", "HEAD")
	api.HandleFunc("/thumbnail/{path:.*}", h.InvalidateThumbnail).Methods("DELETE")
}
