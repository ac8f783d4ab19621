package source

import (
	"context"
	"errors"
	"time"

	"thumbcache/internal/logging"
	"thumbcache/internal/metrics"
	"thumbcache/internal/thumbnail"
)

var log = logging.For("source")

// DefaultMaxBytes caps the size of one original image.
const DefaultMaxBytes int64 = 64 << 20

var (
	ErrNotFound    = errors.New("source not found")
	ErrUnsupported = errors.New("source is not a supported image")
	ErrTooLarge    = errors.New("source exceeds size limit")
)

// Func adapts a function that only needs the source descriptor.
type Func func(ctx context.Context, source string) ([]byte, error)

// LoadData implements thumbnail.DataLoader.
func (f Func) LoadData(ctx context.Context, req thumbnail.Request) ([]byte, error) {
	return f(ctx, req.Source)
}

// observe records the metrics of one fetch.
func observe(loader string, start time.Time, n int, err error) {
	metrics.SourceFetchDuration.WithLabelValues(loader).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceFetchErrors.WithLabelValues(loader).Inc()
		return
	}
	metrics.SourceBytesFetched.WithLabelValues(loader).Add(float64(n))
}
