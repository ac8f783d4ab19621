package thumbnail

import (
	"math"

	"github.com/google/uuid"
)

// Size is a target size in logical units.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Request describes one caller's interest in one thumbnail.
//
// Requests with equal CacheKey are interchangeable for caching regardless of
// ID; ID only distinguishes callers so that one of them can cancel without
// affecting the others.
type Request struct {
	// CacheKey identifies the output: source, size, scale and any variant.
	CacheKey string

	// Source is handed to the DataLoader to fetch the original bytes.
	Source string

	TargetSize Size
	Scale      float64

	ID uuid.UUID

	// UserContext is returned untouched in observer callbacks.
	UserContext map[string]any
}

// NewRequest builds a request with a fresh ID.
func NewRequest(cacheKey, source string, size Size, scale float64) Request {
	return Request{
		CacheKey:   cacheKey,
		Source:     source,
		TargetSize: size,
		Scale:      scale,
		ID:         uuid.New(),
	}
}

// PixelSize is the edge of the square, in device pixels, that the
// downsampled bitmap must fit within. A non-positive or NaN scale counts
// as 1.
func (r Request) PixelSize() int {
	scale := r.Scale
	if !(scale > 0) {
		scale = 1
	}
	n := int(math.Round(float64(max(r.TargetSize.Width, r.TargetSize.Height)) * scale))
	if n < 1 {
		return 1
	}
	return n
}
