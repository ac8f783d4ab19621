package handlers

import (
	"fmt"
	"image"
	"reflect"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"thumbcache/internal/mediatypes"
)

// DefaultEncodedEntries is the number of encoded responses kept when
// Options.EncodedEntries is not set.
const DefaultEncodedEntries = 512

// encodedThumb is a response body ready to send, together with the bitmap it
// was encoded from.
type encodedThumb struct {
	img      image.Image
	data     []byte
	etag     string
	mimeType string
}

// encodedCache maps cache keys to their last encoded response. An entry is
// only reused while the pipeline keeps delivering the same bitmap, which is
// the case for memory tier hits.
type encodedCache struct {
	entries *lru.Cache[string, encodedThumb]
}

func newEncodedCache(size int) *encodedCache {
	if size < 1 {
		size = DefaultEncodedEntries
	}
	entries, err := lru.New[string, encodedThumb](size)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &encodedCache{entries: entries}
}

func (c *encodedCache) get(key string, img image.Image) (encodedThumb, bool) {
	thumb, ok := c.entries.Get(key)
	if !ok || !sameBitmap(thumb.img, img) {
		return encodedThumb{}, false
	}
	return thumb, true
}

func (c *encodedCache) add(key string, img image.Image, data []byte) encodedThumb {
	thumb := encodedThumb{
		img:      img,
		data:     data,
		etag:     fmt.Sprintf(`"%016x"`, xxhash.Sum64(data)),
		mimeType: mediatypes.Sniff(data).MimeType(),
	}
	c.entries.Add(key, thumb)
	return thumb
}

func (c *encodedCache) remove(key string) {
	c.entries.Remove(key)
}

// sameBitmap reports whether a and b are the same image value. Images of a
// type that cannot be compared are never the same.
func sameBitmap(a, b image.Image) bool {
	if a == nil || b == nil {
		return false
	}
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	return a == b
}

// encoded returns the response for key, encoding img only when the cached
// response was built from a different bitmap. reused reports a cache hit.
func (h *Handlers) encoded(key string, img image.Image) (encodedThumb, bool, error) {
	if thumb, ok := h.responses.get(key, img); ok {
		return thumb, true, nil
	}
	data, err := h.encode(img, h.quality)
	if err != nil {
		return encodedThumb{}, false, err
	}
	return h.responses.add(key, img, data), false, nil
}
