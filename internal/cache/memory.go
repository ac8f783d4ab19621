package cache

import (
	"fmt"
	"image"

	lru "github.com/hashicorp/golang-lru/v2"

	"thumbcache/internal/metrics"
)

// DefaultMemoryEntries is the memory tier capacity used when none is configured.
const DefaultMemoryEntries = 512

// Memory is the decoded-bitmap tier. It holds at most a fixed number of
// bitmaps and evicts in least-recently-used order. Safe for concurrent use.
type Memory struct {
	entries *lru.Cache[string, image.Image]
}

// NewMemory creates a memory tier holding up to size bitmaps.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	entries, err := lru.NewWithEvict[string, image.Image](size, func(string, image.Image) {
		metrics.CacheEvictionsTotal.WithLabelValues(tierMemory).Inc()
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &Memory{entries: entries}, nil
}

// Get returns the bitmap stored under key.
func (m *Memory) Get(key string) (image.Image, bool) {
	img, ok := m.entries.Get(key)
	recordLookup(tierMemory, ok)
	return img, ok
}

// Insert stores img under key, replacing any previous value.
func (m *Memory) Insert(key string, img image.Image) {
	if img == nil {
		return
	}
	m.entries.Add(key, img)
	metrics.CacheWritesTotal.WithLabelValues(tierMemory, statusSuccess).Inc()
}

// Remove drops key. Removing an absent key is a no-op.
func (m *Memory) Remove(key string) {
	m.entries.Remove(key)
}

// Len returns the number of cached bitmaps.
func (m *Memory) Len() int {
	return m.entries.Len()
}

// Purge drops every entry.
func (m *Memory) Purge() {
	m.entries.Purge()
}
