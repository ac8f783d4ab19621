package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"thumbcache/internal/filesystem"
	"thumbcache/internal/logging"
	"thumbcache/internal/metrics"
)

const (
	diskEntryExt = ".thumb"

	// maxKeyLen bounds the key header so a corrupt file cannot force a huge
	// allocation.
	maxKeyLen = 64 * 1024
)

var errKeyMismatch = errors.New("cache entry belongs to a different key")

// Disk stores encoded thumbnails as files under a root directory. Files are
// named by the xxHash64 of the cache key and sharded by the first two hex
// digits. Each file starts with the full key so hash collisions read as
// misses rather than wrong images.
type Disk struct {
	dir   string
	retry filesystem.RetryConfig
}

// NewDisk creates a disk tier rooted at dir, creating it if necessary.
func NewDisk(dir string) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("disk cache directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create disk cache directory: %w", err)
	}
	logging.Info("Disk cache directory: %s", dir)
	return &Disk{dir: dir, retry: filesystem.DefaultRetryConfig()}, nil
}

// Dir returns the cache root.
func (d *Disk) Dir() string {
	return d.dir
}

// pathFor maps a cache key to its file path.
func (d *Disk) pathFor(key string) string {
	name := fmt.Sprintf("%016x", xxhash.Sum64String(key))
	return filepath.Join(d.dir, name[:2], name+diskEntryExt)
}

// Get returns the encoded bytes stored under key. Unreadable or foreign
// entries are reported as misses.
func (d *Disk) Get(key string) ([]byte, bool) {
	path := d.pathFor(key)

	raw, err := filesystem.ReadFileWithRetry(path, d.retry)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Disk cache read failed for %s: %v", path, err)
		}
		recordLookup(tierDisk, false)
		return nil, false
	}

	data, err := decodeEntry(key, raw)
	if err != nil {
		logging.Debug("Disk cache entry %s rejected: %v", path, err)
		recordLookup(tierDisk, false)
		return nil, false
	}

	// Access time drives Trim ordering.
	now := time.Now()
	_ = os.Chtimes(path, now, now)

	recordLookup(tierDisk, true)
	return data, true
}

// Insert writes data under key atomically.
func (d *Disk) Insert(key string, data []byte) error {
	if len(data) == 0 {
		return errors.New("refusing to cache empty data")
	}
	err := filesystem.WriteFileAtomic(d.pathFor(key), encodeEntry(key, data), 0o644, d.retry)
	recordWrite(tierDisk, err)
	if err != nil {
		return fmt.Errorf("write disk cache entry: %w", err)
	}
	return nil
}

// Remove deletes the entry for key. Missing entries are not an error.
func (d *Disk) Remove(key string) error {
	if err := filesystem.Remove(d.pathFor(key), d.retry); err != nil {
		return fmt.Errorf("remove disk cache entry: %w", err)
	}
	return nil
}

type diskEntry struct {
	path    string
	size    int64
	modTime time.Time
}

func (d *Disk) walk() ([]diskEntry, error) {
	var entries []diskEntry
	err := filepath.WalkDir(d.dir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if de.IsDir() || !strings.HasSuffix(de.Name(), diskEntryExt) {
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, diskEntry{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	return entries, err
}

// Stats reports the number of entries and their total size on disk.
func (d *Disk) Stats() (Stats, error) {
	entries, err := d.walk()
	if err != nil {
		return Stats{}, fmt.Errorf("scan disk cache: %w", err)
	}
	var s Stats
	for _, e := range entries {
		s.Entries++
		s.Bytes += e.size
	}
	return s, nil
}

// Trim removes the least recently accessed entries until the cache holds at
// most maxBytes.
func (d *Disk) Trim(maxBytes int64) (int, error) {
	entries, err := d.walk()
	if err != nil {
		return 0, fmt.Errorf("scan disk cache: %w", err)
	}

	var total int64
	for _, e := range entries {
		total += e.size
	}
	if total <= maxBytes {
		return 0, nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modTime.Before(entries[j].modTime)
	})

	removed := 0
	for _, e := range entries {
		if total <= maxBytes {
			break
		}
		if err := filesystem.Remove(e.path, d.retry); err != nil {
			logging.Warn("Failed to trim disk cache entry %s: %v", e.path, err)
			continue
		}
		total -= e.size
		removed++
	}

	metrics.CacheEvictionsTotal.WithLabelValues(tierDisk).Add(float64(removed))
	logging.Info("Trimmed %d disk cache entries, %d bytes remain", removed, total)
	return removed, nil
}

// Close is a no-op; it exists so Disk satisfies Persistent.
func (d *Disk) Close() error {
	return nil
}

// Entry layout: uint32 big-endian key length, key bytes, payload.
func encodeEntry(key string, data []byte) []byte {
	buf := make([]byte, 4+len(key)+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(key)))
	copy(buf[4:], key)
	copy(buf[4+len(key):], data)
	return buf
}

func decodeEntry(key string, raw []byte) ([]byte, error) {
	if len(raw) < 4 {
		return nil, errors.New("entry too short")
	}
	n := binary.BigEndian.Uint32(raw)
	if n > maxKeyLen || int(n) > len(raw)-4 {
		return nil, errors.New("corrupt key header")
	}
	if string(raw[4:4+n]) != key {
		return nil, errKeyMismatch
	}
	data := raw[4+n:]
	if len(data) == 0 {
		return nil, errors.New("empty payload")
	}
	return data, nil
}
