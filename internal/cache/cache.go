package cache

import "thumbcache/internal/metrics"

const (
	tierMemory = "memory"
	tierDisk   = "disk"

	statusSuccess = "success"
	statusFailure = "failure"
)

// Stats describes the contents of a persistent tier.
type Stats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Persistent is an encoded-bytes tier that survives restarts. Both Disk and
// SQLite implement it.
type Persistent interface {
	Get(key string) ([]byte, bool)
	Insert(key string, data []byte) error
	Remove(key string) error

	// Stats walks the tier and reports its size.
	Stats() (Stats, error)

	// Trim deletes least recently used entries until the tier holds at most
	// maxBytes of payload. It returns the number of entries removed.
	Trim(maxBytes int64) (int, error)

	Close() error
}

func recordLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.CacheLookupsTotal.WithLabelValues(tier, result).Inc()
}

func recordWrite(tier string, err error) {
	status := statusSuccess
	if err != nil {
		status = statusFailure
	}
	metrics.CacheWritesTotal.WithLabelValues(tier, status).Inc()
}
