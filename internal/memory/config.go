package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"thumbcache/internal/logging"
)

const (
	// DefaultMemoryRatio is the fraction of container memory given to the Go heap.
	// The remainder covers libvips allocations made outside the Go heap.
	DefaultMemoryRatio = 0.80

	// CacheShare is the fraction of the Go heap limit the decoded thumbnail
	// memory tier may occupy.
	CacheShare = 0.25

	minCacheEntries = 16
	maxCacheEntries = 1 << 16
)

// Budget sources reported in Budget.Source.
const (
	sourceGOMEMLIMIT  = "GOMEMLIMIT"
	sourceMEMORYLIMIT = "MEMORY_LIMIT"
	sourceNone        = "none"
)

// Budget is the memory the process was given and how it was derived.
type Budget struct {
	// Configured is true when a Go heap limit is in effect.
	Configured bool

	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source string

	// ContainerLimit is MEMORY_LIMIT in bytes, 0 when unset.
	ContainerLimit int64

	// GoMemLimit is the Go heap limit in bytes, 0 when unset.
	GoMemLimit int64

	// Ratio is GoMemLimit / ContainerLimit when derived from MEMORY_LIMIT.
	Ratio float64
}

// CacheEntries returns how many decoded edge x edge RGBA thumbnails fit in
// CacheShare of the heap limit, or 0 when no limit is configured.
func (b Budget) CacheEntries(edge int) int {
	if !b.Configured || b.GoMemLimit <= 0 || edge < 1 {
		return 0
	}
	perEntry := float64(edge) * float64(edge) * 4
	n := float64(b.GoMemLimit) * CacheShare / perEntry
	return int(math.Max(minCacheEntries, math.Min(maxCacheEntries, n)))
}

// ConfigureFromEnv sets the Go heap limit from the container memory limit.
// Call it early in main, before any image is decoded.
//
// Environment variables:
//   - GOMEMLIMIT: takes precedence and is left to the runtime
//   - MEMORY_LIMIT: container memory limit in bytes (Kubernetes Downward API)
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the Go heap (default 0.80)
func ConfigureFromEnv() Budget {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		limit := debug.SetMemoryLimit(-1)
		if limit <= 0 || limit == math.MaxInt64 {
			return Budget{Source: sourceNone}
		}
		return Budget{Configured: true, Source: sourceGOMEMLIMIT, GoMemLimit: limit}
	}

	container, ok := containerLimit()
	if !ok {
		return Budget{Source: sourceNone}
	}

	ratio := ratioFromEnv()
	limit := int64(float64(container) * ratio)
	debug.SetMemoryLimit(limit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		formatBytes(limit), ratio*100, formatBytes(container))

	return Budget{
		Configured:     true,
		Source:         sourceMEMORYLIMIT,
		ContainerLimit: container,
		GoMemLimit:     limit,
		Ratio:          ratio,
	}
}

func containerLimit() (int64, bool) {
	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return 0, false
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit <= 0 {
		logging.Warn("Ignoring MEMORY_LIMIT %q: not a positive byte count", raw)
		return 0, false
	}
	return limit, true
}

func ratioFromEnv() float64 {
	raw := os.Getenv("MEMORY_RATIO")
	if raw == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || !(ratio > 0 && ratio <= 1) {
		logging.Warn("MEMORY_RATIO %q must be in (0, 1], using default %.2f", raw, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

// formatBytes renders b with binary units.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
