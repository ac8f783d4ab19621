package workers

import (
	"os"
	"runtime"
	"strconv"

	"thumbcache/internal/logging"
)

// Count returns a worker count proportional to the CPUs available to the
// process. It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//
// The limit parameter caps the worker count. Use 0 for no limit.
func Count(multiplier float64, limit int) int {
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForStage resolves the concurrency of one pipeline stage.
//
// Precedence: the environment variable named by envVar, then configured,
// then fallback. Overrides are capped at four workers per available CPU so a
// typo cannot spawn thousands of goroutines.
func ForStage(envVar string, configured, fallback int) int {
	if envVar != "" {
		if override := os.Getenv(envVar); override != "" {
			count, err := strconv.Atoi(override)
			if err == nil && count > 0 {
				if ceiling := Count(4.0, 0); count > ceiling {
					logging.Warn("%s=%d exceeds %d, capping", envVar, count, ceiling)
					return ceiling
				}
				return count
			}
			logging.Warn("Invalid %s %q, ignoring", envVar, override)
		}
	}

	if configured > 0 {
		return configured
	}
	return fallback
}
