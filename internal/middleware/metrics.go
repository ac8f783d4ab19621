package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"thumbcache/internal/metrics"
)

const thumbnailRoute = "/api/thumbnail/"

// routeLabels are the paths recorded verbatim. Thumbnail paths collapse to
// one label and anything else is recorded as "{other}".
var routeLabels = map[string]bool{
	"/":             true,
	"/health":       true,
	"/healthz":      true,
	"/livez":        true,
	"/readyz":       true,
	"/version":      true,
	"/metrics":      true,
	"/api/stats":    true,
	"/api/prefetch": true,
	thumbnailRoute:  true,
}

// MetricsConfig holds configuration for the metrics middleware
type MetricsConfig struct {
	// SkipPaths are path prefixes that are not recorded.
	SkipPaths []string
}

// DefaultMetricsConfig skips scrapes and probes.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

// Metrics records request counts, latency and, for thumbnail requests, the
// outcome the handler reported.
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			r, thumb := withThumb(r)
			rw := newResponseWriter(w)
			start := time.Now()

			next.ServeHTTP(rw, r)

			path := normalizePath(r.URL.Path)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			if thumb.Outcome != "" {
				metrics.HTTPThumbnailOutcomes.WithLabelValues(string(thumb.Outcome)).Inc()
			}
		})
	}
}

// normalizePath maps a request path to a bounded label value.
func normalizePath(path string) string {
	if rest, ok := strings.CutPrefix(path, thumbnailRoute); ok && rest != "" {
		return thumbnailRoute + "{path}"
	}
	if routeLabels[path] {
		return path
	}
	return "{other}"
}
