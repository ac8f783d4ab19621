package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"thumbcache/internal/logging"
)

// LoggingConfig holds configuration for the access log middleware
type LoggingConfig struct {
	SkipPaths       []string
	LogHealthChecks bool
}

// DefaultLoggingConfig logs everything except /metrics scrapes.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{"/metrics"},
		LogHealthChecks: true,
	}
}

var probePaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

func (c LoggingConfig) skip(path string) bool {
	for _, p := range c.SkipPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return !c.LogHealthChecks && probePaths[path]
}

// Logger writes one access log line per request in W3C Extended Log Format,
// extended with the cache key and outcome a thumbnail handler reported:
//
//	date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes
//	time-taken x-cache-key x-outcome sc(Content-Encoding) cs(User-Agent) cs(Referer)
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			r, thumb := withThumb(r)
			rw := newResponseWriter(w)
			start := time.Now()

			next.ServeHTTP(rw, r)

			entry := accessEntry{
				at:       time.Now().UTC(),
				clientIP: getClientIP(r),
				request:  r,
				rw:       rw,
				took:     time.Since(start),
				thumb:    *thumb,
			}
			//nolint:gosec // G706: every request-derived field goes through sanitizeLogField.
			logging.Printf("%s", entry)
		})
	}
}

type accessEntry struct {
	at       time.Time
	clientIP string
	request  *http.Request
	rw       *responseWriter
	took     time.Duration
	thumb    Thumb
}

func (e accessEntry) String() string {
	r := e.request
	userAgent := field(r.Header.Get("User-Agent"))
	if userAgent != "-" {
		userAgent = escapeW3CField(userAgent)
	}
	outcome := string(e.thumb.Outcome)

	return fmt.Sprintf("%s %s %s %s %s %s %d %d %d %s %s %s %s %s",
		e.at.Format("2006-01-02"),
		e.at.Format("15:04:05"),
		field(e.clientIP),
		field(r.Method),
		field(r.URL.Path),
		field(r.URL.RawQuery),
		e.rw.statusCode,
		e.rw.bytesWritten,
		e.took.Milliseconds(),
		field(e.thumb.CacheKey),
		field(outcome),
		field(e.rw.Header().Get("Content-Encoding")),
		userAgent,
		field(r.Header.Get("Referer")),
	)
}

// field sanitizes s and substitutes "-" for an empty value.
func field(s string) string {
	s = sanitizeLogField(s)
	if s == "" {
		return "-"
	}
	return s
}

// sanitizeLogField drops control characters so a request cannot forge log
// lines or emit terminal escapes. Newlines become spaces; tabs are kept.
func sanitizeLogField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteRune(' ')
		case r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// escapeW3CField quotes values containing whitespace or quotes, doubling
// embedded quotes.
func escapeW3CField(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
