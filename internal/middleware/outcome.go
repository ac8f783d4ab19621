package middleware

import (
	"context"
	"net/http"
)

// Outcome names how a thumbnail API request was answered.
type Outcome string

// Outcome values reported by the handlers. They double as metric labels.
const (
	OutcomeEncoded      Outcome = "encoded"
	OutcomeReused       Outcome = "reused" // encoded response of an unchanged bitmap
	OutcomeNotModified  Outcome = "not_modified"
	OutcomeUnavailable  Outcome = "unavailable"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeClosed       Outcome = "closed"
	OutcomeCanceled     Outcome = "canceled"
	OutcomeBadRequest   Outcome = "bad_request"
	OutcomeEncodeFailed Outcome = "encode_failed"
	OutcomeInvalidated  Outcome = "invalidated"
	OutcomePrefetched   Outcome = "prefetched"
)

// Thumb is what a handler reports about the thumbnail request it served.
type Thumb struct {
	CacheKey string
	Outcome  Outcome
}

type thumbKey struct{}

// withThumb returns r carrying a Thumb record. A record attached by an outer
// middleware is reused so every layer sees the same annotation.
func withThumb(r *http.Request) (*http.Request, *Thumb) {
	if t, ok := r.Context().Value(thumbKey{}).(*Thumb); ok {
		return r, t
	}
	t := &Thumb{}
	return r.WithContext(context.WithValue(r.Context(), thumbKey{}, t)), t
}

// Annotate records the cache key and outcome of a thumbnail request for the
// access log and metrics. Outside the middleware chain it does nothing.
func Annotate(r *http.Request, cacheKey string, outcome Outcome) {
	if t, ok := r.Context().Value(thumbKey{}).(*Thumb); ok {
		t.CacheKey = cacheKey
		t.Outcome = outcome
	}
}
