// Package middleware provides HTTP middleware for the thumbnail server.
//
// It includes:
//   - Access logging in W3C Extended Log Format, with the cache key and
//     outcome reported by thumbnail handlers through [Annotate]
//   - Prometheus request metrics with bounded path labels and per-outcome
//     thumbnail counters
//   - Gzip compression of JSON and other compressible responses
package middleware
