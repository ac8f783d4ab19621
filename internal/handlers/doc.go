// Package handlers exposes the thumbnail pipeline over HTTP.
//
// Routes:
//   - GET/HEAD /api/thumbnail/{path}?size=&scale= serves an encoded thumbnail
//   - DELETE /api/thumbnail/{path}?size=&scale= drops it from both cache tiers
//   - POST /api/prefetch queues cache warming for a batch of paths
//   - GET /api/stats reports queue, pool and cache occupancy
//   - /healthz, /livez, /readyz and /version for probes
package handlers
