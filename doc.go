// Command thumbcache serves image thumbnails over HTTP from a two-tier cache.
//
// Every thumbnail request is keyed by source path, edge size and display
// scale. Requests for the same key share one pipeline run. The pipeline
// probes the persistent tier, falls back to loading the original, then
// downsamples, encodes and stores the result. Decoded bitmaps are kept in a
// bounded in-memory LRU.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or cgroup limits
//  2. Configuration Loading: Reads .env and environment variables, prepares the cache directory
//  3. Pipeline Initialization:
//     - libvips for decode-time shrinking (imaging fallback)
//     - Memory tier (LRU of decoded bitmaps)
//     - Disk tier (sharded files or SQLite), unless DISK_CACHE=none
//     - Original loader (directory or HTTP origin)
//     - Memory monitor gating full-size decodes
//  4. HTTP Server Setup: Routes, logging, metrics and gzip middleware
//  5. Graceful Shutdown: Handles SIGINT/SIGTERM and drains the pipeline
//
// # HTTP Server
//
//  1. Main Server (default port 8080):
//     - GET /api/thumbnail/{path}?size=&scale=
//     - DELETE /api/thumbnail/{path}?size=&scale=
//     - POST /api/prefetch
//     - GET /api/stats
//     - /healthz, /livez, /readyz, /version
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Health check endpoint (/health)
//
// # Environment Variables
//
//   - SOURCE_DIR: Directory of original images (default: /images)
//   - SOURCE_URL: HTTP origin for original images (exclusive with SOURCE_DIR)
//   - SOURCE_RPS: Request rate limit against SOURCE_URL (default: unlimited)
//   - CACHE_DIR: Root of the persistent tier (default: /cache)
//   - DISK_CACHE: file, sqlite or none (default: file)
//   - MEMORY_CACHE_ENTRIES: Decoded bitmaps kept in memory (default: 512)
//   - THUMBNAIL_QUALITY: JPEG quality in (0, 1] (default: 0.8)
//   - DATA_LOADING_WORKERS, DISK_IO_WORKERS, DOWNSAMPLE_WORKERS,
//     ENCODE_WORKERS, DECOMPRESS_WORKERS: Stage queue sizes
//   - PORT, METRICS_PORT, METRICS_ENABLED, LOG_HEALTH_CHECKS, LOG_LEVEL
//   - GOMEMLIMIT: Memory limit (auto-detected from cgroups if not set)
//   - ENV_FILE: Path of the .env file (default: .env)
//
// # Graceful Shutdown
//
//  1. Mark not ready and stop accepting HTTP requests
//  2. Stop metrics collector
//  3. Stop memory monitor, releasing gated decodes
//  4. Close the pipeline (queued work drains, waiting loads fail)
//  5. Close the disk tier
//  6. Shutdown metrics server (if running)
//  7. Shut down libvips
//
// # Related Packages
//
//   - [thumbcache/internal/thumbnail]: Request coalescing and stage pipeline
//   - [thumbcache/internal/cache]: Memory, file and SQLite tiers
//   - [thumbcache/internal/codec]: Downsampling, encoding and decoding
//   - [thumbcache/internal/source]: Original loaders
//   - [thumbcache/internal/handlers]: HTTP request handlers
//   - [thumbcache/internal/startup]: Configuration and startup logging
package main
