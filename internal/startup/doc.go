// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig],
// optionally seeded from a .env file with [LoadEnvFile]. The following
// environment variables are supported:
//
//   - SOURCE_DIR: Directory of original images (default: /images)
//   - SOURCE_URL: Base URL of original images; mutually exclusive with SOURCE_DIR
//   - SOURCE_RPS: Request rate limit for SOURCE_URL (default: unlimited)
//   - CACHE_DIR: Directory for the disk cache tier (default: /cache)
//   - DISK_CACHE: Disk tier backend - file, sqlite or none (default: file)
//   - MEMORY_CACHE_ENTRIES: Decoded bitmaps kept in memory (default: 512)
//   - THUMBNAIL_QUALITY: JPEG quality in (0, 1] (default: 0.8)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - DATA_LOADING_WORKERS, DISK_IO_WORKERS, DOWNSAMPLE_WORKERS,
//     ENCODE_WORKERS, DECOMPRESS_WORKERS: Per-stage worker overrides
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: See package memory
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogMemoryConfig]: Memory limit configuration
//   - [LogPipelineInit]: Loader, disk tier and stage workers
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownStepComplete], [LogShutdownComplete]
//
// # Example Usage
//
//	if err := startup.LoadEnvFile(".env"); err != nil {
//	    startup.LogFatal("Environment error: %v", err)
//	}
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
package startup
