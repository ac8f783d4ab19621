package startup

import (
	"context"
	"time"

	"thumbcache/internal/cache"
	"thumbcache/internal/source"
	"thumbcache/internal/thumbnail"
)

// OpenDiskCache opens the configured persistent tier. It returns nil when
// the disk tier is disabled.
func OpenDiskCache(config *Config) (cache.Persistent, error) {
	if !config.DiskCacheEnabled {
		return nil, nil
	}
	switch config.DiskCache {
	case DiskCacheSQLite:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return cache.NewSQLite(ctx, config.SQLitePath)
	default:
		return cache.NewDisk(config.ThumbnailDir)
	}
}

// DiskCacheName describes the persistent tier for logs.
func DiskCacheName(config *Config) string {
	if !config.DiskCacheEnabled {
		return DiskCacheNone
	}
	switch config.DiskCache {
	case DiskCacheSQLite:
		return "sqlite (" + config.SQLitePath + ")"
	default:
		return "file (" + config.ThumbnailDir + ")"
	}
}

// NewDataLoader builds the original loader: HTTP when SourceURL is set,
// otherwise the source directory. The second result names it for logs.
func NewDataLoader(config *Config) (thumbnail.DataLoader, string, error) {
	if config.SourceURL != "" {
		httpConfig := source.DefaultHTTPConfig(config.SourceURL)
		httpConfig.RequestsPerSecond = config.SourceRPS
		loader, err := source.NewHTTP(httpConfig)
		if err != nil {
			return nil, "", err
		}
		return loader, "http (" + config.SourceURL + ")", nil
	}
	return source.NewDir(config.SourceDir, source.DefaultMaxBytes), "dir (" + config.SourceDir + ")", nil
}
