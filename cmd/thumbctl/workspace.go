package main

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"thumbcache/internal/cache"
	"thumbcache/internal/codec"
	"thumbcache/internal/logging"
	"thumbcache/internal/mediatypes"
	"thumbcache/internal/startup"
	"thumbcache/internal/thumbnail"
)

// workspace is the configuration plus whichever tiers a command opened.
type workspace struct {
	opts     *options
	config   *startup.Config
	disk     cache.Persistent
	loader   thumbnail.DataLoader
	pipeline *thumbnail.Loader
}

// openWorkspace loads configuration and opens the disk tier. With
// withPipeline it also starts a pipeline over a fresh memory tier.
func openWorkspace(opts *options, withPipeline bool) (*workspace, error) {
	config, err := startup.LoadToolConfig()
	if err != nil {
		return nil, err
	}

	disk, err := startup.OpenDiskCache(config)
	if err != nil {
		return nil, fmt.Errorf("open disk cache: %w", err)
	}
	ws := &workspace{opts: opts, config: config, disk: disk}
	if !withPipeline {
		return ws, nil
	}

	if err := codec.InitVips(config.Concurrency.Downsampling); err != nil {
		logging.Warn("libvips unavailable, falling back to imaging: %v", err)
	}

	memory, err := cache.NewMemory(config.MemoryCacheEntries)
	if err != nil {
		ws.Close()
		return nil, err
	}
	ws.loader, _, err = startup.NewDataLoader(config)
	if err != nil {
		ws.Close()
		return nil, err
	}

	cfg := thumbnail.Config{
		Memory:             memory,
		DataLoader:         ws.loader,
		Codec:              codec.Standard{},
		CompressionQuality: config.Quality,
		Concurrency:        config.Concurrency,
	}
	if disk != nil {
		cfg.Disk = disk
	}
	ws.pipeline, err = thumbnail.New(cfg)
	if err != nil {
		ws.Close()
		return nil, err
	}
	return ws, nil
}

// Close drains the pipeline before closing the disk tier.
func (ws *workspace) Close() {
	if ws.pipeline != nil {
		ws.pipeline.Close()
	}
	if ws.disk != nil {
		if err := ws.disk.Close(); err != nil {
			logging.Warn("Disk cache close error: %v", err)
		}
	}
}

var errNoDiskTier = errors.New("disk cache is disabled (DISK_CACHE=none or CACHE_DIR not writable)")

// request builds the pipeline request for a source path at the configured
// size and scale.
func (ws *workspace) request(raw string) (thumbnail.Request, error) {
	source := strings.TrimPrefix(path.Clean("/"+raw), "/")
	if source == "" {
		return thumbnail.Request{}, errors.New("empty path")
	}
	if !mediatypes.IsImagePath(source) {
		return thumbnail.Request{}, fmt.Errorf("%s: not an image path", raw)
	}
	key := cache.Key(source, ws.opts.size, ws.opts.scale)
	return thumbnail.NewRequest(key, source, thumbnail.Size{Width: ws.opts.size, Height: ws.opts.size}, ws.opts.scale), nil
}
