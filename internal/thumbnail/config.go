package thumbnail

import (
	"context"
	"fmt"
	"image"

	"thumbcache/internal/codec"
)

// DefaultCompressionQuality is the JPEG quality fraction used when none is set.
const DefaultCompressionQuality = 0.8

// MemoryCache stores decoded bitmaps.
type MemoryCache interface {
	Get(key string) (image.Image, bool)
	Insert(key string, img image.Image)
	Remove(key string)
}

// DiskCache stores encoded bytes.
type DiskCache interface {
	Get(key string) ([]byte, bool)
	Insert(key string, data []byte) error
	Remove(key string) error
}

// DataLoader fetches the original encoded bytes for a request. It may block.
// An empty result counts as failure.
type DataLoader interface {
	LoadData(ctx context.Context, req Request) ([]byte, error)
}

// DataLoaderFunc adapts a function to DataLoader.
type DataLoaderFunc func(ctx context.Context, req Request) ([]byte, error)

// LoadData implements DataLoader.
func (f DataLoaderFunc) LoadData(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}

// Codec converts between encoded bytes and bitmaps.
type Codec interface {
	Downsample(data []byte, maxPixel int) (image.Image, error)
	Encode(img image.Image, quality float64) ([]byte, error)
	Decode(data []byte) (image.Image, error)
}

// Gate applies backpressure before a full-size decode. WaitIfPaused blocks
// while decoding should wait and returns false if the gate shut down.
type Gate interface {
	WaitIfPaused() bool
}

// Concurrency holds the worker count of each stage queue.
type Concurrency struct {
	DataLoading   int `json:"data_loading"`
	DiskIO        int `json:"disk_io"`
	Downsampling  int `json:"downsampling"`
	Encoding      int `json:"encoding"`
	Decompression int `json:"decompression"`
}

// DefaultConcurrency serializes the original fetch and the final encode and
// allows limited parallelism elsewhere.
func DefaultConcurrency() Concurrency {
	return Concurrency{
		DataLoading:   1,
		DiskIO:        3,
		Downsampling:  2,
		Encoding:      1,
		Decompression: 2,
	}
}

func (c Concurrency) withDefaults() Concurrency {
	d := DefaultConcurrency()
	pick := func(v, def int) int {
		if v < 1 {
			return def
		}
		return v
	}
	return Concurrency{
		DataLoading:   pick(c.DataLoading, d.DataLoading),
		DiskIO:        pick(c.DiskIO, d.DiskIO),
		Downsampling:  pick(c.Downsampling, d.Downsampling),
		Encoding:      pick(c.Encoding, d.Encoding),
		Decompression: pick(c.Decompression, d.Decompression),
	}
}

// Config is fixed at construction.
type Config struct {
	// Memory is required.
	Memory MemoryCache

	// Disk is optional; nil disables the disk tier.
	Disk DiskCache

	// DataLoader is required.
	DataLoader DataLoader

	// Codec defaults to codec.Standard.
	Codec Codec

	// CompressionQuality is in (0, 1]; zero means DefaultCompressionQuality.
	CompressionQuality float64

	// Concurrency values below 1 fall back to DefaultConcurrency.
	Concurrency Concurrency

	// Gate is optional.
	Gate Gate
}

func (c Config) validate() (Config, error) {
	if c.Memory == nil {
		return c, fmt.Errorf("%w: memory cache is required", ErrInvalidConfig)
	}
	if c.DataLoader == nil {
		return c, fmt.Errorf("%w: data loader is required", ErrInvalidConfig)
	}
	if c.CompressionQuality == 0 {
		c.CompressionQuality = DefaultCompressionQuality
	}
	if c.CompressionQuality < 0 || c.CompressionQuality > 1 {
		return c, fmt.Errorf("%w: compression quality %v outside (0, 1]", ErrInvalidConfig, c.CompressionQuality)
	}
	if c.Codec == nil {
		c.Codec = codec.Standard{}
	}
	c.Concurrency = c.Concurrency.withDefaults()
	return c, nil
}
