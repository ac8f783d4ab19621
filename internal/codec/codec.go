package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"thumbcache/internal/logging"
	"thumbcache/internal/mediatypes"
	"thumbcache/internal/metrics"
)

// MaxSourcePixels is the largest source image (width * height) that will be
// decoded. A 100MP RGBA bitmap is ~400MB.
const MaxSourcePixels = 100_000_000

var (
	// ErrEmptyInput is returned when there are no bytes to decode.
	ErrEmptyInput = errors.New("codec: empty input")

	// ErrTooLarge is returned for sources above MaxSourcePixels.
	ErrTooLarge = errors.New("codec: source image too large")

	// ErrInvalidSize is returned for a non-positive target pixel size.
	ErrInvalidSize = errors.New("codec: invalid target size")
)

var log = logging.For("codec")

// Downsample decodes data and scales it to fit within a maxPixel square,
// keeping the aspect ratio. Images already within the bound are returned at
// their native size. EXIF orientation is applied.
func Downsample(data []byte, maxPixel int) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	if maxPixel < 1 {
		return nil, ErrInvalidSize
	}

	format := sniff(data)
	metrics.CodecDecodeByFormat.WithLabelValues(string(format)).Inc()

	if IsVipsAvailable() {
		img, err := downsampleVips(data, maxPixel)
		if err == nil {
			metrics.CodecBackendTotal.WithLabelValues("vips").Inc()
			return img, nil
		}
		log.Debug("vips downsample failed for %s input, falling back to imaging: %v", format, err)
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		if int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
			return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	metrics.CodecBackendTotal.WithLabelValues("imaging").Inc()

	b := img.Bounds()
	if b.Dx() <= maxPixel && b.Dy() <= maxPixel {
		return img, nil
	}
	return imaging.Fit(img, maxPixel, maxPixel, imaging.Lanczos), nil
}

// Encode compresses img. Bitmaps with any non-opaque pixel are written as
// lossless PNG; opaque bitmaps are written as JPEG at quality, a fraction
// in (0, 1].
func Encode(img image.Image, quality float64) ([]byte, error) {
	if img == nil {
		return nil, errors.New("codec: nil image")
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("codec: cannot encode empty %dx%d image", b.Dx(), b.Dy())
	}

	var buf bytes.Buffer
	if HasAlpha(img) {
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		metrics.CodecEncodeByFormat.WithLabelValues("png").Inc()
		return buf.Bytes(), nil
	}

	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality(quality))); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	metrics.CodecEncodeByFormat.WithLabelValues("jpeg").Inc()
	return buf.Bytes(), nil
}

// Decode decodes encoded bytes without resizing.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", sniff(data), err)
	}
	return img, nil
}

// HasAlpha reports whether img has at least one pixel that is not fully
// opaque.
func HasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// JPEGQuality converts a (0, 1] quality fraction to the 1..100 scale used
// by JPEG encoders.
func JPEGQuality(q float64) int {
	n := int(math.Round(q * 100))
	if n < 1 {
		return 1
	}
	if n > 100 {
		return 100
	}
	return n
}

func sniff(data []byte) mediatypes.Format {
	n := len(data)
	if n > mediatypes.SniffLen {
		n = mediatypes.SniffLen
	}
	return mediatypes.Sniff(data[:n])
}

// Standard is the default codec. It uses libvips for downsampling when
// InitVips has succeeded and the pure-Go imaging path otherwise.
type Standard struct{}

// Downsample implements the pipeline codec contract.
func (Standard) Downsample(data []byte, maxPixel int) (image.Image, error) {
	return Downsample(data, maxPixel)
}

// Encode implements the pipeline codec contract.
func (Standard) Encode(img image.Image, quality float64) ([]byte, error) {
	return Encode(img, quality)
}

// Decode implements the pipeline codec contract.
func (Standard) Decode(data []byte) (image.Image, error) {
	return Decode(data)
}
