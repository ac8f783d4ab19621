package mediatypes

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format is an image container format detected from file contents.
type Format string

// Recognized image formats.
const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatHEIF    Format = "heif"
	FormatAVIF    Format = "avif"
	FormatJXL     Format = "jxl"
	FormatUnknown Format = "unknown"
)

// SniffLen is the number of leading bytes Sniff inspects.
const SniffLen = 32

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
	".avif": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",
}

var formatMimeTypes = map[Format]string{
	FormatJPEG: "image/jpeg",
	FormatPNG:  "image/png",
	FormatGIF:  "image/gif",
	FormatWebP: "image/webp",
	FormatBMP:  "image/bmp",
	FormatTIFF: "image/tiff",
	FormatHEIF: "image/heif",
	FormatAVIF: "image/avif",
	FormatJXL:  "image/jxl",
}

var (
	jpegMagic   = []byte{0xFF, 0xD8, 0xFF}
	pngMagic    = []byte{0x89, 0x50, 0x4E, 0x47}
	gifMagic    = []byte("GIF8")
	riffMagic   = []byte("RIFF")
	webpMagic   = []byte("WEBP")
	bmpMagic    = []byte("BM")
	tiffLE      = []byte{0x49, 0x49, 0x2A, 0x00}
	tiffBE      = []byte{0x4D, 0x4D, 0x00, 0x2A}
	ftypMagic   = []byte("ftyp")
	jxlCodes    = []byte{0xFF, 0x0A}
	jxlBoxMagic = []byte{0x00, 0x00, 0x00, 0x0C, 0x4A, 0x58, 0x4C, 0x20}
)

// Sniff identifies an image format from the first bytes of a file.
// It never fails; unrecognized data yields FormatUnknown.
func Sniff(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, jpegMagic):
		return FormatJPEG
	case len(header) >= 8 && bytes.HasPrefix(header, pngMagic):
		return FormatPNG
	case bytes.HasPrefix(header, gifMagic):
		return FormatGIF
	case len(header) >= 12 && bytes.HasPrefix(header, riffMagic) && bytes.Equal(header[8:12], webpMagic):
		return FormatWebP
	case bytes.HasPrefix(header, bmpMagic):
		return FormatBMP
	case bytes.HasPrefix(header, tiffLE), bytes.HasPrefix(header, tiffBE):
		return FormatTIFF
	case len(header) >= 12 && bytes.Equal(header[4:8], ftypMagic):
		switch string(header[8:12]) {
		case "heic", "heix", "hevc", "hevx", "mif1", "msf1":
			return FormatHEIF
		case "avif", "avis":
			return FormatAVIF
		}
		return FormatUnknown
	case bytes.HasPrefix(header, jxlCodes), bytes.HasPrefix(header, jxlBoxMagic):
		return FormatJXL
	}
	return FormatUnknown
}

// MimeType returns the MIME type of a sniffed format, or
// "application/octet-stream" for FormatUnknown.
func (f Format) MimeType() string {
	if mime, ok := formatMimeTypes[f]; ok {
		return mime
	}
	return "application/octet-stream"
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsImagePath reports whether a path has a supported image extension.
func IsImagePath(path string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(path))]
}
