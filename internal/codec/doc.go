// Package codec converts between encoded image bytes and decoded bitmaps
// for the thumbnail pipeline.
//
// [Downsample] decodes a source image and fits it within a square of the
// requested pixel size without upsampling. [Encode] picks the output format
// from the bitmap itself: anything with transparency becomes PNG, opaque
// bitmaps become JPEG at the configured quality. [Decode] turns those bytes
// back into a bitmap.
//
// Decoding uses github.com/disintegration/imaging with the standard library
// and golang.org/x/image decoders registered. When [InitVips] has been
// called, Downsample tries libvips first, which can shrink JPEGs during
// decode.
package codec
