// Package mediatypes identifies image formats by extension and by content.
//
// [Sniff] inspects the leading bytes of a file (see [SniffLen]) and is used
// by source loaders and the codec to label decoded images. Extension tables
// back directory walks in the warm-up tooling and Content-Type headers in
// the HTTP API.
package mediatypes
