// Package source provides thumbnail.DataLoader implementations that fetch
// original image bytes.
//
// Dir reads files below a root directory, retrying stale NFS handles through
// the filesystem package. HTTP issues GET requests below a base URL with
// retries and an optional rate limit. Func adapts a plain function.
package source
