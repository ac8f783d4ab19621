// Package thumbnail turns original image bytes into small decoded bitmaps and
// caches them in two tiers.
//
// Requests for the same cache key are coalesced into one request pool, so N
// concurrent callers cause a single fetch, downsample and encode. A miss in
// the memory tier walks a fixed sequence of stages, each on its own bounded
// work queue:
//
//	disk probe -> original fetch -> downsample -> encode -> decompress -> deliver
//
// A disk hit skips straight to decompress. A successful encode also writes
// the bytes to the disk tier in the background. Every decision about pools
// is made on a single serial queue, which is also where observer callbacks
// run.
//
// Usage:
//
//	loader, err := thumbnail.New(thumbnail.Config{
//	    Memory:     mem,
//	    Disk:       disk,
//	    DataLoader: source.NewDir(root),
//	})
//	if err != nil {
//	    return err
//	}
//	defer loader.Close()
//
//	req := thumbnail.NewRequest(key, "photos/a.jpg", thumbnail.Size{Width: 200, Height: 200}, 2)
//	img, err := loader.Fetch(ctx, req)
//
// Prefetch requests share pools with loads but never report an outcome; they
// are released when the pool finishes, successful or not.
package thumbnail
