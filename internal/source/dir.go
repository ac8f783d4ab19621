package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"thumbcache/internal/filesystem"
	"thumbcache/internal/mediatypes"
	"thumbcache/internal/thumbnail"
)

const loaderDir = "dir"

// Dir loads originals from files below a root directory. Source descriptors
// are slash-separated paths relative to the root; ".." cannot escape it.
type Dir struct {
	root     string
	maxBytes int64
	retry    filesystem.RetryConfig
}

// NewDir creates a loader rooted at root. maxBytes <= 0 uses DefaultMaxBytes.
func NewDir(root string, maxBytes int64) *Dir {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Dir{
		root:     filepath.Clean(root),
		maxBytes: maxBytes,
		retry:    filesystem.DefaultRetryConfig(),
	}
}

// Root returns the directory originals are read from.
func (d *Dir) Root() string {
	return d.root
}

// Resolve maps a source descriptor to a file path under the root.
func (d *Dir) Resolve(source string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(source))
	if clean == "/" {
		return "", fmt.Errorf("%w: empty path", ErrNotFound)
	}
	if !mediatypes.IsImagePath(clean) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, source)
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

// LoadData implements thumbnail.DataLoader.
func (d *Dir) LoadData(ctx context.Context, req thumbnail.Request) (data []byte, err error) {
	start := time.Now()
	defer func() { observe(loaderDir, start, len(data), err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := d.Resolve(req.Source)
	if err != nil {
		return nil, err
	}

	info, err := filesystem.StatWithRetry(full, d.retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, req.Source)
		}
		return nil, fmt.Errorf("stat %s: %w", req.Source, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, req.Source)
	}
	if info.Size() > d.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, req.Source, info.Size())
	}

	data, err = filesystem.ReadFileWithRetry(full, d.retry)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.Source, err)
	}
	log.Debug("Loaded %s (%d bytes)", req.Source, len(data))
	return data, nil
}

// Walk calls fn with the slash-separated relative path of every image below
// the root. Hidden files and directories are skipped.
func (d *Dir) Walk(ctx context.Context, fn func(rel string) error) error {
	return filepath.WalkDir(d.root, func(p string, entry os.DirEntry, err error) error {
		if err != nil {
			log.Warn("Skipping %s: %v", p, err)
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := entry.Name()
		if p != d.root && len(name) > 0 && name[0] == '.' {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() || !mediatypes.IsImagePath(name) {
			return nil
		}

		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel))
	})
}
