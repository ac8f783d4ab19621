package cache

import (
	"path"
	"strconv"
	"strings"
)

// Key builds the canonical cache key for a source rendered at size points
// and scale. Two requests with equal keys share one pipeline run and one
// cache entry, so every caller must build keys the same way.
func Key(source string, size int, scale float64) string {
	source = strings.TrimPrefix(path.Clean("/"+source), "/")
	if scale <= 0 {
		scale = 1
	}
	return source + "@" + strconv.Itoa(size) + "@" + strconv.FormatFloat(scale, 'f', -1, 64) + "x"
}
