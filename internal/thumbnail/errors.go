package thumbnail

import "errors"

// Stage failure causes. Observers only see DidFail; these are for logs,
// metrics and Fetch callers that unwrap.
var (
	ErrDataUnavailable = errors.New("original data unavailable")
	ErrDecode          = errors.New("image decode failed")
	ErrEncode          = errors.New("image encode failed")
)

var (
	// ErrUnavailable is returned by Fetch when the pipeline delivered a
	// failure.
	ErrUnavailable = errors.New("thumbnail unavailable")

	// ErrClosed is returned by Fetch after Close.
	ErrClosed = errors.New("thumbnail loader closed")

	// ErrInvalidConfig wraps configuration errors from New.
	ErrInvalidConfig = errors.New("invalid thumbnail config")
)
