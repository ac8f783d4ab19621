package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"thumbcache/internal/thumbnail"
)

const loaderHTTP = "http"

// HTTPConfig configures an HTTP loader.
type HTTPConfig struct {
	// BaseURL is joined with each source descriptor.
	BaseURL string

	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration

	// RequestsPerSecond limits outgoing requests. Zero means unlimited.
	RequestsPerSecond float64

	MaxBytes  int64
	UserAgent string
}

// DefaultHTTPConfig returns retry and timeout settings for baseURL.
func DefaultHTTPConfig(baseURL string) HTTPConfig {
	return HTTPConfig{
		BaseURL:      baseURL,
		RetryMax:     3,
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		Timeout:      30 * time.Second,
		MaxBytes:     DefaultMaxBytes,
		UserAgent:    "thumbcache/1.0",
	}
}

// HTTP loads originals with GET requests below a base URL. Connection errors
// and 5xx responses are retried with backoff.
type HTTP struct {
	base      *url.URL
	client    *retryablehttp.Client
	limiter   *rate.Limiter
	maxBytes  int64
	userAgent string
}

// NewHTTP creates an HTTP loader.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", cfg.BaseURL)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	client.Logger = nil
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			log.Debug("Retrying %s (attempt %d)", req.URL, attempt+1)
		}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &HTTP{
		base:      base,
		client:    client,
		limiter:   limiter,
		maxBytes:  maxBytes,
		userAgent: cfg.UserAgent,
	}, nil
}

// URL returns the address a source descriptor is fetched from. ".."
// segments cannot climb above the base path.
func (h *HTTP) URL(source string) string {
	clean := path.Clean("/" + source)
	segments := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	return h.base.JoinPath(segments...).String()
}

// LoadData implements thumbnail.DataLoader.
func (h *HTTP) LoadData(ctx context.Context, req thumbnail.Request) (data []byte, err error) {
	start := time.Now()
	defer func() { observe(loaderHTTP, start, len(data), err) }()

	if err := h.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	target := h.URL(req.Source)
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if h.userAgent != "" {
		httpReq.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Debug("Error closing response body: %v", cerr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.Source)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("get %s: unexpected status %d", target, resp.StatusCode)
	case resp.ContentLength > h.maxBytes:
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, req.Source, resp.ContentLength)
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	if int64(len(data)) > h.maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, req.Source)
	}
	return data, nil
}
