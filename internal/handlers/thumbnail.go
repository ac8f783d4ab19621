package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"thumbcache/internal/cache"
	"thumbcache/internal/mediatypes"
	"thumbcache/internal/middleware"
	"thumbcache/internal/thumbnail"
)

const maxPrefetchBody = 1 << 20

// thumbParams is a validated thumbnail address.
type thumbParams struct {
	source string
	size   int
	scale  float64
}

func (p thumbParams) request() thumbnail.Request {
	return thumbnail.NewRequest(
		cache.Key(p.source, p.size, p.scale),
		p.source,
		thumbnail.Size{Width: p.size, Height: p.size},
		p.scale,
	)
}

// cleanSource normalizes a source path and rejects anything that is not an
// image path.
func cleanSource(raw string) (string, error) {
	source := strings.TrimPrefix(path.Clean("/"+raw), "/")
	if source == "" {
		return "", errors.New("path is required")
	}
	if !mediatypes.IsImagePath(source) {
		return "", fmt.Errorf("unsupported file type: %s", path.Ext(source))
	}
	return source, nil
}

func parseSize(raw string) (int, error) {
	if raw == "" {
		return DefaultSize, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < 1 || size > MaxSize {
		return 0, fmt.Errorf("size must be an integer between 1 and %d", MaxSize)
	}
	return size, nil
}

// validScale reports whether scale is in (0, MaxScale]. NaN is not.
func validScale(scale float64) bool {
	return scale > 0 && scale <= MaxScale
}

func parseScale(raw string) (float64, error) {
	if raw == "" {
		return 1, nil
	}
	scale, err := strconv.ParseFloat(raw, 64)
	if err != nil || !validScale(scale) {
		return 0, fmt.Errorf("scale must be a number in (0, %g]", MaxScale)
	}
	return scale, nil
}

func parseThumbParams(r *http.Request) (thumbParams, error) {
	source, err := cleanSource(mux.Vars(r)["path"])
	if err != nil {
		return thumbParams{}, err
	}
	size, err := parseSize(r.URL.Query().Get("size"))
	if err != nil {
		return thumbParams{}, err
	}
	scale, err := parseScale(r.URL.Query().Get("scale"))
	if err != nil {
		return thumbParams{}, err
	}
	return thumbParams{source: source, size: size, scale: scale}, nil
}

// GetThumbnail serves the encoded thumbnail for {path}.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	params, err := parseThumbParams(r)
	if err != nil {
		log.Debug("Thumbnail: bad request %s: %v", r.URL.Path, err)
		middleware.Annotate(r, "", middleware.OutcomeBadRequest)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := params.request()
	img, err := h.pipeline.Fetch(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, thumbnail.ErrClosed):
			middleware.Annotate(r, req.CacheKey, middleware.OutcomeClosed)
			http.Error(w, "Service shutting down", http.StatusServiceUnavailable)
		case errors.Is(err, context.DeadlineExceeded):
			middleware.Annotate(r, req.CacheKey, middleware.OutcomeTimeout)
			http.Error(w, "Thumbnail timed out", http.StatusGatewayTimeout)
		case errors.Is(err, context.Canceled):
			middleware.Annotate(r, req.CacheKey, middleware.OutcomeCanceled)
			log.Debug("Thumbnail: client went away for %s", req.CacheKey)
		default:
			middleware.Annotate(r, req.CacheKey, middleware.OutcomeUnavailable)
			log.Debug("Thumbnail: unavailable for %s: %v", req.CacheKey, err)
			http.Error(w, "Thumbnail unavailable", http.StatusNotFound)
		}
		return
	}

	thumb, reused, err := h.encoded(req.CacheKey, img)
	if err != nil {
		middleware.Annotate(r, req.CacheKey, middleware.OutcomeEncodeFailed)
		log.Error("Thumbnail: encode failed for %s: %v", req.CacheKey, err)
		http.Error(w, "Failed to encode thumbnail", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", thumb.etag)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if r.Header.Get("If-None-Match") == thumb.etag {
		middleware.Annotate(r, req.CacheKey, middleware.OutcomeNotModified)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	outcome := middleware.OutcomeEncoded
	if reused {
		outcome = middleware.OutcomeReused
	}
	middleware.Annotate(r, req.CacheKey, outcome)

	w.Header().Set("Content-Type", thumb.mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(thumb.data)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(thumb.data); err != nil {
		log.Debug("Thumbnail: write failed for %s: %v", req.CacheKey, err)
	}
}

// InvalidateThumbnail drops {path} at the requested size and scale from both
// cache tiers.
func (h *Handlers) InvalidateThumbnail(w http.ResponseWriter, r *http.Request) {
	params, err := parseThumbParams(r)
	if err != nil {
		middleware.Annotate(r, "", middleware.OutcomeBadRequest)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := cache.Key(params.source, params.size, params.scale)
	h.pipeline.InvalidateCache(key)
	h.responses.remove(key)
	middleware.Annotate(r, key, middleware.OutcomeInvalidated)
	log.Info("Invalidated %s", key)
	w.WriteHeader(http.StatusNoContent)
}

// PrefetchRequest is the body of POST /api/prefetch.
type PrefetchRequest struct {
	Paths []string `json:"paths"`
	Size  int      `json:"size,omitempty"`
	Scale float64  `json:"scale,omitempty"`
}

// PrefetchResponse reports which paths were queued.
type PrefetchResponse struct {
	Accepted int      `json:"accepted"`
	Rejected []string `json:"rejected,omitempty"`
}

// Prefetch queues cache warming for a batch of paths.
func (h *Handlers) Prefetch(w http.ResponseWriter, r *http.Request) {
	var body PrefetchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPrefetchBody)).Decode(&body); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(body.Paths) == 0 {
		writeJSONError(w, "paths is required", http.StatusBadRequest)
		return
	}
	if len(body.Paths) > MaxPrefetchPaths {
		writeJSONError(w, fmt.Sprintf("at most %d paths per request", MaxPrefetchPaths), http.StatusBadRequest)
		return
	}

	size := body.Size
	if size == 0 {
		size = DefaultSize
	}
	if size < 1 || size > MaxSize {
		writeJSONError(w, fmt.Sprintf("size must be between 1 and %d", MaxSize), http.StatusBadRequest)
		return
	}
	scale := body.Scale
	if scale == 0 {
		scale = 1
	}
	if !validScale(scale) {
		writeJSONError(w, fmt.Sprintf("scale must be in (0, %g]", MaxScale), http.StatusBadRequest)
		return
	}

	var response PrefetchResponse
	for _, raw := range body.Paths {
		source, err := cleanSource(raw)
		if err != nil {
			response.Rejected = append(response.Rejected, raw)
			continue
		}
		params := thumbParams{source: source, size: size, scale: scale}
		h.pipeline.Prefetch(params.request(), nil)
		response.Accepted++
	}

	middleware.Annotate(r, "", middleware.OutcomePrefetched)
	log.Debug("Prefetch: accepted=%d rejected=%d size=%d scale=%g", response.Accepted, len(response.Rejected), size, scale)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, response)
}
