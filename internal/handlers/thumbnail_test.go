package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"thumbcache/internal/logging"
	"thumbcache/internal/middleware"
	"thumbcache/internal/thumbnail"
)

func TestGetThumbnail(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	h := newTestHandlers(p)

	req := httptest.NewRequest(http.MethodGet, "/api/thumbnail/photos/a.jpg?size=128&scale=2", http.NoBody)
	w := serve(h, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Expected Content-Type image/jpeg, got %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=86400" {
		t.Errorf("Unexpected Cache-Control %q", cc)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("Expected ETag header")
	}
	if !bytes.Equal(w.Body.Bytes(), jpegBytes) {
		t.Error("Body does not match encoded thumbnail")
	}

	if len(p.fetched) != 1 {
		t.Fatalf("Expected 1 fetch, got %d", len(p.fetched))
	}
	got := p.fetched[0]
	if got.CacheKey != "photos/a.jpg@128@2x" {
		t.Errorf("Unexpected cache key %q", got.CacheKey)
	}
	if got.Source != "photos/a.jpg" || got.TargetSize != (thumbnail.Size{Width: 128, Height: 128}) || got.Scale != 2 {
		t.Errorf("Unexpected request %+v", got)
	}
}

func TestGetThumbnailDefaults(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	h := newTestHandlers(p)

	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.png", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if key := p.fetched[0].CacheKey; key != fmt.Sprintf("a.png@%d@1x", DefaultSize) {
		t.Errorf("Unexpected cache key %q", key)
	}
}

func TestGetThumbnailNotModified(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(&fakePipeline{})

	first := serve(h, httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.jpg", http.NoBody))
	etag := first.Header().Get("ETag")

	req := httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.jpg", http.NoBody)
	req.Header.Set("If-None-Match", etag)
	w := serve(h, req)

	if w.Code != http.StatusNotModified {
		t.Errorf("Expected status 304, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Error("Expected empty body for 304")
	}
}

func TestGetThumbnailHead(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(&fakePipeline{})
	w := serve(h, httptest.NewRequest(http.MethodHead, "/api/thumbnail/a.jpg", http.NoBody))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Error("Expected empty body for HEAD")
	}
	if w.Header().Get("Content-Length") != fmt.Sprint(len(jpegBytes)) {
		t.Errorf("Unexpected Content-Length %q", w.Header().Get("Content-Length"))
	}
}

func TestGetThumbnailBadRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
	}{
		{"zero size", "/api/thumbnail/a.jpg?size=0"},
		{"size not a number", "/api/thumbnail/a.jpg?size=big"},
		{"size too large", "/api/thumbnail/a.jpg?size=5000"},
		{"zero scale", "/api/thumbnail/a.jpg?scale=0"},
		{"negative scale", "/api/thumbnail/a.jpg?scale=-1"},
		{"scale too large", "/api/thumbnail/a.jpg?scale=8"},
		{"NaN scale", "/api/thumbnail/a.jpg?scale=NaN"},
		{"infinite scale", "/api/thumbnail/a.jpg?scale=Inf"},
		{"not an image", "/api/thumbnail/notes.txt"},
		{"no extension", "/api/thumbnail/photos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &fakePipeline{}
			h := newTestHandlers(p)
			w := serve(h, httptest.NewRequest(http.MethodGet, tt.url, http.NoBody))

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
			if len(p.fetched) != 0 {
				t.Error("Pipeline should not be called for a bad request")
			}
		})
	}
}

func TestGetThumbnailErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unavailable", thumbnail.ErrUnavailable, http.StatusNotFound},
		{"wrapped unavailable", fmt.Errorf("load: %w", thumbnail.ErrUnavailable), http.StatusNotFound},
		{"closed", thumbnail.ErrClosed, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newTestHandlers(&fakePipeline{err: tt.err})
			w := serve(h, httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.jpg", http.NoBody))

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestGetThumbnailEncodeFailure(t *testing.T) {
	t.Parallel()

	h := New(&fakePipeline{img: image.NewRGBA(image.Rect(0, 0, 1, 1))}, Options{
		Encode: func(image.Image, float64) ([]byte, error) { return nil, errors.New("encode failed") },
	})
	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.jpg", http.NoBody))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestGetThumbnailPassesQuality(t *testing.T) {
	t.Parallel()

	var got float64
	h := New(&fakePipeline{img: image.NewRGBA(image.Rect(0, 0, 1, 1))}, Options{
		Quality: 0.6,
		Encode: func(_ image.Image, q float64) ([]byte, error) {
			got = q
			return jpegBytes, nil
		},
	})
	serve(h, httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.jpg", http.NoBody))

	if got != 0.6 {
		t.Errorf("Expected quality 0.6, got %v", got)
	}
}

// countingEncode returns an Encoder that counts its calls.
func countingEncode(calls *int) Encoder {
	return func(image.Image, float64) ([]byte, error) {
		*calls++
		return jpegBytes, nil
	}
}

func TestGetThumbnailReusesEncodedResponse(t *testing.T) {
	t.Parallel()

	var calls int
	p := &fakePipeline{img: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	h := New(p, Options{Encode: countingEncode(&calls)})

	first := serve(h, httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.jpg", http.NoBody))
	req := httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.jpg", http.NoBody)
	req.Header.Set("If-None-Match", first.Header().Get("ETag"))
	second := serve(h, req)
	third := serve(h, httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.jpg", http.NoBody))

	if second.Code != http.StatusNotModified {
		t.Errorf("Expected status 304, got %d", second.Code)
	}
	if !bytes.Equal(third.Body.Bytes(), jpegBytes) {
		t.Error("Reused response body differs")
	}
	if calls != 1 {
		t.Errorf("Expected 1 encode for an unchanged bitmap, got %d", calls)
	}
}

func TestGetThumbnailReencodesNewBitmap(t *testing.T) {
	t.Parallel()

	var calls int
	p := &fakePipeline{img: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	h := New(p, Options{Encode: countingEncode(&calls)})

	serve(h, httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.jpg", http.NoBody))
	p.mu.Lock()
	p.img = image.NewRGBA(image.Rect(0, 0, 4, 4))
	p.mu.Unlock()
	serve(h, httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.jpg", http.NoBody))

	if calls != 2 {
		t.Errorf("Expected 2 encodes after the bitmap changed, got %d", calls)
	}

	serve(h, httptest.NewRequest(http.MethodDelete, "/api/thumbnail/a.jpg", http.NoBody))
	serve(h, httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.jpg", http.NoBody))
	if calls != 3 {
		t.Errorf("Expected 3 encodes after invalidation, got %d", calls)
	}
}

func TestGetThumbnailAccessLogOutcome(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	t.Cleanup(func() { logging.SetOutput(nil) })

	h := newTestHandlers(&fakePipeline{})
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	chain := middleware.Logger(middleware.DefaultLoggingConfig())(r)

	for i := 0; i < 2; i++ {
		chain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.jpg?size=64", http.NoBody))
	}
	chain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.jpg?size=0", http.NoBody))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var access []string
	for _, line := range lines {
		if strings.Contains(line, " GET /api/thumbnail/a.jpg ") {
			access = append(access, line)
		}
	}
	if len(access) != 3 {
		t.Fatalf("Expected 3 access log lines, got %d: %q", len(access), buf.String())
	}
	for i, want := range []string{" a.jpg@64@1x encoded ", " a.jpg@64@1x reused ", " - bad_request "} {
		if !strings.Contains(access[i], want) {
			t.Errorf("line %d = %q, want %q", i, access[i], want)
		}
	}
}

func TestSameBitmap(t *testing.T) {
	t.Parallel()

	a := image.NewRGBA(image.Rect(0, 0, 1, 1))
	b := image.NewRGBA(image.Rect(0, 0, 1, 1))
	gray := image.NewGray(image.Rect(0, 0, 1, 1))

	tests := []struct {
		name string
		x, y image.Image
		want bool
	}{
		{"same pointer", a, a, true},
		{"equal pixels, different bitmap", a, b, false},
		{"different types", a, gray, false},
		{"nil", nil, a, false},
		{"uniform value", image.White, image.White, true},
	}

	for _, tt := range tests {
		if got := sameBitmap(tt.x, tt.y); got != tt.want {
			t.Errorf("%s: sameBitmap() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestInvalidateThumbnail(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	h := newTestHandlers(p)

	w := serve(h, httptest.NewRequest(http.MethodDelete, "/api/thumbnail/photos/a.jpg?size=64", http.NoBody))
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", w.Code)
	}
	if len(p.invalidated) != 1 || p.invalidated[0] != "photos/a.jpg@64@1x" {
		t.Errorf("Unexpected invalidations %v", p.invalidated)
	}

	w = serve(h, httptest.NewRequest(http.MethodDelete, "/api/thumbnail/photos/a.jpg?size=-2", http.NoBody))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestPrefetch(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	h := newTestHandlers(p)

	body := `{"paths":["a.jpg","dir/b.png","c.txt",""],"size":64,"scale":2}`
	w := serve(h, httptest.NewRequest(http.MethodPost, "/api/prefetch", bytes.NewBufferString(body)))

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var response PrefetchResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Accepted != 2 {
		t.Errorf("Expected 2 accepted, got %d", response.Accepted)
	}
	if len(response.Rejected) != 2 || response.Rejected[0] != "c.txt" {
		t.Errorf("Unexpected rejected %v", response.Rejected)
	}

	if len(p.prefetched) != 2 {
		t.Fatalf("Expected 2 prefetches, got %d", len(p.prefetched))
	}
	if p.prefetched[1].CacheKey != "dir/b.png@64@2x" {
		t.Errorf("Unexpected cache key %q", p.prefetched[1].CacheKey)
	}
	if p.prefetched[0].ID == p.prefetched[1].ID {
		t.Error("Prefetch requests should have distinct IDs")
	}
}

func TestPrefetchBadRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"paths":`},
		{"no paths", `{"paths":[]}`},
		{"size too large", `{"paths":["a.jpg"],"size":99999}`},
		{"negative size", `{"paths":["a.jpg"],"size":-1}`},
		{"negative scale", `{"paths":["a.jpg"],"scale":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &fakePipeline{}
			h := newTestHandlers(p)
			w := serve(h, httptest.NewRequest(http.MethodPost, "/api/prefetch", bytes.NewBufferString(tt.body)))

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
			if len(p.prefetched) != 0 {
				t.Error("Nothing should be prefetched")
			}
		})
	}
}

func TestValidScale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scale float64
		want  bool
	}{
		{1, true},
		{0.5, true},
		{MaxScale, true},
		{0, false},
		{-1, false},
		{MaxScale + 0.1, false},
		{math.NaN(), false},
		{math.Inf(1), false},
	}

	for _, tt := range tests {
		if got := validScale(tt.scale); got != tt.want {
			t.Errorf("validScale(%v) = %v, want %v", tt.scale, got, tt.want)
		}
	}
}

func TestCleanSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"a.jpg", "a.jpg", false},
		{"/photos/a.JPG", "photos/a.JPG", false},
		{"../../etc/a.png", "etc/a.png", false},
		{"photos/./x/../a.webp", "photos/a.webp", false},
		{"", "", true},
		{"/", "", true},
		{"a.mp4", "", true},
	}

	for _, tt := range tests {
		got, err := cleanSource(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("cleanSource(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("cleanSource(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
