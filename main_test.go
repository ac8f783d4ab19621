package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"thumbcache/internal/cache"
	"thumbcache/internal/handlers"
	"thumbcache/internal/source"
	"thumbcache/internal/thumbnail"
)

func TestMetricsServerRoutes(t *testing.T) {
	loader, err := thumbnail.New(thumbnail.Config{
		Memory:     mustMemory(t),
		DataLoader: source.NewDir(t.TempDir(), 0),
	})
	if err != nil {
		t.Fatalf("thumbnail.New() error: %v", err)
	}
	t.Cleanup(loader.Close)

	srv := newMetricsServer("0", handlers.New(loader, handlers.Options{}))

	for _, path := range []string{"/metrics", "/health"} {
		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected status 200, got %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", http.NoBody))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected API routes to be absent from the metrics server, got %d", w.Code)
	}
}

func mustMemory(t *testing.T) *cache.Memory {
	t.Helper()
	m, err := cache.NewMemory(8)
	if err != nil {
		t.Fatalf("cache.NewMemory() error: %v", err)
	}
	return m
}
