package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"thumbcache/internal/memory"
	"thumbcache/internal/thumbnail"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	// Check that all fields are populated
	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion == "" {
		t.Error("Expected GoVersion to be set")
	}
	if info.OS == "" {
		t.Error("Expected OS to be set")
	}
	if info.Arch == "" {
		t.Error("Expected Arch to be set")
	}

	// Verify that runtime values are correct
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
		setEnv       bool
	}{
		{
			name:         "Returns default when env var not set",
			key:          "TEST_UNSET_VAR",
			defaultValue: "default",
			want:         "default",
			setEnv:       false,
		},
		{
			name:         "Returns env value when set",
			key:          "TEST_SET_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
			setEnv:       true,
		},
		{
			name:         "Returns empty string when env var is empty",
			key:          "TEST_EMPTY_VAR",
			defaultValue: "default",
			envValue:     "",
			want:         "",
			setEnv:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			} else {
				// Ensure the variable is not set
				os.Unsetenv(tt.key)
				t.Cleanup(func() {
					os.Unsetenv(tt.key)
				})
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

// clearConfigEnv blanks every variable LoadConfig reads.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SOURCE_DIR", "SOURCE_URL", "SOURCE_RPS", "CACHE_DIR", "DISK_CACHE",
		"MEMORY_CACHE_ENTRIES", "THUMBNAIL_QUALITY", "PORT", "METRICS_PORT",
		"METRICS_ENABLED", "LOG_HEALTH_CHECKS",
		EnvDataLoadingWorkers, EnvDiskIOWorkers, EnvDownsampleWorkers,
		EnvEncodeWorkers, EnvDecompressWorkers,
	} {
		t.Setenv(key, "")
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	clearConfigEnv(t)

	config, err := configFromEnv()
	if err != nil {
		t.Fatalf("configFromEnv() error: %v", err)
	}

	if config.SourceDir != "/images" {
		t.Errorf("SourceDir = %q, want /images", config.SourceDir)
	}
	if config.DiskCache != DiskCacheFile {
		t.Errorf("DiskCache = %q, want %q", config.DiskCache, DiskCacheFile)
	}
	if config.Quality != thumbnail.DefaultCompressionQuality {
		t.Errorf("Quality = %v, want %v", config.Quality, thumbnail.DefaultCompressionQuality)
	}
	if config.MemoryCacheEntries != 512 {
		t.Errorf("MemoryCacheEntries = %d, want 512", config.MemoryCacheEntries)
	}
	if config.Port != "8080" || config.MetricsPort != "9090" {
		t.Errorf("ports = %s/%s, want 8080/9090", config.Port, config.MetricsPort)
	}
	if !config.MetricsEnabled || !config.LogHealthChecks {
		t.Error("metrics and health check logging should default on")
	}
	if config.Concurrency != thumbnail.DefaultConcurrency() {
		t.Errorf("Concurrency = %+v, want defaults", config.Concurrency)
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SOURCE_URL", "https://cdn.example.com/originals")
	t.Setenv("SOURCE_RPS", "5")
	t.Setenv("DISK_CACHE", "SQLite")
	t.Setenv("MEMORY_CACHE_ENTRIES", "64")
	t.Setenv("THUMBNAIL_QUALITY", "0.6")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv(EnvDiskIOWorkers, "2")

	config, err := configFromEnv()
	if err != nil {
		t.Fatalf("configFromEnv() error: %v", err)
	}

	if config.SourceDir != "" || config.SourceURL != "https://cdn.example.com/originals" {
		t.Errorf("source = %q/%q", config.SourceDir, config.SourceURL)
	}
	if config.SourceRPS != 5 {
		t.Errorf("SourceRPS = %v, want 5", config.SourceRPS)
	}
	if config.DiskCache != DiskCacheSQLite {
		t.Errorf("DiskCache = %q, want sqlite", config.DiskCache)
	}
	if config.MemoryCacheEntries != 64 {
		t.Errorf("MemoryCacheEntries = %d, want 64", config.MemoryCacheEntries)
	}
	if config.Quality != 0.6 {
		t.Errorf("Quality = %v, want 0.6", config.Quality)
	}
	if config.MetricsEnabled {
		t.Error("MetricsEnabled should be false")
	}
	if config.Concurrency.DiskIO != 2 {
		t.Errorf("DiskIO workers = %d, want 2", config.Concurrency.DiskIO)
	}
}

func TestConfigFromEnvValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, c *Config)
	}{
		{
			name:    "both sources",
			env:     map[string]string{"SOURCE_DIR": "/a", "SOURCE_URL": "http://b"},
			wantErr: true,
		},
		{
			name:    "unknown disk cache",
			env:     map[string]string{"DISK_CACHE": "redis"},
			wantErr: true,
		},
		{
			name: "quality out of range falls back",
			env:  map[string]string{"THUMBNAIL_QUALITY": "3"},
			check: func(t *testing.T, c *Config) {
				if c.Quality != thumbnail.DefaultCompressionQuality {
					t.Errorf("Quality = %v", c.Quality)
				}
			},
		},
		{
			name: "non-positive memory entries falls back",
			env:  map[string]string{"MEMORY_CACHE_ENTRIES": "0"},
			check: func(t *testing.T, c *Config) {
				if c.MemoryCacheEntries != 512 {
					t.Errorf("MemoryCacheEntries = %d", c.MemoryCacheEntries)
				}
			},
		},
		{
			name: "negative rps means unlimited",
			env:  map[string]string{"SOURCE_RPS": "-3"},
			check: func(t *testing.T, c *Config) {
				if c.SourceRPS != 0 {
					t.Errorf("SourceRPS = %v", c.SourceRPS)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			config, err := configFromEnv()
			if tt.wantErr {
				if err == nil {
					t.Error("configFromEnv() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("configFromEnv() error: %v", err)
			}
			tt.check(t, config)
		})
	}
}

func TestLoadConfigCreatesCacheDirs(t *testing.T) {
	clearConfigEnv(t)
	root := t.TempDir()
	t.Setenv("SOURCE_DIR", filepath.Join(root, "images"))
	t.Setenv("CACHE_DIR", filepath.Join(root, "cache"))

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if !config.DiskCacheEnabled {
		t.Error("disk cache should be enabled for a writable cache dir")
	}
	if config.ThumbnailDir != filepath.Join(root, "cache", "thumbnails") {
		t.Errorf("ThumbnailDir = %q", config.ThumbnailDir)
	}
	if info, err := os.Stat(config.ThumbnailDir); err != nil || !info.IsDir() {
		t.Errorf("thumbnail dir not created: %v", err)
	}
	if config.SQLitePath != filepath.Join(root, "cache", "thumbnails.db") {
		t.Errorf("SQLitePath = %q", config.SQLitePath)
	}
}

func TestLoadConfigDiskCacheNone(t *testing.T) {
	clearConfigEnv(t)
	root := t.TempDir()
	t.Setenv("SOURCE_DIR", root)
	t.Setenv("CACHE_DIR", filepath.Join(root, "cache"))
	t.Setenv("DISK_CACHE", "none")

	config, err := LoadToolConfig()
	if err != nil {
		t.Fatalf("LoadToolConfig() error: %v", err)
	}
	if config.DiskCacheEnabled {
		t.Error("DISK_CACHE=none should disable the disk tier")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("THUMBCACHE_TEST_FROM_FILE=loaded\nTHUMBCACHE_TEST_PRESET=file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("THUMBCACHE_TEST_PRESET", "env")
	t.Cleanup(func() { os.Unsetenv("THUMBCACHE_TEST_FROM_FILE") })

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile() error: %v", err)
	}
	if got := os.Getenv("THUMBCACHE_TEST_FROM_FILE"); got != "loaded" {
		t.Errorf("THUMBCACHE_TEST_FROM_FILE = %q, want loaded", got)
	}
	if got := os.Getenv("THUMBCACHE_TEST_PRESET"); got != "env" {
		t.Errorf("existing variable overridden: %q", got)
	}

	if err := LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("LoadEnvFile(missing) error = %v, want nil", err)
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	router.HandleFunc("/api/thumbnail/{path:.*}", noop).Methods("GET", "DELETE").Name("thumbnail")
	router.HandleFunc("/healthz", noop).Methods("GET")

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error: %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("GetRoutes() returned %d routes, want 3: %+v", len(routes), routes)
	}
	if routes[0].Name != "thumbnail" || routes[0].Method != "GET" {
		t.Errorf("routes[0] = %+v", routes[0])
	}
	if routes[1].Method != "DELETE" {
		t.Errorf("routes[1] = %+v", routes[1])
	}
	if !strings.HasPrefix(routes[2].Path, "/healthz") {
		t.Errorf("routes[2] = %+v", routes[2])
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/api/thumbnail/{path:.*}": "api/thumbnail",
		"/api/stats":               "api/stats",
		"/healthz":                 "healthz",
		"/":                        "",
	}
	for path, want := range tests {
		if got := getRouteGroup(path); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestApplyMemoryBudget(t *testing.T) {
	budget := memory.Budget{Configured: true, Source: "MEMORY_LIMIT", GoMemLimit: 1 << 30}

	t.Run("derives entries when unset", func(t *testing.T) {
		clearConfigEnv(t)
		config, err := configFromEnv()
		if err != nil {
			t.Fatalf("configFromEnv() error: %v", err)
		}
		config.ApplyMemoryBudget(budget)
		if want := budget.CacheEntries(BudgetEdge); config.MemoryCacheEntries != want {
			t.Errorf("MemoryCacheEntries = %d, want %d", config.MemoryCacheEntries, want)
		}
	})

	t.Run("explicit value wins", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("MEMORY_CACHE_ENTRIES", "42")
		config, err := configFromEnv()
		if err != nil {
			t.Fatalf("configFromEnv() error: %v", err)
		}
		config.ApplyMemoryBudget(budget)
		if config.MemoryCacheEntries != 42 {
			t.Errorf("MemoryCacheEntries = %d, want 42", config.MemoryCacheEntries)
		}
	})

	t.Run("no budget keeps default", func(t *testing.T) {
		clearConfigEnv(t)
		config, err := configFromEnv()
		if err != nil {
			t.Fatalf("configFromEnv() error: %v", err)
		}
		config.ApplyMemoryBudget(memory.Budget{Source: "none"})
		if config.MemoryCacheEntries != 512 {
			t.Errorf("MemoryCacheEntries = %d, want 512", config.MemoryCacheEntries)
		}
	})
}
