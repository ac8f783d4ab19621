package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"thumbcache/internal/logging"
	"thumbcache/internal/memory"
	"thumbcache/internal/thumbnail"
	"thumbcache/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Disk cache backends.
const (
	DiskCacheFile   = "file"
	DiskCacheSQLite = "sqlite"
	DiskCacheNone   = "none"
)

// Environment variables that override stage concurrency.
const (
	EnvDataLoadingWorkers = "DATA_LOADING_WORKERS"
	EnvDiskIOWorkers      = "DISK_IO_WORKERS"
	EnvDownsampleWorkers  = "DOWNSAMPLE_WORKERS"
	EnvEncodeWorkers      = "ENCODE_WORKERS"
	EnvDecompressWorkers  = "DECOMPRESS_WORKERS"
)

// Config holds all application configuration
type Config struct {
	SourceDir          string
	SourceURL          string
	SourceRPS          float64
	CacheDir           string
	DiskCache          string
	MemoryCacheEntries int
	Quality            float64
	Port               string
	MetricsPort        string
	LogHealthChecks    bool
	MetricsEnabled     bool
	Concurrency        thumbnail.Concurrency

	// Derived paths
	ThumbnailDir string
	SQLitePath   string

	// DiskCacheEnabled is false when the cache directory is unusable or
	// DiskCache is "none".
	DiskCacheEnabled bool

	// memoryEntriesSet is true when MEMORY_CACHE_ENTRIES was given.
	memoryEntriesSet bool
}

// BudgetEdge is the bitmap edge in pixels used to size the memory tier from
// the memory budget: a default 256 point thumbnail at 2x.
const BudgetEdge = 512

// ApplyMemoryBudget sizes the memory tier from b unless
// MEMORY_CACHE_ENTRIES was set explicitly.
func (c *Config) ApplyMemoryBudget(b memory.Budget) {
	if c.memoryEntriesSet {
		return
	}
	if n := b.CacheEntries(BudgetEdge); n > 0 {
		logging.Info("  MEMORY_CACHE_ENTRIES:  %d (derived from %s heap limit)", n, formatBytes(b.GoMemLimit))
		c.MemoryCacheEntries = n
	}
}

// LoadEnvFile seeds the environment from a .env file. Variables already set
// win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Debug("No %s file found", path)
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	logging.Info("Loaded environment from %s", path)
	return nil
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()
	return loadConfig()
}

// LoadToolConfig loads the same configuration as LoadConfig for command-line
// tools, without the banner and system information.
func LoadToolConfig() (*Config, error) {
	return loadConfig()
}

func loadConfig() (*Config, error) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config, err := configFromEnv()
	if err != nil {
		return nil, err
	}

	logging.Info("  SOURCE_DIR:            %s", valueOrNone(config.SourceDir))
	logging.Info("  SOURCE_URL:            %s", valueOrNone(config.SourceURL))
	logging.Info("  SOURCE_RPS:            %s", rpsString(config.SourceRPS))
	logging.Info("  CACHE_DIR:             %s", config.CacheDir)
	logging.Info("  DISK_CACHE:            %s", config.DiskCache)
	logging.Info("  MEMORY_CACHE_ENTRIES:  %d", config.MemoryCacheEntries)
	logging.Info("  THUMBNAIL_QUALITY:     %.2f", config.Quality)
	logging.Info("  PORT:                  %s", config.Port)
	logging.Info("  METRICS_PORT:          %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:       %v", config.MetricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:     %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if config.SourceDir != "" {
		config.SourceDir, err = filepath.Abs(config.SourceDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve source directory path: %w", err)
		}
		logging.Info("  Source directory (absolute): %s", config.SourceDir)
		if err := ensureDirectory(config.SourceDir, "source"); err != nil {
			logging.Warn("  Source directory issue: %v", err)
		}
	}

	config.CacheDir, err = filepath.Abs(config.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	logging.Info("  Cache directory (absolute): %s", config.CacheDir)

	config.ThumbnailDir = filepath.Join(config.CacheDir, "thumbnails")
	config.SQLitePath = filepath.Join(config.CacheDir, "thumbnails.db")

	switch config.DiskCache {
	case DiskCacheFile:
		config.DiskCacheEnabled = setupOptionalDir(config.ThumbnailDir, "thumbnail cache")
	case DiskCacheSQLite:
		config.DiskCacheEnabled = setupOptionalDir(config.CacheDir, "thumbnail database")
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Disk cache:  %s", enabledString(config.DiskCacheEnabled))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// configFromEnv reads and validates every variable without touching the
// filesystem.
func configFromEnv() (*Config, error) {
	config := &Config{
		SourceDir:          getEnv("SOURCE_DIR", ""),
		SourceURL:          getEnv("SOURCE_URL", ""),
		SourceRPS:          getEnvFloat("SOURCE_RPS", 0),
		CacheDir:           getEnv("CACHE_DIR", "/cache"),
		DiskCache:          strings.ToLower(getEnv("DISK_CACHE", DiskCacheFile)),
		MemoryCacheEntries: getEnvInt("MEMORY_CACHE_ENTRIES", 512),
		Quality:            getEnvFloat("THUMBNAIL_QUALITY", thumbnail.DefaultCompressionQuality),
		Port:               getEnv("PORT", "8080"),
		MetricsPort:        getEnv("METRICS_PORT", "9090"),
		LogHealthChecks:    getEnvBool("LOG_HEALTH_CHECKS", true),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		memoryEntriesSet:   os.Getenv("MEMORY_CACHE_ENTRIES") != "",
	}

	if config.SourceDir != "" && config.SourceURL != "" {
		return nil, fmt.Errorf("SOURCE_DIR and SOURCE_URL are mutually exclusive")
	}
	if config.SourceDir == "" && config.SourceURL == "" {
		config.SourceDir = "/images"
	}

	switch config.DiskCache {
	case DiskCacheFile, DiskCacheSQLite, DiskCacheNone:
	default:
		return nil, fmt.Errorf("invalid DISK_CACHE %q: want %s, %s or %s",
			config.DiskCache, DiskCacheFile, DiskCacheSQLite, DiskCacheNone)
	}

	if config.Quality <= 0 || config.Quality > 1 {
		logging.Warn("  THUMBNAIL_QUALITY %.2f out of range (0-1], using default: %.2f",
			config.Quality, thumbnail.DefaultCompressionQuality)
		config.Quality = thumbnail.DefaultCompressionQuality
	}

	if config.MemoryCacheEntries < 1 {
		logging.Warn("  MEMORY_CACHE_ENTRIES must be positive, using default: 512")
		config.MemoryCacheEntries = 512
	}

	if config.SourceRPS < 0 {
		config.SourceRPS = 0
	}

	config.Concurrency = concurrencyFromEnv()
	return config, nil
}

func concurrencyFromEnv() thumbnail.Concurrency {
	d := thumbnail.DefaultConcurrency()
	return thumbnail.Concurrency{
		DataLoading:   workers.ForStage(EnvDataLoadingWorkers, 0, d.DataLoading),
		DiskIO:        workers.ForStage(EnvDiskIOWorkers, 0, d.DiskIO),
		Downsampling:  workers.ForStage(EnvDownsampleWorkers, 0, d.Downsampling),
		Encoding:      workers.ForStage(EnvEncodeWorkers, 0, d.Encoding),
		Decompression: workers.ForStage(EnvDecompressWorkers, 0, d.Decompression),
	}
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func rpsString(rps float64) string {
	if rps <= 0 {
		return "unlimited"
	}
	return strconv.FormatFloat(rps, 'f', -1, 64) + "/s"
}

// LogMemoryConfig logs how the Go memory limit was configured
func LogMemoryConfig(mc memory.Budget) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	if !mc.Configured {
		logging.Info("  GOMEMLIMIT: not configured")
		logging.Info("  Set MEMORY_LIMIT (bytes) or GOMEMLIMIT to enable decode backpressure")
		return
	}

	logging.Info("  Source:          %s", mc.Source)
	logging.Info("  GOMEMLIMIT:      %s", formatBytes(mc.GoMemLimit))
	if mc.ContainerLimit > 0 {
		logging.Info("  Container limit: %s", formatBytes(mc.ContainerLimit))
		logging.Info("  Ratio:           %.0f%%", mc.Ratio*100)
	}
	logging.Info("  Memory tier:     up to %d thumbnails of %dpx", mc.CacheEntries(BudgetEdge), BudgetEdge)
}

// PipelineInfo describes the thumbnail pipeline for the startup log
type PipelineInfo struct {
	Loader      string
	DiskCache   string
	Concurrency thumbnail.Concurrency
	Vips        bool
	Duration    time.Duration
}

// LogPipelineInit logs thumbnail pipeline initialization
func LogPipelineInit(info PipelineInfo) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PIPELINE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Original loader: %s", info.Loader)
	logging.Info("  Disk cache:      %s", info.DiskCache)
	if info.Vips {
		logging.Info("  Decoder:         libvips + imaging")
	} else {
		logging.Info("  Decoder:         imaging")
	}
	logging.Info("  Stage workers:   data=%d disk=%d downsample=%d encode=%d decompress=%d",
		info.Concurrency.DataLoading, info.Concurrency.DiskIO, info.Concurrency.Downsampling,
		info.Concurrency.Encoding, info.Concurrency.Decompression)
	logging.Info("  [OK] Pipeline ready in %v", info.Duration)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., prefix handlers)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Thumbnails:    http://0.0.0.0:%s/api/thumbnail/{path}", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
  _   _                     _                     _
 | |_| |__  _   _ _ __ ___ | |__   ___ __ _  ___| |__   ___
 | __| '_ \| | | | '_ ' _ \| '_ \ / __/ _' |/ __| '_ \ / _ \
 | |_| | | | |_| | | | | | | |_) | (_| (_| | (__| | | |  __/
  \__|_| |_|\__,_|_| |_| |_|_.__/ \___\__,_|\___|_| |_|\___|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist")
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Invalid number for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
