package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"thumbcache/internal/cache"
	"thumbcache/internal/codec"
	"thumbcache/internal/filesystem"
	"thumbcache/internal/handlers"
	"thumbcache/internal/logging"
	"thumbcache/internal/memory"
	"thumbcache/internal/metrics"
	"thumbcache/internal/middleware"
	"thumbcache/internal/startup"
	"thumbcache/internal/thumbnail"
)

const (
	collectorInterval = 15 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	startTime := time.Now()

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := startup.LoadEnvFile(envFile); err != nil {
		startup.LogFatal("Env file error: %v", err)
	}

	// Set GOMEMLIMIT before anything allocates heavily
	budget := memory.ConfigureFromEnv()
	startup.LogMemoryConfig(budget)

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	config.ApplyMemoryBudget(budget)

	volumes := map[string]string{"cache": config.CacheDir}
	if config.SourceDir != "" {
		volumes["source"] = config.SourceDir
	}
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(volumes))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	metrics.InitializeMetrics()

	// Initialize pipeline
	pipelineStart := time.Now()
	if err := codec.InitVips(config.Concurrency.Downsampling); err != nil {
		logging.Warn("libvips unavailable, falling back to imaging: %v", err)
	}

	memoryCache, err := cache.NewMemory(config.MemoryCacheEntries)
	if err != nil {
		startup.LogFatal("Failed to create memory cache: %v", err)
	}

	disk, err := startup.OpenDiskCache(config)
	if err != nil {
		startup.LogFatal("Failed to open disk cache: %v", err)
	}

	loader, loaderName, err := startup.NewDataLoader(config)
	if err != nil {
		startup.LogFatal("Failed to create original loader: %v", err)
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	pipelineConfig := thumbnail.Config{
		Memory:             memoryCache,
		DataLoader:         loader,
		Codec:              codec.Standard{},
		CompressionQuality: config.Quality,
		Concurrency:        config.Concurrency,
		Gate:               monitor,
	}
	if disk != nil {
		pipelineConfig.Disk = disk
	}
	pipeline, err := thumbnail.New(pipelineConfig)
	if err != nil {
		startup.LogFatal("Failed to start pipeline: %v", err)
	}

	startup.LogPipelineInit(startup.PipelineInfo{
		Loader:      loaderName,
		DiskCache:   startup.DiskCacheName(config),
		Concurrency: config.Concurrency,
		Vips:        codec.IsVipsAvailable(),
		Duration:    time.Since(pipelineStart),
	})

	// Initialize handlers
	opts := handlers.Options{
		Memory:  memoryCache,
		Quality: config.Quality,
	}
	if disk != nil {
		opts.Disk = disk
	}
	h := handlers.New(pipeline, opts)

	router := mux.NewRouter()
	h.RegisterRoutes(router)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	var handler http.Handler = router
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	collector := metrics.NewCollector(h, collectorInterval)
	collector.Start()

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort, h)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(shutdownDeps{
		server:        srv,
		metricsServer: metricsSrv,
		handlers:      h,
		collector:     collector,
		monitor:       monitor,
		pipeline:      pipeline,
		disk:          disk,
	})

	h.SetReady(true)
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}

	// ListenAndServe returns as soon as Shutdown starts; wait for the rest.
	<-shutdownDone
}

func newMetricsServer(port string, h *handlers.Handlers) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	r.HandleFunc("/health", h.LivenessCheck).Methods("GET", "HEAD")

	return &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

var shutdownDone = make(chan struct{})

type shutdownDeps struct {
	server        *http.Server
	metricsServer *http.Server
	handlers      *handlers.Handlers
	collector     *metrics.Collector
	monitor       *memory.Monitor
	pipeline      *thumbnail.Loader
	disk          cache.Persistent
}

func handleShutdown(deps shutdownDeps) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	shutdown(deps, sig.String())
}

func shutdown(deps shutdownDeps, reason string) {
	defer close(shutdownDone)

	startup.LogShutdownInitiated(reason)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	deps.handlers.SetReady(false)

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := deps.server.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	deps.collector.Stop()

	// The monitor releases any downsample blocked on memory before the
	// pipeline drains its queues.
	startup.LogShutdownStep("Stopping memory monitor")
	deps.monitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	startup.LogShutdownStep("Draining thumbnail pipeline")
	deps.pipeline.Close()
	startup.LogShutdownStepComplete("Pipeline closed")

	if deps.disk != nil {
		startup.LogShutdownStep("Closing disk cache")
		if err := deps.disk.Close(); err != nil {
			logging.Warn("Disk cache close error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Disk cache closed")
		}
	}

	if deps.metricsServer != nil {
		if err := deps.metricsServer.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	codec.ShutdownVips()
	startup.LogShutdownComplete()
}
