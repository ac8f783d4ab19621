// Package memory controls Go heap usage for the thumbnail service in
// containerized environments.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main, before any images are decoded:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ...
//	}
//
// Environment variables:
//
//   - GOMEMLIMIT: Standard Go variable. Takes precedence over everything else.
//   - MEMORY_LIMIT: Container memory limit in bytes, usually injected through
//     the Kubernetes Downward API.
//   - MEMORY_RATIO: Fraction of MEMORY_LIMIT given to the Go heap (default
//     0.80). libvips allocates outside the Go heap, so leave headroom when
//     the vips backend is enabled.
//
// Kubernetes example:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.75"
//
// # Decode Backpressure
//
// [Monitor] samples heap allocation and pauses when usage crosses the
// critical water mark, resuming once it falls below the high water mark.
// The pipeline passes the monitor as its downsample gate, so a decode task
// calls WaitIfPaused before allocating a full-size bitmap:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	loader, err := thumbnail.New(thumbnail.Config{Gate: monitor, ...})
//
// WaitIfPaused returns false once the monitor is stopped, which lets
// blocked decode tasks fail promptly during shutdown.
package memory
