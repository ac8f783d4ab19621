/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

# Purpose

Source images and the on-disk thumbnail cache frequently live on network
mounts. This package wraps os.Stat, os.Open and os.ReadFile with retry logic
for ESTALE errors, and provides an atomic write used by the disk cache.

# Usage

	info, err := filesystem.StatWithRetry("/images/a.jpg", filesystem.DefaultRetryConfig())

	data, err := filesystem.ReadFileWithRetry("/images/a.jpg", filesystem.DefaultRetryConfig())

	err := filesystem.WriteFileAtomic("/cache/ab/abcd.bin", encoded, 0o644, filesystem.DefaultRetryConfig())

# Retry Behavior

Defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Only ESTALE triggers retries. All other errors fail immediately.

# Metrics

Operations report to the package-level [Observer] when one is installed with
[SetObserver]. Paths are labeled by volume through a [VolumeResolver].
*/
package filesystem
