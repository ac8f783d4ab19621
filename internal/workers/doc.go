/*
Package workers provides bounded-concurrency work queues and helpers for
sizing them in containerized environments.

# Queues

A Queue runs submitted functions in FIFO order on a fixed number of
goroutines. Submitting never blocks, so two queues can hand work to each
other without risking a deadlock:

	decode := workers.NewQueue("downsample", 2)
	defer decode.Close()

	task, err := decode.Submit(func(ctx context.Context) {
		// ctx is cancelled if task.Cancel() is called
	})
	if err != nil {
		// queue already closed
	}

	// Best effort: skipped if not started yet, ctx.Done() otherwise
	task.Cancel()

A queue with concurrency 1 executes tasks strictly one after another in
submission order. The thumbnail pipeline uses such a queue as its
coordination context: everything that touches its request map runs there.

# Sizing

Inside a container, runtime.NumCPU() reports the host's CPUs while
GOMAXPROCS reflects the cgroup limit (Go 1.19+). Count scales GOMAXPROCS by a
workload multiplier:

	// 2 workers per available CPU, at most 16
	n := workers.Count(2.0, 16)

ForStage resolves the size of one pipeline stage from an environment
variable, the configured value and a default, in that order:

	// DISK_IO_WORKERS=6 overrides the configured 3
	n := workers.ForStage("DISK_IO_WORKERS", cfg.DiskIO, 3)

Stage overrides are useful for:
  - Serializing a contention-heavy stage (raw fetch over NFS, final encode)
  - Debugging resource issues
  - Temporarily limiting concurrency
*/
package workers
