package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Queue runs submitted tasks in FIFO order on a fixed number of goroutines.
//
// Submit never blocks: pending tasks are held in an unbounded list until a
// worker is free. A Queue created with concurrency 1 runs tasks strictly one
// at a time in submission order, which makes it usable as a serial
// execution context.
type Queue struct {
	name        string
	concurrency int

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*Task
	closed  bool
	wg      sync.WaitGroup

	running   atomic.Int64
	completed atomic.Int64
	skipped   atomic.Int64
}

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("workers: queue closed")

// Task is the handle of one submitted unit of work.
type Task struct {
	ctx    context.Context
	cancel context.CancelFunc
	fn     func(ctx context.Context)
}

// Cancel marks the task cancelled. A task that has not started yet is
// skipped; a running task observes ctx.Done().
func (t *Task) Cancel() {
	t.cancel()
}

// Cancelled reports whether Cancel was called or the task has finished.
func (t *Task) Cancelled() bool {
	return t.ctx.Err() != nil
}

// QueueStats is a point-in-time snapshot of a Queue.
type QueueStats struct {
	Name        string `json:"name"`
	Concurrency int    `json:"concurrency"`
	Pending     int    `json:"pending"`
	Running     int64  `json:"running"`
	Completed   int64  `json:"completed"`
	Skipped     int64  `json:"skipped"`
}

// NewQueue starts a queue with the given number of workers (minimum 1).
func NewQueue(name string, concurrency int) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}

	q := &Queue{
		name:        name,
		concurrency: concurrency,
	}
	q.cond = sync.NewCond(&q.mu)

	for i := 0; i < concurrency; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	return q
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Submit enqueues fn. After Close it returns ErrClosed and fn never runs.
func (q *Queue) Submit(fn func(ctx context.Context)) (*Task, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.skipped.Add(1)
		return nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{ctx: ctx, cancel: cancel, fn: fn}
	q.pending = append(q.pending, t)
	q.mu.Unlock()

	q.cond.Signal()
	return t, nil
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		t := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.run(t)
	}
}

func (q *Queue) run(t *Task) {
	defer t.cancel()

	if t.ctx.Err() != nil {
		q.skipped.Add(1)
		return
	}

	q.running.Add(1)
	defer q.running.Add(-1)

	t.fn(t.ctx)
	q.completed.Add(1)
}

// Close stops accepting new tasks, lets the workers finish everything
// already queued and waits for them to exit. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.wg.Wait()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.cond.Broadcast()
	q.wg.Wait()
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	pending := len(q.pending)
	q.mu.Unlock()

	return QueueStats{
		Name:        q.name,
		Concurrency: q.concurrency,
		Pending:     pending,
		Running:     q.running.Load(),
		Completed:   q.completed.Load(),
		Skipped:     q.skipped.Load(),
	}
}
