package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueRunsTasksInOrderWithSingleWorker(t *testing.T) {
	q := NewQueue("serial", 1)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		q.Submit(func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	q.Close()

	if len(order) != 50 {
		t.Fatalf("ran %d tasks, want 50", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestQueueBoundsConcurrency(t *testing.T) {
	const limit = 3
	q := NewQueue("bounded", limit)

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		q.Submit(func(context.Context) {
			defer wg.Done()
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
		})
	}
	wg.Wait()
	q.Close()

	if got := peak.Load(); got > limit {
		t.Errorf("peak concurrency = %d, want <= %d", got, limit)
	}
	if got := q.Stats().Completed; got != 20 {
		t.Errorf("Completed = %d, want 20", got)
	}
}

func TestQueueCancelBeforeStartSkipsTask(t *testing.T) {
	q := NewQueue("cancel", 1)
	defer q.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	q.Submit(func(context.Context) {
		close(started)
		<-release
	})
	<-started

	var ran atomic.Bool
	task, err := q.Submit(func(context.Context) { ran.Store(true) })
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	task.Cancel()
	if !task.Cancelled() {
		t.Error("Cancelled() = false after Cancel()")
	}
	close(release)

	done := make(chan struct{})
	q.Submit(func(context.Context) { close(done) })
	<-done

	if ran.Load() {
		t.Error("cancelled task ran")
	}
	if got := q.Stats().Skipped; got != 1 {
		t.Errorf("Skipped = %d, want 1", got)
	}
}

func TestQueueCancelWhileRunningCancelsContext(t *testing.T) {
	q := NewQueue("running", 1)
	defer q.Close()

	started := make(chan struct{})
	observed := make(chan error, 1)
	task, err := q.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		observed <- ctx.Err()
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started
	task.Cancel()

	select {
	case err := <-observed:
		if err != context.Canceled {
			t.Errorf("ctx.Err() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("running task never observed cancellation")
	}
}

func TestQueueSubmitAfterClose(t *testing.T) {
	q := NewQueue("closed", 2)
	q.Close()
	q.Close()

	var ran atomic.Bool
	task, err := q.Submit(func(context.Context) { ran.Store(true) })

	if !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() error = %v, want ErrClosed", err)
	}
	if task != nil {
		t.Error("Submit() after Close returned a task")
	}
	time.Sleep(10 * time.Millisecond)
	if ran.Load() {
		t.Error("task submitted after Close ran")
	}
}

func TestQueueCloseDrainsPending(t *testing.T) {
	q := NewQueue("drain", 1)

	var count atomic.Int64
	for i := 0; i < 10; i++ {
		q.Submit(func(context.Context) {
			time.Sleep(time.Millisecond)
			count.Add(1)
		})
	}
	q.Close()

	if got := count.Load(); got != 10 {
		t.Errorf("ran %d tasks before Close returned, want 10", got)
	}
	stats := q.Stats()
	if stats.Pending != 0 || stats.Running != 0 {
		t.Errorf("stats after Close = %+v, want nothing pending or running", stats)
	}
	if stats.Name != "drain" || stats.Concurrency != 1 {
		t.Errorf("stats identity = %q/%d, want drain/1", stats.Name, stats.Concurrency)
	}
}

func TestNewQueueMinimumConcurrency(t *testing.T) {
	q := NewQueue("zero", 0)
	defer q.Close()

	if got := q.Stats().Concurrency; got != 1 {
		t.Errorf("Concurrency = %d, want 1", got)
	}
	if q.Name() != "zero" {
		t.Errorf("Name() = %q, want zero", q.Name())
	}
}
