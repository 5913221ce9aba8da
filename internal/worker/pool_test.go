package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	pool := NewPool(func(ctx context.Context, job Job) error {
		mu.Lock()
		seen[job.SubmissionID] = true
		mu.Unlock()
		return nil
	}, Options{Workers: 3, QueueSize: 10})
	pool.Start()

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := pool.Enqueue(Job{SubmissionID: id}); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	if err := pool.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 jobs handled, got %v", seen)
	}
}

func TestPoolRetriesUntilSuccess(t *testing.T) {
	var attempts int32
	pool := NewPool(func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("sheet api unavailable")
		}
		return nil
	}, Options{Workers: 1, MaxAttempts: 3, RetryDelay: time.Millisecond})
	pool.Start()

	if err := pool.Enqueue(Job{SubmissionID: "s1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// Stop waits for scheduled retries too.
	if err := pool.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestPoolReportsExhaustedJobs(t *testing.T) {
	var exhausted []Job
	var mu sync.Mutex
	pool := NewPool(func(ctx context.Context, job Job) error {
		return errors.New("boom")
	}, Options{
		Workers:     2,
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
		OnExhausted: func(job Job, err error) {
			mu.Lock()
			exhausted = append(exhausted, job)
			mu.Unlock()
		},
	})
	pool.Start()
	pool.Enqueue(Job{SubmissionID: "s1"})
	if err := pool.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(exhausted) != 1 || exhausted[0].Attempt != 1 {
		t.Fatalf("expected one exhausted job on its second attempt, got %+v", exhausted)
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	var failed int32
	pool := NewPool(func(ctx context.Context, job Job) error {
		panic("nil map")
	}, Options{Workers: 1, OnExhausted: func(Job, error) { atomic.AddInt32(&failed, 1) }})
	pool.Start()
	pool.Enqueue(Job{SubmissionID: "s1"})
	pool.Stop(context.Background())
	if failed != 1 {
		t.Fatalf("panicking job should be reported as failed")
	}
}

func TestPoolQueueFull(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	pool := NewPool(func(ctx context.Context, job Job) error {
		if job.SubmissionID == "first" {
			close(started)
		}
		<-release
		return nil
	}, Options{Workers: 1, QueueSize: 1})
	pool.Start()

	if err := pool.Enqueue(Job{SubmissionID: "first"}); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	<-started
	if err := pool.Enqueue(Job{SubmissionID: "second"}); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}
	if err := pool.Enqueue(Job{SubmissionID: "third"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	close(release)
	pool.Stop(context.Background())
}

func TestPoolRejectsAfterStop(t *testing.T) {
	pool := NewPool(func(ctx context.Context, job Job) error { return nil }, Options{})
	pool.Start()
	pool.Stop(context.Background())
	if err := pool.Enqueue(Job{SubmissionID: "late"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestPoolStopDeadlineCancelsHandlers(t *testing.T) {
	cancelled := make(chan struct{})
	pool := NewPool(func(ctx context.Context, job Job) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}, Options{Workers: 1})
	pool.Start()
	pool.Enqueue(Job{SubmissionID: "slow"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("handler context was not cancelled")
	}
}
