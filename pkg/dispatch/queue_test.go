package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reviewhooks/internal"
)

func queueConfig(workers, depth int) internal.QueueConfig {
	return internal.QueueConfig{
		Workers:        workers,
		Depth:          depth,
		TaskTimeoutMS:  5000,
		DrainTimeoutMS: 5000,
	}
}

// TestEnqueueRunsTask tests that accepted tasks execute off the caller path.
func TestEnqueueRunsTask(t *testing.T) {
	q := NewQueue(queueConfig(2, 4), nil)
	defer q.Close()

	done := make(chan string, 1)
	h := func(ctx context.Context, event internal.WebhookEvent) Outcome {
		done <- event.Provider
		return Done()
	}

	if err := q.Enqueue(h, internal.WebhookEvent{Provider: "gitlab", Kind: internal.KindPush}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case provider := <-done:
		if provider != "gitlab" {
			t.Fatalf("unexpected provider %q", provider)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("task did not run")
	}
}

// TestEnqueueSaturation tests that a full queue rejects instead of blocking.
func TestEnqueueSaturation(t *testing.T) {
	q := NewQueue(queueConfig(1, 1), nil)

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)
	blocker := func(ctx context.Context, event internal.WebhookEvent) Outcome {
		started.Done()
		<-release
		return Done()
	}

	// First task occupies the single worker, second fills the channel.
	if err := q.Enqueue(blocker, internal.WebhookEvent{Provider: "a"}); err != nil {
		t.Fatalf("enqueue 1: %v", err)
	}
	started.Wait()
	if err := q.Enqueue(blocker, internal.WebhookEvent{Provider: "b"}); err != nil {
		t.Fatalf("enqueue 2: %v", err)
	}

	if err := q.Enqueue(blocker, internal.WebhookEvent{Provider: "c"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	close(release)
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// TestPanicIsolation tests that a panicking task does not take the worker
// down with it.
func TestPanicIsolation(t *testing.T) {
	q := NewQueue(queueConfig(1, 4), nil)
	defer q.Close()

	var ran atomic.Int32
	panicker := func(ctx context.Context, event internal.WebhookEvent) Outcome {
		panic("handler exploded")
	}
	counter := func(ctx context.Context, event internal.WebhookEvent) Outcome {
		ran.Add(1)
		return Done()
	}

	if err := q.Enqueue(panicker, internal.WebhookEvent{Provider: "a"}); err != nil {
		t.Fatalf("enqueue panicker: %v", err)
	}
	if err := q.Enqueue(counter, internal.WebhookEvent{Provider: "b"}); err != nil {
		t.Fatalf("enqueue counter: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ran.Load() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("second task never ran after panic")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestCloseDrains tests that Close waits for queued tasks.
func TestCloseDrains(t *testing.T) {
	q := NewQueue(queueConfig(1, 8), nil)

	var ran atomic.Int32
	slow := func(ctx context.Context, event internal.WebhookEvent) Outcome {
		time.Sleep(20 * time.Millisecond)
		ran.Add(1)
		return Done()
	}
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(slow, internal.WebhookEvent{Provider: "x"}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if ran.Load() != 5 {
		t.Fatalf("expected 5 drained tasks, got %d", ran.Load())
	}
	if err := q.Enqueue(slow, internal.WebhookEvent{Provider: "x"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}
