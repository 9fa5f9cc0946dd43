package dispatch

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"reviewhooks/internal"
)

// ErrQueueFull is returned when the queue is saturated. The HTTP layer maps
// it to a retryable status; webhook senders retry on non-2xx.
var ErrQueueFull = errors.New("dispatch queue is full")

// ErrQueueClosed is returned when enqueueing after Close.
var ErrQueueClosed = errors.New("dispatch queue is closed")

type task struct {
	handler Handler
	event   internal.WebhookEvent
}

// Queue executes (handler, event) pairs on a fixed pool of workers backed by
// a bounded channel. Enqueue never blocks: saturation is surfaced to the
// caller instead of growing without bound under webhook bursts.
type Queue struct {
	tasks       chan task
	logger      *log.Logger
	taskTimeout time.Duration
	drain       time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts cfg.Workers workers over a channel of cfg.Depth tasks.
// taskTimeout bounds each task's context; outbound calls inside a handler
// inherit it.
func NewQueue(cfg internal.QueueConfig, logger *log.Logger) *Queue {
	if logger == nil {
		logger = internal.NewLogger("dispatch")
	}
	q := &Queue{
		tasks:       make(chan task, cfg.Depth),
		logger:      logger,
		taskTimeout: time.Duration(cfg.TaskTimeoutMS) * time.Millisecond,
		drain:       time.Duration(cfg.DrainTimeoutMS) * time.Millisecond,
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue accepts a task for asynchronous execution and returns immediately.
func (q *Queue) Enqueue(h Handler, event internal.WebhookEvent) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	defer q.mu.Unlock()

	select {
	case q.tasks <- task{handler: h, event: event}:
		internal.IncDispatched(event.Provider)
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting tasks and waits for in-flight and queued tasks to
// drain, up to the configured deadline.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	deadline := q.drain
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	select {
	case <-done:
		return nil
	case <-time.After(deadline):
		return errors.New("dispatch queue drain timed out")
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

// run isolates one task: a panic or failure terminates only this task and
// the worker keeps serving the queue.
func (q *Queue) run(t task) {
	ctx := context.Background()
	var cancel context.CancelFunc = func() {}
	if q.taskTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, q.taskTimeout)
	}
	defer cancel()

	outcome := q.safeRun(ctx, t)
	switch outcome.Status {
	case StatusDone:
		q.logger.Printf("task done provider=%s kind=%s slug=%s", t.event.Provider, t.event.Kind, t.event.URLSlug)
	case StatusSkipped:
		q.logger.Printf("task skipped provider=%s kind=%s reason=%q", t.event.Provider, t.event.Kind, outcome.Reason)
	case StatusFailed:
		internal.IncTaskFailure(t.event.Provider)
		q.logger.Printf("task failed provider=%s kind=%s err=%v", t.event.Provider, t.event.Kind, outcome.Err)
	}
}

func (q *Queue) safeRun(ctx context.Context, t task) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Fail(errors.New("task panicked"))
			q.logger.Printf("task panic provider=%s kind=%s: %v", t.event.Provider, t.event.Kind, r)
		}
	}()
	return t.handler(ctx, t.event)
}
