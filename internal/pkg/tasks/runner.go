// internal/pkg/tasks/runner.go
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Runner executes fire-and-forget side effects on a small worker pool with
// isolated failure handling: a failing or panicking task produces a single
// log line and can never block or corrupt the path that submitted it.
type Runner struct {
	queue   chan task
	logger  *zap.Logger
	wg      sync.WaitGroup
	once    sync.Once
	timeout time.Duration
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// NewRunner starts workers goroutines draining a queue of size buffer.
func NewRunner(workers, buffer int, timeout time.Duration, logger *zap.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 64
	}
	r := &Runner{
		queue:   make(chan task, buffer),
		logger:  logger,
		timeout: timeout,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	return r
}

// Submit enqueues a task without blocking. When the queue is full the task
// is dropped and logged; side effects are best-effort by contract.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) {
	select {
	case r.queue <- task{name: name, fn: fn}:
	default:
		r.logger.Warn("task queue full, dropping task", zap.String("task", name))
	}
}

func (r *Runner) work() {
	defer r.wg.Done()
	for t := range r.queue {
		r.run(t)
	}
}

func (r *Runner) run(t task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("task panicked", zap.String("task", t.name), zap.Any("panic", rec))
		}
	}()

	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := t.fn(ctx); err != nil {
		r.logger.Warn("task failed", zap.String("task", t.name), zap.Error(err))
	}
}

// Close stops accepting tasks and waits for in-flight ones to finish.
func (r *Runner) Close() {
	r.once.Do(func() {
		close(r.queue)
	})
	r.wg.Wait()
}
