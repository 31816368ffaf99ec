// Package worker runs the background tier: crawl jobs, index builds, and the
// periodic full reindex. Tasks run on a fixed pool of workers with bounded
// retry for transient failures.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	werrors "github.com/webseek/webseek/internal/errors"
)

// Task is one unit of background work. A task that fails with a retryable
// error is re-run after RetryDelay, up to MaxAttempts runs in total.
type Task struct {
	Kind        string
	Run         func(ctx context.Context) error
	MaxAttempts int
	RetryDelay  time.Duration
}

// Pool executes tasks on a fixed number of workers.
type Pool struct {
	queue  chan Task
	logger *slog.Logger

	workers int
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
}

// NewPool creates a pool of workers with a queue holding up to queueSize
// pending tasks.
func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		queue:   make(chan Task, queueSize),
		logger:  logger,
		workers: workers,
	}
}

// Start launches the workers. Tasks submitted before Start wait in the queue.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}
}

// Submit enqueues a task. It fails when the pool is stopped or the queue is
// full; callers treat a full queue as backpressure, not data loss, since the
// task can be re-derived from persisted state.
func (p *Pool) Submit(task Task) error {
	if task.MaxAttempts <= 0 {
		task.MaxAttempts = 1
	}
	// The send stays under the mutex so Stop cannot close the queue between
	// the stopped check and the enqueue.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return werrors.New(werrors.ErrCodeConflict, "worker pool is stopped")
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return werrors.Newf(werrors.ErrCodeInternal, "worker queue full (%d pending)", cap(p.queue))
	}
}

// Stop prevents new submissions, cancels running tasks, and waits for the
// workers to exit. Queued tasks that have not started are dropped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	cancel := p.cancel
	p.mu.Unlock()

	close(p.queue)
	if started {
		cancel()
		p.wg.Wait()
	}
}

func (p *Pool) work(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.runTask(ctx, id, task)
		}
	}
}

func (p *Pool) runTask(ctx context.Context, workerID int, task Task) {
	for attempt := 1; ; attempt++ {
		err := task.Run(ctx)
		if err == nil {
			p.logger.Debug("task_done", slog.String("kind", task.Kind),
				slog.Int("worker", workerID), slog.Int("attempt", attempt))
			return
		}
		if ctx.Err() != nil {
			p.logger.Info("task_abandoned", slog.String("kind", task.Kind),
				slog.String("error", err.Error()))
			return
		}
		if attempt >= task.MaxAttempts || !werrors.IsRetryable(err) {
			p.logger.Error("task_failed", slog.String("kind", task.Kind),
				slog.Int("attempts", attempt), slog.String("error", err.Error()))
			return
		}
		p.logger.Warn("task_retrying", slog.String("kind", task.Kind),
			slog.Int("attempt", attempt), slog.Duration("delay", task.RetryDelay),
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(task.RetryDelay):
		}
	}
}
