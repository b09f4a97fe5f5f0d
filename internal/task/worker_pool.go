package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int

	// QueueSize bounds the number of items waiting for a worker
	// If zero or negative, defaults to 1
	QueueSize int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
		QueueSize:   100,
	}
}

// Hooks are invoked around every execution. They run on the worker
// goroutine; AfterExecute runs even when the item panics.
type Hooks[T any] struct {
	BeforeExecute func(workerID int, item T)
	AfterExecute  func(item T, err error)
}

// WorkerPool runs items from a bounded FIFO queue on a fixed number of
// worker goroutines. It treats items as opaque; run decides what
// executing one means.
type WorkerPool[T any] struct {
	queue       *TaskQueue[T]
	workerCount int
	run         func(ctx context.Context, item T) error
	hooks       Hooks[T]

	// wg tracks active worker goroutines
	wg sync.WaitGroup

	// ctx is handed to run and cancelled on shutdown
	ctx    context.Context
	cancel context.CancelFunc

	startOnce    sync.Once
	shutdownOnce sync.Once

	logger *slog.Logger
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool[T any](
	config WorkerPoolConfig,
	run func(ctx context.Context, item T) error,
	logger *slog.Logger,
) *WorkerPool[T] {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool[T]{
		queue:       NewTaskQueue[T](config.QueueSize),
		workerCount: workerCount,
		run:         run,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.With("component", "worker_pool"),
	}
}

// SetHooks installs the execution hooks. Must be called before Start.
func (p *WorkerPool[T]) SetHooks(hooks Hooks[T]) {
	p.hooks = hooks
}

// Start launches the worker goroutines. Calling Start more than once has
// no additional effect.
func (p *WorkerPool[T]) Start() {
	p.startOnce.Do(func() {
		p.logger.Debug("starting worker pool",
			"worker_count", p.workerCount,
			"queue_cap", p.queue.Cap())
		for i := 0; i < p.workerCount; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// Submit queues item, blocking while the queue is full.
func (p *WorkerPool[T]) Submit(ctx context.Context, item T) error {
	return p.queue.Enqueue(ctx, item)
}

// TrySubmit queues item without blocking. Returns ErrPoolFull when the
// queue has no room.
func (p *WorkerPool[T]) TrySubmit(item T) error {
	return p.queue.TryEnqueue(item)
}

// Remove drops queued items for which match returns true. Items already
// picked up by a worker are not affected.
func (p *WorkerPool[T]) Remove(match func(T) bool) []T {
	return p.queue.RemoveFunc(match)
}

// Pending returns a copy of the items waiting for a worker.
func (p *WorkerPool[T]) Pending() []T {
	return p.queue.Items()
}

// Shutdown closes the queue and cancels the execution context without
// waiting for in-flight items. Returns the items that never started.
func (p *WorkerPool[T]) Shutdown() []T {
	var dropped []T
	p.shutdownOnce.Do(func() {
		dropped = p.queue.Close()
		p.cancel()
		p.logger.Debug("worker pool shut down", "dropped_count", len(dropped))
	})
	return dropped
}

// Stop shuts the pool down and waits for the workers to exit.
func (p *WorkerPool[T]) Stop() {
	p.Shutdown()
	p.wg.Wait()
}

func (p *WorkerPool[T]) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)
	for {
		item, ok := p.queue.Dequeue()
		if !ok {
			p.logger.Debug("task queue closed, stopping worker", "worker_id", id)
			return
		}
		p.process(id, item)
	}
}

func (p *WorkerPool[T]) process(workerID int, item T) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			p.logger.Error("recovered from panic in worker",
				"worker_id", workerID,
				"panic", r,
				"stack", string(debug.Stack()))
		}
		if p.hooks.AfterExecute != nil {
			p.hooks.AfterExecute(item, err)
		} else if err != nil {
			p.logger.Error("task execution failed", "worker_id", workerID, "error", err)
		}
	}()

	if p.hooks.BeforeExecute != nil {
		p.hooks.BeforeExecute(workerID, item)
	}
	err = p.run(p.ctx, item)
}
