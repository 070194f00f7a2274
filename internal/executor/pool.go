// Package executor provides shared, purpose-specific worker pools.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Pool runs submitted tasks on a fixed set of worker goroutines.
type Pool struct {
	mu sync.RWMutex

	name   string
	size   int
	tasks  chan *Future
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewPool creates a pool with the given worker count and starts its workers.
func NewPool(name string, size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:   name,
		size:   size,
		tasks:  make(chan *Future, size*4),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	logger.Debug("pool started",
		slog.String("pool", name),
		slog.Int("workers", size))

	return p
}

// Size returns the worker count.
func (p *Pool) Size() int {
	return p.size
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Submit enqueues a task and returns its future. Submission blocks while the
// internal task buffer is full and fails with ErrPoolClosed after Shutdown.
func (p *Pool) Submit(fn TaskFunc) (*Future, error) {
	if fn == nil {
		return nil, fmt.Errorf("submitting to pool %s: nil task", p.name)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	f := newFuture(fn)
	select {
	case p.tasks <- f:
		return f, nil
	case <-p.ctx.Done():
		return nil, ErrPoolClosed
	}
}

// Shutdown stops accepting work, waits for queued tasks to drain, and
// releases the workers. It is idempotent.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()

	p.logger.Debug("pool stopped", slog.String("pool", p.name))
}

// worker executes tasks until the task channel is closed.
func (p *Pool) worker() {
	defer p.wg.Done()

	for f := range p.tasks {
		if f.cancelled.Load() {
			f.complete(nil, ErrCancelled)
			continue
		}
		f.started.Store(true)
		p.run(f)
	}
}

// run executes a single task, converting panics into errors so a bad task
// never takes a worker down.
func (p *Pool) run(f *Future) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				slog.String("pool", p.name),
				slog.Any("panic", r))
			f.complete(nil, fmt.Errorf("task panicked: %v", r))
		}
	}()

	value, err := f.fn(p.ctx)
	f.complete(value, err)
}
