package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Common errors returned by futures and pools.
var (
	ErrPoolClosed  = errors.New("pool is closed")
	ErrCancelled   = errors.New("task cancelled")
	ErrWaitTimeout = errors.New("wait timed out")
)

// TaskFunc is a unit of work submitted to a pool.
type TaskFunc func(ctx context.Context) (any, error)

// Future represents the eventual result of a submitted task.
type Future struct {
	fn TaskFunc

	done      chan struct{}
	once      sync.Once
	value     any
	err       error
	started   atomic.Bool
	cancelled atomic.Bool
}

func newFuture(fn TaskFunc) *Future {
	return &Future{fn: fn, done: make(chan struct{})}
}

// complete records the outcome exactly once.
func (f *Future) complete(value any, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed when the task has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the task has finished.
func (f *Future) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the task finishes or the context is cancelled.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitTimeout blocks until the task finishes or the timeout elapses,
// in which case it returns ErrWaitTimeout.
func (f *Future) WaitTimeout(d time.Duration) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-time.After(d):
		return nil, ErrWaitTimeout
	}
}

// Result returns the outcome of a finished task. It reports false when the
// task has not finished yet.
func (f *Future) Result() (any, error, bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		return nil, nil, false
	}
}

// Cancel marks the task cancelled. Cancellation is cooperative: work that has
// already started runs to completion, but unstarted work is dropped and the
// future completes with ErrCancelled. Returns true if the task had not
// started when Cancel was called.
func (f *Future) Cancel() bool {
	f.cancelled.Store(true)
	if !f.started.Load() {
		f.complete(nil, ErrCancelled)
		return true
	}
	return false
}
