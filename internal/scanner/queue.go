package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/seriarr/seriarr/internal/models"
)

// Queue errors.
var (
	ErrQueueClosed = errors.New("queue is closed")
	ErrQueueFull   = errors.New("queue is full")
	ErrPullTimeout = errors.New("pull timed out")
)

// Bounded is a fixed-capacity FIFO of media files. Producers block on Push
// when the queue is full (backpressure) or use TryPush for a per-item
// rejection instead.
type Bounded struct {
	mu     sync.Mutex
	items  chan models.MediaFile
	done   chan struct{}
	closed bool
}

// NewBounded creates a bounded queue with the given capacity.
func NewBounded(capacity int) *Bounded {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded{
		items: make(chan models.MediaFile, capacity),
		done:  make(chan struct{}),
	}
}

// Push enqueues an item, blocking while the queue is full. It fails when the
// queue is closed or the context is cancelled. Close unblocks a waiting Push.
func (q *Bounded) Push(ctx context.Context, item models.MediaFile) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.mu.Unlock()

	select {
	case q.items <- item:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues an item without blocking, returning ErrQueueFull when at
// capacity.
func (q *Bounded) TryPush(item models.MediaFile) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pull dequeues one item, blocking up to timeout. A closed and drained queue
// returns ErrQueueClosed; an empty one returns ErrPullTimeout.
func (q *Bounded) Pull(ctx context.Context, timeout time.Duration) (models.MediaFile, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item := <-q.items:
		return item, nil
	case <-q.done:
		// Closed, but queued items still drain.
		select {
		case item := <-q.items:
			return item, nil
		default:
			return models.MediaFile{}, ErrQueueClosed
		}
	case <-timer.C:
		return models.MediaFile{}, ErrPullTimeout
	case <-ctx.Done():
		return models.MediaFile{}, ctx.Err()
	}
}

// Drain pulls every remaining item until the queue is closed and empty.
func (q *Bounded) Drain(ctx context.Context, timeout time.Duration) ([]models.MediaFile, error) {
	var out []models.MediaFile
	for {
		item, err := q.Pull(ctx, timeout)
		switch {
		case errors.Is(err, ErrQueueClosed):
			return out, nil
		case err != nil:
			return out, err
		default:
			out = append(out, item)
		}
	}
}

// Close marks the queue closed; queued items remain pullable. Idempotent.
func (q *Bounded) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Len returns the number of queued items.
func (q *Bounded) Len() int {
	return len(q.items)
}

// Cap returns the configured capacity.
func (q *Bounded) Cap() int {
	return cap(q.items)
}
