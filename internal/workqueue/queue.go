// Package workqueue provides a bounded producer-consumer processing queue
// with pluggable worker functions, running item-by-item or in fixed-size
// batches on a shared executor pool.
package workqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/seriarr/seriarr/internal/executor"
)

// Queue errors.
var (
	ErrQueueFull    = errors.New("queue is full")
	ErrNotAccepting = errors.New("queue is not accepting work")
	ErrAlreadyRun   = errors.New("queue already started")
)

// maxConsecutiveEmptyPulls bounds batch-mode polling so the loop terminates
// even when the feed stalls.
const maxConsecutiveEmptyPulls = 3

// WorkerFunc processes a single item.
type WorkerFunc[T any] func(ctx context.Context, item T) error

// BatchFunc processes a fixed-size batch of items.
type BatchFunc[T any] func(ctx context.Context, items []T) error

// Config holds processing queue configuration.
type Config struct {
	Capacity     int
	BatchSize    int
	PullTimeout  time.Duration
	DrainTimeout time.Duration
}

// DefaultConfig returns sensible queue defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:     256,
		BatchSize:    20,
		PullTimeout:  250 * time.Millisecond,
		DrainTimeout: 30 * time.Second,
	}
}

// Stats is an immutable snapshot of queue statistics.
type Stats struct {
	Submitted int64
	Processed int64
	Failed    int64
	Queued    int
	Elapsed   time.Duration
	State     State
}

// Queue is a bounded work queue processed on a shared pool.
type Queue[T any] struct {
	id     uuid.UUID
	cfg    Config
	pool   *executor.Pool
	logger *slog.Logger

	state atomic.Int32
	stop  atomic.Bool
	items chan T

	statsMu   sync.Mutex
	submitted int64
	processed int64
	failed    int64
	startedAt time.Time

	loopDone chan struct{}
	loopOnce sync.Once
}

// New creates an idle queue backed by the given pool.
func New[T any](cfg Config, pool *executor.Pool, logger *slog.Logger) *Queue[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.PullTimeout <= 0 {
		cfg.PullTimeout = 250 * time.Millisecond
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}

	id := uuid.New()
	return &Queue[T]{
		id:       id,
		cfg:      cfg,
		pool:     pool,
		logger:   logger.With(slog.String("queue_id", id.String())),
		items:    make(chan T, cfg.Capacity),
		loopDone: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (q *Queue[T]) State() State {
	return State(q.state.Load())
}

// Enqueue adds an item. It is rejected outside the Idle and Running states,
// and rejected per item when the queue is at capacity (logged, not retried).
func (q *Queue[T]) Enqueue(item T) error {
	if !q.State().acceptsWork() {
		return fmt.Errorf("%w: state %s", ErrNotAccepting, q.State())
	}

	select {
	case q.items <- item:
		q.statsMu.Lock()
		q.submitted++
		q.statsMu.Unlock()
		return nil
	default:
		q.logger.Warn("queue full, rejecting item",
			slog.Int("capacity", q.cfg.Capacity))
		return ErrQueueFull
	}
}

// Start begins item-by-item processing on the pool. It returns once the
// processing loop is running; use Wait to block for completion.
func (q *Queue[T]) Start(ctx context.Context, worker WorkerFunc[T]) error {
	if worker == nil {
		return fmt.Errorf("starting queue: nil worker")
	}
	return q.start(ctx, func(loopCtx context.Context) {
		q.loop(loopCtx, func(items []T) (*executor.Future, error) {
			item := items[0]
			return q.pool.Submit(func(taskCtx context.Context) (any, error) {
				return 1, worker(taskCtx, item)
			})
		}, 1)
	})
}

// StartBatch begins batch processing with the configured batch size.
func (q *Queue[T]) StartBatch(ctx context.Context, batch BatchFunc[T]) error {
	if batch == nil {
		return fmt.Errorf("starting queue: nil batch worker")
	}
	size := q.cfg.BatchSize
	if size < 1 {
		size = 1
	}
	return q.start(ctx, func(loopCtx context.Context) {
		q.loop(loopCtx, func(items []T) (*executor.Future, error) {
			batchItems := items
			return q.pool.Submit(func(taskCtx context.Context) (any, error) {
				return len(batchItems), batch(taskCtx, batchItems)
			})
		}, size)
	})
}

// start transitions Idle -> Running and launches the processing loop.
func (q *Queue[T]) start(ctx context.Context, run func(context.Context)) error {
	if !q.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyRun
	}

	q.statsMu.Lock()
	q.startedAt = time.Now()
	q.statsMu.Unlock()

	go func() {
		defer q.loopOnce.Do(func() { close(q.loopDone) })
		run(ctx)
	}()
	return nil
}

// loop pulls items (singly or in batches), submits them to the pool, and
// opportunistically drains completed futures so the in-flight set stays
// bounded. It terminates when the queue is empty and no futures remain.
func (q *Queue[T]) loop(ctx context.Context, submit func([]T) (*executor.Future, error), batchSize int) {
	var inflight []*executor.Future
	emptyPulls := 0

	for {
		if q.stop.Load() || ctx.Err() != nil {
			break
		}

		batch := q.pullBatch(ctx, batchSize)
		if len(batch) == 0 {
			emptyPulls++
			inflight = q.drainCompleted(inflight)
			// Terminate once the feed is drained and nothing is in flight.
			if len(inflight) == 0 && len(q.items) == 0 {
				break
			}
			// The empty-pull cap guarantees termination on a stalled feed;
			// whatever is still in flight gets the bounded drain below.
			if emptyPulls >= maxConsecutiveEmptyPulls {
				break
			}
			continue
		}
		emptyPulls = 0

		f, err := submit(batch)
		if err != nil {
			// Pool refused the work: the queue cannot make progress.
			q.logger.Error("pool submission failed",
				slog.String("error", err.Error()))
			q.recordFailed(int64(len(batch)))
			q.state.Store(int32(StateError))
			break
		}
		inflight = append(inflight, f)

		inflight = q.drainCompleted(inflight)
	}

	q.finish(inflight)
}

// pullBatch pulls up to n items, waiting at most PullTimeout for the first.
func (q *Queue[T]) pullBatch(ctx context.Context, n int) []T {
	timer := time.NewTimer(q.cfg.PullTimeout)
	defer timer.Stop()

	var batch []T
	select {
	case item := <-q.items:
		batch = append(batch, item)
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return nil
	}

	for len(batch) < n {
		select {
		case item := <-q.items:
			batch = append(batch, item)
		default:
			return batch
		}
	}
	return batch
}

// drainCompleted removes finished futures from the in-flight set and folds
// their outcomes into the statistics.
func (q *Queue[T]) drainCompleted(inflight []*executor.Future) []*executor.Future {
	remaining := inflight[:0]
	for _, f := range inflight {
		value, err, done := f.Result()
		if !done {
			remaining = append(remaining, f)
			continue
		}
		q.recordOutcome(value, err)
	}
	return remaining
}

// recordOutcome folds one completed future into the statistics. The item
// count is carried explicitly by the future's value, set by contract when
// the work was submitted.
func (q *Queue[T]) recordOutcome(value any, err error) {
	count := int64(1)
	if n, ok := value.(int); ok {
		count = int64(n)
	}
	if err != nil {
		q.recordFailed(count)
		return
	}
	q.statsMu.Lock()
	q.processed += count
	q.statsMu.Unlock()
}

func (q *Queue[T]) recordFailed(count int64) {
	q.statsMu.Lock()
	q.failed += count
	q.statsMu.Unlock()
}

// finish performs the bounded drain of outstanding futures. Anything still
// unfinished past the drain timeout is cancelled and counted as failed,
// never silently dropped.
func (q *Queue[T]) finish(inflight []*executor.Future) {
	deadline := time.Now().Add(q.cfg.DrainTimeout)
	for _, f := range inflight {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = time.Millisecond
		}
		value, err := f.WaitTimeout(remaining)
		if errors.Is(err, executor.ErrWaitTimeout) {
			f.Cancel()
			q.recordFailed(1)
			q.logger.Warn("task unfinished past drain timeout, cancelled")
			continue
		}
		q.recordOutcome(value, err)
	}

	q.state.CompareAndSwap(int32(StateRunning), int32(StateStopped))
	q.state.CompareAndSwap(int32(StateStopping), int32(StateStopped))

	stats := q.Stats()
	q.logger.Info("queue finished",
		slog.Int64("processed", stats.Processed),
		slog.Int64("failed", stats.Failed),
		slog.Duration("elapsed", stats.Elapsed))
}

// Stop requests a cooperative stop: the loop exits at its next iteration and
// outstanding futures get a bounded drain.
func (q *Queue[T]) Stop() {
	if q.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		q.stop.Store(true)
	}
}

// Wait blocks until the processing loop has terminated.
func (q *Queue[T]) Wait(ctx context.Context) error {
	select {
	case <-q.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns an immutable snapshot of the queue statistics.
func (q *Queue[T]) Stats() Stats {
	q.statsMu.Lock()
	defer q.statsMu.Unlock()

	var elapsed time.Duration
	if !q.startedAt.IsZero() {
		elapsed = time.Since(q.startedAt)
	}
	return Stats{
		Submitted: q.submitted,
		Processed: q.processed,
		Failed:    q.failed,
		Queued:    len(q.items),
		Elapsed:   elapsed,
		State:     q.State(),
	}
}
