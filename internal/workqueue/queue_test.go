package workqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seriarr/seriarr/internal/executor"
)

func testConfig() Config {
	return Config{
		Capacity:     64,
		BatchSize:    4,
		PullTimeout:  50 * time.Millisecond,
		DrainTimeout: 2 * time.Second,
	}
}

func newTestPool(t *testing.T) *executor.Pool {
	t.Helper()
	p := executor.NewPool("test", 4, nil)
	t.Cleanup(p.Shutdown)
	return p
}

func TestQueueProcessesAllItems(t *testing.T) {
	q := New[int](testConfig(), newTestPool(t), nil)

	for i := 0; i < 20; i++ {
		require.NoError(t, q.Enqueue(i))
	}

	var sum atomic.Int64
	require.NoError(t, q.Start(t.Context(), func(ctx context.Context, item int) error {
		sum.Add(int64(item))
		return nil
	}))
	require.NoError(t, q.Wait(t.Context()))

	assert.Equal(t, int64(190), sum.Load())

	stats := q.Stats()
	assert.Equal(t, int64(20), stats.Submitted)
	assert.Equal(t, int64(20), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, 0, stats.Queued)
	assert.Equal(t, StateStopped, stats.State)
}

func TestQueueCountsFailures(t *testing.T) {
	q := New[int](testConfig(), newTestPool(t), nil)

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(i))
	}

	require.NoError(t, q.Start(t.Context(), func(ctx context.Context, item int) error {
		if item%2 == 0 {
			return errors.New("even items fail")
		}
		return nil
	}))
	require.NoError(t, q.Wait(t.Context()))

	stats := q.Stats()
	assert.Equal(t, int64(5), stats.Processed)
	assert.Equal(t, int64(5), stats.Failed)
}

func TestQueueBatchMode(t *testing.T) {
	q := New[int](testConfig(), newTestPool(t), nil)

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(i))
	}

	var mu sync.Mutex
	var batches [][]int
	require.NoError(t, q.StartBatch(t.Context(), func(ctx context.Context, items []int) error {
		mu.Lock()
		batches = append(batches, items)
		mu.Unlock()
		return nil
	}))
	require.NoError(t, q.Wait(t.Context()))

	mu.Lock()
	defer mu.Unlock()
	total := 0
	for _, b := range batches {
		assert.LessOrEqual(t, len(b), 4)
		total += len(b)
	}
	assert.Equal(t, 10, total)

	stats := q.Stats()
	assert.Equal(t, int64(10), stats.Processed)
}

func TestQueueBatchModeTerminatesOnStalledFeed(t *testing.T) {
	q := New[int](testConfig(), newTestPool(t), nil)
	// No items enqueued at all: the empty-pull cap must end the loop.
	require.NoError(t, q.StartBatch(t.Context(), func(ctx context.Context, items []int) error {
		return nil
	}))

	ctx, cancel := context.WithTimeout(t.Context(), 3*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
	assert.Equal(t, StateStopped, q.State())
}

func TestQueueRejectsBeyondCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.Capacity = 5
	q := New[int](cfg, newTestPool(t), nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(i))
	}
	err := q.Enqueue(5)
	assert.ErrorIs(t, err, ErrQueueFull)

	stats := q.Stats()
	assert.Equal(t, int64(5), stats.Submitted)
	assert.Equal(t, 5, stats.Queued)
}

func TestQueueRejectsAfterStop(t *testing.T) {
	q := New[int](testConfig(), newTestPool(t), nil)
	require.NoError(t, q.Enqueue(1))

	started := make(chan struct{})
	var once sync.Once
	block := make(chan struct{})
	require.NoError(t, q.Start(t.Context(), func(ctx context.Context, item int) error {
		once.Do(func() { close(started) })
		<-block
		return nil
	}))
	<-started

	q.Stop()
	err := q.Enqueue(2)
	assert.ErrorIs(t, err, ErrNotAccepting)

	close(block)
	require.NoError(t, q.Wait(t.Context()))

	assert.Equal(t, StateStopped, q.State())
	err = q.Enqueue(3)
	assert.ErrorIs(t, err, ErrNotAccepting)
}

func TestQueueStopDrainCancelsSlowTasks(t *testing.T) {
	cfg := testConfig()
	cfg.DrainTimeout = 100 * time.Millisecond
	q := New[int](cfg, newTestPool(t), nil)

	block := make(chan struct{})
	defer close(block)

	require.NoError(t, q.Enqueue(1))
	started := make(chan struct{})
	require.NoError(t, q.Start(t.Context(), func(ctx context.Context, item int) error {
		close(started)
		<-block
		return nil
	}))
	<-started

	q.Stop()
	require.NoError(t, q.Wait(t.Context()))

	// The hung task is counted failed, not silently dropped.
	stats := q.Stats()
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, StateStopped, stats.State)
}

func TestQueueCannotStartTwice(t *testing.T) {
	q := New[int](testConfig(), newTestPool(t), nil)
	worker := func(ctx context.Context, item int) error { return nil }

	require.NoError(t, q.Start(t.Context(), worker))
	assert.ErrorIs(t, q.Start(t.Context(), worker), ErrAlreadyRun)
	require.NoError(t, q.Wait(t.Context()))
}

func TestQueueErrorStateOnPoolShutdown(t *testing.T) {
	pool := executor.NewPool("doomed", 1, nil)
	q := New[int](testConfig(), pool, nil)

	pool.Shutdown()
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(i))
	}

	require.NoError(t, q.Start(t.Context(), func(ctx context.Context, item int) error {
		return nil
	}))
	require.NoError(t, q.Wait(t.Context()))

	assert.Equal(t, StateError, q.State())
	assert.Greater(t, q.Stats().Failed, int64(0))
}
