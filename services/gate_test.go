package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForQueued(t *testing.T, g *ConcurrencyGate, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return g.Status().Queued == n }, 2*time.Second, time.Millisecond)
}

func TestGateAdmitsUpToLimit(t *testing.T) {
	t.Parallel()

	g := NewConcurrencyGate(2, 1)
	require.NoError(t, g.Acquire(time.Second))
	require.NoError(t, g.Acquire(time.Second))

	status := g.Status()
	assert.Equal(t, 2, status.Active)
	assert.Equal(t, 2, status.MaxConcurrent)
	assert.Equal(t, 0, status.Queued)
	assert.Equal(t, 1, status.MaxQueue)
}

func TestGateQueueFullIsImmediate(t *testing.T) {
	t.Parallel()

	g := NewConcurrencyGate(1, 0)
	require.NoError(t, g.Acquire(time.Second))

	started := time.Now()
	err := g.Acquire(time.Minute)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(started), 100*time.Millisecond)
	assert.Equal(t, 0, g.Status().Queued)
}

func TestGateQueueTimeout(t *testing.T) {
	t.Parallel()

	g := NewConcurrencyGate(1, 1)
	require.NoError(t, g.Acquire(time.Second))

	err := g.Acquire(20 * time.Millisecond)
	assert.ErrorIs(t, err, ErrQueueTimeout)

	status := g.Status()
	assert.Equal(t, 1, status.Active)
	assert.Equal(t, 0, status.Queued)
}

func TestGateReleaseHandsSlotToOldestWaiter(t *testing.T) {
	t.Parallel()

	g := NewConcurrencyGate(1, 3)
	require.NoError(t, g.Acquire(time.Second))

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := g.Acquire(5 * time.Second); err != nil {
				t.Errorf("waiter %d: %v", id, err)
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			g.Release()
		}(i)
		// Each waiter must be queued before the next arrives
		waitForQueued(t, g, i+1)
	}

	g.Release()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2}, order)
	status := g.Status()
	assert.Equal(t, 0, status.Active)
	assert.Equal(t, 0, status.Queued)
}

func TestGateHandoffKeepsActiveCount(t *testing.T) {
	t.Parallel()

	g := NewConcurrencyGate(1, 1)
	require.NoError(t, g.Acquire(time.Second))

	granted := make(chan error, 1)
	go func() { granted <- g.Acquire(5 * time.Second) }()
	waitForQueued(t, g, 1)

	g.Release()
	require.NoError(t, <-granted)
	assert.Equal(t, 1, g.Status().Active)
	assert.Equal(t, 0, g.Status().Queued)
}

func TestGateTimedOutWaiterDoesNotDisturbOthers(t *testing.T) {
	t.Parallel()

	g := NewConcurrencyGate(1, 2)
	require.NoError(t, g.Acquire(time.Second))

	short := make(chan error, 1)
	go func() { short <- g.Acquire(30 * time.Millisecond) }()
	waitForQueued(t, g, 1)

	long := make(chan error, 1)
	go func() { long <- g.Acquire(5 * time.Second) }()
	waitForQueued(t, g, 2)

	assert.ErrorIs(t, <-short, ErrQueueTimeout)
	assert.Equal(t, 1, g.Status().Queued)

	g.Release()
	require.NoError(t, <-long)
	assert.Equal(t, 1, g.Status().Active)
}

func TestGateTryAcquire(t *testing.T) {
	t.Parallel()

	g := NewConcurrencyGate(1, 1)
	assert.True(t, g.TryAcquire())
	assert.False(t, g.TryAcquire())

	g.Release()
	assert.True(t, g.TryAcquire())
	g.Release()
	assert.Equal(t, 0, g.Status().Active)
}

func TestGateInvariantsUnderLoad(t *testing.T) {
	t.Parallel()

	const limit = 3
	g := NewConcurrencyGate(limit, 4)

	var (
		mu      sync.Mutex
		running int
		peak    int
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Acquire(time.Second)
			if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrQueueTimeout) {
				return
			}
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			status := g.Status()
			assert.LessOrEqual(t, status.Active, limit)
			assert.LessOrEqual(t, status.Queued, 4)
			time.Sleep(time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
			g.Release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, limit)
	assert.Equal(t, 0, g.Status().Active)
	assert.Equal(t, 0, g.Status().Queued)
}
