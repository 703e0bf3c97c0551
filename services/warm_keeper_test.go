package services

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worker-proxy-server/models"
)

type warmClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *warmClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *warmClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestWarmKeeper(config WarmConfig, exec Executor, gate *ConcurrencyGate) (*WarmKeeper, *Metrics, *warmClock) {
	metrics := NewMetrics(gate)
	keeper := NewWarmKeeper(config, exec, gate, metrics, zerolog.Nop())
	clock := &warmClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	keeper.now = clock.Now
	return keeper, metrics, clock
}

func warmIdle(w *WarmKeeper) func() bool {
	return func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return !w.inFlight
	}
}

func warmCount(m *Metrics, outcome string) float64 {
	return testutil.ToFloat64(m.warmPings.WithLabelValues(outcome))
}

func TestWarmKeeperDebounce(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{}
	gate := NewConcurrencyGate(1, 0)
	keeper, metrics, clock := newTestWarmKeeper(WarmConfig{Debounce: time.Minute}, exec, gate)
	defer keeper.Stop()

	require.True(t, keeper.Trigger())
	require.Eventually(t, warmIdle(keeper), 2*time.Second, time.Millisecond)
	assert.Equal(t, 1.0, warmCount(metrics, "ok"))

	clock.Advance(30 * time.Second)
	assert.False(t, keeper.Trigger())
	assert.Equal(t, 1.0, warmCount(metrics, "debounced"))

	clock.Advance(31 * time.Second)
	assert.True(t, keeper.Trigger())
	require.Eventually(t, warmIdle(keeper), 2*time.Second, time.Millisecond)
	assert.Equal(t, 2.0, warmCount(metrics, "ok"))

	calls := exec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "ping", calls[0].Payload)
	assert.Equal(t, time.Minute, calls[0].Timeout)
	assert.Equal(t, 0, gate.Status().Active)
}

func TestWarmKeeperSkipsInFlight(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{started: make(chan string, 1), release: make(chan struct{})}
	keeper, metrics, _ := newTestWarmKeeper(WarmConfig{}, exec, NewConcurrencyGate(2, 0))

	require.True(t, keeper.Trigger())
	<-exec.started
	assert.False(t, keeper.Trigger())
	assert.Equal(t, 1.0, warmCount(metrics, "debounced"))

	close(exec.release)
	keeper.Stop()
	assert.Len(t, exec.Calls(), 1)
}

func TestWarmKeeperSkipsWhenGateBusy(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{}
	gate := NewConcurrencyGate(1, 1)
	keeper, metrics, _ := newTestWarmKeeper(WarmConfig{}, exec, gate)
	defer keeper.Stop()

	require.NoError(t, gate.Acquire(time.Second))
	assert.False(t, keeper.Trigger())
	assert.Equal(t, 1.0, warmCount(metrics, "busy"))
	assert.Empty(t, exec.Calls())

	gate.Release()
	assert.True(t, keeper.Trigger(), "a skipped ping does not start the debounce window")
}

func TestWarmKeeperMarkActivePostpones(t *testing.T) {
	t.Parallel()

	keeper, _, clock := newTestWarmKeeper(WarmConfig{Debounce: time.Minute}, &fakeExecutor{}, NewConcurrencyGate(1, 0))
	defer keeper.Stop()

	keeper.MarkActive()
	clock.Advance(59 * time.Second)
	assert.False(t, keeper.Trigger())
	clock.Advance(2 * time.Second)
	assert.True(t, keeper.Trigger())
}

func TestWarmKeeperRecordsFailure(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{result: func(models.ExecutionRequest) models.ExecutionResult {
		return models.ExecutionResult{Status: models.StatusError, Error: "spawn failed"}
	}}
	keeper, metrics, _ := newTestWarmKeeper(WarmConfig{Payload: "hi", Timeout: 5 * time.Second}, exec, NewConcurrencyGate(1, 0))

	require.True(t, keeper.Trigger())
	keeper.Stop()
	assert.Equal(t, 1.0, warmCount(metrics, "failed"))
	assert.Equal(t, "hi", exec.Calls()[0].Payload)
	assert.Equal(t, 5*time.Second, exec.Calls()[0].Timeout)
}

func TestWarmKeeperTicker(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{}
	gate := NewConcurrencyGate(1, 0)
	keeper := NewWarmKeeper(WarmConfig{Interval: 10 * time.Millisecond}, exec, gate, NewMetrics(gate), zerolog.Nop())
	keeper.Start()

	require.Eventually(t, func() bool { return len(exec.Calls()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	keeper.Stop()
	keeper.Stop()

	calls := len(exec.Calls())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, len(exec.Calls()), "no pings after Stop")
}
