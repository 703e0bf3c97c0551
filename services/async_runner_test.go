package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worker-proxy-server/models"
)

func TestAsyncRunnerProcess(t *testing.T) {
	t.Parallel()

	queue := newFakeQueue()
	proxy := newTestProxy(t, testProxyConfig(), &fakeExecutor{}, NewConcurrencyGate(1, 0), WithJobQueue(queue))
	runner := NewAsyncRunner(proxy, queue, 0, false, zerolog.Nop())

	result := runner.Process(context.Background(), &models.AsyncJob{
		JobID:   "job-1",
		Request: models.SubmitRequest{Kind: "batch", Payload: "x"},
	})
	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, models.JobStatusDone, result.Status)
	require.NotNil(t, result.Response)
	assert.Equal(t, "ok: x", result.Response.Text)
	assert.Empty(t, result.ErrorMessage)

	_, err := proxy.GetSession(result.Response.SessionID)
	assert.NoError(t, err)
}

func TestAsyncRunnerProcessRejected(t *testing.T) {
	t.Parallel()

	config := testProxyConfig()
	config.QueueTimeout = 10 * time.Millisecond
	gate := NewConcurrencyGate(1, 0)
	proxy := newTestProxy(t, config, &fakeExecutor{}, gate)
	runner := NewAsyncRunner(proxy, newFakeQueue(), 1, false, zerolog.Nop())

	require.NoError(t, gate.Acquire(time.Second))
	defer gate.Release()

	result := runner.Process(context.Background(), &models.AsyncJob{JobID: "job-2", Request: models.SubmitRequest{Payload: "x"}})
	assert.Equal(t, models.JobStatusRejected, result.Status)
	assert.Nil(t, result.Response)
	assert.Contains(t, result.ErrorMessage, "queue is full")
}

func TestAsyncRunnerDrainsQueue(t *testing.T) {
	t.Parallel()

	queue := newFakeQueue()
	proxy := newTestProxy(t, testProxyConfig(), &fakeExecutor{}, NewConcurrencyGate(2, 4), WithJobQueue(queue))
	runner := NewAsyncRunner(proxy, queue, 2, false, zerolog.Nop())
	runner.Start()

	ids := make([]string, 0, 3)
	for _, payload := range []string{"a", "b", "c"} {
		pending, err := proxy.EnqueueAsync(context.Background(), models.SubmitRequest{Payload: payload})
		require.NoError(t, err)
		ids = append(ids, pending.JobID)
	}

	for _, id := range ids {
		require.Eventually(t, func() bool {
			result, err := proxy.JobResult(context.Background(), id)
			return err == nil && result.Status == models.JobStatusDone
		}, 5*time.Second, 5*time.Millisecond)
	}

	runner.Stop()
	assert.Len(t, proxy.ListSessions(models.SessionFilter{}, 0), 3)
}
