package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worker-proxy-server/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLedgerRecordAndFinalize(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewSessionLedger(10, time.Hour, 50)
	l.now = clock.Now

	prompt := strings.Repeat("p", 300)
	session := l.Record("chat", prompt, "hash")
	assert.Equal(t, models.SessionStatusRunning, session.Status)
	assert.Equal(t, "chat", session.Kind)
	assert.Len(t, session.PromptPreview, PromptPreviewLength)
	assert.Nil(t, session.CompletedAt)
	assert.NotEmpty(t, session.ID)

	clock.Advance(1500 * time.Millisecond)
	workerID := "w-9"
	events := mustEvents(t, `{"type":"result","subtype":"success","result":"ok"}`)
	final, ok := l.Finalize(session.ID, models.ExecutionResult{
		ResponseText:    strings.Repeat("r", 600),
		Status:          models.StatusSuccess,
		Turns:           2,
		CostUSD:         0.3,
		Model:           "m",
		WorkerSessionID: &workerID,
		ParseTier:       models.TierStream,
		Events:          events,
	}, 1)
	require.True(t, ok)
	assert.Equal(t, models.StatusSuccess, final.Status)
	require.NotNil(t, final.CompletedAt)
	assert.Len(t, final.ResponsePreview, ResponsePreviewLength)
	assert.Equal(t, int64(1500), final.DurationMs)
	assert.Equal(t, 1, final.ActionCount)
	require.Len(t, final.Events, 1)

	got, err := l.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, final, got)
}

func TestLedgerFinalizeIsOneShot(t *testing.T) {
	t.Parallel()

	l := NewSessionLedger(10, time.Hour, 50)
	session := l.Record("chat", "p", "")

	first, ok := l.Finalize(session.ID, models.ExecutionResult{Status: models.StatusSuccess, ResponseText: "a"}, 0)
	require.True(t, ok)
	second, ok := l.Finalize(session.ID, models.ExecutionResult{Status: models.StatusError, ResponseText: "b"}, 0)
	require.True(t, ok)
	assert.Equal(t, first, second)

	_, ok = l.Finalize("missing", models.ExecutionResult{}, 0)
	assert.False(t, ok)
}

func TestLedgerEvictsOldest(t *testing.T) {
	t.Parallel()

	l := NewSessionLedger(3, 0, 10)
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, l.Record("chat", fmt.Sprintf("p%d", i), "").ID)
	}

	assert.Equal(t, 3, l.Len())
	_, err := l.Get(ids[0])
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = l.Get(ids[1])
	assert.ErrorIs(t, err, ErrSessionNotFound)

	list := l.List(models.SessionFilter{}, 0)
	require.Len(t, list, 3)
	assert.Equal(t, ids[4], list[0].ID)
	assert.Equal(t, ids[3], list[1].ID)
	assert.Equal(t, ids[2], list[2].ID)
}

func TestLedgerPrunesExpiredOnFinalize(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewSessionLedger(10, time.Hour, 10)
	l.now = clock.Now

	old := l.Record("chat", "old", "")
	clock.Advance(2 * time.Hour)
	fresh := l.Record("chat", "fresh", "")

	// Nothing is pruned until a finalize runs
	assert.Equal(t, 2, l.Len())

	_, ok := l.Finalize(fresh.ID, models.ExecutionResult{Status: models.StatusSuccess}, 0)
	require.True(t, ok)

	assert.Equal(t, 1, l.Len())
	_, err := l.Get(old.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLedgerReportsEvictions(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewSessionLedger(2, time.Hour, 10)
	l.now = clock.Now

	var evicted []string
	l.OnEvict(func(id string) { evicted = append(evicted, id) })

	first := l.Record("chat", "1", "")
	second := l.Record("chat", "2", "")
	third := l.Record("chat", "3", "")
	assert.Equal(t, []string{first.ID}, evicted, "capacity eviction")

	clock.Advance(2 * time.Hour)
	fresh := l.Record("chat", "4", "")
	assert.Equal(t, []string{first.ID, second.ID}, evicted)

	_, ok := l.Finalize(fresh.ID, models.ExecutionResult{Status: models.StatusSuccess}, 0)
	require.True(t, ok)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, evicted, "age eviction")
}

func TestLedgerListFilters(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := NewSessionLedger(10, 0, 10)
	l.now = clock.Now

	a := l.Record("chat", "a", "")
	l.Finalize(a.ID, models.ExecutionResult{Status: models.StatusSuccess}, 0)
	clock.Advance(time.Minute)
	cutoff := clock.Now()
	b := l.Record("analyze", "b", "")
	l.Finalize(b.ID, models.ExecutionResult{Status: models.StatusTimeout}, 0)
	clock.Advance(time.Minute)
	c := l.Record("chat", "c", "")

	running := l.List(models.SessionFilter{Status: models.SessionStatusRunning}, 0)
	require.Len(t, running, 1)
	assert.Equal(t, c.ID, running[0].ID)

	since := l.List(models.SessionFilter{Since: cutoff}, 0)
	require.Len(t, since, 2)
	assert.Equal(t, c.ID, since[0].ID)
	assert.Equal(t, b.ID, since[1].ID)

	limited := l.List(models.SessionFilter{}, 1)
	require.Len(t, limited, 1)
	assert.Equal(t, c.ID, limited[0].ID)

	assert.Empty(t, l.List(models.SessionFilter{Status: "nope"}, 0))
}

func TestLedgerReturnsCopies(t *testing.T) {
	t.Parallel()

	l := NewSessionLedger(10, 0, 10)
	session := l.Record("chat", "p", "")
	events := mustEvents(t, `{"type":"assistant","subtype":"text","text":"x"}`)
	final, _ := l.Finalize(session.ID, models.ExecutionResult{Status: models.StatusSuccess, Events: events}, 0)

	final.Status = "tampered"
	final.Events[0].Preview = "tampered"
	*final.CompletedAt = time.Time{}

	got, err := l.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, got.Status)
	assert.Equal(t, "x", got.Events[0].Preview)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestLedgerKeepsRecentEventSummaries(t *testing.T) {
	t.Parallel()

	l := NewSessionLedger(10, 0, 2)
	session := l.Record("chat", "p", "")
	events := mustEvents(t,
		`{"type":"system","subtype":"init"}`,
		`{"type":"assistant","subtype":"text","text":"x"}`,
		`{"type":"result","subtype":"success","result":"y"}`,
	)
	final, _ := l.Finalize(session.ID, models.ExecutionResult{Status: models.StatusSuccess, Events: events}, 0)
	require.Len(t, final.Events, 2)
	assert.Equal(t, "assistant", final.Events[0].Type)
	assert.Equal(t, "result", final.Events[1].Type)
}
