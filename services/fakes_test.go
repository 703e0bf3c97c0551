package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"worker-proxy-server/models"
)

// fakeExecutor records requests and, when release is set, blocks each run
// until the test sends on it.
type fakeExecutor struct {
	mu      sync.Mutex
	calls   []models.ExecutionRequest
	started chan string
	release chan struct{}
	result  func(models.ExecutionRequest) models.ExecutionResult
}

func (f *fakeExecutor) Run(_ context.Context, req models.ExecutionRequest) models.ExecutionResult {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- req.Payload
	}
	if f.release != nil {
		<-f.release
	}
	if f.result != nil {
		return f.result(req)
	}
	return models.ExecutionResult{
		ResponseText:  "ok: " + req.Payload,
		Status:        models.StatusSuccess,
		Turns:         1,
		RawEventCount: 1,
		ParseTier:     models.TierStream,
		Duration:      time.Millisecond,
		Transcript:    []byte(`{"type":"result","subtype":"success"}` + "\n"),
	}
}

func (f *fakeExecutor) Calls() []models.ExecutionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ExecutionRequest(nil), f.calls...)
}

type fakeProber struct {
	health models.WorkerHealth
}

func (p fakeProber) Probe(context.Context) models.WorkerHealth {
	return p.health
}

type fakeStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{data: map[string][]byte{}}
}

func (s *fakeStorage) SaveTranscript(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func (s *fakeStorage) GetTranscript(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[key]
	if !ok {
		return nil, ErrTranscriptNotFound
	}
	return data, nil
}

func (s *fakeStorage) DeleteTranscript(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

type fakeArchive struct {
	mu       sync.Mutex
	sessions []models.Session
}

func (a *fakeArchive) ArchiveSession(_ context.Context, session models.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = append(a.sessions, session)
	return nil
}

func (a *fakeArchive) ListArchivedSessions(_ context.Context, filter models.SessionFilter, limit int) ([]models.SessionSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []models.SessionSummary{}
	for i := len(a.sessions) - 1; i >= 0; i-- {
		s := a.sessions[i]
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s.Summary())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// fakeQueue is an in-memory JobQueue
type fakeQueue struct {
	jobs    chan *models.AsyncJob
	mu      sync.Mutex
	results map[string]*models.AsyncJobResult
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		jobs:    make(chan *models.AsyncJob, 16),
		results: map[string]*models.AsyncJobResult{},
	}
}

func (q *fakeQueue) PushJob(_ context.Context, job *models.AsyncJob) error {
	q.jobs <- job
	return nil
}

func (q *fakeQueue) PopJob(ctx context.Context, wait time.Duration) (*models.AsyncJob, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-time.After(wait):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *fakeQueue) SetResult(_ context.Context, result *models.AsyncJobResult) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	copied := *result
	q.results[result.JobID] = &copied
	return nil
}

func (q *fakeQueue) GetResult(_ context.Context, jobID string) (*models.AsyncJobResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	result, ok := q.results[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	copied := *result
	return &copied, nil
}

func (q *fakeQueue) Ping(context.Context) error {
	return nil
}

var _ JobQueue = (*fakeQueue)(nil)
var _ StorageService = (*fakeStorage)(nil)
var _ SessionArchive = (*fakeArchive)(nil)

func testProxyConfig() ProxyConfig {
	return ProxyConfig{
		QueueTimeout:   5 * time.Second,
		RetryAfter:     15 * time.Second,
		DefaultTimeout: time.Minute,
		MaxTimeout:     10 * time.Minute,
	}
}

func newTestProxy(t *testing.T, config ProxyConfig, executor Executor, gate *ConcurrencyGate, opts ...ProxyOption) *ProxyService {
	t.Helper()
	actions, err := NewActionExtractor()
	require.NoError(t, err)
	prober := fakeProber{health: models.WorkerHealth{WorkerAvailable: true}}
	return NewProxyService(config, executor, prober, gate, NewSessionLedger(100, time.Hour, 50), actions, NewMetrics(gate), zerolog.Nop(), opts...)
}
