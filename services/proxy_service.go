package services

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"worker-proxy-server/models"
)

const (
	DefaultKind       = "default"
	minRunTimeout     = time.Second
	backgroundTimeout = 30 * time.Second
)

// ProxyConfig holds the admission and timeout policy of the proxy
type ProxyConfig struct {
	QueueTimeout   time.Duration
	RetryAfter     time.Duration
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
}

// ProxyService is the single entry point for executions: it admits callers
// through the gate, runs the worker and records every run in the ledger.
type ProxyService struct {
	config   ProxyConfig
	executor Executor
	prober   HealthProber
	gate     *ConcurrencyGate
	ledger   *SessionLedger
	actions  *ActionExtractor
	metrics  *Metrics
	logger   zerolog.Logger

	storage StorageService
	archive SessionArchive
	queue   JobQueue
	warm    *WarmKeeper

	background sync.WaitGroup
}

type ProxyOption func(*ProxyService)

// WithStorage keeps raw worker output in a transcript store
func WithStorage(storage StorageService) ProxyOption {
	return func(s *ProxyService) { s.storage = storage }
}

// WithArchive copies finalized sessions into a durable archive
func WithArchive(archive SessionArchive) ProxyOption {
	return func(s *ProxyService) { s.archive = archive }
}

// WithJobQueue enables async submissions
func WithJobQueue(queue JobQueue) ProxyOption {
	return func(s *ProxyService) { s.queue = queue }
}

// WithWarmKeeper lets real executions postpone warm pings
func WithWarmKeeper(warm *WarmKeeper) ProxyOption {
	return func(s *ProxyService) { s.warm = warm }
}

func NewProxyService(config ProxyConfig, executor Executor, prober HealthProber, gate *ConcurrencyGate, ledger *SessionLedger, actions *ActionExtractor, metrics *Metrics, logger zerolog.Logger, opts ...ProxyOption) *ProxyService {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 5 * time.Minute
	}
	if config.MaxTimeout < config.DefaultTimeout {
		config.MaxTimeout = config.DefaultTimeout
	}
	s := &ProxyService{
		config:   config,
		executor: executor,
		prober:   prober,
		gate:     gate,
		ledger:   ledger,
		actions:  actions,
		metrics:  metrics,
		logger:   logger.With().Str("component", "proxy").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.storage != nil {
		ledger.OnEvict(s.dropTranscript)
	}
	return s
}

// Submit runs one execution. It returns a *BusyError when the gate sheds
// the request; every other outcome, including spawn failures and
// timeouts, is reported inside the response.
func (s *ProxyService) Submit(ctx context.Context, req models.SubmitRequest) (*models.SubmitResponse, error) {
	kind := req.Kind
	if kind == "" {
		kind = DefaultKind
	}

	if err := s.gate.Acquire(s.config.QueueTimeout); err != nil {
		reason := "queue_timeout"
		if errors.Is(err, ErrQueueFull) {
			reason = "queue_full"
		}
		s.metrics.RecordRejection(reason)
		s.logger.Warn().Str("kind", kind).Str("reason", reason).Msg("execution rejected")
		return nil, &BusyError{Reason: err, RetryAfter: s.config.RetryAfter}
	}
	defer s.gate.Release()

	session := s.ledger.Record(kind, req.Payload, PayloadHash(req.Payload))
	log := s.logger.With().Str("session_id", session.ID).Str("kind", kind).Logger()
	log.Info().Int("payload_bytes", len(req.Payload)).Msg("execution admitted")

	execReq := models.ExecutionRequest{
		Payload:   req.Payload,
		ExtraArgs: req.ExtraArgs,
		Timeout:   s.runTimeout(req.TimeoutMs),
	}

	var result models.ExecutionResult
	traced(ctx, "Executor.Run", func(ctx1 context.Context) error {
		result = s.executor.Run(ctx1, execReq)

		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddAnnotation("session_id", session.ID)
			seg.AddAnnotation("status", result.Status)
			seg.AddMetadata("worker.parse_tier", result.ParseTier)
			seg.AddMetadata("worker.events", result.RawEventCount)
		}
		return nil
	})

	text, actions := s.actions.Extract(result.ResponseText)
	result.ResponseText = text
	confidence := confidenceFor(result.Status)
	if confidence == 0 {
		actions = []map[string]any{}
	}

	finalized, ok := s.ledger.Finalize(session.ID, result, len(actions))
	s.metrics.RecordExecution(kind, result.Status, result.ParseTier, result.Duration)
	if s.warm != nil {
		s.warm.MarkActive()
	}

	log.Info().
		Str("status", result.Status).
		Int("parse_tier", result.ParseTier).
		Int("events", result.RawEventCount).
		Int("actions", len(actions)).
		Dur("duration", result.Duration).
		Msg("execution finished")

	s.persist(session.ID, result.Transcript, finalized, ok)

	response := &models.SubmitResponse{
		SessionID:  session.ID,
		Text:       text,
		Actions:    actions,
		Confidence: confidence,
		Result:     result,
	}
	if response.Text == "" && result.Error != "" {
		response.Text = result.Error
	}
	return response, nil
}

// EnqueueAsync parks a submission on the job queue and returns its pending
// result handle.
func (s *ProxyService) EnqueueAsync(ctx context.Context, req models.SubmitRequest) (*models.AsyncJobResult, error) {
	if s.queue == nil {
		return nil, ErrAsyncDisabled
	}
	job := &models.AsyncJob{
		JobID:      uuid.NewString(),
		Request:    req,
		EnqueuedAt: time.Now(),
	}
	pending := &models.AsyncJobResult{JobID: job.JobID, Status: models.JobStatusPending}
	if err := s.queue.SetResult(ctx, pending); err != nil {
		return nil, err
	}
	if err := s.queue.PushJob(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info().Str("job_id", job.JobID).Str("kind", req.Kind).Msg("execution queued")
	return pending, nil
}

// JobResult returns the current state of an async job
func (s *ProxyService) JobResult(ctx context.Context, jobID string) (*models.AsyncJobResult, error) {
	if s.queue == nil {
		return nil, ErrAsyncDisabled
	}
	return s.queue.GetResult(ctx, jobID)
}

// GetSession returns a copy of one ledger entry
func (s *ProxyService) GetSession(id string) (models.Session, error) {
	return s.ledger.Get(id)
}

// ListSessions returns ledger entries newest first
func (s *ProxyService) ListSessions(filter models.SessionFilter, limit int) []models.SessionSummary {
	return s.ledger.List(filter, limit)
}

func (s *ProxyService) QueueStatus() models.QueueStatus {
	return s.gate.Status()
}

// Health probes the worker binary. It does not touch the gate.
func (s *ProxyService) Health(ctx context.Context) models.WorkerHealth {
	return s.prober.Probe(ctx)
}

// Transcript returns the raw worker output stored for a session
func (s *ProxyService) Transcript(ctx context.Context, sessionID string) ([]byte, error) {
	if s.storage == nil {
		return nil, ErrTranscriptNotFound
	}
	return s.storage.GetTranscript(ctx, TranscriptKey(sessionID))
}

// ArchivedSessions lists sessions from the durable archive
func (s *ProxyService) ArchivedSessions(ctx context.Context, filter models.SessionFilter, limit int) ([]models.SessionSummary, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.ListArchivedSessions(ctx, filter, limit)
}

// TriggerWarm asks the warm keeper for a ping and reports whether one started
func (s *ProxyService) TriggerWarm() bool {
	if s.warm == nil {
		return false
	}
	return s.warm.Trigger()
}

// Wait blocks until background transcript and archive writes finish
func (s *ProxyService) Wait() {
	s.background.Wait()
}

func (s *ProxyService) runTimeout(timeoutMs int64) time.Duration {
	if timeoutMs <= 0 {
		return s.config.DefaultTimeout
	}
	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeout < minRunTimeout {
		return minRunTimeout
	}
	if timeout > s.config.MaxTimeout {
		return s.config.MaxTimeout
	}
	return timeout
}

// persist writes the transcript and archive copy off the request path.
// Failures are logged only. Transcripts live as long as their ledger entry.
func (s *ProxyService) persist(sessionID string, transcript []byte, session models.Session, finalized bool) {
	if s.storage != nil && finalized && len(transcript) > 0 {
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
			defer cancel()
			key := TranscriptKey(sessionID)
			if err := s.storage.SaveTranscript(ctx, key, transcript); err != nil {
				s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to store transcript")
				return
			}
			// Evicted while the write was in flight
			if _, err := s.ledger.Get(sessionID); errors.Is(err, ErrSessionNotFound) {
				s.deleteTranscript(ctx, sessionID)
			}
		}()
	}
	if s.archive != nil && finalized {
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
			defer cancel()
			if err := s.archive.ArchiveSession(ctx, session); err != nil {
				s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to archive session")
			}
		}()
	}
}

// dropTranscript is the ledger eviction hook. It must not block.
func (s *ProxyService) dropTranscript(sessionID string) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		s.deleteTranscript(ctx, sessionID)
	}()
}

func (s *ProxyService) deleteTranscript(ctx context.Context, sessionID string) {
	err := s.storage.DeleteTranscript(ctx, TranscriptKey(sessionID))
	if err != nil && !errors.Is(err, ErrTranscriptNotFound) {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to delete transcript")
	}
}

// PayloadHash is a short blake3 fingerprint used to correlate resubmissions
func PayloadHash(payload string) string {
	sum := blake3.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:8])
}

func confidenceFor(status string) float64 {
	switch status {
	case models.StatusSuccess:
		return 1
	case models.StatusErrorMaxTurns, models.StatusUnknown:
		return 0.5
	default:
		return 0
	}
}
