package services

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"

	"worker-proxy-server/models"
)

const (
	PromptPreviewLength   = 200
	ResponsePreviewLength = 500
)

// SessionLedger is a bounded, newest-first, in-memory record of executions.
// Callers only ever see copies.
type SessionLedger struct {
	mu         sync.Mutex
	order      *list.List // of *models.Session, newest at front
	byID       map[string]*list.Element
	maxEntries int
	ttl        time.Duration
	maxEvents  int
	now        func() time.Time
	onEvict    func(id string)
}

func NewSessionLedger(maxEntries int, ttl time.Duration, maxEvents int) *SessionLedger {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &SessionLedger{
		order:      list.New(),
		byID:       make(map[string]*list.Element),
		maxEntries: maxEntries,
		ttl:        ttl,
		maxEvents:  maxEvents,
		now:        time.Now,
	}
}

// OnEvict registers fn to be called with the id of every session dropped
// for capacity or age. fn runs with the ledger locked and must not block.
func (l *SessionLedger) OnEvict(fn func(id string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onEvict = fn
}

// Record inserts a running session at the head, evicting the oldest entry
// once the ledger is over capacity.
func (l *SessionLedger) Record(kind, prompt, payloadHash string) models.Session {
	session := &models.Session{
		ID:            uuid.NewString(),
		Kind:          kind,
		Status:        models.SessionStatusRunning,
		StartedAt:     l.now(),
		PromptPreview: Truncate(prompt, PromptPreviewLength),
		PayloadHash:   payloadHash,
		Events:        []models.EventSummary{},
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID[session.ID] = l.order.PushFront(session)
	for l.order.Len() > l.maxEntries {
		l.removeLocked(l.order.Back())
	}
	return copySession(session)
}

// Finalize completes a running session from its result. Sessions already
// evicted are ignored. Entries older than the TTL are pruned from the tail.
func (l *SessionLedger) Finalize(id string, result models.ExecutionResult, actionCount int) (models.Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	defer l.pruneExpiredLocked(now)

	elem, ok := l.byID[id]
	if !ok {
		return models.Session{}, false
	}
	session := elem.Value.(*models.Session)
	if session.CompletedAt != nil {
		return copySession(session), true
	}

	session.Status = result.Status
	session.CompletedAt = &now
	session.ResponsePreview = Truncate(result.ResponseText, ResponsePreviewLength)
	session.Events = SummarizeEvents(result.Events, l.maxEvents)
	session.Turns = result.Turns
	session.CostUSD = result.CostUSD
	session.Model = result.Model
	session.WorkerSessionID = result.WorkerSessionID
	session.ParseTier = result.ParseTier
	session.ActionCount = actionCount
	session.DurationMs = now.Sub(session.StartedAt).Milliseconds()
	session.Error = result.Error
	return copySession(session), true
}

// Get returns a copy of one session
func (l *SessionLedger) Get(id string) (models.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	elem, ok := l.byID[id]
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	return copySession(elem.Value.(*models.Session)), nil
}

// List walks newest to oldest and returns up to limit matching summaries.
// A limit <= 0 returns every match.
func (l *SessionLedger) List(filter models.SessionFilter, limit int) []models.SessionSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	summaries := []models.SessionSummary{}
	for elem := l.order.Front(); elem != nil; elem = elem.Next() {
		session := elem.Value.(*models.Session)
		if filter.Status != "" && session.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && session.StartedAt.Before(filter.Since) {
			continue
		}
		summaries = append(summaries, session.Summary())
		if limit > 0 && len(summaries) >= limit {
			break
		}
	}
	return summaries
}

// Len reports how many sessions are held
func (l *SessionLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

func (l *SessionLedger) pruneExpiredLocked(now time.Time) {
	if l.ttl <= 0 {
		return
	}
	cutoff := now.Add(-l.ttl)
	for back := l.order.Back(); back != nil; back = l.order.Back() {
		if !back.Value.(*models.Session).StartedAt.Before(cutoff) {
			return
		}
		l.removeLocked(back)
	}
}

func (l *SessionLedger) removeLocked(elem *list.Element) {
	session := l.order.Remove(elem).(*models.Session)
	delete(l.byID, session.ID)
	if l.onEvict != nil {
		l.onEvict(session.ID)
	}
}

func copySession(s *models.Session) models.Session {
	out := *s
	out.Events = make([]models.EventSummary, len(s.Events))
	copy(out.Events, s.Events)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	if s.WorkerSessionID != nil {
		id := *s.WorkerSessionID
		out.WorkerSessionID = &id
	}
	return out
}
