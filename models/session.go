package models

import "time"

// SessionStatusRunning marks a session whose execution has not finished yet
const SessionStatusRunning = "running"

// Session is the ledger record of one execution
type Session struct {
	ID              string         `json:"id"`
	Kind            string         `json:"kind"`
	Status          string         `json:"status"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	PromptPreview   string         `json:"prompt_preview"`
	ResponsePreview string         `json:"response_preview"`
	PayloadHash     string         `json:"payload_hash,omitempty"`
	Events          []EventSummary `json:"events"`
	Turns           int            `json:"turns"`
	CostUSD         float64        `json:"cost_usd"`
	Model           string         `json:"model"`
	WorkerSessionID *string        `json:"worker_session_id,omitempty"`
	ParseTier       int            `json:"parse_tier"`
	ActionCount     int            `json:"action_count"`
	DurationMs      int64          `json:"duration_ms"`
	Error           string         `json:"error,omitempty"`
}

// EventSummary is the bounded form of a RawEvent kept in the ledger
type EventSummary struct {
	Type       string    `json:"type"`
	Subtype    string    `json:"subtype,omitempty"`
	Preview    string    `json:"preview,omitempty"`
	Bytes      int       `json:"bytes"`
	ReceivedAt time.Time `json:"received_at"`
}

// SessionSummary is a session in list view (without events)
type SessionSummary struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	PromptPreview   string     `json:"prompt_preview"`
	ResponsePreview string     `json:"response_preview"`
	Turns           int        `json:"turns"`
	CostUSD         float64    `json:"cost_usd"`
	Model           string     `json:"model"`
	EventCount      int        `json:"event_count"`
	DurationMs      int64      `json:"duration_ms"`
	Error           string     `json:"error,omitempty"`
}

// SessionFilter narrows List results; zero fields match everything
type SessionFilter struct {
	Status string
	Since  time.Time
}

// Summary returns the list view of the session
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:              s.ID,
		Kind:            s.Kind,
		Status:          s.Status,
		StartedAt:       s.StartedAt,
		CompletedAt:     s.CompletedAt,
		PromptPreview:   s.PromptPreview,
		ResponsePreview: s.ResponsePreview,
		Turns:           s.Turns,
		CostUSD:         s.CostUSD,
		Model:           s.Model,
		EventCount:      len(s.Events),
		DurationMs:      s.DurationMs,
		Error:           s.Error,
	}
}
