package models

import (
	"encoding/json"
	"time"
)

// Execution status values reported in ExecutionResult.Status
const (
	StatusSuccess            = "success"
	StatusErrorMaxTurns      = "error_max_turns"
	StatusErrorToolExecution = "error_tool_execution"
	StatusTimeout            = "timeout"
	StatusError              = "error"
	StatusUnknown            = "unknown"
)

// Parse tiers used to build an ExecutionResult
const (
	TierNone       = 0
	TierStream     = 1
	TierSingleJSON = 2
	TierPlainText  = 3
)

// ExecutionRequest is one worker invocation handed to the executor
type ExecutionRequest struct {
	Payload   string        `json:"payload"`
	ExtraArgs []string      `json:"extra_args,omitempty"`
	Timeout   time.Duration `json:"timeout"`
	WorkDir   string        `json:"work_dir,omitempty"`
	Env       []string      `json:"env,omitempty"`
}

// ExecutionResult is the canonical outcome of one worker invocation
type ExecutionResult struct {
	ResponseText    string        `json:"response_text"`
	Status          string        `json:"status"`
	Turns           int           `json:"turns"`
	CostUSD         float64       `json:"cost_usd"`
	Model           string        `json:"model"`
	WorkerSessionID *string       `json:"worker_session_id"`
	RawEventCount   int           `json:"raw_event_count"`
	TimedOut        bool          `json:"timed_out"`
	ParseTier       int           `json:"parse_tier"`
	Error           string        `json:"error,omitempty"`
	Duration        time.Duration `json:"duration_ns"`

	// Events and Transcript are kept for the ledger and the transcript store only.
	Events     []RawEvent `json:"-"`
	Transcript []byte     `json:"-"`
}

// RawEvent is one decoded frame of worker output
type RawEvent struct {
	Type       string          `json:"type"`
	Body       map[string]any  `json:"body"`
	Raw        json.RawMessage `json:"-"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Subtype returns the event's "subtype" field, or "" if absent
func (e RawEvent) Subtype() string {
	s, _ := e.Body["subtype"].(string)
	return s
}

// SubmitRequest is the body accepted by the execution endpoint
type SubmitRequest struct {
	Kind      string   `json:"kind"`
	Payload   string   `json:"payload"`
	TimeoutMs int64    `json:"timeout_ms,omitempty"`
	ExtraArgs []string `json:"extra_args,omitempty"`
}

// SubmitResponse is returned for a completed (or failed) execution
type SubmitResponse struct {
	SessionID  string           `json:"session_id"`
	Text       string           `json:"text"`
	Actions    []map[string]any `json:"actions"`
	Confidence float64          `json:"confidence"`
	Result     ExecutionResult  `json:"result"`
}

// AsyncJob is an execution request parked on the Redis queue
type AsyncJob struct {
	JobID      string        `json:"jobId"`
	Request    SubmitRequest `json:"request"`
	EnqueuedAt time.Time     `json:"enqueuedAt"`
}

// AsyncJobResult is stored in Redis once a queued job finishes
type AsyncJobResult struct {
	JobID        string          `json:"jobId"`
	Status       string          `json:"status"`
	Response     *SubmitResponse `json:"response,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	DurationMs   int64           `json:"durationMs"`
}

// Async job statuses
const (
	JobStatusPending  = "pending"
	JobStatusDone     = "done"
	JobStatusRejected = "rejected"
)
