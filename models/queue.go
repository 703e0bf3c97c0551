package models

// QueueStatus reports Concurrency Gate occupancy
type QueueStatus struct {
	Active        int `json:"active"`
	MaxConcurrent int `json:"max_concurrent"`
	Queued        int `json:"queued"`
	MaxQueue      int `json:"max_queue"`
}

// WorkerHealth is the result of probing the worker binary
type WorkerHealth struct {
	WorkerAvailable bool    `json:"worker_available"`
	WorkerVersion   *string `json:"worker_version"`
}

// BusyResponse is returned when the gate sheds load
type BusyResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}
