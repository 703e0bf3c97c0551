package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrQueueFull          = errors.New("execution queue is full")
	ErrQueueTimeout       = errors.New("timed out waiting for an execution slot")
	ErrSessionNotFound    = errors.New("session not found")
	ErrJobNotFound        = errors.New("job not found")
	ErrAsyncDisabled      = errors.New("async execution is not configured")
	ErrArchiveDisabled    = errors.New("session archive is not configured")
	ErrTranscriptNotFound = errors.New("transcript not found")
)

// BusyError is returned by Submit when the gate sheds load. It unwraps to
// ErrQueueFull or ErrQueueTimeout.
type BusyError struct {
	Reason     error
	RetryAfter time.Duration
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("service busy (%v), retry after %s", e.Reason, e.RetryAfter)
}

func (e *BusyError) Unwrap() error {
	return e.Reason
}

// RetryAfterSeconds rounds the retry hint up to whole seconds
func (e *BusyError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
