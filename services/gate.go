package services

import (
	"container/list"
	"sync"
	"time"

	"worker-proxy-server/models"
)

// ConcurrencyGate admits at most maxConcurrent executions. Up to maxQueue
// callers wait in FIFO order; a release hands its slot straight to the
// oldest waiter.
type ConcurrencyGate struct {
	mu            sync.Mutex
	maxConcurrent int
	maxQueue      int
	active        int
	waiters       *list.List // of *gateWaiter, oldest at front
}

// gateWaiter is resolved exactly once, under mu: either a release removes
// it from the list and closes ready, or its timer removes it and reports a
// timeout. elem is nil once it has left the list.
type gateWaiter struct {
	ready chan struct{}
	elem  *list.Element
}

func NewConcurrencyGate(maxConcurrent, maxQueue int) *ConcurrencyGate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if maxQueue < 0 {
		maxQueue = 0
	}
	return &ConcurrencyGate{
		maxConcurrent: maxConcurrent,
		maxQueue:      maxQueue,
		waiters:       list.New(),
	}
}

// Acquire takes a slot, waiting up to timeout behind earlier callers.
// Returns ErrQueueFull without waiting when the queue is at capacity, and
// ErrQueueTimeout if no slot was handed over in time.
func (g *ConcurrencyGate) Acquire(timeout time.Duration) error {
	g.mu.Lock()
	if g.active < g.maxConcurrent {
		g.active++
		g.mu.Unlock()
		return nil
	}
	if g.waiters.Len() >= g.maxQueue {
		g.mu.Unlock()
		return ErrQueueFull
	}
	w := &gateWaiter{ready: make(chan struct{})}
	w.elem = g.waiters.PushBack(w)
	g.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.ready:
		return nil
	case <-timer.C:
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if w.elem == nil {
		// A release granted the slot between the timer firing and the lock.
		return nil
	}
	g.waiters.Remove(w.elem)
	w.elem = nil
	return ErrQueueTimeout
}

// TryAcquire takes a free slot without queueing
func (g *ConcurrencyGate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active < g.maxConcurrent && g.waiters.Len() == 0 {
		g.active++
		return true
	}
	return false
}

// Release returns a slot. If anyone is waiting the slot passes to the
// oldest waiter and the active count is unchanged.
func (g *ConcurrencyGate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if front := g.waiters.Front(); front != nil {
		w := g.waiters.Remove(front).(*gateWaiter)
		w.elem = nil
		close(w.ready)
		return
	}
	if g.active > 0 {
		g.active--
	}
}

// Status snapshots the gate counters
func (g *ConcurrencyGate) Status() models.QueueStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return models.QueueStatus{
		Active:        g.active,
		MaxConcurrent: g.maxConcurrent,
		Queued:        g.waiters.Len(),
		MaxQueue:      g.maxQueue,
	}
}
