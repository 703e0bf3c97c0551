package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"worker-proxy-server/models"
)

// WarmConfig controls how often the worker is pinged
type WarmConfig struct {
	Interval time.Duration
	Debounce time.Duration
	Timeout  time.Duration
	Payload  string
}

// WarmKeeper pings the worker in the background so the next real execution
// does not pay cold-start latency. Pings go through the gate's free slots
// only and are skipped while one is in flight or one ran recently.
type WarmKeeper struct {
	config   WarmConfig
	executor Executor
	gate     *ConcurrencyGate
	metrics  *Metrics
	logger   zerolog.Logger

	mu       sync.Mutex
	lastRun  time.Time
	inFlight bool
	now      func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewWarmKeeper(config WarmConfig, executor Executor, gate *ConcurrencyGate, metrics *Metrics, logger zerolog.Logger) *WarmKeeper {
	if config.Payload == "" {
		config.Payload = "ping"
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	return &WarmKeeper{
		config:   config,
		executor: executor,
		gate:     gate,
		metrics:  metrics,
		logger:   logger.With().Str("component", "warm_keeper").Logger(),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start triggers a ping every interval until Stop is called
func (w *WarmKeeper) Start() {
	if w.config.Interval <= 0 {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.Trigger()
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Stop ends the ticker and waits for an in-flight ping
func (w *WarmKeeper) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Trigger starts a ping unless one is running, one ran within the debounce
// window, or no gate slot is free right now. It reports whether a ping
// was started.
func (w *WarmKeeper) Trigger() bool {
	w.mu.Lock()
	now := w.now()
	if w.inFlight || (!w.lastRun.IsZero() && now.Sub(w.lastRun) < w.config.Debounce) {
		w.mu.Unlock()
		w.metrics.RecordWarmPing("debounced")
		return false
	}
	if !w.gate.TryAcquire() {
		w.mu.Unlock()
		w.metrics.RecordWarmPing("busy")
		w.logger.Debug().Msg("skipping warm ping, no free slot")
		return false
	}
	w.inFlight = true
	w.lastRun = now
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			w.inFlight = false
			w.mu.Unlock()
		}()
		defer w.gate.Release()
		w.ping()
	}()
	return true
}

// MarkActive records real worker activity, which postpones the next ping
func (w *WarmKeeper) MarkActive() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRun = w.now()
}

func (w *WarmKeeper) ping() {
	result := w.executor.Run(context.Background(), models.ExecutionRequest{
		Payload: w.config.Payload,
		Timeout: w.config.Timeout,
	})
	switch result.Status {
	case models.StatusError, models.StatusTimeout:
		w.metrics.RecordWarmPing("failed")
		w.logger.Warn().Str("status", result.Status).Str("error", result.Error).Msg("warm ping failed")
	default:
		w.metrics.RecordWarmPing("ok")
		w.logger.Debug().Dur("duration", result.Duration).Msg("warm ping finished")
	}
}
