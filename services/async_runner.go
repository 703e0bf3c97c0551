package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/rs/zerolog"

	"worker-proxy-server/models"
)

const (
	popWait      = 5 * time.Second
	errorBackoff = time.Second
)

// AsyncRunner drains the job queue and runs each job through the proxy.
// Jobs still pass the gate, so consumers never add concurrency of their own.
type AsyncRunner struct {
	proxy     *ProxyService
	queue     JobQueue
	consumers int
	tracing   bool
	logger    zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAsyncRunner(proxy *ProxyService, queue JobQueue, consumers int, tracing bool, logger zerolog.Logger) *AsyncRunner {
	if consumers < 1 {
		consumers = 1
	}
	return &AsyncRunner{
		proxy:     proxy,
		queue:     queue,
		consumers: consumers,
		tracing:   tracing,
		logger:    logger.With().Str("component", "async_runner").Logger(),
	}
}

func (r *AsyncRunner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	for i := 0; i < r.consumers; i++ {
		r.wg.Add(1)
		go func(consumer int) {
			defer r.wg.Done()
			r.consume(ctx, consumer)
		}(i)
	}
	r.logger.Info().Int("consumers", r.consumers).Msg("async runner started")
}

// Stop stops popping new jobs and waits for the ones in progress
func (r *AsyncRunner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *AsyncRunner) consume(ctx context.Context, consumer int) {
	log := r.logger.With().Int("consumer", consumer).Logger()
	for {
		if ctx.Err() != nil {
			return
		}

		// Block and wait for job from queue
		job, err := r.queue.PopJob(ctx, popWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("error reading from queue")
			select {
			case <-time.After(errorBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		if job == nil {
			continue // Timeout, no job available
		}

		// Results are written even when shutdown is in progress
		result := r.Process(context.WithoutCancel(ctx), job)
		if err := r.queue.SetResult(context.WithoutCancel(ctx), result); err != nil {
			log.Error().Err(err).Str("job_id", job.JobID).Msg("error storing result")
			continue
		}
		log.Info().Str("job_id", job.JobID).Str("status", result.Status).Msg("finished job")
	}
}

// Process runs one job and returns its final result
func (r *AsyncRunner) Process(ctx context.Context, job *models.AsyncJob) *models.AsyncJobResult {
	if r.tracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, "worker-proxy-async")
		seg.AddAnnotation("job_id", job.JobID)
		defer seg.Close(nil)
	}

	started := time.Now()
	response, err := r.proxy.Submit(ctx, job.Request)
	result := &models.AsyncJobResult{
		JobID:      job.JobID,
		Status:     models.JobStatusDone,
		Response:   response,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		result.Status = models.JobStatusRejected
		result.ErrorMessage = err.Error()
		var busy *BusyError
		if !errors.As(err, &busy) {
			r.logger.Error().Err(err).Str("job_id", job.JobID).Msg("job failed")
		}
	}
	return result
}
