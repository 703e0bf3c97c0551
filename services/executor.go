package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/sys/unix"

	"worker-proxy-server/models"
)

const (
	readChunkSize   = 32 * 1024
	stderrTailBytes = 16 * 1024
	probeTimeout    = 10 * time.Second
)

// Executor runs one worker invocation and always returns a result
type Executor interface {
	Run(ctx context.Context, req models.ExecutionRequest) models.ExecutionResult
}

// HealthProber checks whether the worker binary can be started
type HealthProber interface {
	Probe(ctx context.Context) models.WorkerHealth
}

// ExecutorConfig describes how the worker process is launched
type ExecutorConfig struct {
	Binary         string
	Args           []string
	WorkDir        string
	Env            []string
	DefaultTimeout time.Duration
	KillGrace      time.Duration
	MaxOutputBytes int
	MaxEvents      int
}

// ProcessExecutor spawns the worker, feeds it the payload on stdin and
// decodes its newline-delimited JSON stdout.
type ProcessExecutor struct {
	config ExecutorConfig
	logger zerolog.Logger
	probes singleflight.Group
}

var _ Executor = (*ProcessExecutor)(nil)
var _ HealthProber = (*ProcessExecutor)(nil)

func NewProcessExecutor(config ExecutorConfig, logger zerolog.Logger) *ProcessExecutor {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 5 * time.Minute
	}
	if config.KillGrace <= 0 {
		config.KillGrace = 5 * time.Second
	}
	if config.MaxOutputBytes <= 0 {
		config.MaxOutputBytes = 8 << 20
	}
	if config.MaxEvents <= 0 {
		config.MaxEvents = 10000
	}
	return &ProcessExecutor{
		config: config,
		logger: logger.With().Str("component", "executor").Logger(),
	}
}

// Run executes req. Cancellation of ctx is deliberately not observed: once
// started, a worker runs until it exits or req.Timeout expires.
func (e *ProcessExecutor) Run(ctx context.Context, req models.ExecutionRequest) models.ExecutionResult {
	started := time.Now()
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}

	command := e.command(req)
	stderr := &tailBuffer{limit: stderrTailBytes}
	command.Stderr = stderr

	stdin, err := command.StdinPipe()
	if err != nil {
		return e.spawnFailed(err, started)
	}
	stdout, err := command.StdoutPipe()
	if err != nil {
		return e.spawnFailed(err, started)
	}
	if err := command.Start(); err != nil {
		return e.spawnFailed(err, started)
	}
	log := e.logger.With().Int("pid", command.Process.Pid).Logger()
	log.Debug().Dur("timeout", timeout).Int("payload_bytes", len(req.Payload)).Msg("worker started")

	// The payload goes in from its own goroutine so a worker that writes
	// before it finishes reading cannot deadlock against us.
	go func() {
		if _, err := io.WriteString(stdin, req.Payload); err != nil {
			log.Debug().Err(err).Msg("writing payload to worker")
		}
		stdin.Close()
	}()

	chunks := make(chan []byte, 16)
	go readChunks(stdout, chunks)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var (
		decoder  = NewFrameDecoder(e.config.MaxOutputBytes)
		events   = &eventBuffer{limit: e.config.MaxEvents}
		raw      = &cappedBuffer{limit: e.config.MaxOutputBytes}
		timedOut bool
		waitErr  error
	)

stream:
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				break stream
			}
			raw.Write(chunk)
			for _, record := range decoder.Feed(chunk) {
				e.appendEvent(events, record, log)
			}
		case <-timer.C:
			timedOut = true
			break stream
		}
	}
	if rest, ok := decoder.Flush(); ok {
		e.appendEvent(events, rest, log)
	}
	if n := decoder.Dropped(); n > 0 {
		log.Warn().Int("lines", n).Int("limit_bytes", e.config.MaxOutputBytes).Msg("discarded over-long output lines")
	}
	if events.dropped > 0 {
		log.Warn().Int("dropped", events.dropped).Int("limit", events.limit).Msg("event limit reached, kept result events only")
	}

	if timedOut {
		e.terminate(command, log)
		go e.reapAfterStream(command, chunks, log)
	} else {
		waitDone := make(chan error, 1)
		go func() { waitDone <- command.Wait() }()
		select {
		case waitErr = <-waitDone:
		case <-timer.C:
			timedOut = true
			e.terminate(command, log)
			go e.reapAfterWait(command, waitDone, log)
		}
	}

	result := e.assemble(events.events, raw, timedOut, timeout, waitErr, stderr, log)
	result.RawEventCount = events.seen()
	result.Events = events.events
	result.Transcript = raw.Bytes()
	result.Duration = time.Since(started)
	return result
}

func (e *ProcessExecutor) assemble(events []models.RawEvent, raw *cappedBuffer, timedOut bool, timeout time.Duration, waitErr error, stderr *tailBuffer, log zerolog.Logger) models.ExecutionResult {
	switch {
	case timedOut:
		// Reduce prefers a result event's text and falls back to assistant text.
		result := Reduce(events)
		result.Status = models.StatusTimeout
		result.TimedOut = true
		result.Error = fmt.Sprintf("worker exceeded run timeout of %s", timeout)
		log.Warn().Dur("timeout", timeout).Int("events", len(events)).Msg("worker timed out")
		return result

	case hasResultEvent(events):
		result := Reduce(events)
		if waitErr != nil {
			log.Warn().Err(waitErr).Msg("worker exited with error after reporting a result")
		}
		return result

	case len(events) == 0 && strings.TrimSpace(raw.String()) != "":
		if result, ok := ParseSingleJSON(raw.String(), time.Now()); ok {
			log.Warn().Int("tier", models.TierSingleJSON).Msg("no stream events, parsed output as a single JSON document")
			return result
		}
		log.Warn().Int("tier", models.TierPlainText).Msg("no stream events, using raw output as text")
		return PlainTextResult(raw.String())

	case len(events) > 0:
		result := Reduce(events)
		if waitErr != nil {
			result.Status = models.StatusError
			result.Error = exitDescription(waitErr, stderr)
		}
		return result

	default:
		msg := "worker produced no output"
		if waitErr != nil {
			msg = exitDescription(waitErr, stderr)
		} else if tail := strings.TrimSpace(stderr.String()); tail != "" {
			msg += ": " + tail
		}
		log.Error().Str("error", msg).Msg("worker failed")
		return models.ExecutionResult{Status: models.StatusError, Error: msg}
	}
}

func (e *ProcessExecutor) command(req models.ExecutionRequest) *exec.Cmd {
	args := make([]string, 0, len(e.config.Args)+len(req.ExtraArgs))
	args = append(args, e.config.Args...)
	args = append(args, req.ExtraArgs...)

	command := exec.Command(e.config.Binary, args...)
	command.Dir = e.config.WorkDir
	if req.WorkDir != "" {
		command.Dir = req.WorkDir
	}
	command.Env = append(os.Environ(), e.config.Env...)
	command.Env = append(command.Env, req.Env...)
	// Own process group, so a timeout signal reaches anything the worker spawned.
	command.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	command.WaitDelay = e.config.KillGrace
	return command
}

func (e *ProcessExecutor) appendEvent(events *eventBuffer, record string, log zerolog.Logger) {
	event, err := ParseEvent(record, time.Now())
	if err != nil {
		log.Debug().Err(err).Int("bytes", len(record)).Msg("skipping malformed frame")
		return
	}
	log.Debug().Str("type", event.Type).Str("subtype", event.Subtype()).Msg("worker event")
	events.add(event)
}

func (e *ProcessExecutor) spawnFailed(err error, started time.Time) models.ExecutionResult {
	e.logger.Error().Err(err).Str("binary", e.config.Binary).Msg("failed to spawn worker")
	return models.ExecutionResult{
		Status:   models.StatusError,
		Error:    fmt.Sprintf("spawn failed: %v", err),
		Duration: time.Since(started),
	}
}

func (e *ProcessExecutor) terminate(command *exec.Cmd, log zerolog.Logger) {
	if err := signalGroup(command, unix.SIGTERM); err != nil {
		log.Debug().Err(err).Msg("sending SIGTERM to worker")
	}
}

// reapAfterStream runs in the background after a timeout that hit while
// stdout was still open: it drains the pipe, escalates to SIGKILL after the
// grace period and reaps the process.
func (e *ProcessExecutor) reapAfterStream(command *exec.Cmd, chunks <-chan []byte, log zerolog.Logger) {
	kill := time.AfterFunc(e.config.KillGrace, func() {
		log.Warn().Msg("worker ignored SIGTERM, sending SIGKILL")
		signalGroup(command, unix.SIGKILL)
	})
	defer kill.Stop()
	for range chunks {
	}
	err := command.Wait()
	log.Debug().Err(err).Msg("timed out worker reaped")
}

func (e *ProcessExecutor) reapAfterWait(command *exec.Cmd, waitDone <-chan error, log zerolog.Logger) {
	kill := time.AfterFunc(e.config.KillGrace, func() {
		log.Warn().Msg("worker ignored SIGTERM, sending SIGKILL")
		signalGroup(command, unix.SIGKILL)
	})
	defer kill.Stop()
	err := <-waitDone
	log.Debug().Err(err).Msg("timed out worker reaped")
}

// Probe runs "<binary> --version". Concurrent probes share one process.
func (e *ProcessExecutor) Probe(ctx context.Context) models.WorkerHealth {
	value, _, _ := e.probes.Do("version", func() (any, error) {
		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), probeTimeout)
		defer cancel()

		out, err := exec.CommandContext(probeCtx, e.config.Binary, "--version").Output()
		if err != nil {
			e.logger.Warn().Err(err).Str("binary", e.config.Binary).Msg("worker probe failed")
			return models.WorkerHealth{}, nil
		}
		health := models.WorkerHealth{WorkerAvailable: true}
		if line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n"); line != "" {
			version := strings.TrimSpace(line)
			health.WorkerVersion = &version
		}
		return health, nil
	})
	return value.(models.WorkerHealth)
}

func readChunks(r io.Reader, out chan<- []byte) {
	defer close(out)
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- chunk
		}
		if err != nil {
			return
		}
	}
}

func signalGroup(command *exec.Cmd, sig syscall.Signal) error {
	if command.Process == nil {
		return errors.New("process not started")
	}
	if err := unix.Kill(-command.Process.Pid, sig); err != nil {
		return command.Process.Signal(sig)
	}
	return nil
}

func hasResultEvent(events []models.RawEvent) bool {
	for _, e := range events {
		if e.Type == "result" {
			return true
		}
	}
	return false
}

func exitDescription(err error, stderr *tailBuffer) string {
	msg := fmt.Sprintf("worker exited: %v", err)
	if tail := strings.TrimSpace(stderr.String()); tail != "" {
		msg += ": " + Truncate(tail, 1000)
	}
	return msg
}

// eventBuffer keeps the first limit events. Past the limit only the newest
// result event is kept, so the final outcome is never lost.
type eventBuffer struct {
	events  []models.RawEvent
	limit   int
	spilled bool
	dropped int
}

func (b *eventBuffer) add(event models.RawEvent) {
	if len(b.events) < b.limit {
		b.events = append(b.events, event)
		return
	}
	if event.Type != "result" {
		b.dropped++
		return
	}
	if b.spilled {
		b.events[len(b.events)-1] = event
		b.dropped++
		return
	}
	b.events = append(b.events, event)
	b.spilled = true
}

// seen counts every event parsed, kept or not
func (b *eventBuffer) seen() int {
	return len(b.events) + b.dropped
}

// cappedBuffer keeps the first limit bytes written to it
type cappedBuffer struct {
	buf       []byte
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) {
	room := b.limit - len(b.buf)
	if room <= 0 {
		b.truncated = len(p) > 0 || b.truncated
		return
	}
	if len(p) > room {
		p = p[:room]
		b.truncated = true
	}
	b.buf = append(b.buf, p...)
}

func (b *cappedBuffer) Bytes() []byte  { return b.buf }
func (b *cappedBuffer) String() string { return string(b.buf) }

// tailBuffer keeps the last limit bytes written to it. exec copies stderr
// from its own goroutine, hence the lock.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append([]byte(nil), b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
