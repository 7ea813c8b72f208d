// Package engine implements asynchronous MDM command dispatch: submissions
// are validated, queued on a bounded channel, and sent to the push gateway by
// a fixed worker pool with bounded retry. Every submission resolves to
// exactly one terminal result in the history store.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mdmdispatch/internal/apperrors"
	"mdmdispatch/internal/command"
	"mdmdispatch/internal/gateway"
	"mdmdispatch/internal/history"
	"mdmdispatch/pkg/backoff"
)

// MetricsRecorder is an optional interface for recording dispatch metrics.
type MetricsRecorder interface {
	RecordCommandSubmitted(ctx context.Context)
	RecordDispatchOutcome(ctx context.Context, status command.Status, durationSeconds float64)
	RecordDispatchRetry(ctx context.Context)
	RecordQueueSize(ctx context.Context, size int64)
}

// Stats holds engine statistics.
type Stats struct {
	QueueDepth int   // current queue size
	Submitted  int64 // total commands accepted for dispatch
	Accepted   int64 // terminal: accepted by the gateway
	Rejected   int64 // terminal: rejected by the gateway
	Failed     int64 // terminal: transport failure after retries
	Retries    int64 // total retry attempts
}

// task is one command in flight. The payload is serialized once at
// submission so the bytes, including the CommandUUID, are identical across
// every retry.
type task struct {
	deviceToken string
	commandUUID string
	payload     []byte
	attempt     int
}

// Engine dispatches MDM commands to the push gateway.
type Engine struct {
	queue   chan *task
	gw      gateway.Client
	history *history.Store
	config  Config
	logger  *slog.Logger
	metrics MetricsRecorder

	// Internal counters (for Stats())
	submitted atomic.Int64
	accepted  atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
	retries   atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// New creates a dispatch engine and starts its worker pool.
func New(cfg Config, gw gateway.Client, store *history.Store, metrics MetricsRecorder) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{
		queue:    make(chan *task, cfg.QueueSize),
		gw:       gw,
		history:  store,
		config:   cfg,
		logger:   slog.With("component", "engine"),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	e.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go e.worker()
	}

	if metrics != nil {
		go e.reportQueueSize()
	}

	e.logger.Info("Dispatch engine started",
		"workers", cfg.Workers,
		"queue", cfg.QueueSize,
		"maxRetries", cfg.MaxRetries,
	)
	return e
}

// Submit validates a command submission and schedules exactly one dispatch
// task for it. It returns immediately; the send happens on the worker pool.
// A payload without a CommandUUID gets one injected in place, so callers see
// the UUID the device will see.
func (e *Engine) Submit(deviceToken string, payload command.Payload) (*command.Ack, error) {
	if e.closed.Load() {
		return nil, apperrors.Unavailable("dispatch engine is shutting down")
	}
	if deviceToken == "" {
		return nil, apperrors.Validation("deviceToken", "device token is required")
	}
	if payload == nil {
		return nil, apperrors.Validation("payload", "payload is required")
	}

	commandUUID := payload.UUID()
	if commandUUID == "" {
		commandUUID = uuid.New().String()
		payload[command.UUIDKey] = commandUUID
		e.logger.Warn("No CommandUUID in payload, generated one",
			"commandUUID", commandUUID,
			"deviceToken", PartialToken(deviceToken),
		)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Validation("payload", "payload is not serializable: "+err.Error())
	}

	t := &task{
		deviceToken: deviceToken,
		commandUUID: commandUUID,
		payload:     body,
	}

	select {
	case e.queue <- t:
		e.submitted.Add(1)
		if e.metrics != nil {
			e.metrics.RecordCommandSubmitted(context.Background())
		}
		e.logger.Info("Command submitted",
			"commandUUID", commandUUID,
			"deviceToken", PartialToken(deviceToken),
		)
	default:
		e.logger.Warn("Dispatch queue full, command not scheduled",
			"commandUUID", commandUUID,
			"deviceToken", PartialToken(deviceToken),
		)
		return nil, apperrors.Unavailable("dispatch queue is full")
	}

	return &command.Ack{
		Message:     "Command submitted for processing",
		DeviceToken: deviceToken,
		CommandUUID: commandUUID,
	}, nil
}

// Stats returns current engine statistics.
func (e *Engine) Stats() Stats {
	return Stats{
		QueueDepth: len(e.queue),
		Submitted:  e.submitted.Load(),
		Accepted:   e.accepted.Load(),
		Rejected:   e.rejected.Load(),
		Failed:     e.failed.Load(),
		Retries:    e.retries.Load(),
	}
}

// Ready reports whether the engine is accepting submissions.
func (e *Engine) Ready(ctx context.Context) error {
	if e.closed.Load() {
		return apperrors.Unavailable("dispatch engine is shut down")
	}
	return nil
}

// Close gracefully shuts down the engine. New submissions are refused
// immediately; queued commands get one final attempt during the drain, and
// commands interrupted mid-retry are recorded as FAILED_TO_SEND.
func (e *Engine) Close(ctx context.Context) error {
	if e.closed.Swap(true) {
		return nil // already closed
	}

	e.logger.Info("Dispatch engine shutting down", "queued", len(e.queue))
	close(e.shutdown)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("Dispatch engine shutdown complete",
			"accepted", e.accepted.Load(),
			"rejected", e.rejected.Load(),
			"failed", e.failed.Load(),
		)
		return nil
	case <-ctx.Done():
		e.logger.Warn("Dispatch engine shutdown timed out", "remaining", len(e.queue))
		return ctx.Err()
	}
}

// worker processes dispatch tasks from the queue.
func (e *Engine) worker() {
	defer e.wg.Done()

	for {
		select {
		case <-e.shutdown:
			e.drainQueue()
			return
		case t := <-e.queue:
			e.dispatch(t)
		}
	}
}

// drainQueue dispatches remaining tasks after the shutdown signal.
func (e *Engine) drainQueue() {
	for {
		select {
		case t := <-e.queue:
			e.dispatch(t)
		default:
			return // queue empty
		}
	}
}

// dispatch drives one command to a terminal outcome. Retries are strictly
// sequential: the next attempt is only scheduled after the prior outcome is
// known. Nothing may escape this method without writing a history record.
func (e *Engine) dispatch(t *task) {
	logger := e.logger.With(
		"commandUUID", t.commandUUID,
		"deviceToken", PartialToken(t.deviceToken),
	)
	start := time.Now()

	for {
		outcome, err := e.send(t)
		if err != nil {
			if t.attempt < e.config.MaxRetries {
				t.attempt++
				e.retries.Add(1)
				if e.metrics != nil {
					e.metrics.RecordDispatchRetry(context.Background())
				}
				logger.Warn("Send failed, retrying", "attempt", t.attempt, "error", err)
				if !e.waitBeforeRetry(t.attempt) {
					e.recordTerminal(t, command.StatusFailedToSend,
						"dispatch aborted during shutdown: "+err.Error(), start)
					return
				}
				continue
			}
			logger.Error("Send failed, retries exhausted", "attempts", t.attempt+1, "error", err)
			e.recordTerminal(t, command.StatusFailedToSend, err.Error(), start)
			return
		}

		if outcome.Accepted {
			logger.Info("Command accepted by gateway")
			e.recordTerminal(t, command.StatusAccepted, "", start)
			return
		}

		// Business rejections indicate a permanent condition and are never
		// retried. An invalidated token is an operator concern; the engine
		// only logs it.
		if !outcome.TokenInvalidatedAt.IsZero() {
			logger.Error("Device token invalidated by gateway, remove it from your records",
				"invalidatedAt", outcome.TokenInvalidatedAt,
			)
		}
		logger.Warn("Command rejected by gateway", "reason", outcome.Reason)
		e.recordTerminal(t, command.StatusRejected, outcome.Reason, start)
		return
	}
}

// send performs one gateway attempt under the configured timeout.
func (e *Engine) send(t *task) (*gateway.Outcome, error) {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.PushTimeout)
	defer cancel()
	return e.gw.Send(ctx, t.deviceToken, e.config.Topic, t.payload)
}

// waitBeforeRetry sleeps for the backoff interval of the given attempt.
// Returns false if shutdown interrupted the wait.
func (e *Engine) waitBeforeRetry(attempt int) bool {
	delay := backoff.Exponential(attempt, &backoff.Config{
		Initial: e.config.RetryBackoffInitial,
		Max:     e.config.RetryBackoffMax,
	})
	select {
	case <-e.shutdown:
		return false
	case <-time.After(delay):
		return true
	}
}

// recordTerminal writes the single history record for a task and bumps the
// matching counter.
func (e *Engine) recordTerminal(t *task, status command.Status, reason string, start time.Time) {
	e.history.Record(t.deviceToken, command.NewResult(t.commandUUID, status, reason))

	switch status {
	case command.StatusAccepted:
		e.accepted.Add(1)
	case command.StatusRejected:
		e.rejected.Add(1)
	case command.StatusFailedToSend:
		e.failed.Add(1)
	}

	if e.metrics != nil {
		e.metrics.RecordDispatchOutcome(context.Background(), status, time.Since(start).Seconds())
	}
}

// reportQueueSize periodically reports the queue size metric.
func (e *Engine) reportQueueSize() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.shutdown:
			return
		case <-ticker.C:
			e.metrics.RecordQueueSize(context.Background(), int64(len(e.queue)))
		}
	}
}

// PartialToken redacts a device token for logging: first and last four
// characters only.
func PartialToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
