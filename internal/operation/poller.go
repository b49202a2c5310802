// Package operation is the asynchronous operation orchestration core: it
// polls platform-specific status endpoints under a unified state model and
// exposes one consistent success/failure/timeout result to every caller
// (CLI --wait handling, workflows, MCP tool handlers).
//
// Both control planes model mutations the same way (submit, receive a
// handle, poll to a terminal state) but their status shapes differ. The
// per-platform differences are confined to StatusFetcher implementations
// and the Normalize tables; the poller and the workflow composer never
// branch on platform.
package operation

import (
	"context"
	"log/slog"
	"time"

	"github.com/dwsmith1983/redisctl/internal/telemetry"
	"github.com/dwsmith1983/redisctl/pkg/types"
)

// backoffCeilingFactor caps transient-error backoff at interval * 8.
const backoffCeilingFactor = 8

// Poller drives repeated status fetches for one handle until a terminal
// state, the timeout, or cancellation. A Poller instance owns no per-wait
// state and is safe for concurrent use; each Wait call runs an independent
// loop. Callers must not start two concurrent waits for the same handle.
type Poller struct {
	fetcher StatusFetcher
	sink    types.ProgressSink
	clock   Clock
	logger  *slog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithSink sets the progress event sink.
func WithSink(sink types.ProgressSink) Option {
	return func(p *Poller) { p.sink = sink }
}

// WithClock sets a custom clock (useful for testing).
func WithClock(c Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// NewPoller creates a Poller around the given fetcher.
func NewPoller(fetcher StatusFetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher: fetcher,
		clock:   realClock{},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Poller) emit(ev types.ProgressEvent) {
	if p.sink != nil {
		p.sink(ev)
	}
}

// Wait polls the handle until it reaches a terminal state or the config's
// budget runs out. The timeout check happens at every tick boundary BEFORE
// the next fetch, so an exhausted budget wins even if one more fetch would
// have observed completion. Cancellation is cooperative: it is observed
// between ticks, never mid-flight.
//
// Transient fetch errors (rate limits, 5xx, network blips) are recovered
// inside the loop and surface only as rate-limited progress events. The
// sleep after a transient error grows exponentially per consecutive error,
// capped at eight times the configured interval, and honors a server
// Retry-After when it is longer.
func (p *Poller) Wait(ctx context.Context, h types.OperationHandle, cfg types.PollConfig) (*types.Outcome, error) {
	cfg = cfg.Normalize(h.Platform)
	start := p.clock.Now()

	// Explicit backoff state, inspectable tick to tick.
	consecutiveTransient := 0

	for {
		elapsed := p.clock.Now().Sub(start)

		if elapsed >= cfg.Timeout {
			p.emit(types.ProgressEvent{
				Kind:    types.ProgressTimedOut,
				Handle:  h,
				State:   types.StateTimedOut,
				Elapsed: elapsed,
			})
			p.logger.Warn("wait timed out", "handle", h.String(), "elapsed", elapsed, "timeout", cfg.Timeout)
			return nil, TimeoutError(h.Platform, elapsed, cfg.Timeout)
		}

		if err := ctx.Err(); err != nil {
			p.emit(types.ProgressEvent{
				Kind:    types.ProgressCancelled,
				Handle:  h,
				State:   types.StateCancelled,
				Elapsed: elapsed,
			})
			return nil, CancelledError(h.Platform, err)
		}

		telemetry.PollsTotal.Add(ctx, 1)
		snap, err := p.fetcher.Fetch(ctx, h)
		if err != nil {
			if transient, retryAfter := isTransient(err); transient {
				consecutiveTransient++
				telemetry.PollTransientErrors.Add(ctx, 1)

				if cfg.MaxRetries > 0 && consecutiveTransient > cfg.MaxRetries {
					p.emit(types.ProgressEvent{
						Kind:    types.ProgressFailed,
						Handle:  h,
						State:   types.StateFailed,
						Elapsed: elapsed,
						Reason:  err.Error(),
					})
					return nil, PlatformError(h.Platform, err)
				}

				pause := transientBackoff(cfg.Interval, consecutiveTransient)
				if retryAfter > pause {
					pause = retryAfter
				}
				p.emit(types.ProgressEvent{
					Kind:       types.ProgressRateLimited,
					Handle:     h,
					State:      types.StateProcessing,
					Elapsed:    elapsed,
					RetryAfter: pause,
				})
				p.logger.Debug("transient fetch error, backing off",
					"handle", h.String(), "attempt", consecutiveTransient, "pause", pause, "error", err)
				if serr := p.clock.Sleep(ctx, pause); serr != nil {
					return nil, CancelledError(h.Platform, serr)
				}
				continue
			}

			// Fatal: no further retries.
			p.emit(types.ProgressEvent{
				Kind:    types.ProgressFailed,
				Handle:  h,
				State:   types.StateFailed,
				Elapsed: elapsed,
				Reason:  err.Error(),
			})
			return nil, PlatformError(h.Platform, err)
		}
		consecutiveTransient = 0

		state := Normalize(h.Platform, snap.RawState, snap.ErrorPayload)
		if state.IsTerminal() {
			return p.finish(ctx, h, state, snap, p.clock.Now().Sub(start))
		}

		p.emit(types.ProgressEvent{
			Kind:    types.ProgressPolling,
			Handle:  h,
			State:   state,
			Elapsed: elapsed,
		})
		p.logger.Debug("operation still in progress",
			"handle", h.String(), "state", state, "raw", snap.RawState, "elapsed", elapsed)

		if err := p.clock.Sleep(ctx, cfg.Interval); err != nil {
			return nil, CancelledError(h.Platform, err)
		}
	}
}

// finish emits the terminal event and converts the final snapshot into an
// outcome or a unified error. Once this returns, no further fetches occur
// for the handle.
func (p *Poller) finish(ctx context.Context, h types.OperationHandle, state types.OpState, snap types.StatusSnapshot, elapsed time.Duration) (*types.Outcome, error) {
	telemetry.PollDuration.Record(ctx, elapsed.Seconds())

	switch state {
	case types.StateCompleted:
		p.emit(types.ProgressEvent{
			Kind:    types.ProgressCompleted,
			Handle:  h,
			State:   state,
			Elapsed: elapsed,
			Result:  snap.Result,
		})
		p.logger.Info("operation completed", "handle", h.String(), "elapsed", elapsed)
		return &types.Outcome{
			Handle:  h,
			State:   state,
			Elapsed: elapsed,
			Result:  snap.Result,
		}, nil

	case types.StateCancelled:
		p.emit(types.ProgressEvent{
			Kind:    types.ProgressCancelled,
			Handle:  h,
			State:   state,
			Elapsed: elapsed,
		})
		return nil, &Error{Kind: KindCancelled, Platform: h.Platform, Reason: "cancelled by the platform"}

	default: // StateFailed
		reason := failureReason(snap)
		p.emit(types.ProgressEvent{
			Kind:    types.ProgressFailed,
			Handle:  h,
			State:   types.StateFailed,
			Elapsed: elapsed,
			Reason:  reason,
		})
		p.logger.Warn("operation failed", "handle", h.String(), "reason", reason)
		return nil, TaskFailedError(h.Platform, reason)
	}
}

// transientBackoff returns interval * 2^(n-1) capped at the ceiling, where n
// is the number of consecutive transient errors so far, starting at 1.
func transientBackoff(interval time.Duration, consecutive int) time.Duration {
	pause := interval
	for i := 1; i < consecutive; i++ {
		pause *= 2
		if pause >= interval*backoffCeilingFactor {
			return interval * backoffCeilingFactor
		}
	}
	return pause
}
