package operation

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dwsmith1983/redisctl/internal/telemetry"
	"github.com/dwsmith1983/redisctl/pkg/types"
)

// Step is one submit-and-wait unit of a workflow. Submit receives the
// outcomes of all prior steps so a step can feed on an earlier result (a
// freshly created subscription id, for example). The fetcher is per-step
// because consecutive steps may poll different endpoints or even different
// platforms.
type Step struct {
	Name    string
	Submit  func(ctx context.Context, prior []types.StepResult) (types.OperationHandle, error)
	Fetcher StatusFetcher
	Config  types.PollConfig
}

// Composer sequences submit-and-wait steps into one logical workflow. Steps
// run strictly sequentially on the caller's goroutine; the composer adds no
// concurrency of its own. It stops at the first step that does not complete
// and reports the partial result. Already-completed steps are not rolled
// back, so the caller can decide on manual cleanup.
type Composer struct {
	sink   types.ProgressSink
	clock  Clock
	logger *slog.Logger
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithComposerSink sets the progress sink shared by every step's poller.
func WithComposerSink(sink types.ProgressSink) ComposerOption {
	return func(c *Composer) { c.sink = sink }
}

// WithComposerClock sets a custom clock (useful for testing).
func WithComposerClock(clk Clock) ComposerOption {
	return func(c *Composer) { c.clock = clk }
}

// WithComposerLogger sets the logger.
func WithComposerLogger(l *slog.Logger) ComposerOption {
	return func(c *Composer) { c.logger = l }
}

// NewComposer creates a Composer.
func NewComposer(opts ...ComposerOption) *Composer {
	c := &Composer{
		clock:  realClock{},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run executes the steps in order. The returned result always lists every
// step that ran, in order; when a step fails, times out, or is cancelled,
// its entry carries the error and no later step's Submit is invoked.
func (c *Composer) Run(ctx context.Context, steps []Step) types.WorkflowResult {
	runID := newRunID()
	result := types.WorkflowResult{RunID: runID}
	telemetry.WorkflowsTotal.Add(ctx, 1)

	c.logger.Info("workflow started", "run", runID, "steps", len(steps))

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			result.Err = CancelledError("", err)
			result.Steps = append(result.Steps, types.StepResult{
				Name:  step.Name,
				State: types.StateCancelled,
				Err:   result.Err,
			})
			return result
		}

		stepStart := c.clock.Now()
		c.logger.Info("workflow step submitting", "run", runID, "step", step.Name, "index", i)

		handle, err := step.Submit(ctx, result.Steps)
		if err != nil {
			result.Err = err
			result.Steps = append(result.Steps, types.StepResult{
				Name:    step.Name,
				State:   types.StateFailed,
				Elapsed: c.clock.Now().Sub(stepStart),
				Err:     err,
			})
			c.logger.Warn("workflow step submit failed", "run", runID, "step", step.Name, "error", err)
			return result
		}

		poller := NewPoller(step.Fetcher,
			WithSink(c.sink),
			WithClock(c.clock),
			WithLogger(c.logger.With("run", runID, "step", step.Name)),
		)
		outcome, err := poller.Wait(ctx, handle, step.Config)
		if err != nil {
			result.Err = err
			result.Steps = append(result.Steps, types.StepResult{
				Name:    step.Name,
				Handle:  handle,
				State:   stateForError(err),
				Elapsed: c.clock.Now().Sub(stepStart),
				Err:     err,
			})
			c.logger.Warn("workflow step did not complete", "run", runID, "step", step.Name, "error", err)
			return result
		}

		result.Steps = append(result.Steps, types.StepResult{
			Name:    step.Name,
			Handle:  handle,
			State:   outcome.State,
			Result:  outcome.Result,
			Elapsed: outcome.Elapsed,
		})
		c.logger.Info("workflow step completed", "run", runID, "step", step.Name, "elapsed", outcome.Elapsed)
	}

	c.logger.Info("workflow completed", "run", runID, "steps", len(result.Steps))
	return result
}

// stateForError maps a unified error onto the step's terminal state.
func stateForError(err error) types.OpState {
	switch KindOf(err) {
	case KindTimeout:
		return types.StateTimedOut
	case KindCancelled:
		return types.StateCancelled
	default:
		return types.StateFailed
	}
}

// newRunID returns a ULID for correlating one workflow run across logs.
func newRunID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
