package types

import (
	"encoding/json"
	"time"
)

// OperationHandle is an opaque reference to an accepted, not-yet-complete
// mutating request. It is created at submission time and consumed by the
// poller; it is never persisted beyond the process lifetime.
type OperationHandle struct {
	Platform Platform
	ID       string
}

// String renders the handle as "platform/id" for logs and progress output.
func (h OperationHandle) String() string {
	return string(h.Platform) + "/" + h.ID
}

// StatusSnapshot is one point-in-time view of a remote operation, produced
// fresh on every poll and superseded by the next.
type StatusSnapshot struct {
	// RawState is the platform's own status vocabulary, unmodified.
	RawState string
	// Elapsed is the wall-clock time since polling started.
	Elapsed time.Duration
	// Result holds the operation's result payload once the platform reports
	// one (e.g. the created resource), nil otherwise.
	Result json.RawMessage
	// ErrorPayload holds the platform's error document when the operation
	// failed, nil otherwise. A non-empty value forces the failed state even
	// if RawState still reads as non-terminal.
	ErrorPayload json.RawMessage
	// RetryAfter carries a server-requested backoff (from a 429 Retry-After
	// header); zero when the server did not request one.
	RetryAfter time.Duration
}

// PollConfig bounds a single wait: how often to poll and for how long.
type PollConfig struct {
	// Interval is the sleep between successful polls.
	Interval time.Duration
	// Timeout is the overall wall-clock budget, measured from the first tick.
	Timeout time.Duration
	// MaxRetries caps consecutive transient fetch errors before the wait is
	// abandoned. Zero means no cap; the overall timeout still applies.
	MaxRetries int
}

// Poll defaults. Cloud tasks usually settle within minutes; Enterprise
// operations (imports, shard migrations) routinely run longer.
const (
	DefaultCloudInterval      = 5 * time.Second
	DefaultCloudTimeout       = 300 * time.Second
	DefaultEnterpriseInterval = 5 * time.Second
	DefaultEnterpriseTimeout  = 600 * time.Second
)

// DefaultPollConfig returns the platform-appropriate polling defaults.
func DefaultPollConfig(p Platform) PollConfig {
	if p == PlatformEnterprise {
		return PollConfig{Interval: DefaultEnterpriseInterval, Timeout: DefaultEnterpriseTimeout}
	}
	return PollConfig{Interval: DefaultCloudInterval, Timeout: DefaultCloudTimeout}
}

// Normalize fills zero fields with the platform defaults.
func (c PollConfig) Normalize(p Platform) PollConfig {
	def := DefaultPollConfig(p)
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// ProgressEvent is a point-in-time notification emitted by the poller at
// well-defined transition points. The poller never formats output; sinks
// decide how (or whether) to render events.
type ProgressEvent struct {
	Kind    ProgressKind
	Handle  OperationHandle
	State   OpState
	Elapsed time.Duration
	// RetryAfter is set on rate-limited events when the server requested a
	// specific backoff.
	RetryAfter time.Duration
	// Reason is set on failed events.
	Reason string
	// Result is set on completed events.
	Result json.RawMessage
}

// ProgressSink receives progress events. Implementations must be fast and
// must not block; the poller calls the sink inline between ticks.
type ProgressSink func(ProgressEvent)

// Outcome is the terminal result of one wait.
type Outcome struct {
	Handle  OperationHandle
	State   OpState
	Elapsed time.Duration
	// Result is the platform's result payload on completion.
	Result json.RawMessage
	// Reason describes the failure on StateFailed.
	Reason string
}

// StepResult records one workflow step's outcome.
type StepResult struct {
	Name    string
	Handle  OperationHandle
	State   OpState
	Result  json.RawMessage
	Elapsed time.Duration
	Err     error
}

// WorkflowResult is the ordered list of per-step outcomes from one workflow
// run, truncated at the first failure. Completed steps are never rolled
// back; the caller decides on manual cleanup.
type WorkflowResult struct {
	// RunID is a ULID identifying this workflow invocation in logs.
	RunID string
	Steps []StepResult
	// Err is the terminating error, nil when every step completed.
	Err error
}

// Completed reports whether every step of the workflow completed.
func (r WorkflowResult) Completed() bool {
	return r.Err == nil
}
