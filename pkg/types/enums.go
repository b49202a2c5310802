// Package types defines the public domain types shared by the redisctl
// orchestration core, the REST clients, the CLI, and the MCP server.
package types

// Platform identifies which control plane an operation belongs to.
type Platform string

// Platform values enumerate the two supported control planes.
const (
	PlatformCloud      Platform = "cloud"
	PlatformEnterprise Platform = "enterprise"
)

// Valid reports whether p is a known platform tag.
func (p Platform) Valid() bool {
	return p == PlatformCloud || p == PlatformEnterprise
}

// OpState is the normalized state of an asynchronous operation. Every raw
// platform status string maps onto exactly one of these values.
type OpState string

// OpState values. Completed, Failed, TimedOut, and Cancelled are terminal;
// Queued and Processing cause another poll.
const (
	StateQueued     OpState = "queued"
	StateProcessing OpState = "processing"
	StateCompleted  OpState = "completed"
	StateFailed     OpState = "failed"
	StateTimedOut   OpState = "timed-out"
	StateCancelled  OpState = "cancelled"
)

// IsTerminal reports whether no further polling should occur for this state.
func (s OpState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

// ProgressKind classifies a progress event emitted by the poller.
type ProgressKind string

// ProgressKind values enumerate the poller's notification points.
const (
	ProgressPolling     ProgressKind = "polling"
	ProgressRateLimited ProgressKind = "rate-limited"
	ProgressCompleted   ProgressKind = "completed"
	ProgressFailed      ProgressKind = "failed"
	ProgressTimedOut    ProgressKind = "timed-out"
	ProgressCancelled   ProgressKind = "cancelled"
)
