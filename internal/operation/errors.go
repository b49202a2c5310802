package operation

import (
	"errors"
	"fmt"
	"time"

	"github.com/dwsmith1983/redisctl/pkg/types"
)

// ErrorKind is the closed set of failure classes every core entry point can
// return. CLI and MCP layers render these uniformly without knowing which
// platform was involved.
type ErrorKind string

const (
	// KindPlatform means the remote API returned a hard error.
	KindPlatform ErrorKind = "platform"
	// KindTimeout means the wait exceeded the caller's budget.
	KindTimeout ErrorKind = "timeout"
	// KindTaskFailed means the remote reported the operation itself failed.
	KindTaskFailed ErrorKind = "task-failed"
	// KindValidation means the request was rejected before any network call.
	KindValidation ErrorKind = "validation"
	// KindConfig means credentials or profile resolution failed.
	KindConfig ErrorKind = "config"
	// KindCancelled means the caller cancelled the wait.
	KindCancelled ErrorKind = "cancelled"
)

// Error is the unified error type produced by the orchestration core.
type Error struct {
	Kind     ErrorKind
	Platform types.Platform
	// Reason carries the remote failure reason for task-failed errors.
	Reason string
	// Elapsed and Budget are set on timeout errors so callers can suggest a
	// longer --wait-timeout.
	Elapsed time.Duration
	Budget  time.Duration
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("operation timed out after %s (budget %s)",
			e.Elapsed.Truncate(time.Millisecond), e.Budget)
	case KindTaskFailed:
		return fmt.Sprintf("operation failed: %s", e.Reason)
	case KindCancelled:
		return "operation cancelled"
	case KindValidation:
		return fmt.Sprintf("validation error: %s", e.Reason)
	case KindConfig:
		return fmt.Sprintf("configuration error: %s", e.Reason)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s API error: %v", e.Platform, e.Err)
		}
		return fmt.Sprintf("%s API error: %s", e.Platform, e.Reason)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is matching on the kind via the sentinel helpers below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel values for errors.Is checks.
var (
	ErrTimeout    = &Error{Kind: KindTimeout}
	ErrTaskFailed = &Error{Kind: KindTaskFailed}
	ErrCancelled  = &Error{Kind: KindCancelled}
)

// PlatformError wraps a fatal remote API error.
func PlatformError(p types.Platform, err error) *Error {
	return &Error{Kind: KindPlatform, Platform: p, Err: err}
}

// TaskFailedError reports that the remote operation itself failed.
func TaskFailedError(p types.Platform, reason string) *Error {
	return &Error{Kind: KindTaskFailed, Platform: p, Reason: reason}
}

// TimeoutError reports an exhausted wait budget.
func TimeoutError(p types.Platform, elapsed, budget time.Duration) *Error {
	return &Error{Kind: KindTimeout, Platform: p, Elapsed: elapsed, Budget: budget}
}

// CancelledError reports a caller-initiated cancellation.
func CancelledError(p types.Platform, cause error) *Error {
	return &Error{Kind: KindCancelled, Platform: p, Err: cause}
}

// ValidationError reports a request rejected before submission.
func ValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

// ConfigError reports a credential or profile resolution failure.
func ConfigError(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Reason: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind, defaulting to KindPlatform for errors that
// did not originate in the core.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPlatform
}
