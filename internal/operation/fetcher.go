package operation

import (
	"context"
	"errors"
	"time"

	"github.com/dwsmith1983/redisctl/pkg/types"
)

// StatusFetcher performs one status query for a handle. Implementations make
// exactly one outbound call per invocation and never retry; retry policy
// lives in the poller, so each platform only has to say whether a failure is
// worth retrying.
type StatusFetcher interface {
	Fetch(ctx context.Context, h types.OperationHandle) (types.StatusSnapshot, error)
}

// FetcherFunc adapts a function to the StatusFetcher interface.
type FetcherFunc func(ctx context.Context, h types.OperationHandle) (types.StatusSnapshot, error)

// Fetch implements StatusFetcher.
func (f FetcherFunc) Fetch(ctx context.Context, h types.OperationHandle) (types.StatusSnapshot, error) {
	return f(ctx, h)
}

// TransientError is implemented by fetch errors that should be retried
// rather than treated as operation failure (rate limits, 5xx, network
// blips). RetryAfter returns the server-requested backoff, zero if none.
type TransientError interface {
	error
	Transient() bool
	RetryAfter() time.Duration
}

// isTransient classifies a fetch error, extracting the server-requested
// backoff when present.
func isTransient(err error) (bool, time.Duration) {
	var te TransientError
	if errors.As(err, &te) && te.Transient() {
		return true, te.RetryAfter()
	}
	return false, 0
}
