package operation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/redisctl/internal/testutil"
	"github.com/dwsmith1983/redisctl/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedFetcher pops one result per Fetch call, repeating the last.
type scriptedFetcher struct {
	results []fetchResult
	calls   int
}

type fetchResult struct {
	snap types.StatusSnapshot
	err  error
}

func (f *scriptedFetcher) Fetch(ctx context.Context, h types.OperationHandle) (types.StatusSnapshot, error) {
	f.calls++
	idx := f.calls - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	r := f.results[idx]
	return r.snap, r.err
}

// transientErr satisfies the TransientError interface in tests.
type transientErr struct {
	retryAfter time.Duration
}

func (e *transientErr) Error() string             { return "rate limited" }
func (e *transientErr) Transient() bool           { return true }
func (e *transientErr) RetryAfter() time.Duration { return e.retryAfter }

func handle() types.OperationHandle {
	return types.OperationHandle{Platform: types.PlatformCloud, ID: "task-1"}
}

func processing() fetchResult {
	return fetchResult{snap: types.StatusSnapshot{RawState: "processing"}}
}

func completed(result string) fetchResult {
	return fetchResult{snap: types.StatusSnapshot{
		RawState: "processing-completed",
		Result:   []byte(result),
	}}
}

func TestWaitCompletes(t *testing.T) {
	clock := testutil.NewFakeClock()
	fetcher := &scriptedFetcher{results: []fetchResult{
		processing(),
		processing(),
		completed(`{"databaseId":42}`),
	}}

	var events []types.ProgressEvent
	poller := NewPoller(fetcher,
		WithClock(clock),
		WithSink(func(ev types.ProgressEvent) { events = append(events, ev) }),
	)

	outcome, err := poller.Wait(context.Background(), handle(), types.PollConfig{})
	require.NoError(t, err)
	assert.Equal(t, types.StateCompleted, outcome.State)
	assert.JSONEq(t, `{"databaseId":42}`, string(outcome.Result))
	assert.Equal(t, 3, fetcher.calls)

	// Two polling events for the non-terminal snapshots, then completion.
	require.Len(t, events, 3)
	assert.Equal(t, types.ProgressPolling, events[0].Kind)
	assert.Equal(t, types.ProgressPolling, events[1].Kind)
	assert.Equal(t, types.ProgressCompleted, events[2].Kind)

	// Default cloud interval between successful polls.
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, clock.Sleeps())
}

func TestWaitNoFurtherFetchesAfterTerminal(t *testing.T) {
	clock := testutil.NewFakeClock()
	fetcher := &scriptedFetcher{results: []fetchResult{completed(`{}`)}}
	poller := NewPoller(fetcher, WithClock(clock))

	_, err := poller.Wait(context.Background(), handle(), types.PollConfig{})
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
	assert.Empty(t, clock.Sleeps())
}

func TestWaitTaskFailed(t *testing.T) {
	clock := testutil.NewFakeClock()
	fetcher := &scriptedFetcher{results: []fetchResult{
		{snap: types.StatusSnapshot{
			RawState:     "processing-error",
			ErrorPayload: []byte(`{"description":"quota exceeded"}`),
		}},
	}}
	poller := NewPoller(fetcher, WithClock(clock))

	_, err := poller.Wait(context.Background(), handle(), types.PollConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTaskFailed))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestWaitErrorPayloadForcesFailure(t *testing.T) {
	// The raw state still reads as non-terminal, but the platform attached
	// an error document.
	clock := testutil.NewFakeClock()
	fetcher := &scriptedFetcher{results: []fetchResult{
		{snap: types.StatusSnapshot{
			RawState:     "processing",
			ErrorPayload: []byte(`"subscription limit reached"`),
		}},
	}}
	poller := NewPoller(fetcher, WithClock(clock))

	_, err := poller.Wait(context.Background(), handle(), types.PollConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTaskFailed))
	assert.Contains(t, err.Error(), "subscription limit reached")
	assert.Equal(t, 1, fetcher.calls)
}

func TestWaitTimeoutCheckedBeforeFetch(t *testing.T) {
	// Interval 5s against a 1s budget: the first fetch happens (elapsed 0),
	// then the tick after the sleep trips the timeout without fetching again,
	// even though that fetch would have seen completion.
	clock := testutil.NewFakeClock()
	fetcher := &scriptedFetcher{results: []fetchResult{
		processing(),
		completed(`{}`),
	}}

	var events []types.ProgressEvent
	poller := NewPoller(fetcher,
		WithClock(clock),
		WithSink(func(ev types.ProgressEvent) { events = append(events, ev) }),
	)

	_, err := poller.Wait(context.Background(), handle(), types.PollConfig{
		Interval: 5 * time.Second,
		Timeout:  1 * time.Second,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, 1, fetcher.calls)

	last := events[len(events)-1]
	assert.Equal(t, types.ProgressTimedOut, last.Kind)

	var opErr *Error
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, 1*time.Second, opErr.Budget)
}

func TestWaitTransientErrorsRecovered(t *testing.T) {
	// Three rate-limit responses, then success. The caller sees only the
	// final outcome; the sink sees the retries.
	clock := testutil.NewFakeClock()
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: &transientErr{}},
		{err: &transientErr{}},
		{err: &transientErr{}},
		completed(`{"ok":true}`),
	}}

	var rateLimited []types.ProgressEvent
	poller := NewPoller(fetcher,
		WithClock(clock),
		WithSink(func(ev types.ProgressEvent) {
			if ev.Kind == types.ProgressRateLimited {
				rateLimited = append(rateLimited, ev)
			}
		}),
	)

	outcome, err := poller.Wait(context.Background(), handle(), types.PollConfig{
		Interval: time.Second,
		Timeout:  10 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, types.StateCompleted, outcome.State)
	assert.Len(t, rateLimited, 3)

	// Exponential backoff per consecutive transient error: 1s, 2s, 4s.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, clock.Sleeps())
}

func TestWaitTransientBackoffHonorsRetryAfter(t *testing.T) {
	clock := testutil.NewFakeClock()
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: &transientErr{retryAfter: 30 * time.Second}},
		completed(`{}`),
	}}
	poller := NewPoller(fetcher, WithClock(clock))

	_, err := poller.Wait(context.Background(), handle(), types.PollConfig{
		Interval: time.Second,
		Timeout:  10 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{30 * time.Second}, clock.Sleeps())
}

func TestWaitTransientRetryCap(t *testing.T) {
	clock := testutil.NewFakeClock()
	fetcher := &scriptedFetcher{results: []fetchResult{{err: &transientErr{}}}}
	poller := NewPoller(fetcher, WithClock(clock))

	_, err := poller.Wait(context.Background(), handle(), types.PollConfig{
		Interval:   time.Second,
		Timeout:    10 * time.Minute,
		MaxRetries: 3,
	})
	require.Error(t, err)
	assert.Equal(t, KindPlatform, KindOf(err))
	assert.Equal(t, 4, fetcher.calls)
}

func TestWaitFatalErrorStopsImmediately(t *testing.T) {
	clock := testutil.NewFakeClock()
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: errors.New("401 unauthorized")},
	}}
	poller := NewPoller(fetcher, WithClock(clock))

	_, err := poller.Wait(context.Background(), handle(), types.PollConfig{})
	require.Error(t, err)
	assert.Equal(t, KindPlatform, KindOf(err))
	assert.Equal(t, 1, fetcher.calls)
}

func TestWaitUnknownStateKeepsPolling(t *testing.T) {
	clock := testutil.NewFakeClock()
	fetcher := &scriptedFetcher{results: []fetchResult{
		{snap: types.StatusSnapshot{RawState: "reticulating-splines"}},
		completed(`{}`),
	}}
	poller := NewPoller(fetcher, WithClock(clock))

	outcome, err := poller.Wait(context.Background(), handle(), types.PollConfig{})
	require.NoError(t, err)
	assert.Equal(t, types.StateCompleted, outcome.State)
	assert.Equal(t, 2, fetcher.calls)
}

func TestWaitCancelledBetweenTicks(t *testing.T) {
	clock := testutil.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := &scriptedFetcher{results: []fetchResult{processing()}}
	midFetch := FetcherFunc(func(fctx context.Context, h types.OperationHandle) (types.StatusSnapshot, error) {
		snap, err := fetcher.Fetch(fctx, h)
		// Cancel while a fetch is in flight; the poller must still finish
		// this tick and observe the cancellation at the next boundary.
		cancel()
		return snap, err
	})

	poller := NewPoller(midFetch, WithClock(clock))
	_, err := poller.Wait(ctx, handle(), types.PollConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.Equal(t, 1, fetcher.calls)
}

func TestTransientBackoffCeiling(t *testing.T) {
	interval := time.Second
	assert.Equal(t, time.Second, transientBackoff(interval, 1))
	assert.Equal(t, 2*time.Second, transientBackoff(interval, 2))
	assert.Equal(t, 4*time.Second, transientBackoff(interval, 3))
	assert.Equal(t, 8*time.Second, transientBackoff(interval, 4))
	assert.Equal(t, 8*time.Second, transientBackoff(interval, 10))
}

func TestWaitRemoteCancellation(t *testing.T) {
	clock := testutil.NewFakeClock()
	fetcher := &scriptedFetcher{results: []fetchResult{
		{snap: types.StatusSnapshot{RawState: "cancelled"}},
	}}
	poller := NewPoller(fetcher, WithClock(clock))

	_, err := poller.Wait(context.Background(), handle(), types.PollConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelled))
}
