package operation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/redisctl/internal/testutil"
	"github.com/dwsmith1983/redisctl/pkg/types"
)

func step(name string, fetcher StatusFetcher) Step {
	return Step{
		Name: name,
		Submit: func(ctx context.Context, prior []types.StepResult) (types.OperationHandle, error) {
			return types.OperationHandle{Platform: types.PlatformCloud, ID: name}, nil
		},
		Fetcher: fetcher,
	}
}

func TestComposerRunsAllSteps(t *testing.T) {
	clock := testutil.NewFakeClock()
	composer := NewComposer(WithComposerClock(clock))

	first := &scriptedFetcher{results: []fetchResult{processing(), completed(`{"id":1}`)}}
	second := &scriptedFetcher{results: []fetchResult{completed(`{"id":2}`)}}

	result := composer.Run(context.Background(), []Step{
		step("one", first),
		step("two", second),
	})

	require.True(t, result.Completed())
	require.Len(t, result.Steps, 2)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, types.StateCompleted, result.Steps[0].State)
	assert.Equal(t, types.StateCompleted, result.Steps[1].State)
	assert.JSONEq(t, `{"id":2}`, string(result.Steps[1].Result))
}

func TestComposerShortCircuitsOnFailure(t *testing.T) {
	clock := testutil.NewFakeClock()
	composer := NewComposer(WithComposerClock(clock))

	failing := &scriptedFetcher{results: []fetchResult{
		{snap: types.StatusSnapshot{RawState: "failed", ErrorPayload: []byte(`"disk full"`)}},
	}}
	never := &scriptedFetcher{results: []fetchResult{completed(`{}`)}}

	var secondSubmitted bool
	steps := []Step{
		step("one", failing),
		{
			Name: "two",
			Submit: func(ctx context.Context, prior []types.StepResult) (types.OperationHandle, error) {
				secondSubmitted = true
				return types.OperationHandle{}, nil
			},
			Fetcher: never,
		},
	}

	result := composer.Run(context.Background(), steps)
	require.False(t, result.Completed())
	assert.True(t, errors.Is(result.Err, ErrTaskFailed))
	require.Len(t, result.Steps, 1)
	assert.Equal(t, types.StateFailed, result.Steps[0].State)
	assert.False(t, secondSubmitted)
	assert.Zero(t, never.calls)
}

func TestComposerStepSeesPriorResults(t *testing.T) {
	clock := testutil.NewFakeClock()
	composer := NewComposer(WithComposerClock(clock))

	first := &scriptedFetcher{results: []fetchResult{completed(`{"resourceId":7}`)}}
	second := &scriptedFetcher{results: []fetchResult{completed(`{}`)}}

	var sawPrior string
	steps := []Step{
		step("create", first),
		{
			Name: "use",
			Submit: func(ctx context.Context, prior []types.StepResult) (types.OperationHandle, error) {
				require.Len(t, prior, 1)
				sawPrior = string(prior[0].Result)
				return types.OperationHandle{Platform: types.PlatformCloud, ID: "use"}, nil
			},
			Fetcher: second,
		},
	}

	result := composer.Run(context.Background(), steps)
	require.True(t, result.Completed())
	assert.JSONEq(t, `{"resourceId":7}`, sawPrior)
}

func TestComposerSubmitErrorRecorded(t *testing.T) {
	clock := testutil.NewFakeClock()
	composer := NewComposer(WithComposerClock(clock))

	boom := errors.New("subscription not found")
	result := composer.Run(context.Background(), []Step{{
		Name: "broken",
		Submit: func(ctx context.Context, prior []types.StepResult) (types.OperationHandle, error) {
			return types.OperationHandle{}, boom
		},
	}})

	require.False(t, result.Completed())
	assert.ErrorIs(t, result.Err, boom)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, types.StateFailed, result.Steps[0].State)
}

func TestComposerTimeoutMapsToTimedOutState(t *testing.T) {
	clock := testutil.NewFakeClock()
	composer := NewComposer(WithComposerClock(clock))

	slow := &scriptedFetcher{results: []fetchResult{processing()}}
	result := composer.Run(context.Background(), []Step{{
		Name: "slow",
		Submit: func(ctx context.Context, prior []types.StepResult) (types.OperationHandle, error) {
			return types.OperationHandle{Platform: types.PlatformCloud, ID: "slow"}, nil
		},
		Fetcher: slow,
		Config:  types.PollConfig{Interval: time.Second, Timeout: 2 * time.Second},
	}})

	require.False(t, result.Completed())
	assert.True(t, errors.Is(result.Err, ErrTimeout))
	require.Len(t, result.Steps, 1)
	assert.Equal(t, types.StateTimedOut, result.Steps[0].State)
}

func TestComposerCancelledBeforeStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	composer := NewComposer(WithComposerClock(testutil.NewFakeClock()))
	result := composer.Run(ctx, []Step{step("never", &scriptedFetcher{results: []fetchResult{completed(`{}`)}})})

	require.False(t, result.Completed())
	assert.True(t, errors.Is(result.Err, ErrCancelled))
	require.Len(t, result.Steps, 1)
	assert.Equal(t, types.StateCancelled, result.Steps[0].State)
}
