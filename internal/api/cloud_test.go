package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/redisctl/internal/testutil"
	"github.com/dwsmith1983/redisctl/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCloudClient(t *testing.T, srv *testutil.ScriptedServer) *CloudClient {
	t.Helper()
	c, err := NewCloudClient(CloudConfig{
		BaseURL:   srv.URL(),
		APIKey:    "key",
		APISecret: "secret",
	}, testLogger())
	require.NoError(t, err)
	return c
}

func TestNewCloudClientRequiresCredentials(t *testing.T) {
	_, err := NewCloudClient(CloudConfig{APIKey: "key"}, testLogger())
	require.Error(t, err)
}

func TestCloudAuthHeaders(t *testing.T) {
	srv := testutil.NewScriptedServer()
	defer srv.Close()
	srv.On(http.MethodGet, "/subscriptions", testutil.Response{Body: `[]`})

	c := newTestCloudClient(t, srv)
	_, err := c.ListSubscriptions(context.Background())
	require.NoError(t, err)

	h := srv.LastHeader()
	assert.Equal(t, "key", h.Get("x-api-key"))
	assert.Equal(t, "secret", h.Get("x-api-secret-key"))
}

func TestCloudSubmitExtractsTaskHandle(t *testing.T) {
	srv := testutil.NewScriptedServer()
	defer srv.Close()
	srv.On(http.MethodPost, "/subscriptions", testutil.Response{
		Code: http.StatusAccepted,
		Body: `{"taskId":"task-abc","commandType":"subscriptionCreateRequest","status":"received"}`,
	})

	c := newTestCloudClient(t, srv)
	h, err := c.CreateSubscription(context.Background(), json.RawMessage(`{"name":"prod"}`))
	require.NoError(t, err)
	assert.Equal(t, types.PlatformCloud, h.Platform)
	assert.Equal(t, "task-abc", h.ID)
}

func TestCloudSubmitRejectsMissingTaskID(t *testing.T) {
	srv := testutil.NewScriptedServer()
	defer srv.Close()
	srv.On(http.MethodDelete, "/subscriptions/9", testutil.Response{Body: `{"status":"ok"}`})

	c := newTestCloudClient(t, srv)
	_, err := c.DeleteSubscription(context.Background(), "9")
	require.Error(t, err)
}

func TestCloudTaskFetcher(t *testing.T) {
	srv := testutil.NewScriptedServer()
	defer srv.Close()
	srv.On(http.MethodGet, "/tasks/t1",
		testutil.Response{Body: `{"taskId":"t1","status":"processing","response":{"error":null}}`},
		testutil.Response{Body: `{"taskId":"t1","status":"processing-completed","response":{"resourceId":42,"resource":{"databaseId":42}}}`},
	)

	c := newTestCloudClient(t, srv)
	fetcher := c.TaskFetcher()
	h := types.OperationHandle{Platform: types.PlatformCloud, ID: "t1"}

	snap, err := fetcher.Fetch(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, "processing", snap.RawState)
	// An explicit null error field must not read as a failure.
	assert.Nil(t, snap.ErrorPayload)

	snap, err = fetcher.Fetch(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, "processing-completed", snap.RawState)
	assert.JSONEq(t, `{"databaseId":42}`, string(snap.Result))
}

func TestCloudTaskFetcherErrorPayload(t *testing.T) {
	srv := testutil.NewScriptedServer()
	defer srv.Close()
	srv.On(http.MethodGet, "/tasks/t2", testutil.Response{
		Body: `{"taskId":"t2","status":"processing-error","response":{"error":{"description":"quota exceeded"}}}`,
	})

	c := newTestCloudClient(t, srv)
	snap, err := c.TaskFetcher().Fetch(context.Background(),
		types.OperationHandle{Platform: types.PlatformCloud, ID: "t2"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"description":"quota exceeded"}`, string(snap.ErrorPayload))
}

func TestErrorClassification(t *testing.T) {
	srv := testutil.NewScriptedServer()
	defer srv.Close()
	srv.On(http.MethodGet, "/tasks/limited", testutil.Response{
		Code:       http.StatusTooManyRequests,
		Body:       `{"message":"slow down"}`,
		RetryAfter: "7",
	})
	srv.On(http.MethodGet, "/tasks/missing", testutil.Response{
		Code: http.StatusNotFound,
		Body: `{"message":"no such task"}`,
	})

	c := newTestCloudClient(t, srv)

	_, err := c.GetTask(context.Background(), "limited")
	require.Error(t, err)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Transient())
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter())
	assert.True(t, IsRateLimited(err))

	_, err = c.GetTask(context.Background(), "missing")
	require.Error(t, err)
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, apiErr.Transient())
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "no such task")
}

func TestServerErrorCarriesRetryAfter(t *testing.T) {
	srv := testutil.NewScriptedServer()
	defer srv.Close()
	srv.On(http.MethodGet, "/tasks/busy", testutil.Response{
		Code:       http.StatusServiceUnavailable,
		Body:       `{"message":"maintenance"}`,
		RetryAfter: "9",
	})

	c := newTestCloudClient(t, srv)
	_, err := c.GetTask(context.Background(), "busy")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Transient())
	assert.Equal(t, 9*time.Second, apiErr.RetryAfter())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := testutil.NewScriptedServer()
	defer srv.Close()
	srv.On(http.MethodGet, "/subscriptions", testutil.Response{
		Code: http.StatusInternalServerError,
		Body: `{"message":"backend down"}`,
	})

	c, err := NewCloudClient(CloudConfig{
		BaseURL:   srv.URL(),
		APIKey:    "key",
		APISecret: "secret",
		Breaker:   BreakerConfig{FailureThreshold: 3},
	}, testLogger())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.ListSubscriptions(context.Background())
		require.Error(t, err)
	}
	require.Equal(t, 3, srv.Hits(http.MethodGet, "/subscriptions"))

	// Breaker is open now: the next call is rejected without a request,
	// and the rejection still classifies as transient.
	_, err = c.ListSubscriptions(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, srv.Hits(http.MethodGet, "/subscriptions"))
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Transient())
	assert.True(t, IsBreakerOpen(err))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("garbage"))
}
