package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dwsmith1983/redisctl/internal/operation"
	"github.com/dwsmith1983/redisctl/pkg/types"
)

// DefaultCloudBaseURL is the public Cloud control-plane endpoint.
const DefaultCloudBaseURL = "https://api.redislabs.com/v1"

// CloudConfig holds everything needed to talk to the Cloud API.
type CloudConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Breaker   BreakerConfig
}

// CloudClient talks to the Cloud control plane. Every mutating call returns
// an OperationHandle; reads return raw JSON for the output layer to render.
type CloudClient struct {
	rc *restClient
}

// NewCloudClient validates credentials and builds a client.
func NewCloudClient(cfg CloudConfig, logger *slog.Logger) (*CloudClient, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, operation.ConfigError("cloud profile is missing api_key or api_secret")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultCloudBaseURL
	}
	authorize := func(req *http.Request) {
		req.Header.Set("x-api-key", cfg.APIKey)
		req.Header.Set("x-api-secret-key", cfg.APISecret)
	}
	return &CloudClient{
		rc: newRESTClient(types.PlatformCloud, base, false, authorize, cfg.Breaker, logger),
	}, nil
}

// cloudTask is the wire shape of GET /tasks/{id}. The interesting parts are
// the status string and the nested response document, which carries either
// the created resource or the error.
type cloudTask struct {
	TaskID      string `json:"taskId"`
	CommandType string `json:"commandType"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
	Response    *struct {
		ResourceID *int64          `json:"resourceId"`
		Resource   json.RawMessage `json:"resource"`
		Error      json.RawMessage `json:"error"`
	} `json:"response"`
}

// GetTask returns the raw task document.
func (c *CloudClient) GetTask(ctx context.Context, id string) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/tasks/"+id, nil)
}

// ListTasks returns all recent tasks for the account.
func (c *CloudClient) ListTasks(ctx context.Context) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/tasks", nil)
}

// ListSubscriptions returns the account's subscriptions.
func (c *CloudClient) ListSubscriptions(ctx context.Context) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/subscriptions", nil)
}

// GetSubscription returns one subscription document.
func (c *CloudClient) GetSubscription(ctx context.Context, id string) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/subscriptions/"+id, nil)
}

// CreateSubscription submits a subscription create and returns the handle of
// the accepted task.
func (c *CloudClient) CreateSubscription(ctx context.Context, body json.RawMessage) (types.OperationHandle, error) {
	return c.submit(ctx, http.MethodPost, "/subscriptions", body)
}

// UpdateSubscription submits a subscription update.
func (c *CloudClient) UpdateSubscription(ctx context.Context, id string, body json.RawMessage) (types.OperationHandle, error) {
	return c.submit(ctx, http.MethodPut, "/subscriptions/"+id, body)
}

// DeleteSubscription submits a subscription delete.
func (c *CloudClient) DeleteSubscription(ctx context.Context, id string) (types.OperationHandle, error) {
	return c.submit(ctx, http.MethodDelete, "/subscriptions/"+id, nil)
}

// ListDatabases returns the databases under a subscription.
func (c *CloudClient) ListDatabases(ctx context.Context, subID string) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/subscriptions/"+subID+"/databases", nil)
}

// GetDatabase returns one database document.
func (c *CloudClient) GetDatabase(ctx context.Context, subID, dbID string) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/subscriptions/"+subID+"/databases/"+dbID, nil)
}

// CreateDatabase submits a database create under the subscription.
func (c *CloudClient) CreateDatabase(ctx context.Context, subID string, body json.RawMessage) (types.OperationHandle, error) {
	return c.submit(ctx, http.MethodPost, "/subscriptions/"+subID+"/databases", body)
}

// UpdateDatabase submits a database update.
func (c *CloudClient) UpdateDatabase(ctx context.Context, subID, dbID string, body json.RawMessage) (types.OperationHandle, error) {
	return c.submit(ctx, http.MethodPut, "/subscriptions/"+subID+"/databases/"+dbID, body)
}

// DeleteDatabase submits a database delete.
func (c *CloudClient) DeleteDatabase(ctx context.Context, subID, dbID string) (types.OperationHandle, error) {
	return c.submit(ctx, http.MethodDelete, "/subscriptions/"+subID+"/databases/"+dbID, nil)
}

// BackupDatabase triggers an on-demand backup.
func (c *CloudClient) BackupDatabase(ctx context.Context, subID, dbID string) (types.OperationHandle, error) {
	return c.submit(ctx, http.MethodPost, "/subscriptions/"+subID+"/databases/"+dbID+"/backup", nil)
}

// ImportDatabase triggers a data import from external storage.
func (c *CloudClient) ImportDatabase(ctx context.Context, subID, dbID string, body json.RawMessage) (types.OperationHandle, error) {
	return c.submit(ctx, http.MethodPost, "/subscriptions/"+subID+"/databases/"+dbID+"/import", body)
}

// Do is the raw passthrough for endpoints without a dedicated method.
func (c *CloudClient) Do(ctx context.Context, method, path string, body json.RawMessage) (json.RawMessage, error) {
	return c.rc.do(ctx, method, path, body)
}

// submit performs a mutating call and extracts the task handle from the
// accepted response.
func (c *CloudClient) submit(ctx context.Context, method, path string, body json.RawMessage) (types.OperationHandle, error) {
	raw, err := c.rc.do(ctx, method, path, body)
	if err != nil {
		return types.OperationHandle{}, err
	}
	return cloudHandleFromResponse(raw)
}

// cloudHandleFromResponse digs the task id out of an accepted mutation
// response. The API answers with a task document, so taskId is authoritative;
// some endpoints nest it under links.
func cloudHandleFromResponse(raw json.RawMessage) (types.OperationHandle, error) {
	var doc struct {
		TaskID string `json:"taskId"`
		ID     string `json:"id"`
		Links  []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return types.OperationHandle{}, operation.ValidationError("unexpected response shape: %v", err)
	}
	id := doc.TaskID
	if id == "" {
		id = doc.ID
	}
	if id == "" {
		return types.OperationHandle{}, operation.ValidationError("response carries no task id")
	}
	return types.OperationHandle{Platform: types.PlatformCloud, ID: id}, nil
}

// TaskFetcher adapts the client to the polling core: one GET /tasks/{id}
// per invocation, no retries.
func (c *CloudClient) TaskFetcher() operation.StatusFetcher {
	return operation.FetcherFunc(func(ctx context.Context, h types.OperationHandle) (types.StatusSnapshot, error) {
		raw, err := c.GetTask(ctx, h.ID)
		if err != nil {
			return types.StatusSnapshot{}, err
		}
		var task cloudTask
		if err := json.Unmarshal(raw, &task); err != nil {
			return types.StatusSnapshot{}, &Error{
				Platform: types.PlatformCloud,
				Message:  "decoding task document",
				Err:      err,
			}
		}
		snap := types.StatusSnapshot{RawState: task.Status, Result: raw}
		if task.Response != nil {
			if len(task.Response.Resource) > 0 {
				snap.Result = task.Response.Resource
			}
			snap.ErrorPayload = normalizeErrorPayload(task.Response.Error)
		}
		return snap, nil
	})
}

// normalizeErrorPayload collapses JSON null to nil so an explicit null error
// field does not read as a failure.
func normalizeErrorPayload(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
