package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dwsmith1983/redisctl/internal/operation"
	"github.com/dwsmith1983/redisctl/pkg/types"
)

// EnterpriseConfig holds everything needed to talk to an Enterprise cluster.
type EnterpriseConfig struct {
	BaseURL  string
	Username string
	Password string
	// Insecure skips TLS verification; self-signed cluster certificates are
	// the norm in lab deployments.
	Insecure bool
	Breaker  BreakerConfig
}

// EnterpriseClient talks to one Enterprise cluster's REST API.
//
// Unlike Cloud, Enterprise has no single task endpoint. Long-running work is
// tracked two ways: cluster actions carry an action_uid polled via
// /v1/actions/{uid}, while database lifecycle transitions are observed on the
// bdb document's own status field. The command layer picks the fetcher that
// matches the operation it submitted.
type EnterpriseClient struct {
	rc *restClient
}

// NewEnterpriseClient validates credentials and builds a client.
func NewEnterpriseClient(cfg EnterpriseConfig, logger *slog.Logger) (*EnterpriseClient, error) {
	if cfg.BaseURL == "" {
		return nil, operation.ConfigError("enterprise profile is missing url")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, operation.ConfigError("enterprise profile is missing username or password")
	}
	authorize := func(req *http.Request) {
		req.SetBasicAuth(cfg.Username, cfg.Password)
	}
	return &EnterpriseClient{
		rc: newRESTClient(types.PlatformEnterprise, cfg.BaseURL, cfg.Insecure, authorize, cfg.Breaker, logger),
	}, nil
}

// GetCluster returns the cluster document.
func (c *EnterpriseClient) GetCluster(ctx context.Context) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/v1/cluster", nil)
}

// UpdateCluster applies a partial cluster update.
func (c *EnterpriseClient) UpdateCluster(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodPut, "/v1/cluster", body)
}

// ListNodes returns all cluster nodes.
func (c *EnterpriseClient) ListNodes(ctx context.Context) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/v1/nodes", nil)
}

// GetNode returns one node document.
func (c *EnterpriseClient) GetNode(ctx context.Context, uid string) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/v1/nodes/"+uid, nil)
}

// ListDatabases returns all bdbs.
func (c *EnterpriseClient) ListDatabases(ctx context.Context) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/v1/bdbs", nil)
}

// GetDatabase returns one bdb document.
func (c *EnterpriseClient) GetDatabase(ctx context.Context, uid string) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/v1/bdbs/"+uid, nil)
}

// CreateDatabase creates a bdb. The returned handle is the new bdb's uid;
// creation progress is observed on the bdb's own status field.
func (c *EnterpriseClient) CreateDatabase(ctx context.Context, body json.RawMessage) (types.OperationHandle, json.RawMessage, error) {
	raw, err := c.rc.do(ctx, http.MethodPost, "/v1/bdbs", body)
	if err != nil {
		return types.OperationHandle{}, nil, err
	}
	h, err := bdbHandleFromDoc(raw)
	return h, raw, err
}

// UpdateDatabase applies a bdb update. The handle again points at the bdb,
// whose status passes through active-change-pending until the change lands.
func (c *EnterpriseClient) UpdateDatabase(ctx context.Context, uid string, body json.RawMessage) (types.OperationHandle, error) {
	if _, err := c.rc.do(ctx, http.MethodPut, "/v1/bdbs/"+uid, body); err != nil {
		return types.OperationHandle{}, err
	}
	return types.OperationHandle{Platform: types.PlatformEnterprise, ID: uid}, nil
}

// DeleteDatabase removes a bdb. Deletion completes when the document is gone;
// pair the handle with DeletionFetcher.
func (c *EnterpriseClient) DeleteDatabase(ctx context.Context, uid string) (types.OperationHandle, error) {
	if _, err := c.rc.do(ctx, http.MethodDelete, "/v1/bdbs/"+uid, nil); err != nil {
		return types.OperationHandle{}, err
	}
	return types.OperationHandle{Platform: types.PlatformEnterprise, ID: uid}, nil
}

// ExportDatabase starts an export action and returns its action handle.
func (c *EnterpriseClient) ExportDatabase(ctx context.Context, uid string, body json.RawMessage) (types.OperationHandle, error) {
	return c.submitAction(ctx, "/v1/bdbs/"+uid+"/actions/export", body)
}

// ImportDatabase starts an import action and returns its action handle.
func (c *EnterpriseClient) ImportDatabase(ctx context.Context, uid string, body json.RawMessage) (types.OperationHandle, error) {
	return c.submitAction(ctx, "/v1/bdbs/"+uid+"/actions/import", body)
}

// BackupDatabase starts a backup action to the bdb's configured location.
func (c *EnterpriseClient) BackupDatabase(ctx context.Context, uid string) (types.OperationHandle, error) {
	return c.submitAction(ctx, "/v1/bdbs/"+uid+"/actions/backup", nil)
}

// ListActions returns all currently tracked cluster actions.
func (c *EnterpriseClient) ListActions(ctx context.Context) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/v1/actions", nil)
}

// GetAction returns one action document.
func (c *EnterpriseClient) GetAction(ctx context.Context, uid string) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/v1/actions/"+uid, nil)
}

// CancelAction asks the cluster to cancel a running action.
func (c *EnterpriseClient) CancelAction(ctx context.Context, uid string) error {
	_, err := c.rc.do(ctx, http.MethodDelete, "/v1/actions/"+uid, nil)
	return err
}

// ListModules returns the modules installed on the cluster.
func (c *EnterpriseClient) ListModules(ctx context.Context) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/v1/modules", nil)
}

// GetLicense returns the cluster license document.
func (c *EnterpriseClient) GetLicense(ctx context.Context) (json.RawMessage, error) {
	return c.rc.do(ctx, http.MethodGet, "/v1/license", nil)
}

// Do is the raw passthrough for endpoints without a dedicated method.
func (c *EnterpriseClient) Do(ctx context.Context, method, path string, body json.RawMessage) (json.RawMessage, error) {
	return c.rc.do(ctx, method, path, body)
}

func (c *EnterpriseClient) submitAction(ctx context.Context, path string, body json.RawMessage) (types.OperationHandle, error) {
	raw, err := c.rc.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return types.OperationHandle{}, err
	}
	var doc struct {
		ActionUID string `json:"action_uid"`
		TaskID    string `json:"task_id"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return types.OperationHandle{}, operation.ValidationError("unexpected action response shape: %v", err)
	}
	id := doc.ActionUID
	if id == "" {
		id = doc.TaskID
	}
	if id == "" {
		return types.OperationHandle{}, operation.ValidationError("action response carries no action_uid")
	}
	return types.OperationHandle{Platform: types.PlatformEnterprise, ID: id}, nil
}

func bdbHandleFromDoc(raw json.RawMessage) (types.OperationHandle, error) {
	var doc struct {
		UID json.Number `json:"uid"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || doc.UID.String() == "" {
		return types.OperationHandle{}, operation.ValidationError("bdb response carries no uid")
	}
	return types.OperationHandle{Platform: types.PlatformEnterprise, ID: doc.UID.String()}, nil
}

// ActionFetcher polls /v1/actions/{uid} for operations tracked as cluster
// actions (exports, imports, shard migrations).
func (c *EnterpriseClient) ActionFetcher() operation.StatusFetcher {
	return operation.FetcherFunc(func(ctx context.Context, h types.OperationHandle) (types.StatusSnapshot, error) {
		raw, err := c.GetAction(ctx, h.ID)
		if err != nil {
			return types.StatusSnapshot{}, err
		}
		var doc struct {
			Status string          `json:"status"`
			Error  json.RawMessage `json:"error"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return types.StatusSnapshot{}, &Error{
				Platform: types.PlatformEnterprise,
				Message:  "decoding action document",
				Err:      err,
			}
		}
		return types.StatusSnapshot{
			RawState:     doc.Status,
			Result:       raw,
			ErrorPayload: normalizeErrorPayload(doc.Error),
		}, nil
	})
}

// DatabaseFetcher polls the bdb document's status field for lifecycle
// transitions (create, update) that Enterprise does not expose as actions.
func (c *EnterpriseClient) DatabaseFetcher() operation.StatusFetcher {
	return operation.FetcherFunc(func(ctx context.Context, h types.OperationHandle) (types.StatusSnapshot, error) {
		raw, err := c.GetDatabase(ctx, h.ID)
		if err != nil {
			return types.StatusSnapshot{}, err
		}
		var doc struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return types.StatusSnapshot{}, &Error{
				Platform: types.PlatformEnterprise,
				Message:  "decoding bdb document",
				Err:      err,
			}
		}
		return types.StatusSnapshot{RawState: doc.Status, Result: raw}, nil
	})
}

// DeletionFetcher polls a bdb until it is gone: a 404 is the completion
// signal, any still-present document reads as pending.
func (c *EnterpriseClient) DeletionFetcher() operation.StatusFetcher {
	return operation.FetcherFunc(func(ctx context.Context, h types.OperationHandle) (types.StatusSnapshot, error) {
		raw, err := c.GetDatabase(ctx, h.ID)
		if err != nil {
			if IsNotFound(err) {
				return types.StatusSnapshot{RawState: "completed"}, nil
			}
			return types.StatusSnapshot{}, err
		}
		return types.StatusSnapshot{RawState: "delete-pending", Result: raw}, nil
	})
}
