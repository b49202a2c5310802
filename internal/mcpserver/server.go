// Package mcpserver exposes redisctl operations as MCP tools over stdio so
// agents can drive both control planes. Tool handlers reuse the same polling
// core as the CLI; progress events are buffered and returned inside the tool
// result because MCP has no side channel for streaming them.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dwsmith1983/redisctl/internal/api"
	"github.com/dwsmith1983/redisctl/internal/operation"
	"github.com/dwsmith1983/redisctl/pkg/types"
)

// Deps supplies lazily-built platform clients. Construction is deferred so
// the server can start (and list tools) without credentials; a tool call
// against a missing profile fails with a config error in its result.
type Deps struct {
	Cloud      func() (*api.CloudClient, error)
	Enterprise func() (*api.EnterpriseClient, error)
	Logger     *slog.Logger
}

// Server wraps the MCP stdio server.
type Server struct {
	deps Deps
	mcp  *server.MCPServer
}

// New builds the server and registers every tool.
func New(version string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{
		deps: deps,
		mcp: server.NewMCPServer("redisctl", version,
			server.WithToolCapabilities(false),
		),
	}
	s.registerReadTools()
	s.registerMutateTools()
	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerReadTools() {
	s.mcp.AddTool(
		mcp.NewTool("cloud_list_subscriptions",
			mcp.WithDescription("List Redis Cloud subscriptions for the configured account"),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			c, err := s.deps.Cloud()
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return rawResult(c.ListSubscriptions(ctx))
		},
	)

	s.mcp.AddTool(
		mcp.NewTool("cloud_list_databases",
			mcp.WithDescription("List databases in a Redis Cloud subscription"),
			mcp.WithString("subscription_id", mcp.Required(), mcp.Description("Subscription id")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			c, err := s.deps.Cloud()
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return rawResult(c.ListDatabases(ctx, mcp.ParseString(req, "subscription_id", "")))
		},
	)

	s.mcp.AddTool(
		mcp.NewTool("cloud_get_task",
			mcp.WithDescription("Get the current status of a Redis Cloud task"),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			c, err := s.deps.Cloud()
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return rawResult(c.GetTask(ctx, mcp.ParseString(req, "task_id", "")))
		},
	)

	s.mcp.AddTool(
		mcp.NewTool("enterprise_list_databases",
			mcp.WithDescription("List databases on the configured Redis Enterprise cluster"),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			c, err := s.deps.Enterprise()
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return rawResult(c.ListDatabases(ctx))
		},
	)

	s.mcp.AddTool(
		mcp.NewTool("enterprise_get_database",
			mcp.WithDescription("Get one database document from the Redis Enterprise cluster"),
			mcp.WithString("uid", mcp.Required(), mcp.Description("Database uid")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			c, err := s.deps.Enterprise()
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return rawResult(c.GetDatabase(ctx, mcp.ParseString(req, "uid", "")))
		},
	)
}

func (s *Server) registerMutateTools() {
	s.mcp.AddTool(
		mcp.NewTool("cloud_create_database",
			mcp.WithDescription("Create a database in a Redis Cloud subscription and wait for completion"),
			mcp.WithString("subscription_id", mcp.Required(), mcp.Description("Subscription id")),
			mcp.WithString("body", mcp.Required(), mcp.Description("Database create request as JSON")),
			mcp.WithNumber("wait_timeout_seconds", mcp.Description("Wait budget in seconds (default 300)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			c, err := s.deps.Cloud()
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			body, err := jsonArg(req, "body")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			h, err := c.CreateDatabase(ctx, mcp.ParseString(req, "subscription_id", ""), body)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return s.waitResult(ctx, req, h, c.TaskFetcher())
		},
	)

	s.mcp.AddTool(
		mcp.NewTool("cloud_backup_database",
			mcp.WithDescription("Trigger an on-demand backup of a Redis Cloud database and wait for completion"),
			mcp.WithString("subscription_id", mcp.Required(), mcp.Description("Subscription id")),
			mcp.WithString("database_id", mcp.Required(), mcp.Description("Database id")),
			mcp.WithNumber("wait_timeout_seconds", mcp.Description("Wait budget in seconds (default 300)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			c, err := s.deps.Cloud()
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			h, err := c.BackupDatabase(ctx,
				mcp.ParseString(req, "subscription_id", ""),
				mcp.ParseString(req, "database_id", ""))
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return s.waitResult(ctx, req, h, c.TaskFetcher())
		},
	)

	s.mcp.AddTool(
		mcp.NewTool("enterprise_create_database",
			mcp.WithDescription("Create a database on the Redis Enterprise cluster and wait for it to become active"),
			mcp.WithString("body", mcp.Required(), mcp.Description("Database create request as JSON")),
			mcp.WithNumber("wait_timeout_seconds", mcp.Description("Wait budget in seconds (default 600)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			c, err := s.deps.Enterprise()
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			body, err := jsonArg(req, "body")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			h, _, err := c.CreateDatabase(ctx, body)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return s.waitResult(ctx, req, h, c.DatabaseFetcher())
		},
	)

	s.mcp.AddTool(
		mcp.NewTool("enterprise_import_database",
			mcp.WithDescription("Import data into a Redis Enterprise database and wait for the action to finish"),
			mcp.WithString("uid", mcp.Required(), mcp.Description("Database uid")),
			mcp.WithString("body", mcp.Required(), mcp.Description("Import request as JSON")),
			mcp.WithNumber("wait_timeout_seconds", mcp.Description("Wait budget in seconds (default 600)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			c, err := s.deps.Enterprise()
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			body, err := jsonArg(req, "body")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			h, err := c.ImportDatabase(ctx, mcp.ParseString(req, "uid", ""), body)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return s.waitResult(ctx, req, h, c.ActionFetcher())
		},
	)
}

// waitResult polls the handle to a terminal state and returns one structured
// document: final state, result payload, and a summary of buffered progress.
func (s *Server) waitResult(ctx context.Context, req mcp.CallToolRequest, h types.OperationHandle, fetcher operation.StatusFetcher) (*mcp.CallToolResult, error) {
	cfg := types.PollConfig{
		Timeout: time.Duration(mcp.ParseFloat64(req, "wait_timeout_seconds", 0)) * time.Second,
	}

	var buf operation.EventBuffer
	poller := operation.NewPoller(fetcher,
		operation.WithSink(buf.Sink()),
		operation.WithLogger(s.deps.Logger),
	)
	outcome, err := poller.Wait(ctx, h, cfg)
	if err != nil {
		doc := map[string]any{
			"operation": h.String(),
			"error":     err.Error(),
			"kind":      operation.KindOf(err),
			"progress":  buf.Summary(),
		}
		encoded, _ := json.MarshalIndent(doc, "", "  ")
		return mcp.NewToolResultError(string(encoded)), nil
	}

	doc := map[string]any{
		"operation": h.String(),
		"state":     outcome.State,
		"elapsed":   outcome.Elapsed.Truncate(time.Millisecond).String(),
		"result":    outcome.Result,
		"progress":  buf.Summary(),
	}
	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(encoded)), nil
}

func rawResult(raw json.RawMessage, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func jsonArg(req mcp.CallToolRequest, key string) (json.RawMessage, error) {
	v := mcp.ParseString(req, key, "")
	if v == "" {
		return nil, fmt.Errorf("%s is required", key)
	}
	if !json.Valid([]byte(v)) {
		return nil, fmt.Errorf("%s is not valid JSON", key)
	}
	return json.RawMessage(v), nil
}
