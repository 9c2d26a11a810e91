// Package mcp exposes the studio as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/erdstudio/internal/pipeline"
	"github.com/rendis/erdstudio/internal/store"
	"github.com/rendis/erdstudio/internal/streaming"
	"github.com/rendis/erdstudio/internal/validation"
	"github.com/rendis/erdstudio/pkg/schema"
)

// ActivityLister reads the activity log.
type ActivityLister interface {
	ListActivities(ctx context.Context, filter store.ActivityFilter) ([]*schema.Activity, error)
}

// ErdServerDeps holds the dependencies for creating an ErdServer.
type ErdServerDeps struct {
	Sessions  *pipeline.Registry
	Activity  ActivityLister
	Hub       streaming.EventHub
	Validator validation.Validator
	Version   string
	Logger    *slog.Logger
}

// ErdServer wraps an MCP server with the studio tool handlers.
type ErdServer struct {
	sessions  *pipeline.Registry
	activity  ActivityLister
	hub       streaming.EventHub
	validator validation.Validator
	clients   *ClientBindings
	notifier  Notifier
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewErdServer creates a new ErdServer with all tools registered.
func NewErdServer(deps ErdServerDeps) *ErdServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &ErdServer{
		sessions:  deps.Sessions,
		activity:  deps.Activity,
		hub:       deps.Hub,
		validator: deps.Validator,
		clients:   NewClientBindings(),
		logger:    logger,
	}

	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		s.disconnect(ctx, session.SessionID())
	})

	mcpSrv := server.NewMCPServer(
		"erdstudio",
		version,
		server.WithHooks(hooks),
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("ERD Studio turns SQLite databases and plain-language descriptions into entity-relationship diagrams. Use erd.generate with a database_path or a description, erd.edit to change the Mermaid source, erd.export to get SVG, PNG or JPG, erd.status to see the current diagram, erd.lint to check source without rendering, erd.reset to start over and erd.activity to list past work."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.clients)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or
// stdin closes. Pipeline events are relayed to the client meanwhile.
func (s *ErdServer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.hub != nil {
		go s.relay(ctx)
	}
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *ErdServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools, each behind argument validation.
func (s *ErdServer) tools() []server.ServerTool {
	entries := []server.ServerTool{
		{Tool: generateTool(), Handler: s.handleGenerate},
		{Tool: editTool(), Handler: s.handleEdit},
		{Tool: exportTool(), Handler: s.handleExport},
		{Tool: statusTool(), Handler: s.handleStatus},
		{Tool: lintTool(), Handler: s.handleLint},
		{Tool: resetTool(), Handler: s.handleReset},
		{Tool: activityTool(), Handler: s.handleActivity},
	}
	for i := range entries {
		entries[i].Handler = s.validated(entries[i].Tool, entries[i].Handler)
	}
	return entries
}

// validated checks call arguments against the tool's input schema before
// the handler runs.
func (s *ErdServer) validated(tool mcp.Tool, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	if s.validator == nil {
		return next
	}
	inputSchema, err := json.Marshal(tool.InputSchema)
	if err != nil {
		s.logger.Warn("tool schema not serializable", "tool", tool.Name, "error", err)
		return next
	}
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		if err := s.validator.ValidateInput(args, inputSchema); err != nil {
			return toolError(err), nil
		}
		return next(ctx, req)
	}
}

// relay forwards pipeline events to the MCP client bound to each session.
func (s *ErdServer) relay(ctx context.Context) {
	events, cancel, err := s.hub.Subscribe(ctx, streaming.EventFilter{
		EventTypes: []string{schema.EventStateChanged, schema.EventRenderFailed, schema.EventExportCompleted, schema.EventExportFailed},
	})
	if err != nil {
		s.logger.Warn("event relay not started", "error", err)
		return
	}
	defer cancel()

	for ev := range events {
		if err := s.notifier.Notify(ctx, ev); err != nil {
			s.logger.Debug("notification failed", "session_id", ev.SessionID, "error", err)
		}
	}
}

// disconnect drops the studios a departing client was driving.
func (s *ErdServer) disconnect(ctx context.Context, clientID string) {
	studios := s.clients.Forget(clientID)
	if s.sessions == nil {
		return
	}
	for _, id := range studios {
		if s.sessions.Remove(ctx, id) {
			s.logger.Info("studio session closed", "session_id", id, "client", clientID)
		}
	}
}
