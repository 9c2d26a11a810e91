package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/erdstudio/internal/activity"
	"github.com/rendis/erdstudio/internal/diagram"
	"github.com/rendis/erdstudio/internal/pipeline"
	"github.com/rendis/erdstudio/internal/store"
	"github.com/rendis/erdstudio/pkg/schema"
)

// DefaultSession is used when neither the arguments nor the transport
// identify a session.
const DefaultSession = "default"

const defaultActivityLimit = 20

// statusView is the JSON shape returned by most tools.
type statusView struct {
	pipeline.Snapshot
	ASCII string `json:"ascii,omitempty"`
}

// --- Tool definitions ---

func sessionArg() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Description("Studio session to work on (default: the client session)"))
}

func generateTool() mcp.Tool {
	return mcp.NewTool("erd.generate",
		mcp.WithDescription("Generate an entity-relationship diagram from a SQLite database file or a plain-language description"),
		mcp.WithString("database_path", mcp.Description("Path to a SQLite database file")),
		mcp.WithString("description", mcp.Description("Plain-language description of the system to model")),
		sessionArg(),
	)
}

func editTool() mcp.Tool {
	return mcp.NewTool("erd.edit",
		mcp.WithDescription("Replace the Mermaid erDiagram source and re-render it"),
		mcp.WithString("source", mcp.Required(), mcp.Description("Complete erDiagram source")),
		sessionArg(),
	)
}

func exportTool() mcp.Tool {
	return mcp.NewTool("erd.export",
		mcp.WithDescription("Export the current diagram as SVG, PNG or JPG"),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("vector", "raster-lossless", "raster-lossy", "svg", "png", "jpg", "jpeg"),
			mcp.Description("Output format"),
		),
		mcp.WithString("output_path", mcp.Description("Write the artifact to this file or directory instead of returning it")),
		sessionArg(),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("erd.status",
		mcp.WithDescription("Get the pipeline phase, the diagram source and a text preview"),
		sessionArg(),
	)
}

func lintTool() mcp.Tool {
	return mcp.NewTool("erd.lint",
		mcp.WithDescription("Check erDiagram source for errors and warnings without rendering it"),
		mcp.WithString("source", mcp.Required(), mcp.Description("erDiagram source to check")),
	)
}

func resetTool() mcp.Tool {
	return mcp.NewTool("erd.reset",
		mcp.WithDescription("Discard the diagram and any work in flight"),
		sessionArg(),
	)
}

func activityTool() mcp.Tool {
	return mcp.NewTool("erd.activity",
		mcp.WithDescription("List recent generations and exports, newest first"),
		mcp.WithString("where", mcp.Description(`Filter expression over id, tool, title, description, created_at and age_hours, e.g. title == "Exported ERD"`)),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 20)")),
	)
}

// --- Handlers ---

func (s *ErdServer) handleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("database_path", "")
	description := req.GetString("description", "")
	if (path == "") == (description == "") {
		return mcp.NewToolResultError("exactly one of database_path or description is required"), nil
	}

	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return toolError(err), nil
	}

	in := schema.NewTextSource(description)
	if path != "" {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("read database: %v", readErr)), nil
		}
		in = schema.NewFileSource(filepath.Base(path), data)
	}

	if err := ctrl.Submit(ctx, in); err != nil {
		return toolError(err), nil
	}
	return marshalResult(view(ctrl.Status()))
}

func (s *ErdServer) handleEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source is required"), nil
	}
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return toolError(err), nil
	}
	if err := ctrl.Edit(ctx, source); err != nil {
		return toolError(err), nil
	}
	return marshalResult(view(ctrl.Status()))
}

func (s *ErdServer) handleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	format, err := schema.ParseExportFormat(name)
	if err != nil {
		return toolError(err), nil
	}
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return toolError(err), nil
	}

	art, err := ctrl.Export(ctx, format)
	if err != nil {
		return toolError(err), nil
	}

	if out := req.GetString("output_path", ""); out != "" {
		if info, statErr := os.Stat(out); statErr == nil && info.IsDir() {
			out = filepath.Join(out, art.FileName)
		}
		if writeErr := os.WriteFile(out, art.Bytes, 0o644); writeErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("write artifact: %v", writeErr)), nil
		}
		return marshalResult(map[string]any{
			"path":       out,
			"media_type": art.MediaType,
			"bytes":      len(art.Bytes),
			"width":      art.Width,
			"height":     art.Height,
		})
	}

	if format.Raster() {
		encoded := base64.StdEncoding.EncodeToString(art.Bytes)
		return mcp.NewToolResultImage(art.FileName, encoded, art.MediaType), nil
	}
	return mcp.NewToolResultText(string(art.Bytes)), nil
}

func (s *ErdServer) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(view(ctrl.Status()))
}

func (s *ErdServer) handleLint(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source is required"), nil
	}
	diags := diagram.Lint(source)
	return marshalResult(map[string]any{
		"valid":       diags.Valid(),
		"diagnostics": diags,
	})
}

func (s *ErdServer) handleReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return toolError(err), nil
	}
	ctrl.Reset(ctx)
	return marshalResult(view(ctrl.Status()))
}

func (s *ErdServer) handleActivity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.activity == nil {
		return marshalResult([]*schema.Activity{})
	}
	limit := req.GetInt("limit", defaultActivityLimit)
	where, err := activity.NewFilter(req.GetString("where", ""))
	if err != nil {
		return toolError(err), nil
	}

	filter := store.ActivityFilter{}
	if where.String() == "" {
		filter.Limit = limit
	}
	list, err := s.activity.ListActivities(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list activities: %v", err)), nil
	}
	if list, err = where.Apply(list); err != nil {
		return toolError(err), nil
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	if list == nil {
		list = []*schema.Activity{}
	}
	return marshalResult(list)
}

// --- Helpers ---

// controller resolves the studio session of a call and binds it to the
// calling client for notifications.
func (s *ErdServer) controller(ctx context.Context, req mcp.CallToolRequest) (*pipeline.Controller, error) {
	id := req.GetString("session_id", "")
	client := server.ClientSessionFromContext(ctx)
	if id == "" && client != nil {
		id = client.SessionID()
	}
	if id == "" {
		id = DefaultSession
	}
	if client != nil {
		s.clients.Bind(id, client.SessionID())
	}
	return s.sessions.Get(id)
}

func view(snap pipeline.Snapshot) statusView {
	v := statusView{Snapshot: snap}
	if snap.Rendered != nil {
		v.ASCII = diagram.RenderASCII(snap.Rendered.Model)
	}
	return v
}

// toolError reports err as a tool-level error carrying its code.
func toolError(err error) *mcp.CallToolResult {
	var erdErr *schema.ErdError
	if errors.As(err, &erdErr) {
		msg := schema.UserMessage(err)
		if erdErr.Message != "" && !strings.Contains(msg, erdErr.Message) {
			msg += " (" + erdErr.Message + ")"
		}
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", erdErr.Code, msg))
	}
	return mcp.NewToolResultError(err.Error())
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
