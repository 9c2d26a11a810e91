package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/rendis/erdstudio/internal/diagram"
	"github.com/rendis/erdstudio/internal/export"
	"github.com/rendis/erdstudio/internal/extract"
	"github.com/rendis/erdstudio/internal/interpreter"
	"github.com/rendis/erdstudio/internal/pipeline"
	"github.com/rendis/erdstudio/internal/store"
	"github.com/rendis/erdstudio/internal/synth"
	"github.com/rendis/erdstudio/internal/validation"
	"github.com/rendis/erdstudio/pkg/schema"
)

const shopDiagram = `erDiagram
    users {
        int id PK
        string email
    }
    orders {
        int id PK
        int user_id FK
    }
    users ||--o{ orders : places
`

// --- Mock Activity ---

type mockActivity struct {
	list []*schema.Activity
	got  store.ActivityFilter
}

func (m *mockActivity) ListActivities(_ context.Context, filter store.ActivityFilter) ([]*schema.Activity, error) {
	m.got = filter
	if filter.Limit > 0 && len(m.list) > filter.Limit {
		return m.list[:filter.Limit], nil
	}
	return m.list, nil
}

// --- Helpers ---

func newTestServer(t *testing.T) (*ErdServer, *mockActivity) {
	t.Helper()
	gen := synth.GeneratorFunc(func(context.Context, synth.Prompt) (string, error) {
		return shopDiagram, nil
	})
	registry := pipeline.NewRegistry(func(id string) (*pipeline.Controller, error) {
		return pipeline.New(pipeline.Options{
			SessionID:   id,
			Extractor:   extract.NewExtractor(interpreter.SQLiteFactory, extract.ModeDDL, nil),
			Synthesizer: synth.NewSynthesizer(gen, nil),
			Renderer:    diagram.NewRenderer(nil),
			Exporter:    export.NewExporter(export.Options{}, nil),
		})
	}, 0)

	v, err := validation.NewJSONSchemaValidator()
	require.NoError(t, err)

	act := &mockActivity{}
	return NewErdServer(ErdServerDeps{Sessions: registry, Activity: act, Validator: v}), act
}

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func call(t *testing.T, s *ErdServer, tool string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	st := s.mcpServer.GetTool(tool)
	require.NotNil(t, st, tool)
	result, err := st.Handler(context.Background(), buildRequest(tool, args))
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	text := extractText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target))
}

func writeShopDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT)")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return path
}

// --- Tests ---

func TestGenerateTool_Description(t *testing.T) {
	s, _ := newTestServer(t)

	result := call(t, s, "erd.generate", map[string]any{"description": "a shop", "session_id": "s1"})
	require.False(t, result.IsError, extractText(t, result))

	var got map[string]any
	unmarshalResult(t, result, &got)
	assert.Equal(t, "ready", got["phase"])
	assert.Equal(t, synth.Clean(shopDiagram), got["source"])
	assert.Contains(t, got["ascii"], "users")
}

func TestGenerateTool_Database(t *testing.T) {
	s, _ := newTestServer(t)
	path := writeShopDB(t)

	result := call(t, s, "erd.generate", map[string]any{"database_path": path, "session_id": "s1"})
	require.False(t, result.IsError, extractText(t, result))

	var got map[string]any
	unmarshalResult(t, result, &got)
	assert.Equal(t, "shop.db", got["label"])
}

func TestGenerateTool_ArgumentErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"neither", map[string]any{}, "exactly one"},
		{"both", map[string]any{"description": "x", "database_path": "y"}, "exactly one"},
		{"missing file", map[string]any{"database_path": "/does/not/exist.db"}, "read database"},
		{"wrong type", map[string]any{"description": 42}, "VALIDATION_ERROR"},
		{"not a database", map[string]any{"database_path": writeText(t, "notes.txt", "hello")}, "EXTRACTION_CORRUPT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, s, "erd.generate", tt.args)
			assert.True(t, result.IsError)
			assert.Contains(t, extractText(t, result), tt.want)
		})
	}
}

func writeText(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEditTool(t *testing.T) {
	s, _ := newTestServer(t)
	call(t, s, "erd.generate", map[string]any{"description": "a shop", "session_id": "s1"})

	result := call(t, s, "erd.edit", map[string]any{"source": "erDiagram\n    a ||--o{ b : has\n", "session_id": "s1"})
	require.False(t, result.IsError, extractText(t, result))

	result = call(t, s, "erd.edit", map[string]any{"source": "erDiagram\n    a ||--o{\n", "session_id": "s1"})
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), schema.ErrCodeInvalidSyntax)

	result = call(t, s, "erd.edit", map[string]any{"session_id": "s1"})
	assert.True(t, result.IsError)
}

func TestExportTool(t *testing.T) {
	s, _ := newTestServer(t)

	result := call(t, s, "erd.export", map[string]any{"format": "svg", "session_id": "s1"})
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), schema.ErrCodeNothingToExport)

	call(t, s, "erd.generate", map[string]any{"description": "a shop", "session_id": "s1"})

	result = call(t, s, "erd.export", map[string]any{"format": "svg", "session_id": "s1"})
	require.False(t, result.IsError)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(extractText(t, result)), "<"))

	result = call(t, s, "erd.export", map[string]any{"format": "png", "session_id": "s1"})
	require.False(t, result.IsError)
	require.Len(t, result.Content, 2)
	img, ok := result.Content[1].(mcp.ImageContent)
	require.True(t, ok, "got %T", result.Content[1])
	assert.Equal(t, "image/png", img.MIMEType)
	assert.NotEmpty(t, img.Data)

	dir := t.TempDir()
	result = call(t, s, "erd.export", map[string]any{"format": "jpg", "output_path": dir, "session_id": "s1"})
	require.False(t, result.IsError, extractText(t, result))
	var got map[string]any
	unmarshalResult(t, result, &got)
	assert.Equal(t, filepath.Join(dir, "erd-db.jpg"), got["path"])
	_, err := os.Stat(filepath.Join(dir, "erd-db.jpg"))
	assert.NoError(t, err)

	result = call(t, s, "erd.export", map[string]any{"format": "gif", "session_id": "s1"})
	assert.True(t, result.IsError)
}

func TestStatusAndReset(t *testing.T) {
	s, _ := newTestServer(t)
	call(t, s, "erd.generate", map[string]any{"description": "a shop", "session_id": "s1"})

	var status map[string]any
	unmarshalResult(t, call(t, s, "erd.status", map[string]any{"session_id": "s1"}), &status)
	assert.Equal(t, "ready", status["phase"])
	assert.Equal(t, true, status["has_diagram"])

	var other map[string]any
	unmarshalResult(t, call(t, s, "erd.status", map[string]any{"session_id": "s2"}), &other)
	assert.Equal(t, "idle", other["phase"])

	var reset map[string]any
	unmarshalResult(t, call(t, s, "erd.reset", map[string]any{"session_id": "s1"}), &reset)
	assert.Equal(t, "idle", reset["phase"])
	assert.Nil(t, reset["ascii"])
}

func TestDefaultSession(t *testing.T) {
	s, _ := newTestServer(t)
	call(t, s, "erd.generate", map[string]any{"description": "a shop"})

	var status map[string]any
	unmarshalResult(t, call(t, s, "erd.status", map[string]any{"session_id": DefaultSession}), &status)
	assert.Equal(t, "ready", status["phase"])
}

func TestLintTool(t *testing.T) {
	s, _ := newTestServer(t)

	var ok map[string]any
	unmarshalResult(t, call(t, s, "erd.lint", map[string]any{"source": shopDiagram}), &ok)
	assert.Equal(t, true, ok["valid"])

	var bad map[string]any
	unmarshalResult(t, call(t, s, "erd.lint", map[string]any{"source": "erDiagram\nA ||--o{ B"}), &bad)
	assert.Equal(t, false, bad["valid"])
	diags := bad["diagnostics"].(map[string]any)
	assert.Len(t, diags["errors"], 1)
}

func TestActivityTool(t *testing.T) {
	s, act := newTestServer(t)
	now := time.Now().UTC()
	act.list = []*schema.Activity{
		{ID: "2", Title: schema.ActivityExported, Description: "Downloaded as SVG", CreatedAt: now},
		{ID: "1", Title: schema.ActivityGenerated, Description: "Diagram visualized for text description", CreatedAt: now},
	}

	var all []schema.Activity
	unmarshalResult(t, call(t, s, "erd.activity", map[string]any{"limit": 1}), &all)
	assert.Len(t, all, 1)
	assert.Equal(t, 1, act.got.Limit)

	var generated []schema.Activity
	unmarshalResult(t, call(t, s, "erd.activity", map[string]any{"where": `title == "Generated ERD"`}), &generated)
	require.Len(t, generated, 1)
	assert.Equal(t, "1", generated[0].ID)

	result := call(t, s, "erd.activity", map[string]any{"where": "title =="})
	assert.True(t, result.IsError)
}

func TestDisconnectClosesBoundStudios(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.sessions.Get("s1")
	require.NoError(t, err)
	_, err = s.sessions.Get("s2")
	require.NoError(t, err)
	s.clients.Bind("s1", "client-a")

	s.disconnect(context.Background(), "client-a")

	_, ok := s.sessions.Lookup("s1")
	assert.False(t, ok)
	_, ok = s.sessions.Lookup("s2")
	assert.True(t, ok, "unbound studios survive")
	_, bound := s.clients.ClientFor("s1")
	assert.False(t, bound)
}
