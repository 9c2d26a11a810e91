package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErdServer(t *testing.T) {
	s := NewErdServer(ErdServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.notifier)
}

func TestToolRegistration(t *testing.T) {
	s := NewErdServer(ErdServerDeps{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 7)

	expectedTools := []string{
		"erd.generate",
		"erd.edit",
		"erd.export",
		"erd.status",
		"erd.lint",
		"erd.reset",
		"erd.activity",
	}
	for _, name := range expectedTools {
		tool := s.mcpServer.GetTool(name)
		assert.NotNil(t, tool, "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		toolName string
		required []string
	}{
		{"erd.generate", nil},
		{"erd.edit", []string{"source"}},
		{"erd.export", []string{"format"}},
		{"erd.status", nil},
		{"erd.lint", []string{"source"}},
		{"erd.reset", nil},
		{"erd.activity", nil},
	}

	s := NewErdServer(ErdServerDeps{})

	for _, tc := range tests {
		t.Run(tc.toolName, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.NotEmpty(t, tool.Tool.Description)
			assert.ElementsMatch(t, tc.required, tool.Tool.InputSchema.Required)
		})
	}
}
