package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/erdstudio/internal/streaming"
	"github.com/rendis/erdstudio/pkg/schema"
)

const notificationLogger = "erdstudio"

// Notifier pushes pipeline events to whichever client drives the session.
type Notifier interface {
	Notify(ctx context.Context, event streaming.StreamEvent) error
}

// MCPNotifier sends events as MCP logging notifications.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	clients   *ClientBindings
}

// NewMCPNotifier creates a notifier that pushes through mcpServer.
func NewMCPNotifier(mcpServer *server.MCPServer, clients *ClientBindings) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, clients: clients}
}

// Notify is best effort: a session no client is bound to is skipped, and a
// client that disconnected is forgotten.
func (n *MCPNotifier) Notify(_ context.Context, event streaming.StreamEvent) error {
	clientID, ok := n.clients.ClientFor(event.SessionID)
	if !ok {
		return nil
	}
	err := n.mcpServer.SendNotificationToSpecificClient(clientID, "notifications/message", map[string]any{
		"level":  notificationLevel(event.EventType),
		"logger": notificationLogger,
		"data":   event,
	})
	if errors.Is(err, server.ErrSessionNotFound) {
		n.clients.Forget(clientID)
		return nil
	}
	return err
}

func notificationLevel(eventType string) mcp.LoggingLevel {
	switch eventType {
	case schema.EventRenderFailed:
		return mcp.LoggingLevelWarning
	case schema.EventExportFailed:
		return mcp.LoggingLevelError
	}
	return mcp.LoggingLevelInfo
}

var _ Notifier = (*MCPNotifier)(nil)
