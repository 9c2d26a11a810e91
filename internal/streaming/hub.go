// Package streaming fans pipeline events out to live subscribers such as
// the HTTP event stream and MCP notifications.
package streaming

import "context"

// StreamEvent is a real-time event emitted by a pipeline controller.
type StreamEvent struct {
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id,omitempty"`
	EventType string `json:"event_type"`
	Phase     string `json:"phase,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	SessionID  string   `json:"session_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for real-time pipeline events.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
