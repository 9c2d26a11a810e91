package mcp

import (
	"maps"
	"slices"
	"sync"
)

// ClientBindings records which MCP client last worked on each studio
// session. A studio belongs to at most one client; a client may drive
// several studios. Bindings are made on every tool call.
type ClientBindings struct {
	mu       sync.RWMutex
	byStudio map[string]string
	byClient map[string]map[string]struct{}
}

// NewClientBindings creates an empty binding table.
func NewClientBindings() *ClientBindings {
	return &ClientBindings{
		byStudio: make(map[string]string),
		byClient: make(map[string]map[string]struct{}),
	}
}

// Bind moves studioID to clientID, releasing it from any previous client.
func (b *ClientBindings) Bind(studioID, clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.byStudio[studioID]; ok && prev != clientID {
		b.release(prev, studioID)
	}
	b.byStudio[studioID] = clientID
	if b.byClient[clientID] == nil {
		b.byClient[clientID] = make(map[string]struct{})
	}
	b.byClient[clientID][studioID] = struct{}{}
}

// ClientFor returns the client bound to studioID.
func (b *ClientBindings) ClientFor(studioID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cid, ok := b.byStudio[studioID]
	return cid, ok
}

// Forget drops every binding of clientID and returns the studios it held,
// sorted.
func (b *ClientBindings) Forget(clientID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	studios := slices.Sorted(maps.Keys(b.byClient[clientID]))
	for _, sid := range studios {
		delete(b.byStudio, sid)
	}
	delete(b.byClient, clientID)
	return studios
}

func (b *ClientBindings) release(clientID, studioID string) {
	delete(b.byClient[clientID], studioID)
	if len(b.byClient[clientID]) == 0 {
		delete(b.byClient, clientID)
	}
}
