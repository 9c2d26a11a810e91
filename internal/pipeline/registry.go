package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rendis/erdstudio/pkg/schema"
)

// DefaultMaxSessions bounds the number of live controllers in a Registry.
const DefaultMaxSessions = 256

// Factory builds the controller of a new session.
type Factory func(sessionID string) (*Controller, error)

type entry struct {
	ctrl     *Controller
	lastUsed time.Time
}

// Registry holds one Controller per session. When full, the least recently
// used session is reset and evicted.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	max     int
	now     func() time.Time
	entries map[string]*entry
}

// NewRegistry returns an empty registry. max <= 0 selects DefaultMaxSessions.
func NewRegistry(factory Factory, max int) *Registry {
	if max <= 0 {
		max = DefaultMaxSessions
	}
	return &Registry{
		factory: factory,
		max:     max,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Get returns the controller of sessionID, creating it on first use.
func (r *Registry) Get(sessionID string) (*Controller, error) {
	if sessionID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "session id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[sessionID]; ok {
		e.lastUsed = r.now()
		return e.ctrl, nil
	}

	ctrl, err := r.factory(sessionID)
	if err != nil {
		return nil, err
	}
	if len(r.entries) >= r.max {
		r.evictOldest()
	}
	r.entries[sessionID] = &entry{ctrl: ctrl, lastUsed: r.now()}
	return ctrl, nil
}

// Lookup returns an existing controller without creating one.
func (r *Registry) Lookup(sessionID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.ctrl, true
}

// Remove resets and forgets sessionID.
func (r *Registry) Remove(ctx context.Context, sessionID string) bool {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	delete(r.entries, sessionID)
	r.mu.Unlock()
	if ok {
		e.ctrl.Reset(ctx)
	}
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close resets every session.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range entries {
		e.ctrl.Reset(ctx)
	}
}

// evictOldest must be called with r.mu held.
func (r *Registry) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, e := range r.entries {
		if oldestID == "" || e.lastUsed.Before(oldest) {
			oldestID, oldest = id, e.lastUsed
		}
	}
	if oldestID == "" {
		return
	}
	e := r.entries[oldestID]
	delete(r.entries, oldestID)
	go e.ctrl.Reset(context.Background())
}
