package streaming

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

const defaultChannelBuffer = 64

// allSessions indexes subscribers whose filter names no session.
const allSessions = ""

type subscriber struct {
	id     uint64
	ch     chan StreamEvent
	types  []string
	closed bool
}

func (s *subscriber) wants(eventType string) bool {
	return len(s.types) == 0 || slices.Contains(s.types, eventType)
}

// MemoryHub is an in-process EventHub. Subscribers are indexed by session so
// a publish only visits the session's own subscribers plus the global ones.
// Delivery never blocks: a full subscriber misses the event and the drop is
// counted.
type MemoryHub struct {
	mu        sync.RWMutex
	bySession map[string]map[uint64]*subscriber
	count     int
	seq       atomic.Uint64
	dropped   atomic.Int64
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{bySession: make(map[string]map[uint64]*subscriber)}
}

// Publish delivers event to every matching subscriber.
func (h *MemoryHub) Publish(ctx context.Context, event StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	h.deliver(h.bySession[event.SessionID], event)
	if event.SessionID != allSessions {
		h.deliver(h.bySession[allSessions], event)
	}
	return nil
}

func (h *MemoryHub) deliver(subs map[uint64]*subscriber, event StreamEvent) {
	for _, sub := range subs {
		if !sub.wants(event.EventType) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber for filter. The returned cancel func
// unsubscribes and closes the channel. It also runs when ctx ends, and
// calling it twice is harmless.
func (h *MemoryHub) Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sub := &subscriber{
		id:    h.seq.Add(1),
		ch:    make(chan StreamEvent, defaultChannelBuffer),
		types: slices.Clone(filter.EventTypes),
	}
	key := filter.SessionID

	h.mu.Lock()
	if h.bySession[key] == nil {
		h.bySession[key] = make(map[uint64]*subscriber)
	}
	h.bySession[key][sub.id] = sub
	h.count++
	h.mu.Unlock()

	unsubscribe := func() { h.remove(key, sub) }
	stop := context.AfterFunc(ctx, unsubscribe)
	return sub.ch, func() {
		stop()
		unsubscribe()
	}, nil
}

func (h *MemoryHub) remove(key string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	delete(h.bySession[key], sub.id)
	if len(h.bySession[key]) == 0 {
		delete(h.bySession, key)
	}
	h.count--
	close(sub.ch)
}

// Subscribers returns the number of live subscriptions.
func (h *MemoryHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (h *MemoryHub) Dropped() int64 { return h.dropped.Load() }

var _ EventHub = (*MemoryHub)(nil)
