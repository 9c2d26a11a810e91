package pipeline

import (
	"context"
	"slices"
	"sync"

	"github.com/rendis/erdstudio/internal/logging"
	"github.com/rendis/erdstudio/internal/streaming"
	"github.com/rendis/erdstudio/pkg/schema"
)

// TransitionHook is called before or after a phase transition.
type TransitionHook func(from, to schema.Phase) error

// EventPublisher is satisfied by streaming hubs; the FSM publishes one
// state-changed event per transition.
type EventPublisher interface {
	Publish(ctx context.Context, event streaming.StreamEvent) error
}

type hookKey struct {
	from, to schema.Phase
}

// FSM validates pipeline phase transitions for one session.
type FSM struct {
	mu        sync.Mutex
	sessionID string
	publisher EventPublisher
	before    map[hookKey][]TransitionHook
	after     map[hookKey][]TransitionHook
}

// NewFSM creates an FSM that publishes to publisher. A nil publisher
// drops events.
func NewFSM(sessionID string, publisher EventPublisher) *FSM {
	return &FSM{
		sessionID: sessionID,
		publisher: publisher,
		before:    make(map[hookKey][]TransitionHook),
		after:     make(map[hookKey][]TransitionHook),
	}
}

// OnBefore registers a hook called before a transition. A hook error
// aborts the transition.
func (f *FSM) OnBefore(from, to schema.Phase, hook TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := hookKey{from, to}
	f.before[key] = append(f.before[key], hook)
}

// OnAfter registers a hook called after a transition.
func (f *FSM) OnAfter(from, to schema.Phase, hook TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := hookKey{from, to}
	f.after[key] = append(f.after[key], hook)
}

// Transition validates and executes a phase transition and publishes the
// state-changed event. The caller owns the phase value itself.
func (f *FSM) Transition(ctx context.Context, from, to schema.Phase) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !CanTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid pipeline transition: %s -> %s", from, to).
			WithDetails(map[string]any{"session_id": f.sessionID, "from": string(from), "to": string(to)})
	}

	key := hookKey{from, to}

	for _, hook := range f.before[key] {
		if err := hook(from, to); err != nil {
			return err
		}
	}

	if f.publisher != nil {
		event := streaming.StreamEvent{
			SessionID: f.sessionID,
			RunID:     logging.RunID(ctx),
			EventType: schema.EventStateChanged,
			Phase:     string(to),
			Payload:   map[string]any{"from": string(from), "to": string(to)},
		}
		// Cancel and Reset transition on contexts that are already done.
		if err := f.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "emit state event: %s", err.Error()).WithCause(err)
		}
	}

	for _, hook := range f.after[key] {
		if err := hook(from, to); err != nil {
			return err
		}
	}

	return nil
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to schema.Phase) bool {
	allowed, ok := ValidTransitions[from]
	return ok && slices.Contains(allowed, to)
}

// ValidTransitions defines the allowed phase transitions. Every phase may
// move to idle: that edge is Reset.
var ValidTransitions = map[schema.Phase][]schema.Phase{
	schema.PhaseIdle:         {schema.PhaseExtracting, schema.PhaseSynthesizing, schema.PhaseIdle},
	schema.PhaseExtracting:   {schema.PhaseSynthesizing, schema.PhaseFailed, schema.PhaseIdle},
	schema.PhaseSynthesizing: {schema.PhaseRendering, schema.PhaseFailed, schema.PhaseIdle},
	schema.PhaseRendering:    {schema.PhaseRendering, schema.PhaseReady, schema.PhaseFailed, schema.PhaseIdle},
	schema.PhaseReady:        {schema.PhaseExtracting, schema.PhaseSynthesizing, schema.PhaseRendering, schema.PhaseIdle},
	schema.PhaseFailed:       {schema.PhaseIdle},
}
