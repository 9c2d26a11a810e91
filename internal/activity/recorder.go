// Package activity records generated and exported diagrams to the activity log.
package activity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/erdstudio/pkg/schema"
)

const (
	// DefaultKeep is the retention size of the activity log.
	DefaultKeep = 20
	// DefaultBuffer is the number of entries queued before Record drops.
	DefaultBuffer = 64

	persistTimeout = 5 * time.Second
)

// Store is the subset of store.Store the recorder writes to.
type Store interface {
	AppendActivity(ctx context.Context, a *schema.Activity) error
	PruneActivities(ctx context.Context, keep int) (int64, error)
}

// Options tunes a Recorder. Zero values select the defaults.
type Options struct {
	Buffer int
	Keep   int
}

// Recorder persists activity entries from a single goroutine. Record never
// blocks: when the buffer is full the entry is dropped and logged.
type Recorder struct {
	store  Store
	keep   int
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan schema.Activity
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
	written atomic.Int64
}

// NewRecorder starts a recorder writing to st.
func NewRecorder(st Store, opts Options, logger *slog.Logger) *Recorder {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Keep <= 0 {
		opts.Keep = DefaultKeep
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		store:  st,
		keep:   opts.Keep,
		logger: logger,
		queue:  make(chan schema.Activity, opts.Buffer),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

// Record queues an entry. Missing ID, tool and timestamp are filled in.
func (r *Recorder) Record(ctx context.Context, a schema.Activity) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Tool == "" {
		a.Tool = schema.ToolERDStudio
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(ctx, a, "recorder closed")
		return
	}
	select {
	case r.queue <- a:
	default:
		r.drop(ctx, a, "buffer full")
	}
}

// Dropped reports how many entries were discarded.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Written reports how many entries were persisted.
func (r *Recorder) Written() int64 { return r.written.Load() }

// Close stops accepting entries and waits for the queue to drain.
func (r *Recorder) Close() error {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	<-r.done
	return nil
}

func (r *Recorder) loop() {
	defer close(r.done)
	for a := range r.queue {
		r.persist(a)
	}
}

func (r *Recorder) persist(a schema.Activity) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := r.store.AppendActivity(ctx, &a); err != nil {
		r.logger.Error("activity append failed", "activity_id", a.ID, "error", err)
		return
	}
	r.written.Add(1)

	n, err := r.store.PruneActivities(ctx, r.keep)
	if err != nil {
		r.logger.Warn("activity prune failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Debug("activity log pruned", "removed", n, "keep", r.keep)
	}
}

func (r *Recorder) drop(ctx context.Context, a schema.Activity, reason string) {
	r.dropped.Add(1)
	r.logger.WarnContext(ctx, "activity dropped", "reason", reason, "title", a.Title)
}
