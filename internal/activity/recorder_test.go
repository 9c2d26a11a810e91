package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/erdstudio/pkg/schema"
)

type memStore struct {
	mu        sync.Mutex
	items     []schema.Activity
	prunes    []int
	appendErr error
	block     chan struct{}
}

func (m *memStore) AppendActivity(_ context.Context, a *schema.Activity) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.items = append(m.items, *a)
	return nil
}

func (m *memStore) PruneActivities(_ context.Context, keep int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prunes = append(m.prunes, keep)
	if len(m.items) <= keep {
		return 0, nil
	}
	n := len(m.items) - keep
	m.items = m.items[n:]
	return int64(n), nil
}

func (m *memStore) snapshot() []schema.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schema.Activity(nil), m.items...)
}

func TestRecorder_PersistsAndPrunes(t *testing.T) {
	st := &memStore{}
	r := NewRecorder(st, Options{Keep: 2}, nil)

	for _, title := range []string{"a", "b", "c"} {
		r.Record(context.Background(), schema.Activity{Title: title})
	}
	require.NoError(t, r.Close())

	items := st.snapshot()
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].Title)
	assert.Equal(t, "c", items[1].Title)
	assert.Equal(t, []int{2, 2, 2}, st.prunes)
	assert.Equal(t, int64(3), r.Written())
}

func TestRecorder_FillsDefaults(t *testing.T) {
	st := &memStore{}
	r := NewRecorder(st, Options{}, nil)
	r.Record(context.Background(), schema.Activity{Title: schema.ActivityGenerated})
	require.NoError(t, r.Close())

	items := st.snapshot()
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, schema.ToolERDStudio, items[0].Tool)
	assert.False(t, items[0].CreatedAt.IsZero())
	assert.Equal(t, []int{DefaultKeep}, st.prunes)
}

func TestRecorder_NeverBlocks(t *testing.T) {
	st := &memStore{block: make(chan struct{})}
	r := NewRecorder(st, Options{Buffer: 1}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 50 {
			r.Record(context.Background(), schema.Activity{Title: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a stalled store")
	}
	// One entry is held by the writer, at most one more sits in the buffer.
	assert.GreaterOrEqual(t, r.Dropped(), int64(48))

	close(st.block)
	require.NoError(t, r.Close())
	assert.Equal(t, int64(50), r.Dropped()+r.Written())
}

func TestRecorder_AppendFailureSkipsPrune(t *testing.T) {
	st := &memStore{appendErr: errors.New("disk full")}
	r := NewRecorder(st, Options{}, nil)
	r.Record(context.Background(), schema.Activity{Title: "x"})
	require.NoError(t, r.Close())

	assert.Empty(t, st.prunes)
	assert.Zero(t, r.Written())
}

func TestRecorder_RecordAfterClose(t *testing.T) {
	st := &memStore{}
	r := NewRecorder(st, Options{}, nil)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	r.Record(context.Background(), schema.Activity{Title: "late"})
	assert.Equal(t, int64(1), r.Dropped())
	assert.Empty(t, st.snapshot())
}
