package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/erdstudio/internal/diagram"
	"github.com/rendis/erdstudio/internal/export"
	"github.com/rendis/erdstudio/internal/synth"
	"github.com/rendis/erdstudio/pkg/schema"
)

func testFactory(created *[]string) Factory {
	return func(id string) (*Controller, error) {
		*created = append(*created, id)
		return New(Options{
			SessionID: id,
			Extractor: extractFunc(func(context.Context, []byte) (string, error) { return "users", nil }),
			Synthesizer: synthFunc(func(context.Context, string, synth.Mode) (string, error) {
				return shopDiagram, nil
			}),
			Renderer: diagram.NewRenderer(nil),
			Exporter: export.NewExporter(export.Options{}, nil),
		})
	}
}

func TestRegistry_GetCreatesOnce(t *testing.T) {
	var created []string
	r := NewRegistry(testFactory(&created), 0)

	a, err := r.Get("alpha")
	require.NoError(t, err)
	again, err := r.Get("alpha")
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Equal(t, "alpha", a.SessionID())
	assert.Equal(t, []string{"alpha"}, created)
	assert.Equal(t, 1, r.Len())

	_, err = r.Get("")
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestRegistry_Lookup(t *testing.T) {
	var created []string
	r := NewRegistry(testFactory(&created), 0)

	_, ok := r.Lookup("ghost")
	assert.False(t, ok)
	assert.Empty(t, created)

	_, _ = r.Get("alpha")
	_, ok = r.Lookup("alpha")
	assert.True(t, ok)
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	var created []string
	r := NewRegistry(testFactory(&created), 0)
	ctx := context.Background()

	a, _ := r.Get("a")
	b, _ := r.Get("b")
	require.NoError(t, a.Submit(ctx, schema.NewTextSource("a shop")))

	assert.Equal(t, schema.PhaseReady, a.Status().Phase)
	assert.Equal(t, schema.PhaseIdle, b.Status().Phase)
}

func TestRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	var created []string
	r := NewRegistry(testFactory(&created), 2)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	_, _ = r.Get("a")
	_, _ = r.Get("b")
	_, _ = r.Get("a") // b is now the oldest
	_, _ = r.Get("c")

	assert.Equal(t, 2, r.Len())
	_, ok := r.Lookup("b")
	assert.False(t, ok)
	_, ok = r.Lookup("a")
	assert.True(t, ok)
}

func TestRegistry_RemoveResets(t *testing.T) {
	var created []string
	r := NewRegistry(testFactory(&created), 0)
	ctx := context.Background()

	a, _ := r.Get("a")
	require.NoError(t, a.Submit(ctx, schema.NewTextSource("a shop")))

	assert.True(t, r.Remove(ctx, "a"))
	assert.False(t, r.Remove(ctx, "a"))
	assert.Equal(t, schema.PhaseIdle, a.Status().Phase)
	assert.Zero(t, r.Len())
}

func TestRegistry_FactoryError(t *testing.T) {
	r := NewRegistry(func(string) (*Controller, error) { return nil, errors.New("boom") }, 0)
	_, err := r.Get("a")
	assert.EqualError(t, err, "boom")
	assert.Zero(t, r.Len())
}

func TestRegistry_Close(t *testing.T) {
	var created []string
	r := NewRegistry(testFactory(&created), 0)
	_, _ = r.Get("a")
	_, _ = r.Get("b")
	r.Close(context.Background())
	assert.Zero(t, r.Len())
}
