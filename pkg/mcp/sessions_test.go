package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientBindings_BindAndLookup(t *testing.T) {
	b := NewClientBindings()

	_, ok := b.ClientFor("studio-1")
	assert.False(t, ok)

	b.Bind("studio-1", "client-a")
	cid, ok := b.ClientFor("studio-1")
	assert.True(t, ok)
	assert.Equal(t, "client-a", cid)
}

func TestClientBindings_RebindMovesStudio(t *testing.T) {
	b := NewClientBindings()
	b.Bind("studio-1", "client-a")
	b.Bind("studio-1", "client-b")

	cid, _ := b.ClientFor("studio-1")
	assert.Equal(t, "client-b", cid)
	assert.Empty(t, b.Forget("client-a"), "the old client no longer holds it")
	assert.Equal(t, []string{"studio-1"}, b.Forget("client-b"))
}

func TestClientBindings_Forget(t *testing.T) {
	b := NewClientBindings()
	b.Bind("studio-2", "client-a")
	b.Bind("studio-1", "client-a")
	b.Bind("studio-3", "client-b")

	assert.Equal(t, []string{"studio-1", "studio-2"}, b.Forget("client-a"))

	_, ok := b.ClientFor("studio-1")
	assert.False(t, ok)
	cid, ok := b.ClientFor("studio-3")
	assert.True(t, ok)
	assert.Equal(t, "client-b", cid)

	assert.Empty(t, b.Forget("client-a"))
}

func TestNotificationLevel(t *testing.T) {
	assert.Equal(t, "warning", string(notificationLevel("diagram.render_failed")))
	assert.Equal(t, "info", string(notificationLevel("pipeline.state_changed")))
}
