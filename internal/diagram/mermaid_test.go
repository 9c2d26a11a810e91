package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_RoundTrip(t *testing.T) {
	sources := []string{
		shopSource,
		"erDiagram\nCUSTOMER ||--o{ ORDER : places\nORDER ||..|{ LINE-ITEM : contains",
		"erDiagram\ndirection RL\n\"order item\"[\"Order Item\"] {\n int qty\n}\nLONELY\n\"order item\" }o--|| LONELY : \"bought by\"",
	}
	for _, src := range sources {
		m1, err := Parse(src)
		require.NoError(t, err)

		out := Format(m1)
		assert.True(t, strings.HasPrefix(out, Header+"\n"))

		m2, err := Parse(out)
		require.NoError(t, err, out)
		assert.Equal(t, stripLines(m1), stripLines(m2))
		assert.Equal(t, out, Format(m2), "Format must be a fixed point")
	}
}

func TestFormat_ShopLayout(t *testing.T) {
	m, err := Parse(shopSource)
	require.NoError(t, err)
	out := Format(m)

	assert.Contains(t, out, "    users {\n        int id PK\n")
	assert.Contains(t, out, `        string email UK "login name"`)
	assert.Contains(t, out, "    users ||--o{ orders : places\n")
	assert.NotContains(t, out, "direction")
}

// stripLines clears source positions so models from different texts compare equal.
func stripLines(m *Model) *Model {
	out := &Model{Direction: m.Direction}
	for _, e := range m.Entities {
		c := *e
		c.Line = 0
		if len(c.Attributes) == 0 {
			c.Attributes = nil
		}
		out.Entities = append(out.Entities, &c)
	}
	for _, r := range m.Relationships {
		r.Line = 0
		out.Relationships = append(out.Relationships, r)
	}
	return out
}
