package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/erdstudio/internal/extract"
)

func shopSchema() *extract.Schema {
	return &extract.Schema{Tables: []extract.Table{
		{
			Name: "users",
			Columns: []extract.Column{
				{Name: "id", Type: "INTEGER", PrimaryKey: true},
				{Name: "email", Type: "TEXT", NotNull: true},
			},
		},
		{
			Name: "orders",
			Columns: []extract.Column{
				{Name: "id", Type: "INTEGER", PrimaryKey: true},
				{Name: "user_id", Type: "INTEGER"},
				{Name: "total", Type: "DECIMAL(10, 2)"},
				{Name: "note"},
			},
			ForeignKeys: []extract.ForeignKey{
				{ID: 0, Column: "user_id", RefTable: "users", RefColumn: "id"},
			},
		},
	}}
}

func TestFromSchema(t *testing.T) {
	m := FromSchema(shopSchema())

	require.Len(t, m.Entities, 2)
	users := m.Entity("users")
	require.NotNil(t, users)
	assert.Equal(t, Attribute{Type: "integer", Name: "id", Keys: []string{"PK"}}, users.Attributes[0])
	assert.Equal(t, "not null", users.Attributes[1].Comment)

	orders := m.Entity("orders")
	require.NotNil(t, orders)
	assert.Equal(t, []string{"FK"}, orders.Attributes[1].Keys)
	assert.Equal(t, "decimal(10,_2)", orders.Attributes[2].Type)
	assert.Equal(t, "any", orders.Attributes[3].Type)

	require.Len(t, m.Relationships, 1)
	assert.Equal(t, Relationship{
		From: "users", To: "orders",
		FromCard: ExactlyOne, ToCard: ZeroOrMore,
		Identifying: true, Label: "user",
	}, m.Relationships[0])
}

func TestFromSchema_FormatParses(t *testing.T) {
	out := Format(FromSchema(shopSchema()))
	assert.Contains(t, out, "    users ||--o{ orders : user\n")

	m, err := Parse(out)
	require.NoError(t, err, out)
	assert.Len(t, m.Entities, 2)
	assert.Len(t, m.Relationships, 1)
}

func TestFromSchema_CompositeAndMissingTarget(t *testing.T) {
	s := &extract.Schema{Tables: []extract.Table{{
		Name:    "line",
		Columns: []extract.Column{{Name: "a"}, {Name: "b"}, {Name: "owner"}},
		ForeignKeys: []extract.ForeignKey{
			{ID: 0, Column: "a", RefTable: "pair", RefColumn: "x"},
			{ID: 0, Column: "b", RefTable: "pair", RefColumn: "y"},
			{ID: 1, Column: "owner", RefTable: "people", RefColumn: "id"},
		},
	}}}
	m := FromSchema(s)

	assert.Len(t, m.Relationships, 2)
	assert.NotNil(t, m.Entity("pair"), "referenced table is declared")
	assert.NotNil(t, m.Entity("people"))
}

func TestFromSchema_Nil(t *testing.T) {
	m := FromSchema(nil)
	assert.Empty(t, m.Entities)
	assert.Equal(t, Header+"\n", Format(m))
}

func TestRelationshipLabel(t *testing.T) {
	tests := map[string]string{
		"user_id":   "user",
		"ownerId":   "owner",
		"parentID":  "parent",
		"_id":       "_id",
		"reference": "reference",
		"2nd ref":   "_2nd_ref",
	}
	for in, want := range tests {
		assert.Equal(t, want, relationshipLabel(in), in)
	}
}
