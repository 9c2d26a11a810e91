package diagram

import (
	"regexp"
	"strings"

	"github.com/rendis/erdstudio/internal/extract"
)

var typeToken = regexp.MustCompile(`[^\w(),]+`)

// FromSchema builds a Model straight from an introspected catalog: one
// entity per table and one one-to-many relationship per foreign key,
// pointing from the referenced table to the referencing one.
func FromSchema(s *extract.Schema) *Model {
	m := &Model{Direction: DirectionTB}
	if s == nil {
		return m
	}

	for _, t := range s.Tables {
		e := &Entity{Name: t.Name}
		for _, c := range t.Columns {
			e.Attributes = append(e.Attributes, columnAttribute(&t, c))
		}
		m.Entities = append(m.Entities, e)
	}

	for _, t := range s.Tables {
		seen := make(map[int64]bool)
		for _, fk := range t.ForeignKeys {
			// Composite keys share an ID; draw a single edge for them.
			if seen[fk.ID] {
				continue
			}
			seen[fk.ID] = true

			m.ensureEntity(fk.RefTable, 0)
			m.Relationships = append(m.Relationships, Relationship{
				From:        fk.RefTable,
				To:          t.Name,
				FromCard:    ExactlyOne,
				ToCard:      ZeroOrMore,
				Identifying: true,
				Label:       relationshipLabel(fk.Column),
			})
		}
	}
	return m
}

func columnAttribute(t *extract.Table, c extract.Column) Attribute {
	typ := strings.ToLower(typeToken.ReplaceAllString(strings.TrimSpace(c.Type), "_"))
	typ = strings.Trim(typ, "_")
	if typ == "" {
		typ = "any"
	}
	a := Attribute{Type: typ, Name: sanitizeIdent(c.Name)}
	if c.PrimaryKey {
		a.Keys = append(a.Keys, "PK")
	}
	if t.IsForeignKey(c.Name) {
		a.Keys = append(a.Keys, "FK")
	}
	if c.NotNull && !c.PrimaryKey {
		a.Comment = "not null"
	}
	return a
}

// relationshipLabel turns "user_id" into "user".
func relationshipLabel(column string) string {
	label := column
	for _, suffix := range []string{"_id", "Id", "ID"} {
		if s, ok := strings.CutSuffix(label, suffix); ok && s != "" {
			label = s
			break
		}
	}
	return sanitizeIdent(label)
}

func sanitizeIdent(s string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, s)
	if out == "" {
		return "_"
	}
	if c := out[0]; c >= '0' && c <= '9' || c == '-' {
		out = "_" + out
	}
	return out
}
