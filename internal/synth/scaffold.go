package synth

import (
	"github.com/rendis/erdstudio/internal/diagram"
	"github.com/rendis/erdstudio/internal/extract"
)

// Scaffold writes diagram source for an introspected schema without calling
// any service: every table becomes an entity and every foreign key a
// one-to-many relationship.
func Scaffold(s *extract.Schema) string {
	return diagram.Format(diagram.FromSchema(s))
}
