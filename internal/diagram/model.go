package diagram

// Cardinality is one end of a crow's-foot relationship.
type Cardinality string

const (
	ZeroOrOne  Cardinality = "zero-or-one"
	ExactlyOne Cardinality = "exactly-one"
	ZeroOrMore Cardinality = "zero-or-more"
	OneOrMore  Cardinality = "one-or-more"
)

// Direction is the layout flow of the diagram.
type Direction string

const (
	DirectionTB Direction = "TB"
	DirectionBT Direction = "BT"
	DirectionLR Direction = "LR"
	DirectionRL Direction = "RL"
)

// Model is the parsed form of an erDiagram source, shared by every renderer.
type Model struct {
	Direction     Direction
	Entities      []*Entity
	Relationships []Relationship
}

// Entity is a table-like box with optional attributes.
type Entity struct {
	Name       string
	Alias      string
	Attributes []Attribute
	Line       int
}

// Attribute is one row inside an entity block.
type Attribute struct {
	Type    string
	Name    string
	Keys    []string // PK, FK, UK
	Comment string
}

// Relationship connects two entities with a cardinality at each end.
type Relationship struct {
	From        string
	To          string
	FromCard    Cardinality
	ToCard      Cardinality
	Identifying bool
	Label       string
	Line        int
}

// Entity returns the entity with the given name, or nil.
func (m *Model) Entity(name string) *Entity {
	for _, e := range m.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// ensureEntity returns the named entity, declaring it on first use.
func (m *Model) ensureEntity(name string, line int) *Entity {
	if e := m.Entity(name); e != nil {
		return e
	}
	e := &Entity{Name: name, Line: line}
	m.Entities = append(m.Entities, e)
	return e
}

// Label is the display name of an entity.
func (e *Entity) Label() string {
	if e.Alias != "" {
		return e.Alias
	}
	return e.Name
}
