package extract

// Schema is the structured catalog of a database file.
type Schema struct {
	Tables []Table `json:"tables"`
}

// Table is one user table with its columns and outgoing foreign keys.
type Table struct {
	Name        string       `json:"name"`
	SQL         string       `json:"sql,omitempty"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
}

// Column describes a single table column.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	NotNull    bool   `json:"not_null,omitempty"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
	Default    string `json:"default,omitempty"`
}

// ForeignKey is a single-column reference from a table to another.
// Composite keys appear as several entries sharing the same ID.
type ForeignKey struct {
	ID        int64  `json:"id"`
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column,omitempty"`
	OnUpdate  string `json:"on_update,omitempty"`
	OnDelete  string `json:"on_delete,omitempty"`
}

// Table returns the table with the given name, or nil.
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// Names returns the table names in catalog order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// IsForeignKey reports whether column participates in any foreign key.
func (t *Table) IsForeignKey(column string) bool {
	for _, fk := range t.ForeignKeys {
		if fk.Column == column {
			return true
		}
	}
	return false
}
