package extract

import (
	"context"
	"fmt"

	"github.com/rendis/erdstudio/internal/interpreter"
)

const (
	columnsQuery     = `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`
	foreignKeysQuery = `SELECT id, seq, "table", "from", "to", on_update, on_delete FROM pragma_foreign_key_list(?) ORDER BY id, seq`
)

func introspectTable(ctx context.Context, db interpreter.Database, t *Table) error {
	cols, err := db.Query(ctx, columnsQuery, t.Name)
	if err != nil {
		return fmt.Errorf("columns of %s: %w", t.Name, err)
	}
	for _, r := range cols {
		t.Columns = append(t.Columns, Column{
			Name:       r.String("name"),
			Type:       r.String("type"),
			NotNull:    r.Int("notnull") != 0,
			PrimaryKey: r.Int("pk") > 0,
			Default:    r.String("dflt_value"),
		})
	}

	fks, err := db.Query(ctx, foreignKeysQuery, t.Name)
	if err != nil {
		return fmt.Errorf("foreign keys of %s: %w", t.Name, err)
	}
	for _, r := range fks {
		t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
			ID:        r.Int("id"),
			Column:    r.String("from"),
			RefTable:  r.String("table"),
			RefColumn: r.String("to"),
			OnUpdate:  r.String("on_update"),
			OnDelete:  r.String("on_delete"),
		})
	}
	return nil
}
