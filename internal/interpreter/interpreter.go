// Package interpreter exposes an embedded relational-database engine through
// a small write-bytes / open / query triad over a private in-memory filesystem.
package interpreter

import (
	"context"
	"database/sql"
	"fmt"
)

// Row is one result row keyed by column name.
type Row map[string]any

// String returns the column value as a string. NULL and missing columns yield "".
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the column value as an int64. Non-numeric values yield 0.
func (r Row) Int(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// Database is an opened virtual database file.
type Database interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	Close() error
}

// Interpreter is one isolated engine instance with its own virtual filesystem.
type Interpreter interface {
	// WriteFile stores data under name in the private filesystem.
	WriteFile(name string, data []byte) error
	// Open opens a previously written file as a read-only database.
	Open(ctx context.Context, name string) (Database, error)
	// Close releases the filesystem and every database opened from it.
	Close() error
}

// Factory creates a fresh interpreter instance.
type Factory func() (Interpreter, error)

// sqlDatabase adapts a *sql.DB to Database.
type sqlDatabase struct {
	db *sql.DB
}

// NewSQLDatabase wraps any database/sql handle as a Database.
func NewSQLDatabase(db *sql.DB) Database {
	return &sqlDatabase{db: db}
}

func (d *sqlDatabase) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *sqlDatabase) Close() error {
	return d.db.Close()
}
