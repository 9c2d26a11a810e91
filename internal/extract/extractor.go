// Package extract reads the table catalog out of an SQLite database image.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rendis/erdstudio/internal/interpreter"
	"github.com/rendis/erdstudio/internal/logging"
	"github.com/rendis/erdstudio/pkg/schema"
)

// Mode selects what the extractor emits for each table.
type Mode string

const (
	// ModeNames emits bare table names.
	ModeNames Mode = "names"
	// ModeDDL emits the CREATE TABLE statement of each table.
	ModeDDL Mode = "ddl"
)

// ParseMode parses a mode name; the empty string selects ModeDDL.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeDDL:
		return ModeDDL, nil
	case ModeNames:
		return ModeNames, nil
	}
	return "", schema.NewErrorf(schema.ErrCodeValidation, "unknown extract mode %q", s)
}

// headerMagic opens every SQLite database file. The full header is 100 bytes.
var headerMagic = []byte("SQLite format 3\x00")

const headerSize = 100

const catalogQuery = `SELECT name, sql FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
ORDER BY rowid`

// Extractor turns database bytes into a textual schema. Every call runs
// against a fresh interpreter and a fresh virtual path.
type Extractor struct {
	factory interpreter.Factory
	mode    Mode
	logger  *slog.Logger
}

// NewExtractor creates an Extractor. A nil factory selects the SQLite interpreter.
func NewExtractor(factory interpreter.Factory, mode Mode, logger *slog.Logger) *Extractor {
	if factory == nil {
		factory = interpreter.SQLiteFactory
	}
	if mode == "" {
		mode = ModeDDL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{factory: factory, mode: mode, logger: logger}
}

// Mode returns the configured output mode.
func (e *Extractor) Mode() Mode { return e.mode }

// Extract returns the newline-separated table names or DDL statements.
// The result is never empty on success.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	var out string
	err := e.withDatabase(ctx, data, func(db interpreter.Database) error {
		tables, err := catalog(ctx, db)
		if err != nil {
			return err
		}
		parts := make([]string, 0, len(tables))
		for _, t := range tables {
			if e.mode == ModeNames {
				parts = append(parts, t.Name)
			} else {
				parts = append(parts, t.SQL)
			}
		}
		out = strings.Join(parts, "\n")
		return nil
	})
	if err != nil {
		return "", err
	}

	logging.LogWith(ctx, e.logger).Info("schema extracted",
		"mode", string(e.mode), "bytes", len(data), "chars", len(out))
	return out, nil
}

// Introspect returns the structured catalog: tables, columns and foreign keys.
func (e *Extractor) Introspect(ctx context.Context, data []byte) (*Schema, error) {
	var out *Schema
	err := e.withDatabase(ctx, data, func(db interpreter.Database) error {
		tables, err := catalog(ctx, db)
		if err != nil {
			return err
		}
		for i := range tables {
			if err := introspectTable(ctx, db, &tables[i]); err != nil {
				return err
			}
		}
		out = &Schema{Tables: tables}
		return nil
	})
	return out, err
}

// withDatabase validates the header, loads data into a fresh interpreter and
// runs fn against it. The interpreter is closed on every path.
func (e *Extractor) withDatabase(ctx context.Context, data []byte, fn func(interpreter.Database) error) error {
	if len(data) < headerSize || !bytes.HasPrefix(data, headerMagic) {
		return schema.NewError(schema.ErrCodeExtractionCorrupt, "file is not an SQLite database").
			WithDetails(map[string]any{"bytes": len(data)})
	}

	in, err := e.factory()
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeExtractionCorrupt, "start interpreter: %s", err.Error()).WithCause(err)
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			e.logger.Warn("interpreter close failed", "error", cerr)
		}
	}()

	path := fmt.Sprintf("upload-%s.db", uuid.NewString())
	if err := in.WriteFile(path, data); err != nil {
		return schema.NewErrorf(schema.ErrCodeExtractionCorrupt, "load file: %s", err.Error()).WithCause(err)
	}

	db, err := in.Open(ctx, path)
	if err != nil {
		return corrupt(ctx, err)
	}
	defer db.Close()

	if err := fn(db); err != nil {
		return corrupt(ctx, err)
	}
	return nil
}

// corrupt maps driver failures to EXTRACTION_CORRUPT, passing through
// structured errors and cancellation.
func corrupt(ctx context.Context, err error) error {
	var erdErr *schema.ErdError
	if errors.As(err, &erdErr) {
		return err
	}
	if ctx.Err() != nil {
		return schema.NewError(schema.ErrCodeCancelled, "extraction cancelled").WithCause(ctx.Err())
	}
	return schema.NewErrorf(schema.ErrCodeExtractionCorrupt, "read database: %s", err.Error()).WithCause(err)
}

func catalog(ctx context.Context, db interpreter.Database) ([]Table, error) {
	rows, err := db.Query(ctx, catalogQuery)
	if err != nil {
		return nil, err
	}
	tables := make([]Table, 0, len(rows))
	for _, r := range rows {
		name := r.String("name")
		if name == "" {
			continue
		}
		tables = append(tables, Table{Name: name, SQL: r.String("sql")})
	}
	if len(tables) == 0 {
		return nil, schema.NewError(schema.ErrCodeExtractionEmpty, "database contains no tables")
	}
	return tables, nil
}
