package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/erdstudio/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// NewLibSQLStoreFromDB wraps an existing handle. Used with sqlmock in tests.
func NewLibSQLStoreFromDB(db *sql.DB) *LibSQLStore {
	return &LibSQLStore{db: db}
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Activities ---

func (s *LibSQLStore) AppendActivity(ctx context.Context, a *schema.Activity) error {
	if a.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "activity id is required")
	}
	a.CreatedAt = timeOrNow(a.CreatedAt).UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (id, tool, title, description, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Tool, a.Title, a.Description, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *LibSQLStore) GetActivity(ctx context.Context, id string) (*schema.Activity, error) {
	a := &schema.Activity{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tool, title, description, created_at FROM activities WHERE id = ?`, id,
	).Scan(&a.ID, &a.Tool, &a.Title, &a.Description, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("activity", id)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *LibSQLStore) ListActivities(ctx context.Context, filter ActivityFilter) ([]*schema.Activity, error) {
	var where []string
	var args []any

	if filter.Tool != "" {
		where = append(where, "tool = ?")
		args = append(args, filter.Tool)
	}
	if filter.Title != "" {
		where = append(where, "title = ?")
		args = append(args, filter.Title)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := "SELECT id, tool, title, description, created_at FROM activities"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*schema.Activity
	for rows.Next() {
		a := &schema.Activity{}
		if err := rows.Scan(&a.ID, &a.Tool, &a.Title, &a.Description, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) CountActivities(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&n)
	return n, err
}

// PruneActivities keeps the newest keep entries and deletes the rest. It
// returns the number of deleted rows.
func (s *LibSQLStore) PruneActivities(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM activities WHERE id NOT IN (
			SELECT id FROM activities ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune activities: %w", err)
	}
	return res.RowsAffected()
}

func storeNotFound(resource, id string) *schema.ErdError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

var _ Store = (*LibSQLStore)(nil)
