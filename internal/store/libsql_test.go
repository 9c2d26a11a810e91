package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/erdstudio/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

func seedActivity(t *testing.T, s *LibSQLStore, title string, at time.Time) *schema.Activity {
	t.Helper()
	a := &schema.Activity{
		ID:          uuid.New().String(),
		Tool:        schema.ToolERDStudio,
		Title:       title,
		Description: "Diagram visualized for shop.db",
		CreatedAt:   at,
	}
	require.NoError(t, s.AppendActivity(context.Background(), a))
	return a
}

func TestAppendAndGetActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	a := seedActivity(t, s, schema.ActivityGenerated, now)

	got, err := s.GetActivity(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, schema.ToolERDStudio, got.Tool)
	assert.Equal(t, schema.ActivityGenerated, got.Title)
	assert.Equal(t, "Diagram visualized for shop.db", got.Description)
	assert.True(t, now.Equal(got.CreatedAt), "want %v got %v", now, got.CreatedAt)
}

func TestAppendActivity_DefaultsTimestamp(t *testing.T) {
	s := newTestStore(t)
	a := &schema.Activity{ID: uuid.New().String(), Tool: schema.ToolERDStudio, Title: schema.ActivityExported}
	require.NoError(t, s.AppendActivity(context.Background(), a))
	assert.False(t, a.CreatedAt.IsZero())
}

func TestAppendActivity_RequiresID(t *testing.T) {
	s := newTestStore(t)
	err := s.AppendActivity(context.Background(), &schema.Activity{Title: "x"})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestAppendActivity_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	a := seedActivity(t, s, schema.ActivityGenerated, time.Now())
	err := s.AppendActivity(context.Background(), &schema.Activity{ID: a.ID, Title: "again"})
	assert.Error(t, err)
}

func TestGetActivity_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetActivity(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestListActivities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	first := seedActivity(t, s, schema.ActivityGenerated, base)
	second := seedActivity(t, s, schema.ActivityExported, base.Add(time.Minute))
	third := seedActivity(t, s, schema.ActivityExported, base.Add(2*time.Minute))

	all, err := s.ListActivities(ctx, ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	exported, err := s.ListActivities(ctx, ActivityFilter{Title: schema.ActivityExported})
	require.NoError(t, err)
	assert.Len(t, exported, 2)

	since := base.Add(30 * time.Second)
	recent, err := s.ListActivities(ctx, ActivityFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	page, err := s.ListActivities(ctx, ActivityFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)

	none, err := s.ListActivities(ctx, ActivityFilter{Tool: "OTHER"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListActivities_SameTimestampNewestInsertFirst(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := seedActivity(t, s, schema.ActivityGenerated, at)
	b := seedActivity(t, s, schema.ActivityExported, at)

	list, err := s.ListActivities(context.Background(), ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
}

func TestPruneActivities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := range 5 {
		ids = append(ids, seedActivity(t, s, schema.ActivityExported, base.Add(time.Duration(i)*time.Minute)).ID)
	}

	n, err := s.PruneActivities(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := s.CountActivities(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	_, err = s.GetActivity(ctx, ids[0])
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
	_, err = s.GetActivity(ctx, ids[4])
	assert.NoError(t, err)

	n, err = s.PruneActivities(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.PruneActivities(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPruneActivities_ExecFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM activities").WithArgs(20).WillReturnError(errors.New("disk I/O error"))

	s := NewLibSQLStoreFromDB(db)
	_, err = s.PruneActivities(context.Background(), 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prune activities")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	// Migrate was already called in newTestStore; calling again should be a no-op.
	require.NoError(t, s.Migrate(ctx))

	var version int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version))
	assert.Equal(t, len(migrations), version)
}

func TestVacuum(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Vacuum(context.Background()))
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (x INT);\n\n-- only a comment\n;CREATE INDEX i ON a(x);")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.Equal(t, "CREATE INDEX i ON a(x)", stmts[1])
}

func TestLoadMigrations(t *testing.T) {
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "activities", migrations[0].Name)
	assert.Equal(t, "activity_tool_index", migrations[1].Name)

	_, err := loadMigrations(fstest.MapFS{
		"migrations/001_a.sql": {Data: []byte("SELECT 1;")},
		"migrations/003_c.sql": {Data: []byte("SELECT 1;")},
	})
	assert.ErrorContains(t, err, "expected version 2")

	_, err = loadMigrations(fstest.MapFS{"migrations/first.sql": {Data: []byte("SELECT 1;")}})
	assert.ErrorContains(t, err, "NNN_name.sql")
}
