package interpreter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"sync"

	_ "modernc.org/sqlite"
	"modernc.org/sqlite/vfs"
)

// SQLite is an Interpreter backed by modernc.org/sqlite. Each instance
// registers its own VFS over a private in-memory filesystem, so concurrent
// instances never see each other's files.
type SQLite struct {
	mu      sync.Mutex
	files   *memFS
	vfsName string
	vfs     *vfs.FS
	open    []*sql.DB
	closed  bool
}

// NewSQLite creates an isolated interpreter instance.
func NewSQLite() (*SQLite, error) {
	files := newMemFS()
	name, v, err := vfs.New(files)
	if err != nil {
		return nil, fmt.Errorf("interpreter: register vfs: %w", err)
	}
	return &SQLite{files: files, vfsName: name, vfs: v}, nil
}

// SQLiteFactory is a Factory producing SQLite instances.
func SQLiteFactory() (Interpreter, error) {
	return NewSQLite()
}

// WriteFile implements Interpreter.
func (s *SQLite) WriteFile(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("interpreter: closed")
	}
	return s.files.write(name, data)
}

// Open implements Interpreter. The file is opened through the private VFS,
// which only supports reads.
func (s *SQLite) Open(ctx context.Context, name string) (Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("interpreter: closed")
	}
	if !s.files.exists(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	dsn := fmt.Sprintf("file:%s?vfs=%s", url.PathEscape(name), s.vfsName)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("interpreter: open %s: %w", name, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("interpreter: open %s: %w", name, err)
	}

	s.open = append(s.open, db)
	return NewSQLDatabase(db), nil
}

// Close implements Interpreter. It is safe to call more than once.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, db := range s.open {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.open = nil
	if err := s.vfs.Close(); err != nil {
		errs = append(errs, err)
	}
	s.files.reset()
	return errors.Join(errs...)
}
