package interpreter

import (
	"bytes"
	"io/fs"
	"sync"
	"time"
)

// memFS is a flat, in-memory fs.FS. Files are immutable once written.
type memFS struct {
	mu    sync.RWMutex
	files map[string][]byte
	mod   map[string]time.Time
}

func newMemFS() *memFS {
	return &memFS{files: make(map[string][]byte), mod: make(map[string]time.Time)}
}

func (m *memFS) write(name string, data []byte) error {
	if !fs.ValidPath(name) || name == "." {
		return &fs.PathError{Op: "write", Path: name, Err: fs.ErrInvalid}
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = buf
	m.mod[name] = time.Now()
	return nil
}

func (m *memFS) exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[name]
	return ok
}

func (m *memFS) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = make(map[string][]byte)
	m.mod = make(map[string]time.Time)
}

// Open implements fs.FS.
func (m *memFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	m.mu.RLock()
	data, ok := m.files[name]
	mod := m.mod[name]
	m.mu.RUnlock()
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &memFile{
		Reader: bytes.NewReader(data),
		info:   memFileInfo{name: name, size: int64(len(data)), mod: mod},
	}, nil
}

// memFile satisfies fs.File, io.ReaderAt and io.Seeker through the embedded reader.
type memFile struct {
	*bytes.Reader
	info memFileInfo
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *memFile) Close() error               { return nil }

type memFileInfo struct {
	name string
	size int64
	mod  time.Time
}

func (i memFileInfo) Name() string       { return i.name }
func (i memFileInfo) Size() int64        { return i.size }
func (i memFileInfo) Mode() fs.FileMode  { return 0o444 }
func (i memFileInfo) ModTime() time.Time { return i.mod }
func (i memFileInfo) IsDir() bool        { return false }
func (i memFileInfo) Sys() any           { return nil }
