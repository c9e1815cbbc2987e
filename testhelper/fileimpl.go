// Package testhelper provides fakes for exercising code that depends on
// backend.Storage without touching a real file: MemStorage, an in-memory
// disk, and Ext2Fixture, a hand-built ext2 image on top of it.
package testhelper

import (
	"io/fs"
	"os"

	"ext2fsck/backend"
)

// MemStorage is a backend.Storage backed by an in-memory byte slice. Unlike
// FileImpl it owns its bytes directly rather than delegating to injected
// closures, which is what the fixture images the check and filesystem
// packages test against need: a disk they can both read and write.
type MemStorage struct {
	Data []byte
}

// NewMemStorage returns a MemStorage of the given size, zero-filled.
func NewMemStorage(size int) *MemStorage {
	return &MemStorage{Data: make([]byte, size)}
}

var (
	_ backend.Storage     = (*MemStorage)(nil)
	_ backend.WritableFile = (*MemStorage)(nil)
)

func (m *MemStorage) Stat() (fs.FileInfo, error) { return nil, nil }

func (m *MemStorage) Read(b []byte) (int, error) {
	return m.ReadAt(b, 0)
}

func (m *MemStorage) Close() error { return nil }

func (m *MemStorage) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.Data[off:])
	return n, nil
}

func (m *MemStorage) WriteAt(p []byte, off int64) (int, error) {
	n := copy(m.Data[off:], p)
	return n, nil
}

func (m *MemStorage) Seek(offset int64, whence int) (int64, error) {
	return offset, nil
}

func (m *MemStorage) Sys() (*os.File, error) {
	return nil, backend.ErrNotSuitable
}

func (m *MemStorage) Writable() (backend.WritableFile, error) {
	return m, nil
}
