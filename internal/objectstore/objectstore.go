// Package objectstore abstracts the blob backing that chunk files live on.
// The spec describes the object store only through the interface the core
// consumes (§1); a local filesystem implementation is provided so the
// writer (C4), gateway (C7) and write coordinator (C9) have something
// concrete to exercise in tests.
package objectstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chronocat/chronocat/internal/apperr"
)

// Store puts and retrieves chunk file bytes addressed by a relative path.
type Store interface {
	Put(path string, data []byte) error
	Open(path string) ([]byte, error)
	URL(path string) string
}

// LocalStore implements Store by rooting every path under a local
// directory. It is the default backing used by cmd/writer and cmd/server.
type LocalStore struct {
	Root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root}
}

func (s *LocalStore) resolve(path string) string {
	return filepath.Join(s.Root, filepath.FromSlash(path))
}

func (s *LocalStore) Put(path string, data []byte) error {
	full := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return apperr.Wrap("objectstore.Put", path, fmt.Errorf("%w: %v", apperr.ErrWrite, err))
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return apperr.Wrap("objectstore.Put", path, fmt.Errorf("%w: %v", apperr.ErrWrite, err))
	}
	return nil
}

func (s *LocalStore) Open(path string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap("objectstore.Open", path, apperr.ErrNotFound)
		}
		return nil, apperr.Wrap("objectstore.Open", path, fmt.Errorf("%w: %v", apperr.ErrRead, err))
	}
	return data, nil
}

func (s *LocalStore) URL(path string) string {
	return "file://" + filepath.ToSlash(s.resolve(path))
}

var _ Store = (*LocalStore)(nil)
