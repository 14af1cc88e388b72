// Package cache stores conversation transcripts and short lived API answers
// as files under the cache directory.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Kind is the sub directory a cache keeps its files in.
type Kind string

// Cache kinds.
const (
	TranscriptCache Kind = "conversations"
	CatalogCache    Kind = "catalog"
)

var errInvalidID = errors.New("invalid id")

// store keeps one file per id in a single directory.
type store struct {
	dir string
	ext string
}

func newStore(baseDir string, kind Kind, ext string) (*store, error) {
	dir := filepath.Join(baseDir, string(kind))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &store{dir: dir, ext: ext}, nil
}

func (s *store) path(id string) string {
	return filepath.Join(s.dir, id+s.ext)
}

func (s *store) read(id string, readFn func(io.Reader) error) error {
	if id == "" {
		return fmt.Errorf("read: %w", errInvalidID)
	}
	file, err := os.Open(s.path(id))
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	defer file.Close() //nolint:errcheck

	if err := readFn(file); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return nil
}

// write replaces the file for id once writeFn succeeded, so readers never
// observe a half written file.
func (s *store) write(id string, writeFn func(io.Writer) error) error {
	if id == "" {
		return fmt.Errorf("write: %w", errInvalidID)
	}

	tmp, err := os.CreateTemp(s.dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := writeFn(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(id)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (s *store) delete(id string) error {
	if id == "" {
		return fmt.Errorf("delete: %w", errInvalidID)
	}
	if err := os.Remove(s.path(id)); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}
