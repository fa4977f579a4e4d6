// Package file persists gear memory as a small JSON document on disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"spreadwatch/internal/model"
)

// Store writes the memory document with a tmp-file + rename so a crash
// mid-write leaves the previous document intact.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store rooted at path. The parent directory is created on
// first Save.
func New(path string) *Store {
	slog.Info("file gear store ready", slog.String("component", "store"), slog.String("path", path))
	return &Store{path: path}
}

// Load reads the document. A missing or empty file is an empty memory.
func (s *Store) Load(ctx context.Context) (model.GearMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.GearMemory{}, nil
		}
		return model.GearMemory{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	return model.DecodeGearMemory(b)
}

// Save replaces the document.
func (s *Store) Save(ctx context.Context, mem model.GearMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	b, err := model.EncodeGearMemory(mem)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := writeSynced(tmp, b); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	syncDir(filepath.Dir(s.path))
	return nil
}

// syncFile is swapped in tests.
var syncFile = (*os.File).Sync

// writeSynced writes data to path and flushes it to stable storage before
// returning, so a later rename never exposes an empty document.
func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := syncFile(f); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// syncDir persists the rename. Some filesystems refuse directory fsync; the
// document itself is already durable then.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
