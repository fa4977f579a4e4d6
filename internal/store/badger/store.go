// Package badger persists gear memory in an embedded Badger database.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"spreadwatch/internal/model"

	badger "github.com/dgraph-io/badger/v4"
)

const memoryKey = "gear:memory"

// Options configures the Badger store.
type Options struct {
	Path     string
	InMemory bool // tests; Path is ignored
}

// Store keeps the encoded GearMemory under a single key.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database.
func Open(opts Options) (*Store, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if strings.TrimSpace(opts.Path) == "" {
			return nil, errors.New("badger store: path is required")
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	db, err := badger.Open(bopts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	slog.Info("badger gear store opened",
		slog.String("component", "store"), slog.String("path", opts.Path), slog.Bool("in_memory", opts.InMemory))
	return &Store{db: db}, nil
}

// Load reads the memory key. A missing key is an empty memory.
func (s *Store) Load(ctx context.Context) (model.GearMemory, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(memoryKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return model.GearMemory{}, fmt.Errorf("badger get %s: %w", memoryKey, err)
	}
	return model.DecodeGearMemory(raw)
}

// Save overwrites the memory key.
func (s *Store) Save(ctx context.Context, mem model.GearMemory) error {
	data, err := model.EncodeGearMemory(mem)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(memoryKey), data)
	})
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
