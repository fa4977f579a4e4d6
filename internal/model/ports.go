package model

import (
	"context"
	"errors"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the gear engine from concrete storage
// implementations (JSON file, SQLite, Redis, Badger, Postgres).

// ErrCorruptMemory marks stored gear memory that could not be decoded.
// Load still returns an empty GearMemory alongside it.
var ErrCorruptMemory = errors.New("gear memory corrupt")

// MemoryStore is the durable key/value sink for GearMemory.
type MemoryStore interface {
	// Load returns the persisted memory. An absent record yields an empty
	// GearMemory and nil error; a corrupt one yields an empty GearMemory and
	// an error wrapping ErrCorruptMemory.
	Load(ctx context.Context) (GearMemory, error)

	// Save replaces the persisted memory (both fields).
	Save(ctx context.Context, mem GearMemory) error

	// Close releases underlying resources.
	Close() error
}

// AlertJournal appends confirmed firings to an audit log.
// Optional: only some MemoryStore backends implement it.
type AlertJournal interface {
	RecordAlert(ctx context.Context, ev AlertEvent) error
}

// AlertHistory lists journaled firings, newest first.
type AlertHistory interface {
	RecentAlerts(ctx context.Context, limit int) ([]AlertEvent, error)
}
