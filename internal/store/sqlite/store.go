// Package sqlite persists gear memory and the alert journal in a local
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"spreadwatch/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a single-writer SQLite store.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database with WAL mode and the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite gear store opened", slog.String("component", "store"), slog.String("path", dbPath))
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS gear_memory (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			upper_gear REAL,
			lower_gear REAL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS gear_alerts (
			id                 TEXT    PRIMARY KEY,
			direction          TEXT    NOT NULL,
			gear               REAL    NOT NULL,
			directional_spread REAL    NOT NULL,
			mark_spread        REAL    NOT NULL,
			fired_at           INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_gear_alerts_fired_at ON gear_alerts (fired_at);
	`)
	return err
}

// Load reads the single memory row. No row is an empty memory.
func (s *Store) Load(ctx context.Context) (model.GearMemory, error) {
	var upper, lower sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT upper_gear, lower_gear FROM gear_memory WHERE id = 1`).Scan(&upper, &lower)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GearMemory{}, nil
	}
	if err != nil {
		return model.GearMemory{}, fmt.Errorf("sqlite load gear memory: %w", err)
	}
	return model.GearMemory{Upper: fromNull(upper), Lower: fromNull(lower)}, nil
}

// Save upserts the memory row.
func (s *Store) Save(ctx context.Context, mem model.GearMemory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gear_memory (id, upper_gear, lower_gear, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			upper_gear = excluded.upper_gear,
			lower_gear = excluded.lower_gear,
			updated_at = excluded.updated_at
	`, toNull(mem.Upper), toNull(mem.Lower), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("sqlite save gear memory: %w", err)
	}
	return nil
}

// RecordAlert appends a firing to the journal.
func (s *Store) RecordAlert(ctx context.Context, ev model.AlertEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gear_alerts (id, direction, gear, directional_spread, mark_spread, fired_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.Direction.String(), ev.Gear, ev.DirectionalSpread, ev.MarkSpread, ev.FiredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite record alert: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit journaled firings, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]model.AlertEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, direction, gear, directional_spread, mark_spread, fired_at
		FROM gear_alerts
		ORDER BY fired_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query gear_alerts: %w", err)
	}
	defer rows.Close()

	var events []model.AlertEvent
	for rows.Next() {
		var ev model.AlertEvent
		var dir string
		var firedMs int64
		if err := rows.Scan(&ev.ID, &dir, &ev.Gear, &ev.DirectionalSpread, &ev.MarkSpread, &firedMs); err != nil {
			return nil, fmt.Errorf("sqlite scan gear_alerts: %w", err)
		}
		if ev.Direction, err = model.ParseDirection(dir); err != nil {
			return nil, err
		}
		ev.FiredAt = time.UnixMilli(firedMs).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func toNull(g *float64) sql.NullFloat64 {
	if g == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *g, Valid: true}
}

func fromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return model.Gear(n.Float64)
}
