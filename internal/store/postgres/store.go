// Package postgres persists gear memory and the alert journal in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"spreadwatch/internal/model"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS gear_memory (
	id         SMALLINT PRIMARY KEY CHECK (id = 1),
	upper_gear DOUBLE PRECISION,
	lower_gear DOUBLE PRECISION,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS gear_alerts (
	id                 TEXT PRIMARY KEY,
	direction          TEXT NOT NULL,
	gear               DOUBLE PRECISION NOT NULL,
	directional_spread DOUBLE PRECISION NOT NULL,
	mark_spread        DOUBLE PRECISION NOT NULL,
	fired_at           TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_gear_alerts_fired_at ON gear_alerts (fired_at DESC);
`

// Store is a PostgreSQL-backed MemoryStore and alert journal.
type Store struct {
	db *sql.DB
}

// New opens a connection pool for dsn, pings it and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	slog.Info("postgres gear store connected", slog.String("component", "store"))
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing pool. The schema is assumed to exist.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
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
		return model.GearMemory{}, fmt.Errorf("postgres load gear memory: %w", err)
	}
	var mem model.GearMemory
	if upper.Valid {
		mem.Upper = model.Gear(upper.Float64)
	}
	if lower.Valid {
		mem.Lower = model.Gear(lower.Float64)
	}
	return mem, nil
}

// Save upserts the memory row.
func (s *Store) Save(ctx context.Context, mem model.GearMemory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gear_memory (id, upper_gear, lower_gear, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			upper_gear = EXCLUDED.upper_gear,
			lower_gear = EXCLUDED.lower_gear,
			updated_at = EXCLUDED.updated_at
	`, nullable(mem.Upper), nullable(mem.Lower), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres save gear memory: %w", err)
	}
	return nil
}

// RecordAlert appends a firing to the journal.
func (s *Store) RecordAlert(ctx context.Context, ev model.AlertEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gear_alerts (id, direction, gear, directional_spread, mark_spread, fired_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, ev.ID, ev.Direction.String(), ev.Gear, ev.DirectionalSpread, ev.MarkSpread, ev.FiredAt.UTC())
	if err != nil {
		return fmt.Errorf("postgres record alert: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit journaled firings, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]model.AlertEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, direction, gear, directional_spread, mark_spread, fired_at
		FROM gear_alerts
		ORDER BY fired_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres query gear_alerts: %w", err)
	}
	defer rows.Close()

	var events []model.AlertEvent
	for rows.Next() {
		var ev model.AlertEvent
		var dir string
		if err := rows.Scan(&ev.ID, &dir, &ev.Gear, &ev.DirectionalSpread, &ev.MarkSpread, &ev.FiredAt); err != nil {
			return nil, fmt.Errorf("postgres scan gear_alerts: %w", err)
		}
		if ev.Direction, err = model.ParseDirection(dir); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Ping checks the pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullable(g *float64) any {
	if g == nil {
		return nil
	}
	return *g
}
