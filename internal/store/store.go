// Package store selects and opens the configured gear memory backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spreadwatch/internal/breaker"
	"spreadwatch/internal/model"
	"spreadwatch/internal/store/badger"
	"spreadwatch/internal/store/file"
	"spreadwatch/internal/store/postgres"
	"spreadwatch/internal/store/redis"
	"spreadwatch/internal/store/sqlite"
)

// ErrUnknownBackend is returned by Open for an unrecognised backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Config selects a backend and carries the settings for each.
type Config struct {
	Backend string

	StatePath  string // file
	SQLitePath string // sqlite
	BadgerPath string // badger

	RedisAddr     string
	RedisPassword string
	RedisKey      string
	RedisBreaker  *breaker.Breaker

	DatabaseURL string // postgres
}

// Pinger is implemented by networked backends for health reporting.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config) (model.MemoryStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendFile:
		return file.New(cfg.StatePath), nil
	case BackendSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendRedis:
		s, err := redis.New(redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Key:      cfg.RedisKey,
			Breaker:  cfg.RedisBreaker,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendBadger:
		s, err := badger.Open(badger.Options{Path: cfg.BadgerPath})
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("postgres store: DATABASE_URL is required")
		}
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Validate reports configuration problems without opening anything.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case "", BackendFile:
		if c.StatePath == "" {
			return errors.New("STATE_PATH is required for the file store")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis store")
		}
	case BackendBadger:
		if c.BadgerPath == "" {
			return errors.New("BADGER_PATH is required for the badger store")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	return nil
}
