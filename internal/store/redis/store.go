// Package redis persists gear memory in Redis and journals firings to a
// capped list plus a Pub/Sub channel.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"spreadwatch/internal/breaker"
	"spreadwatch/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const journalMaxLen = 1000

// Config configures the Redis store.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	Key      string // memory key; the journal uses Key+":alerts"

	// Breaker, when set, guards writes.
	Breaker *breaker.Breaker
}

// Store keeps GearMemory as a JSON string under one key.
type Store struct {
	client  *goredis.Client
	key     string
	breaker *breaker.Breaker
}

// New creates a Redis store and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(client *goredis.Client, cfg Config) *Store {
	key := cfg.Key
	if key == "" {
		key = "spreadwatch:gears"
	}
	slog.Info("redis gear store ready",
		slog.String("component", "store"), slog.String("addr", cfg.Addr), slog.String("key", key))
	return &Store{client: client, key: key, breaker: cfg.Breaker}
}

// Load reads the memory key. A missing key is an empty memory.
func (s *Store) Load(ctx context.Context) (model.GearMemory, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return model.GearMemory{}, nil
		}
		return model.GearMemory{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return model.DecodeGearMemory(data)
}

// Save overwrites the memory key (no TTL).
func (s *Store) Save(ctx context.Context, mem model.GearMemory) error {
	data, err := model.EncodeGearMemory(mem)
	if err != nil {
		return fmt.Errorf("marshal gear memory: %w", err)
	}
	return s.breaker.Execute(func() error {
		if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
			return fmt.Errorf("redis set %s: %w", s.key, err)
		}
		return nil
	})
}

// RecordAlert pushes the event onto the journal list and publishes it.
func (s *Store) RecordAlert(ctx context.Context, ev model.AlertEvent) error {
	data, err := ev.JSON()
	if err != nil {
		return err
	}
	listKey := s.key + ":alerts"

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, listKey, data)
	pipe.LTrim(ctx, listKey, 0, journalMaxLen-1)
	pipe.Publish(ctx, s.key+":fired", data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis journal: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit journaled events, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]model.AlertEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := s.client.LRange(ctx, s.key+":alerts", 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	events := make([]model.AlertEvent, 0, len(raw))
	for _, r := range raw {
		var ev model.AlertEvent
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			slog.Warn("skipping unreadable journal entry",
				slog.String("component", "store"), slog.Any("error", err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
