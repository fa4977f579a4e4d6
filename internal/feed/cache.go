package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"spreadwatch/internal/breaker"
	"spreadwatch/internal/model"
)

// CacheConfig configures a Cache.
type CacheConfig struct {
	TickerA string
	TickerB string
	TTL     time.Duration // zero or less means the 5s default

	// Breaker, when set, guards the source. An open breaker is reported as a
	// FetchError of kind KindCircuitOpen.
	Breaker *breaker.Breaker
}

// Cache holds the most recently fetched snapshot and re-fetches only when it
// is older than the TTL. A failed fetch never replaces the cached copy and is
// never papered over with it.
type Cache struct {
	src     PriceSource
	tickerA string
	tickerB string
	ttl     time.Duration
	breaker *breaker.Breaker
	now     func() time.Time

	// Observe, when set, is called after every real fetch (not cache hits).
	Observe func(elapsed time.Duration, err error)

	mu        sync.Mutex
	snap      model.SpreadSnapshot
	fetchedAt time.Time
	filled    bool
}

// NewCache wraps src.
func NewCache(src PriceSource, cfg CacheConfig) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Cache{
		src:     src,
		tickerA: cfg.TickerA,
		tickerB: cfg.TickerB,
		ttl:     ttl,
		breaker: cfg.Breaker,
		now:     time.Now,
	}
}

// Get returns the cached snapshot while it is fresh, otherwise fetches.
func (c *Cache) Get(ctx context.Context) (model.SpreadSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.filled && now.Sub(c.fetchedAt) < c.ttl {
		return c.snap, nil
	}

	var snap model.SpreadSnapshot
	start := time.Now()
	err := c.breaker.Execute(func() error {
		var ferr error
		snap, ferr = c.src.FetchPair(ctx, c.tickerA, c.tickerB)
		return ferr
	})
	if errors.Is(err, breaker.ErrOpen) {
		err = &FetchError{Kind: KindCircuitOpen, Err: err}
	}
	if c.Observe != nil {
		c.Observe(time.Since(start), err)
	}
	if err != nil {
		return model.SpreadSnapshot{}, err
	}

	c.snap = snap
	c.fetchedAt = now
	c.filled = true
	return snap, nil
}

// Age returns how old the cached snapshot is, and false if nothing is cached.
func (c *Cache) Age() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.filled {
		return 0, false
	}
	return c.now().Sub(c.fetchedAt), true
}
