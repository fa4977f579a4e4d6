package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Pinger is a dependency whose liveness can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus represents the monitor health.
type HealthStatus struct {
	mu sync.RWMutex

	StoreBackend   string    `json:"store_backend"`
	StoreOK        bool      `json:"store_ok"`
	StoreLatencyMs float64   `json:"store_latency_ms"`
	LastTickTime   time.Time `json:"last_tick_time"`
	LastFetchOK    bool      `json:"last_fetch_ok"`
	LastFetchError string    `json:"last_fetch_error,omitempty"`
	BreakerState   string    `json:"breaker_state"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`

	// StaleAfter marks the monitor degraded when no tick landed within it.
	StaleAfter time.Duration `json:"-"`

	feedAge func() (time.Duration, bool)

	now func() time.Time
}

// NewHealthStatus returns a health status for the given store backend.
// Stores without a Pinger are assumed healthy.
func NewHealthStatus(backend string, staleAfter time.Duration) *HealthStatus {
	return &HealthStatus{
		StoreBackend: backend,
		StoreOK:      true,
		BreakerState: "closed",
		StaleAfter:   staleAfter,
		StartedAt:    time.Now(),
		now:          time.Now,
	}
}

// RecordTick notes a completed tick and the outcome of its fetch.
func (h *HealthStatus) RecordTick(t time.Time, fetchErr error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastTickTime = t
	h.LastFetchOK = fetchErr == nil
	if fetchErr != nil {
		h.LastFetchError = fetchErr.Error()
	} else {
		h.LastFetchError = ""
	}
}

// SetFeedAgeSource reports the age of the cached price snapshot in /healthz.
// feed.Cache.Age matches it.
func (h *HealthStatus) SetFeedAgeSource(fn func() (time.Duration, bool)) {
	h.mu.Lock()
	h.feedAge = fn
	h.mu.Unlock()
}

// SetBreakerState records the feed breaker state name.
func (h *HealthStatus) SetBreakerState(s string) {
	h.mu.Lock()
	h.BreakerState = s
	h.mu.Unlock()
}

// CheckStore pings the store and records latency + health.
func (h *HealthStatus) CheckStore(ctx context.Context, p Pinger) {
	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.StoreOK = err == nil
	h.StoreLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = h.now()
	h.mu.Unlock()
}

// StartLivenessChecker pings the store periodically until ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, p Pinger, interval time.Duration) {
	if p == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				h.CheckStore(pingCtx, p)
				cancel()
			}
		}
	}()
}

// HealthReport is the /healthz body.
type HealthReport struct {
	Status         string  `json:"status"`
	Uptime         string  `json:"uptime"`
	LastTickTime   string  `json:"last_tick_time"`
	TickAge        string  `json:"tick_age"`
	FeedAge        string  `json:"feed_age,omitempty"`
	LastFetchOK    bool    `json:"last_fetch_ok"`
	LastFetchError string  `json:"last_fetch_error,omitempty"`
	BreakerState   string  `json:"breaker_state"`
	StoreBackend   string  `json:"store_backend"`
	StoreOK        bool    `json:"store_ok"`
	StoreLatencyMs float64 `json:"store_latency_ms"`
	LastCheckAt    string  `json:"last_check_at"`
}

// Report evaluates the overall status and the HTTP code to serve it with.
// A failing store is unhealthy; a failing or stale feed is degraded.
func (h *HealthStatus) Report() (HealthReport, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	status := "healthy"
	code := http.StatusOK

	stale := h.StaleAfter > 0 && !h.LastTickTime.IsZero() && now.Sub(h.LastTickTime) > h.StaleAfter
	if (!h.LastTickTime.IsZero() && !h.LastFetchOK) || stale {
		status = "degraded"
	}
	if !h.StoreOK {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	tickAge := ""
	lastTick := ""
	if !h.LastTickTime.IsZero() {
		tickAge = now.Sub(h.LastTickTime).Round(time.Millisecond).String()
		lastTick = h.LastTickTime.Format(time.RFC3339)
	}
	feedAge := ""
	if h.feedAge != nil {
		if age, ok := h.feedAge(); ok {
			feedAge = age.Round(time.Millisecond).String()
		}
	}
	lastCheck := ""
	if !h.LastCheckAt.IsZero() {
		lastCheck = h.LastCheckAt.Format(time.RFC3339)
	}

	return HealthReport{
		Status:         status,
		Uptime:         now.Sub(h.StartedAt).Round(time.Second).String(),
		LastTickTime:   lastTick,
		TickAge:        tickAge,
		FeedAge:        feedAge,
		LastFetchOK:    h.LastFetchOK,
		LastFetchError: h.LastFetchError,
		BreakerState:   h.BreakerState,
		StoreBackend:   h.StoreBackend,
		StoreOK:        h.StoreOK,
		StoreLatencyMs: h.StoreLatencyMs,
		LastCheckAt:    lastCheck,
	}, code
}
