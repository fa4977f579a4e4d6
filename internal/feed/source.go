// Package feed fetches the paired quote that the gear engine evaluates and
// caches it for a short TTL so repeated ticks do not hammer the price source.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"spreadwatch/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const statsPath = "/metadata/stats"

// PriceSource produces one spread snapshot for the pair (tickerA, tickerB).
type PriceSource interface {
	FetchPair(ctx context.Context, tickerA, tickerB string) (model.SpreadSnapshot, error)
}

// HTTPSourceConfig configures the listings client.
type HTTPSourceConfig struct {
	BaseURL string        // e.g. "https://omni-client-api.prod.ap-northeast-1.variational.io"
	Bucket  string        // quote size bucket, e.g. "size_1k"
	Timeout time.Duration // per-call timeout
}

// HTTPSource reads the listings document with a single GET per fetch.
type HTTPSource struct {
	client *resty.Client
	bucket string
	now    func() time.Time
}

// NewHTTPSource creates a listings client. Retries are left to the next tick.
func NewHTTPSource(cfg HTTPSourceConfig) *HTTPSource {
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "size_1k"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &HTTPSource{client: client, bucket: bucket, now: time.Now}
}

type statsResponse struct {
	Listings []listing `json:"listings"`
}

type listing struct {
	Ticker    string               `json:"ticker"`
	MarkPrice decimal.NullDecimal  `json:"mark_price"`
	Quotes    map[string]bookLevel `json:"quotes"`
}

type bookLevel struct {
	Bid decimal.NullDecimal `json:"bid"`
	Ask decimal.NullDecimal `json:"ask"`
}

// FetchPair performs one GET and derives the spreads for tickerA - tickerB.
func (s *HTTPSource) FetchPair(ctx context.Context, tickerA, tickerB string) (model.SpreadSnapshot, error) {
	resp, err := s.client.R().SetContext(ctx).Get(statsPath)
	if err != nil {
		if isTimeout(ctx, err) {
			return model.SpreadSnapshot{}, &FetchError{Kind: KindTimeout, Err: err}
		}
		return model.SpreadSnapshot{}, &FetchError{Kind: KindNetwork, Err: err}
	}
	if resp.IsError() {
		return model.SpreadSnapshot{}, fetchErr(KindStatus, "unexpected status %d", resp.StatusCode())
	}

	var stats statsResponse
	if err := json.Unmarshal(resp.Body(), &stats); err != nil {
		return model.SpreadSnapshot{}, &FetchError{Kind: KindParse, Err: err}
	}

	byTicker := make(map[string]listing, len(stats.Listings))
	for _, l := range stats.Listings {
		byTicker[l.Ticker] = l
	}

	a, err := s.quote(byTicker, tickerA)
	if err != nil {
		return model.SpreadSnapshot{}, err
	}
	b, err := s.quote(byTicker, tickerB)
	if err != nil {
		return model.SpreadSnapshot{}, err
	}

	snap := model.NewSpreadSnapshot(a, b, s.now())
	slog.Debug("fetched pair",
		slog.String("component", "feed"),
		slog.String("a", tickerA), slog.String("b", tickerB),
		slog.Float64("mark_spread", snap.MarkSpread))
	return snap, nil
}

func (s *HTTPSource) quote(byTicker map[string]listing, ticker string) (model.Quote, error) {
	l, ok := byTicker[ticker]
	if !ok {
		return model.Quote{}, fetchErr(KindMissingSymbol, "ticker %s not listed", ticker)
	}
	level, ok := l.Quotes[s.bucket]
	if !ok {
		return model.Quote{}, fetchErr(KindParse, "ticker %s has no %s quote", ticker, s.bucket)
	}
	if !l.MarkPrice.Valid || !level.Bid.Valid || !level.Ask.Valid {
		return model.Quote{}, fetchErr(KindParse, "ticker %s has incomplete prices", ticker)
	}
	return model.Quote{
		Ticker: ticker,
		Mark:   l.MarkPrice.Decimal,
		Bid:    level.Bid.Decimal,
		Ask:    level.Ask.Decimal,
	}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
