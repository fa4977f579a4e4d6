package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a single listing taken from the price source at one size bucket.
type Quote struct {
	Ticker string          `json:"ticker"`
	Mark   decimal.Decimal `json:"mark"`
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
}

// SpreadSnapshot is the per-tick view of the A-B differential.
// MarkSpread drives every alert decision; Directional is only reported.
type SpreadSnapshot struct {
	MarkSpread  float64    `json:"mark_spread"`
	Directional [2]float64 `json:"directional"` // indexed by Direction
	Taken       time.Time  `json:"taken"`
}

// NewSpreadSnapshot derives the spreads for the pair (a, b).
//
// Upper is what selling a against buying b realises (bid a - ask b); Lower is
// buying a against selling b (ask a - bid b).
func NewSpreadSnapshot(a, b Quote, taken time.Time) SpreadSnapshot {
	mark := a.Mark.Sub(b.Mark)
	upper := a.Bid.Sub(b.Ask)
	lower := a.Ask.Sub(b.Bid)

	s := SpreadSnapshot{Taken: taken}
	s.MarkSpread = mark.InexactFloat64()
	s.Directional[Upper] = upper.InexactFloat64()
	s.Directional[Lower] = lower.InexactFloat64()
	return s
}

// DirectionalFor returns the tradable spread reported for d.
func (s SpreadSnapshot) DirectionalFor(d Direction) float64 {
	return s.Directional[d]
}
