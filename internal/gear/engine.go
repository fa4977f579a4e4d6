// Package gear implements the spread gear hysteresis engine.
//
// Each side (upper, lower) fires at most once per gear step. A firing needs
// three gates in order: the mark spread is inside the side's zone, its gear is
// at least one step beyond the side's last fired gear (or the side has no
// memory), and that same gear has been observed continuously for the dwell
// duration. A confirmed firing forgets the opposite side's memory, is
// persisted, and only then delivered.
package gear

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"spreadwatch/internal/logger"
	"spreadwatch/internal/model"
	"spreadwatch/internal/notification"

	"github.com/google/uuid"
)

// DirectionState is the mutable per-side state.
// PendingGear is set iff PendingSince is non-zero.
type DirectionState struct {
	LastFired    *float64  `json:"last_fired"`
	PendingGear  *float64  `json:"pending_gear"`
	PendingSince time.Time `json:"pending_since"`
}

func (s DirectionState) clone() DirectionState {
	out := DirectionState{PendingSince: s.PendingSince}
	if s.LastFired != nil {
		out.LastFired = model.Gear(*s.LastFired)
	}
	if s.PendingGear != nil {
		out.PendingGear = model.Gear(*s.PendingGear)
	}
	return out
}

func (s *DirectionState) clearPending() {
	s.PendingGear = nil
	s.PendingSince = time.Time{}
}

// Outcome describes one confirmed firing. PersistErr and DeliverErr are
// non-fatal: the firing stands regardless.
type Outcome struct {
	Event      model.AlertEvent
	PersistErr error
	DeliverErr error
}

// Snapshot is a copy of the engine state for status reporting.
type Snapshot struct {
	Upper  DirectionState   `json:"upper"`
	Lower  DirectionState   `json:"lower"`
	Memory model.GearMemory `json:"memory"`
}

// Engine owns both DirectionStates. Evaluate holds the engine lock for the
// whole tick, so gate and dwell logic for a side always runs as one unit.
type Engine struct {
	cfg   Config
	store model.MemoryStore
	sink  notification.Notifier
	log   *slog.Logger
	newID func() string

	mu     sync.Mutex
	states [2]DirectionState
}

// New validates cfg and restores memory from store. An unreadable record is
// logged and treated as no memory.
func New(ctx context.Context, cfg Config, store model.MemoryStore, sink notification.Notifier, log *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		cfg:   cfg,
		store: store,
		sink:  sink,
		log:   log.With(slog.String("component", "gear")),
		newID: uuid.NewString,
	}

	mem, err := store.Load(ctx)
	if err != nil {
		e.log.Warn("gear memory unreadable, starting without memory", slog.Any("error", err))
		mem = model.GearMemory{}
	}
	for _, d := range model.Directions {
		e.states[d].LastFired = mem.Get(d)
	}
	e.log.Info("gear memory restored",
		slog.Any("upper", mem.Upper), slog.Any("lower", mem.Lower))
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Evaluate runs the upper side, then the lower side, against snap.
// It returns one Outcome per side that fired on this tick.
func (e *Engine) Evaluate(ctx context.Context, snap model.SpreadSnapshot, now time.Time) []Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	var outcomes []Outcome
	for _, d := range model.Directions {
		if out, fired := e.evaluate(ctx, d, snap, now); fired {
			outcomes = append(outcomes, out)
		}
	}
	return outcomes
}

func (e *Engine) evaluate(ctx context.Context, d model.Direction, snap model.SpreadSnapshot, now time.Time) (Outcome, bool) {
	st := &e.states[d]
	mark := snap.MarkSpread
	attrs := append(logger.LogWithTrace(ctx), slog.String("direction", d.String()))

	// 1. zone
	if !e.inZone(d, mark) {
		if st.PendingGear != nil {
			e.log.Info("left zone, debounce aborted",
				append(attrs, slog.Float64("pending_gear", *st.PendingGear), slog.Float64("mark", mark))...)
		}
		st.clearPending()
		return Outcome{}, false
	}

	// 2. gear
	g := Quantize(mark, e.cfg.GearStep)

	// 3. step gate
	if st.LastFired != nil && !advancedBy(g, *st.LastFired, e.cfg.GearStep, d == model.Upper) {
		return Outcome{}, false
	}

	// 4. debounce start / restart
	if st.PendingGear == nil || *st.PendingGear != g {
		st.PendingGear = model.Gear(g)
		st.PendingSince = now
		e.log.Info("gear pending", append(attrs, slog.Float64("gear", g), slog.Float64("mark", mark))...)
	}

	// 5. dwell
	if now.Sub(st.PendingSince) < e.cfg.Dwell {
		return Outcome{}, false
	}

	st.LastFired = model.Gear(g)
	e.states[d.Opposite()].LastFired = nil
	st.clearPending()

	out := Outcome{Event: model.AlertEvent{
		ID:                e.newID(),
		Direction:         d,
		Gear:              g,
		DirectionalSpread: snap.DirectionalFor(d),
		MarkSpread:        mark,
		FiredAt:           now,
	}}

	if err := e.store.Save(ctx, e.memoryLocked()); err != nil {
		out.PersistErr = err
		e.log.Warn("gear memory not persisted", append(attrs, slog.Any("error", err))...)
	}

	title, body := FormatMessage(e.cfg, out.Event)
	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.SendTimeout)
	defer cancel()
	if err := e.sink.Send(sendCtx, notification.Alert{
		Level:   notification.AlertWarning,
		Title:   title,
		Message: body,
		Event:   &out.Event,
	}); err != nil {
		out.DeliverErr = err
		e.log.Error("alert delivery failed", append(attrs, slog.Any("error", err))...)
	}

	e.log.Info("gear fired", append(attrs,
		slog.Float64("gear", g),
		slog.Float64("mark", mark),
		slog.Float64("directional", out.Event.DirectionalSpread))...)
	return out, true
}

func (e *Engine) inZone(d model.Direction, mark float64) bool {
	if d == model.Upper {
		return mark >= e.cfg.UpperThreshold
	}
	return mark <= e.cfg.LowerThreshold
}

// State returns a copy of both sides and the memory they project.
func (e *Engine) State() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Upper:  e.states[model.Upper].clone(),
		Lower:  e.states[model.Lower].clone(),
		Memory: e.memoryLocked(),
	}
}

func (e *Engine) memoryLocked() model.GearMemory {
	var m model.GearMemory
	for _, d := range model.Directions {
		m.Set(d, e.states[d].LastFired)
	}
	return m
}
