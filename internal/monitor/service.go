// Package monitor drives the poll loop: fetch a spread snapshot, run the gear
// engine, and record what happened.
package monitor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"spreadwatch/internal/feed"
	"spreadwatch/internal/gear"
	"spreadwatch/internal/logger"
	"spreadwatch/internal/metrics"
	"spreadwatch/internal/model"
	"spreadwatch/internal/ringbuf"
)

// SnapshotSource yields the current spread snapshot. *feed.Cache implements it.
type SnapshotSource interface {
	Get(ctx context.Context) (model.SpreadSnapshot, error)
}

// Options configures a Service. Journal, Metrics and Health are optional.
type Options struct {
	Interval  time.Duration
	MaxChecks int // stop after this many ticks; 0 runs until ctx is done

	// HistorySize bounds the recent-sample window served by Status. Default 64.
	HistorySize int

	Journal model.AlertJournal
	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus
	Logger  *slog.Logger
}

// Service runs ticks one at a time on a single goroutine, so ticks never
// overlap.
type Service struct {
	src    SnapshotSource
	engine *gear.Engine
	opts   Options
	log    *slog.Logger
	now    func() time.Time

	ticks  atomic.Int64
	recent *ringbuf.Ring[model.SpreadSnapshot]
}

// Status is the /status body.
type Status struct {
	Ticks  int64                  `json:"ticks"`
	Engine gear.Snapshot          `json:"engine"`
	Window Window                 `json:"window"`
	Recent []model.SpreadSnapshot `json:"recent"`
}

// Window describes the recent-snapshot ring.
type Window struct {
	Len     int    `json:"len"`
	Cap     int    `json:"cap"`
	Evicted uint64 `json:"evicted"`
}

// New creates a Service.
func New(src SnapshotSource, engine *gear.Engine, opts Options) *Service {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 64
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		src:    src,
		engine: engine,
		opts:   opts,
		log:    log.With(slog.String("component", "monitor")),
		now:    time.Now,
		recent: ringbuf.New[model.SpreadSnapshot](opts.HistorySize),
	}
}

// Ticks returns how many ticks have run.
func (s *Service) Ticks() int { return int(s.ticks.Load()) }

// Status reports engine state and the most recent successful snapshots,
// oldest first.
func (s *Service) Status() Status {
	recent := s.recent.Items()
	return Status{
		Ticks:  s.ticks.Load(),
		Engine: s.engine.State(),
		Window: Window{
			Len:     len(recent),
			Cap:     s.recent.Cap(),
			Evicted: s.recent.Overwritten(),
		},
		Recent: recent,
	}
}

// Run ticks immediately and then every Interval until ctx is done or
// MaxChecks ticks have run. It returns nil on either.
func (s *Service) Run(ctx context.Context) error {
	cfg := s.engine.Config()
	st := s.engine.State()
	s.log.Info("monitor started",
		slog.Duration("interval", s.opts.Interval),
		slog.Int("max_checks", s.opts.MaxChecks),
		slog.Float64("upper_threshold", cfg.UpperThreshold),
		slog.Float64("lower_threshold", cfg.LowerThreshold),
		slog.Float64("gear_step", cfg.GearStep),
		slog.Duration("dwell", cfg.Dwell),
		slog.Any("upper_gear", st.Memory.Upper),
		slog.Any("lower_gear", st.Memory.Lower))

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)
		if s.opts.MaxChecks > 0 && s.Ticks() >= s.opts.MaxChecks {
			s.log.Info("check limit reached, stopping", slog.Int("ticks", s.Ticks()))
			return nil
		}

		select {
		case <-ctx.Done():
			s.log.Info("monitor stopping", slog.Int("ticks", s.Ticks()))
			return nil
		case <-ticker.C:
		}
	}
}

// Tick performs one poll. A fetch failure skips the tick without touching
// engine state. It returns the firings produced, if any.
func (s *Service) Tick(ctx context.Context) []gear.Outcome {
	now := s.now()
	check := s.ticks.Add(1)
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID("tick", now))
	attrs := logger.LogWithTrace(ctx)

	if m := s.opts.Metrics; m != nil {
		m.TicksTotal.Inc()
	}

	snap, err := s.src.Get(ctx)
	if h := s.opts.Health; h != nil {
		h.RecordTick(now, err)
	}
	if err != nil {
		s.log.Warn("fetch failed, skipping tick",
			append(attrs, slog.String("kind", string(feed.KindOf(err))), slog.Any("error", err))...)
		return nil
	}

	s.log.Info("spread checked", append(attrs,
		slog.Int64("check", check),
		slog.Float64("mark", snap.MarkSpread),
		slog.Float64("upper_spread", snap.DirectionalFor(model.Upper)),
		slog.Float64("lower_spread", snap.DirectionalFor(model.Lower)),
		slog.Float64("gear", gear.Quantize(snap.MarkSpread, s.engine.Config().GearStep)))...)

	s.recent.Push(snap)
	outcomes := s.engine.Evaluate(ctx, snap, now)
	s.record(ctx, snap, outcomes)
	return outcomes
}

func (s *Service) record(ctx context.Context, snap model.SpreadSnapshot, outcomes []gear.Outcome) {
	m := s.opts.Metrics
	if m != nil {
		m.ObserveSnapshot(snap)
		st := s.engine.State()
		m.ObserveGear(model.Upper, st.Upper.PendingGear, st.Upper.LastFired)
		m.ObserveGear(model.Lower, st.Lower.PendingGear, st.Lower.LastFired)
	}

	for _, out := range outcomes {
		if m != nil {
			m.AlertsTotal.WithLabelValues(out.Event.Direction.String()).Inc()
			if out.PersistErr != nil {
				m.PersistErrors.Inc()
			}
			if out.DeliverErr != nil {
				m.DeliveryErrors.Inc()
			}
		}
		if s.opts.Journal == nil {
			continue
		}
		if err := s.opts.Journal.RecordAlert(ctx, out.Event); err != nil {
			if m != nil {
				m.JournalErrors.Inc()
			}
			s.log.Warn("alert not journaled",
				append(logger.LogWithTrace(ctx), slog.String("id", out.Event.ID), slog.Any("error", err))...)
		}
	}
}
