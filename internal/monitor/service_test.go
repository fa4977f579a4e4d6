package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"spreadwatch/internal/feed"
	"spreadwatch/internal/gear"
	"spreadwatch/internal/metrics"
	"spreadwatch/internal/model"
	"spreadwatch/internal/notification"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	marks []float64
	errs  []error
	calls int
}

func (s *scriptedSource) Get(ctx context.Context) (model.SpreadSnapshot, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return model.SpreadSnapshot{}, s.errs[i]
	}
	mark := s.marks[i%len(s.marks)]
	return model.SpreadSnapshot{MarkSpread: mark, Directional: [2]float64{mark - 0.5, mark + 0.5}}, nil
}

type memStore struct{ mem model.GearMemory }

func (s *memStore) Load(context.Context) (model.GearMemory, error) { return s.mem, nil }
func (s *memStore) Save(_ context.Context, m model.GearMemory) error {
	s.mem = m
	return nil
}
func (s *memStore) Close() error { return nil }

type journal struct {
	events []model.AlertEvent
	err    error
}

func (j *journal) RecordAlert(_ context.Context, ev model.AlertEvent) error {
	j.events = append(j.events, ev)
	return j.err
}

type sink struct{ alerts []notification.Alert }

func (s *sink) Send(_ context.Context, a notification.Alert) error {
	s.alerts = append(s.alerts, a)
	return nil
}

func newEngine(t *testing.T, dwell time.Duration, n notification.Notifier) (*gear.Engine, *memStore) {
	t.Helper()
	st := &memStore{}
	e, err := gear.New(context.Background(), gear.Config{
		UpperThreshold: 16,
		LowerThreshold: 10,
		GearStep:       0.5,
		Dwell:          dwell,
	}, st, n, nil)
	require.NoError(t, err)
	return e, st
}

func TestTick_FiresAndRecords(t *testing.T) {
	out := &sink{}
	engine, st := newEngine(t, time.Second, out)
	src := &scriptedSource{marks: []float64{15.9, 16.2, 16.2, 16.2}}
	j := &journal{}
	m := metrics.NewMetrics()
	h := metrics.NewHealthStatus("memory", 0)

	svc := New(src, engine, Options{Journal: j, Metrics: m, Health: h})
	base := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		svc.Tick(context.Background())
	}

	require.Len(t, out.alerts, 1)
	require.Len(t, j.events, 1)
	assert.Equal(t, model.Upper, j.events[0].Direction)
	assert.Equal(t, 16.0, j.events[0].Gear)
	require.NotNil(t, st.mem.Upper)
	assert.Equal(t, 16.0, *st.mem.Upper)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.TicksTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsTotal.WithLabelValues("upper")))
	assert.Equal(t, 16.2, testutil.ToFloat64(m.MarkSpread))
	assert.Equal(t, 16.0, testutil.ToFloat64(m.LastFiredGear.WithLabelValues("upper")))

	r, _ := h.Report()
	assert.True(t, r.LastFetchOK)
}

func TestTick_FetchErrorSkipsTick(t *testing.T) {
	engine, _ := newEngine(t, time.Second, &sink{})
	fetchErr := &feed.FetchError{Kind: feed.KindStatus, Err: errors.New("502")}
	src := &scriptedSource{marks: []float64{16.2}, errs: []error{nil, fetchErr}}
	h := metrics.NewHealthStatus("memory", 0)
	svc := New(src, engine, Options{Health: h})

	base := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	svc.Tick(context.Background())
	before := engine.State()
	require.NotNil(t, before.Upper.PendingGear)

	svc.now = func() time.Time { return base.Add(5 * time.Second) }
	assert.Nil(t, svc.Tick(context.Background()))

	after := engine.State()
	assert.Equal(t, before, after, "failed fetch must not mutate engine state")
	r, _ := h.Report()
	assert.Equal(t, "degraded", r.Status)
	assert.Contains(t, r.LastFetchError, "502")
}

func TestTick_JournalFailureIsNonFatal(t *testing.T) {
	out := &sink{}
	engine, _ := newEngine(t, 0, out)
	m := metrics.NewMetrics()
	svc := New(&scriptedSource{marks: []float64{9.8}}, engine, Options{
		Journal: &journal{err: errors.New("disk full")},
		Metrics: m,
	})

	outcomes := svc.Tick(context.Background())
	require.Len(t, outcomes, 1)
	assert.Equal(t, model.Lower, outcomes[0].Event.Direction)
	assert.Len(t, out.alerts, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JournalErrors))
}

func TestRun_StopsAfterMaxChecks(t *testing.T) {
	engine, _ := newEngine(t, 0, &sink{})
	src := &scriptedSource{marks: []float64{12}}
	svc := New(src, engine, Options{Interval: time.Millisecond, MaxChecks: 3})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Run(ctx))
	assert.Equal(t, 3, svc.Ticks())
	assert.Equal(t, 3, src.calls)
}

func TestRun_StopsOnCancel(t *testing.T) {
	engine, _ := newEngine(t, 0, &sink{})
	svc := New(&scriptedSource{marks: []float64{12}}, engine, Options{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStatus_RecentSamples(t *testing.T) {
	engine, _ := newEngine(t, time.Second, &sink{})
	fetchErr := &feed.FetchError{Kind: feed.KindNetwork, Err: errors.New("reset")}
	src := &scriptedSource{marks: []float64{12, 12.5, 13, 13.5}, errs: []error{nil, fetchErr}}
	svc := New(src, engine, Options{HistorySize: 2})

	for i := 0; i < 4; i++ {
		svc.Tick(context.Background())
	}

	st := svc.Status()
	assert.Equal(t, int64(4), st.Ticks)
	require.Len(t, st.Recent, 2)
	assert.Equal(t, 13.0, st.Recent[0].MarkSpread)
	assert.Equal(t, 13.5, st.Recent[1].MarkSpread)
	assert.Equal(t, Window{Len: 2, Cap: 2, Evicted: 1}, st.Window)
	assert.Nil(t, st.Engine.Upper.PendingGear)
}
