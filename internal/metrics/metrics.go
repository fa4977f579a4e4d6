package metrics

import (
	"math"
	"net/http"
	"time"

	"spreadwatch/internal/breaker"
	"spreadwatch/internal/feed"
	"spreadwatch/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the spread monitor.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal        prometheus.Counter
	FetchErrors       *prometheus.CounterVec // labels: kind
	FetchDur          prometheus.Histogram
	MarkSpread        prometheus.Gauge
	DirectionalSpread *prometheus.GaugeVec   // labels: direction
	AlertsTotal       *prometheus.CounterVec // labels: direction
	PersistErrors     prometheus.Counter
	DeliveryErrors    prometheus.Counter
	JournalErrors     prometheus.Counter
	PendingGear       *prometheus.GaugeVec // labels: direction; NaN when idle
	LastFiredGear     *prometheus.GaugeVec // labels: direction; NaN when forgotten

	// Feed circuit breaker
	BreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips prometheus.Counter
}

// NewMetrics builds the metrics on a private registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spreadwatch_ticks_total",
			Help: "Total poll ticks evaluated",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spreadwatch_fetch_errors_total",
			Help: "Price fetch failures by kind",
		}, []string{"kind"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spreadwatch_fetch_duration_seconds",
			Help:    "Upstream price fetch latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		MarkSpread: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spreadwatch_mark_spread",
			Help: "Latest mark spread (A minus B)",
		}),
		DirectionalSpread: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spreadwatch_directional_spread",
			Help: "Latest tradable spread per direction",
		}, []string{"direction"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spreadwatch_alerts_total",
			Help: "Confirmed gear firings by direction",
		}, []string{"direction"}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spreadwatch_persist_errors_total",
			Help: "Gear memory saves that failed",
		}),
		DeliveryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spreadwatch_delivery_errors_total",
			Help: "Alert deliveries that failed",
		}),
		JournalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spreadwatch_journal_errors_total",
			Help: "Alert journal writes that failed",
		}),
		PendingGear: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spreadwatch_pending_gear",
			Help: "Gear currently in debounce per direction (NaN when none)",
		}, []string{"direction"}),
		LastFiredGear: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spreadwatch_last_fired_gear",
			Help: "Last fired gear per direction (NaN when none)",
		}, []string{"direction"}),

		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spreadwatch_feed_circuit_breaker_state",
			Help: "Feed circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spreadwatch_feed_circuit_breaker_trips_total",
			Help: "Times the feed circuit breaker tripped open",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TicksTotal,
		m.FetchErrors,
		m.FetchDur,
		m.MarkSpread,
		m.DirectionalSpread,
		m.AlertsTotal,
		m.PersistErrors,
		m.DeliveryErrors,
		m.JournalErrors,
		m.PendingGear,
		m.LastFiredGear,
		m.BreakerState,
		m.BreakerTrips,
	)

	return m
}

// Registry exposes the private registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveFetch records one upstream fetch. It matches feed.Cache's Observe hook.
func (m *Metrics) ObserveFetch(elapsed time.Duration, err error) {
	if err != nil {
		m.FetchErrors.WithLabelValues(string(feed.KindOf(err))).Inc()
		// breaker rejections never reached the network
		if feed.KindOf(err) == feed.KindCircuitOpen {
			return
		}
	}
	m.FetchDur.Observe(elapsed.Seconds())
}

// ObserveSnapshot updates the spread gauges.
func (m *Metrics) ObserveSnapshot(s model.SpreadSnapshot) {
	m.MarkSpread.Set(s.MarkSpread)
	for _, d := range model.Directions {
		m.DirectionalSpread.WithLabelValues(d.String()).Set(s.DirectionalFor(d))
	}
}

// ObserveGear sets the per-direction gear gauges. Nil gears read as NaN.
func (m *Metrics) ObserveGear(d model.Direction, pending, lastFired *float64) {
	m.PendingGear.WithLabelValues(d.String()).Set(gaugeValue(pending))
	m.LastFiredGear.WithLabelValues(d.String()).Set(gaugeValue(lastFired))
}

// ObserveBreaker is a breaker.Breaker state-change hook.
func (m *Metrics) ObserveBreaker(from, to breaker.State) {
	m.BreakerState.Set(float64(to))
	if to == breaker.StateOpen {
		m.BreakerTrips.Inc()
	}
}

func gaugeValue(g *float64) float64 {
	if g == nil {
		return math.NaN()
	}
	return *g
}
