package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fuel_tank"

// Metrics holds the Prometheus counters, histograms, and gauges for the telemetry service.
type Metrics struct {
	ReadingsPersisted   prometheus.Counter
	InvariantViolations prometheus.Counter
	TankFailures        *prometheus.CounterVec // labels: operation={initialize,tick,manual}
	FuelPercentage      *prometheus.GaugeVec   // labels: tank_id

	// Scheduler metrics.
	SchedulerRunning prometheus.Gauge
	CycleDuration    prometheus.Histogram

	// Event stream metrics.
	EventsPublished prometheus.Counter
	EventsDropped   prometheus.Counter
	Subscribers     prometheus.Gauge

	// Cache and upstream metrics.
	CacheLookups  *prometheus.CounterVec // labels: cache={tank,latest_reading}, result={hit,miss}
	UpstreamState prometheus.Gauge       // 0 disconnected, 1 connecting, 2 connected
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.ReadingsPersisted,
		m.InvariantViolations,
		m.TankFailures,
		m.FuelPercentage,
		m.SchedulerRunning,
		m.CycleDuration,
		m.EventsPublished,
		m.EventsDropped,
		m.Subscribers,
		m.CacheLookups,
		m.UpstreamState,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReadingsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_persisted_total",
			Help:      "Total readings written to the repository.",
		}),
		InvariantViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invariant_violations_total",
			Help:      "Derived readings found outside their physical bounds.",
		}),
		TankFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tank_failures_total",
			Help:      "Per-tank reading generation failures by operation.",
		}, []string{"operation"}),
		FuelPercentage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fuel_level_percentage",
			Help:      "Most recent fuel level percentage per tank.",
		}, []string{"tank_id"}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the automated reading scheduler is active, 0 otherwise.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete automated reading cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Fuel level events handed to the distributor.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Per-subscriber deliveries dropped because the subscriber queue was full.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Live event stream subscriptions.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		UpstreamState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_connection_state",
			Help:      "Upstream feed state: 0 disconnected, 1 connecting, 2 connected.",
		}),
	}
}
