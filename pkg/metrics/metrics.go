package metrics

import (
	"net/http"
	"time"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimMetrics collects run instrumentation on a private Prometheus registry.
type SimMetrics struct {
	registry *prometheus.Registry
	logger   log.Logger

	// Order flow
	ordersProcessed prometheus.Counter
	ordersRejected  prometheus.Counter
	tradesExecuted  prometheus.Counter
	eventsPublished prometheus.Counter

	// Book state
	bookDepth       prometheus.GaugeVec
	timestep        prometheus.Gauge
	matchingLatency prometheus.Histogram

	// Agent health
	agentsIsolated prometheus.Counter
}

// New creates the simulator metric set.
func New(namespace string) *SimMetrics {
	logger := log.Root().New("module", "metrics")
	registry := prometheus.NewRegistry()

	m := &SimMetrics{
		registry: registry,
		logger:   logger,

		ordersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_processed_total",
			Help:      "Total number of orders accepted by the book",
		}),
		ordersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_rejected_total",
			Help:      "Total number of submissions rejected on validation",
		}),
		tradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_executed_total",
			Help:      "Total number of matched pairs",
		}),
		eventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total orderbook events pushed to the public feed",
		}),
		bookDepth: *prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orderbook_depth",
			Help:      "Current number of price levels by side",
		}, []string{"side"}),
		timestep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timestep",
			Help:      "Current simulation timestep",
		}),
		matchingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "matching_latency_nanoseconds",
			Help:      "Order matching latency in nanoseconds",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 25000},
		}),
		agentsIsolated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agents_isolated_total",
			Help:      "Agents quarantined after a fault",
		}),
	}

	registry.MustRegister(
		m.ordersProcessed,
		m.ordersRejected,
		m.tradesExecuted,
		m.eventsPublished,
		m.bookDepth,
		m.timestep,
		m.matchingLatency,
		m.agentsIsolated,
	)

	return m
}

// Nil-safe recording helpers; a nil *SimMetrics disables instrumentation.

func (m *SimMetrics) OrderProcessed() {
	if m != nil {
		m.ordersProcessed.Inc()
	}
}

func (m *SimMetrics) OrderRejected() {
	if m != nil {
		m.ordersRejected.Inc()
	}
}

func (m *SimMetrics) TradeExecuted() {
	if m != nil {
		m.tradesExecuted.Inc()
	}
}

func (m *SimMetrics) EventPublished() {
	if m != nil {
		m.eventsPublished.Inc()
	}
}

func (m *SimMetrics) ObserveMatchingLatency(d time.Duration) {
	if m != nil {
		m.matchingLatency.Observe(float64(d.Nanoseconds()))
	}
}

func (m *SimMetrics) SetDepth(bidLevels, askLevels int) {
	if m != nil {
		m.bookDepth.WithLabelValues("bid").Set(float64(bidLevels))
		m.bookDepth.WithLabelValues("ask").Set(float64(askLevels))
	}
}

func (m *SimMetrics) SetTimestep(t int64) {
	if m != nil {
		m.timestep.Set(float64(t))
	}
}

func (m *SimMetrics) AgentIsolated() {
	if m != nil {
		m.agentsIsolated.Inc()
	}
}

// Registry exposes the underlying registry for tests.
func (m *SimMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Serve exposes the registry over HTTP for scraping. Blocks; intended to run
// in its own goroutine when a metrics address is configured.
func (m *SimMetrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.logger.Info("Metrics server started", "addr", addr)
	return http.ListenAndServe(addr, mux)
}
