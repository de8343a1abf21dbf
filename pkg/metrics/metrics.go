// Package metrics exposes pool activity as Prometheus metrics. The collector
// owns its own registry so the /metrics endpoint only carries supapool series.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"supapool/pkg/pool"
)

// Collector manages all Prometheus metrics for the pool. It implements
// pool.Recorder for event-driven counters; gauge values are pushed from the
// server's status ticker via RecordPoolStatus.
type Collector struct {
	// Pool state gauges
	poolSize        *prometheus.GaugeVec
	poolActive      *prometheus.GaugeVec
	poolIdle        *prometheus.GaugeVec
	poolWaiting     *prometheus.GaugeVec
	poolUtilization *prometheus.GaugeVec
	poolAvgResponse *prometheus.GaugeVec

	// Event counters
	acquisitionsTotal    *prometheus.CounterVec
	acquireTimeouts      *prometheus.CounterVec
	creationFailures     *prometheus.CounterVec
	connectionsReaped    *prometheus.CounterVec
	queryRetries         *prometheus.CounterVec
	acquireWaitHistogram *prometheus.HistogramVec

	registry *prometheus.Registry
	backend  string
}

// NewCollector creates and registers all pool metrics. The backend label is
// fixed at construction time.
func NewCollector(backend string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		poolSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "supapool_pool_size",
				Help: "Configured maximum number of pooled connections",
			},
			[]string{"backend"},
		),
		poolActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "supapool_pool_active_connections",
				Help: "Connections currently leased to callers",
			},
			[]string{"backend"},
		),
		poolIdle: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "supapool_pool_idle_connections",
				Help: "Open connections waiting for the next caller",
			},
			[]string{"backend"},
		),
		poolWaiting: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "supapool_pool_waiting_callers",
				Help: "Callers queued for a connection",
			},
			[]string{"backend"},
		),
		poolUtilization: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "supapool_pool_utilization_percent",
				Help: "Active connections as a percentage of pool size",
			},
			[]string{"backend"},
		),
		poolAvgResponse: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "supapool_pool_avg_response_ms",
				Help: "Running average connection hold time in milliseconds",
			},
			[]string{"backend"},
		),
		acquisitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supapool_acquisitions_total",
				Help: "Total successful connection acquisitions",
			},
			[]string{"backend", "reused"},
		),
		acquireTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supapool_acquire_timeouts_total",
				Help: "Acquisitions rejected by the connection timeout",
			},
			[]string{"backend"},
		),
		creationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supapool_connection_failures_total",
				Help: "Connections that failed to open or validate",
			},
			[]string{"backend"},
		),
		connectionsReaped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supapool_connections_reaped_total",
				Help: "Idle connections closed by the reaper",
			},
			[]string{"backend"},
		),
		queryRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supapool_query_retries_total",
				Help: "Query attempts repeated after a failure",
			},
			[]string{"backend"},
		),
		acquireWaitHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "supapool_acquire_wait_seconds",
				Help:    "Time callers spent waiting for a connection",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"backend"},
		),
		registry: registry,
		backend:  backend,
	}

	registry.MustRegister(
		c.poolSize,
		c.poolActive,
		c.poolIdle,
		c.poolWaiting,
		c.poolUtilization,
		c.poolAvgResponse,
		c.acquisitionsTotal,
		c.acquireTimeouts,
		c.creationFailures,
		c.connectionsReaped,
		c.queryRetries,
		c.acquireWaitHistogram,
	)

	return c
}

// RecordPoolStatus updates the state gauges from a status snapshot
func (c *Collector) RecordPoolStatus(status pool.Status) {
	c.poolSize.WithLabelValues(c.backend).Set(float64(status.PoolSize))
	c.poolActive.WithLabelValues(c.backend).Set(float64(status.ActiveConnections))
	c.poolIdle.WithLabelValues(c.backend).Set(float64(status.IdleConnections))
	c.poolWaiting.WithLabelValues(c.backend).Set(float64(status.WaitingCount))
	c.poolUtilization.WithLabelValues(c.backend).Set(status.UtilizationRate)
	c.poolAvgResponse.WithLabelValues(c.backend).Set(status.AvgResponseTimeMS)
}

// ObserveAcquire records a successful acquisition and its wait time
func (c *Collector) ObserveAcquire(waitMS float64, reused bool) {
	reusedLabel := "false"
	if reused {
		reusedLabel = "true"
	}
	c.acquisitionsTotal.WithLabelValues(c.backend, reusedLabel).Inc()
	c.acquireWaitHistogram.WithLabelValues(c.backend).Observe(waitMS / 1000)
}

// RecordTimeout increments the acquire timeout counter
func (c *Collector) RecordTimeout() {
	c.acquireTimeouts.WithLabelValues(c.backend).Inc()
}

// RecordCreationFailure increments the connection failure counter
func (c *Collector) RecordCreationFailure() {
	c.creationFailures.WithLabelValues(c.backend).Inc()
}

// RecordReaped adds reaped connections to the reap counter
func (c *Collector) RecordReaped(count int) {
	c.connectionsReaped.WithLabelValues(c.backend).Add(float64(count))
}

// RecordRetry increments the query retry counter
func (c *Collector) RecordRetry() {
	c.queryRetries.WithLabelValues(c.backend).Inc()
}

// Handler returns an HTTP handler for the /metrics endpoint
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
