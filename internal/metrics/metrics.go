package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace"

// Metrics groups the collectors of the API process. A nil *Metrics is valid
// and records nothing, so services can be built without it in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	transitions         *prometheus.CounterVec
	inventoryAdjustment *prometheus.CounterVec
	lowStockCrossings   prometheus.Counter
	publishFailures     *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "path"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order status transitions by outcome.",
		}, []string{"from", "to", "result"}),
		inventoryAdjustment: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_adjustments_total",
			Help:      "Inventory adjustments by outcome.",
		}, []string{"result"}),
		lowStockCrossings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_crossings_total",
			Help:      "Adjustments that moved a tracked item into low stock.",
		}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Lifecycle events that could not be delivered.",
		}, []string{"to"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.httpRequests,
		m.httpDuration,
		m.transitions,
		m.inventoryAdjustment,
		m.lowStockCrossings,
		m.publishFailures,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Transition records one transition attempt. result is "ok", "noop" or the
// error class.
func (m *Metrics) Transition(from, to, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to, result).Inc()
}

func (m *Metrics) InventoryAdjusted(result string) {
	if m == nil {
		return
	}
	m.inventoryAdjustment.WithLabelValues(result).Inc()
}

func (m *Metrics) LowStockCrossed() {
	if m == nil {
		return
	}
	m.lowStockCrossings.Inc()
}

func (m *Metrics) PublishFailed(to string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(to).Inc()
}
