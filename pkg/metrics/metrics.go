// Package metrics exposes prometheus instrumentation for the API: request
// latency plus counters for the ledger-mutating operations.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the API's prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec

	ordersPlaced      *prometheus.CounterVec
	ordersExecuted    prometheus.Counter
	ordersCancelled   prometheus.Counter
	ordersRejected    prometheus.Counter
	transactions      *prometheus.CounterVec
	transactionErrors prometheus.Counter
}

// NewCollector creates a collector with all metrics registered.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		requestDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		ordersPlaced: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Orders accepted, by order type and side",
		}, []string{"order_type", "side"}),
		ordersExecuted: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "orders_executed_total",
			Help: "Pending limit orders executed",
		}),
		ordersCancelled: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Pending limit orders cancelled",
		}),
		ordersRejected: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "orders_rejected_total",
			Help: "Order operations rejected by a business rule",
		}),
		transactions: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "transactions_created_total",
			Help: "Completed deposits and withdrawals",
		}, []string{"transaction_type"}),
		transactionErrors: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "transactions_rejected_total",
			Help: "Transactions rejected by a business rule",
		}),
	}
}

// RecordOrderPlaced counts an accepted order.
func (m *Collector) RecordOrderPlaced(orderType, side string) {
	m.ordersPlaced.WithLabelValues(orderType, side).Inc()
}

// RecordOrderExecuted counts a limit order execution.
func (m *Collector) RecordOrderExecuted() { m.ordersExecuted.Inc() }

// RecordOrderCancelled counts a limit order cancellation.
func (m *Collector) RecordOrderCancelled() { m.ordersCancelled.Inc() }

// RecordOrderRejected counts an order operation refused by a business rule.
func (m *Collector) RecordOrderRejected() { m.ordersRejected.Inc() }

// RecordTransaction counts a completed deposit or withdrawal.
func (m *Collector) RecordTransaction(transactionType string) {
	m.transactions.WithLabelValues(transactionType).Inc()
}

// RecordTransactionRejected counts a refused transaction.
func (m *Collector) RecordTransactionRejected() { m.transactionErrors.Inc() }

// RequestMetrics returns gin middleware observing per-route latency.
func (m *Collector) RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler returns the /metrics HTTP handler for the private registry.
func (m *Collector) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
