package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	dbQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Database query latency by operation and table.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation", "table"})

	settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_finalize_total",
		Help: "Finalize attempts by trigger source and outcome (settled, already_settled, not_complete, error).",
	}, []string{"source", "outcome"})

	intents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_intents_total",
		Help: "Payment intent creation attempts by outcome.",
	}, []string{"outcome"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dispatched_total",
		Help: "Notification deliveries by channel and outcome.",
	}, []string{"channel", "outcome"})

	webhooks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Inbound gateway webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})

	stalePending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "enrollments_stale_pending",
		Help: "Pending enrollments older than the configured threshold at the last check.",
	})
)

// Middleware records request counts and latency for every route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordDBQuery observes a single gorm statement.
func RecordDBQuery(operation, table string, elapsed time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(elapsed.Seconds())
}

// RecordFinalize counts a finalize attempt.
func RecordFinalize(source, outcome string) {
	settlements.WithLabelValues(source, outcome).Inc()
}

// RecordIntent counts a payment intent creation attempt.
func RecordIntent(outcome string) {
	intents.WithLabelValues(outcome).Inc()
}

// RecordNotification counts one delivery attempt on a channel (store, push, email).
func RecordNotification(channel string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	notifications.WithLabelValues(channel, outcome).Inc()
}

// RecordWebhook counts an inbound webhook event.
func RecordWebhook(eventType, outcome string) {
	webhooks.WithLabelValues(eventType, outcome).Inc()
}

// SetStalePending publishes the latest stale pending enrollment count.
func SetStalePending(count int64) {
	stalePending.Set(float64(count))
}
