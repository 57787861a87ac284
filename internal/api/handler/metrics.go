package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/ledger"
)

var (
	utourRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "utour_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	utourRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "utour_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	utourIdentitiesAnchoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "utour_identities_anchored_total",
		Help: "Total identities anchored on the ledger.",
	})

	utourVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "utour_verifications_total",
		Help: "Total identity verifications by result.",
	}, []string{"result"})

	utourSnapshotErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "utour_ledger_snapshot_errors_total",
		Help: "Total failed ledger snapshot writes.",
	})

	utourWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "utour_webhook_deliveries_total",
		Help: "Total webhook delivery attempts by result.",
	}, []string{"result"})

	utourDependencyUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "utour_dependency_up",
		Help: "Whether the last readiness probe of a dependency succeeded (1) or failed (0).",
	}, []string{"dependency"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		utourRequestsTotal.WithLabelValues(method, path, status).Inc()
		utourRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordLedgerEvent records a ledger event. It matches ledger.MetricsRecordFunc.
func RecordLedgerEvent(event string) {
	switch event {
	case ledger.EventAnchored:
		utourIdentitiesAnchoredTotal.Inc()
	case ledger.EventVerified, ledger.EventMismatch, ledger.EventNotFound:
		utourVerificationsTotal.WithLabelValues(event).Inc()
	case ledger.EventSnapshotError:
		utourSnapshotErrorsTotal.Inc()
	}
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	utourWebhookDeliveriesTotal.WithLabelValues(result).Inc()
}

// RecordDependencyProbe records the outcome of a readiness probe.
func RecordDependencyProbe(name string, ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	utourDependencyUp.WithLabelValues(name).Set(v)
}
