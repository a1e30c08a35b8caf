package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	reconcileOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_reconcile_outcomes_total",
			Help: "Payment-return reconciliations by outcome",
		},
		[]string{"outcome"},
	)

	statusQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_gateway_status_query_duration_seconds",
			Help:    "Out-of-band gateway status query latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	orderCommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_order_commits_total",
			Help: "Order creation calls made after a payment return",
		},
		[]string{"result"},
	)

	paymentAttemptsResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_payment_attempts_resolved_total",
			Help: "Unconfirmed payment attempts resolved by the background worker",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(reconcileOutcomesTotal)
	prometheus.MustRegister(statusQueryDuration)
	prometheus.MustRegister(orderCommitsTotal)
	prometheus.MustRegister(paymentAttemptsResolvedTotal)
}

func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordOutcome(outcome string) {
	reconcileOutcomesTotal.WithLabelValues(outcome).Inc()
}

func RecordStatusQuery(result string, took time.Duration) {
	statusQueryDuration.WithLabelValues(result).Observe(took.Seconds())
}

func RecordCommit(success bool) {
	result := "failed"
	if success {
		result = "succeeded"
	}
	orderCommitsTotal.WithLabelValues(result).Inc()
}

func RecordAttemptResolved(status string) {
	paymentAttemptsResolvedTotal.WithLabelValues(status).Inc()
}
