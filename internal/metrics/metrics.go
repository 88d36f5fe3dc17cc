// Package metrics exposes Prometheus instrumentation for the upload pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportanalyzer_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reportanalyzer_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportanalyzer_submissions_total",
			Help: "Processed uploads by outcome.",
		},
		[]string{"outcome"},
	)

	quotaRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportanalyzer_quota_rejections_total",
			Help: "Uploads rejected for quota by scope and window.",
		},
		[]string{"scope", "window"},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reportanalyzer_gateway_duration_seconds",
			Help:    "Analysis gateway latency by result.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"result"},
	)

	gatewayTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reportanalyzer_gateway_tokens_total",
		Help: "Tokens reported by the analysis gateway.",
	})
)

// Outcome labels for submissionsTotal.
const (
	OutcomeSuccess   = "success"
	OutcomeDuplicate = "duplicate"
)

// ObserveSubmission counts one processed upload. outcome is a success label
// or an error kind.
func ObserveSubmission(outcome string) {
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveQuotaRejection counts one quota rejection.
func ObserveQuotaRejection(scope, window string) {
	quotaRejectionsTotal.WithLabelValues(scope, window).Inc()
}

// ObserveGateway records one gateway call.
func ObserveGateway(result string, elapsed time.Duration, tokens int) {
	gatewayDuration.WithLabelValues(result).Observe(elapsed.Seconds())
	if tokens > 0 {
		gatewayTokensTotal.Add(float64(tokens))
	}
}

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
