package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	XPAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quizzify_xp_awarded_total",
			Help: "Total XP granted for completed quizzes",
		},
	)

	LevelUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quizzify_level_ups_total",
			Help: "Number of quiz completions that raised an account level",
		},
	)

	EntitlementDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizzify_entitlement_decisions_total",
			Help: "Entitlement gate decisions by action and result",
		},
		[]string{"action", "result"},
	)

	AIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizzify_ai_requests_total",
			Help: "AI gateway calls by function and outcome",
		},
		[]string{"function", "outcome"},
	)

	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizzify_ai_request_duration_seconds",
			Help:    "Latency of AI gateway calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"function"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			XPAwarded,
			LevelUps,
			EntitlementDecisions,
			AIRequests,
			AIRequestDuration,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func ObserveDecision(action string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	EntitlementDecisions.WithLabelValues(action, result).Inc()
}
