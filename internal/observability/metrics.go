package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce           sync.Once
	apiRequestsTotal       *prometheus.CounterVec
	apiLatencySeconds      *prometheus.HistogramVec
	apiErrorsTotal         *prometheus.CounterVec
	gradingAttemptsTotal   *prometheus.CounterVec
	gradingDurationSeconds prometheus.Histogram
	gradingSessionsActive  prometheus.Gauge
	gradingEventsFailed    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grader_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		gradingAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_grading_attempts_total",
			Help: "Grading attempts by outcome.",
		}, []string{"outcome"})

		gradingDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grader_grading_attempt_duration_seconds",
			Help:    "End-to-end duration of grading attempts.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		})

		gradingSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grader_grading_sessions_active",
			Help: "Number of open grading sessions.",
		})

		gradingEventsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grader_grading_event_publish_failures_total",
			Help: "Grading events that could not be published.",
		}, []string{"transport"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			gradingAttemptsTotal,
			gradingDurationSeconds,
			gradingSessionsActive,
			gradingEventsFailed,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// GradingAttempts exposes the attempt counter labelled by outcome.
func GradingAttempts() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingAttemptsTotal
}

// GradingDuration exposes the attempt duration histogram.
func GradingDuration() prometheus.Histogram {
	RegisterMetrics()
	return gradingDurationSeconds
}

// GradingSessionsActive exposes the open session gauge.
func GradingSessionsActive() prometheus.Gauge {
	RegisterMetrics()
	return gradingSessionsActive
}

// GradingEventFailures exposes the event publish failure counter.
func GradingEventFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingEventsFailed
}

// MetricsHandler serves the default registry in the Prometheus or OpenMetrics
// text format, whichever the scraper negotiates.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}
