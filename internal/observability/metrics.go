package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal *prometheus.CounterVec
	apiLatencySecs   *prometheus.HistogramVec
	apiErrorsTotal   *prometheus.CounterVec

	stageFailuresTotal *prometheus.CounterVec
	stageLatencySecs   *prometheus.HistogramVec

	retrySweepsTotal   prometheus.Counter
	retryAttemptsTotal *prometheus.CounterVec
	revisionsTotal     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySecs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		stageFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_failures_total",
			Help: "Total number of failed evaluation pipeline stages.",
		}, []string{"stage"})

		stageLatencySecs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_latency_seconds",
			Help:    "Latency distribution per evaluation pipeline stage.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"})

		retrySweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retry_sweeps_total",
			Help: "Total number of retry sweeps executed.",
		})

		retryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of sweeper retry attempts by outcome.",
		}, []string{"result"})

		revisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "revisions_processed_total",
			Help: "Total number of processed revisions by outcome.",
		}, []string{"result"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySecs, apiErrorsTotal,
			stageFailuresTotal, stageLatencySecs,
			retrySweepsTotal, retryAttemptsTotal, revisionsTotal,
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
	return apiLatencySecs
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// PipelineStageFailures exposes the counter for failed pipeline stages.
func PipelineStageFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return stageFailuresTotal
}

// PipelineStageLatency exposes the per-stage latency histogram.
func PipelineStageLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return stageLatencySecs
}

// RetrySweeps exposes the counter for executed retry sweeps.
func RetrySweeps() prometheus.Counter {
	RegisterMetrics()
	return retrySweepsTotal
}

// RetryAttempts exposes the counter for sweeper retry attempts.
func RetryAttempts() *prometheus.CounterVec {
	RegisterMetrics()
	return retryAttemptsTotal
}

// RevisionsProcessed exposes the counter for processed revisions.
func RevisionsProcessed() *prometheus.CounterVec {
	RegisterMetrics()
	return revisionsTotal
}
