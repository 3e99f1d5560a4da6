// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperJobsTotal            *prometheus.CounterVec
	scraperFetchesTotal         *prometheus.CounterVec
	scraperFetchDurationSeconds *prometheus.HistogramVec
	scraperActiveWorkers        prometheus.Gauge
	scraperRetentionRowsTotal   *prometheus.CounterVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scraperJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_jobs_total",
				Help: "Total number of job executions, labeled by outcome.",
			},
			[]string{"status"},
		)

		scraperFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetches_total",
				Help: "Total number of page fetches, labeled by method and status class.",
			},
			[]string{"method", "status_class"},
		)

		scraperFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by method.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method"},
		)

		scraperActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_workers",
				Help: "Number of workers currently executing a task.",
			},
		)

		scraperRetentionRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_retention_rows_total",
				Help: "Total number of rows removed by the retention sweep, labeled by entity.",
			},
			[]string{"entity"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the job counter for the given outcome status.
func ObserveJob(status string) {
	scraperJobsTotal.WithLabelValues(status).Inc()
}

// ObserveFetch records one fetch outcome and its latency.
func ObserveFetch(method string, statusCode int, duration time.Duration) {
	scraperFetchesTotal.WithLabelValues(method, statusClass(statusCode)).Inc()
	scraperFetchDurationSeconds.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveRetention records rows removed by the retention sweep.
func ObserveRetention(entity string, removed int64) {
	if removed <= 0 {
		return
	}
	scraperRetentionRowsTotal.WithLabelValues(entity).Add(float64(removed))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	scraperActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	scraperActiveWorkers.Dec()
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	}
	return "other"
}
