// Package metrics exposes Prometheus collectors for the harvester.
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

// Endpoint labels for fetch metrics.
const (
	EndpointSearch  = "search"
	EndpointDetail  = "detail"
	EndpointRatings = "ratings"
)

// Outcome labels shared by several collectors.
const (
	OutcomeOK          = "ok"
	OutcomeSoftFailure = "soft_failure"
	OutcomeError       = "error"
	OutcomeProduced    = "produced"
	OutcomeSkipped     = "skipped"
	OutcomeAppended    = "appended"
	OutcomeNoNew       = "no_new"
)

var (
	fetchTotal                 *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	pagesTotal                 *prometheus.CounterVec
	recordsAppendedTotal       prometheus.Counter
	duplicatesSkippedTotal     prometheus.Counter
	enrichmentsTotal           *prometheus.CounterVec
	enrichInFlight             prometheus.Gauge
	archiveTotal               *prometheus.CounterVec
	notificationsTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetch_total",
				Help: "Total catalog fetches, labeled by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_fetch_duration_seconds",
				Help:    "Histogram of catalog fetch latencies, labeled by endpoint.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"endpoint"},
		)

		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_pages_total",
				Help: "Total search pages processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		recordsAppendedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_records_appended_total",
				Help: "Total records durably appended to the incremental store.",
			},
		)

		duplicatesSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_duplicates_skipped_total",
				Help: "Total records dropped because their identifier was already stored.",
			},
		)

		enrichmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_enrichments_total",
				Help: "Total enrichment attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		enrichInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_enrich_in_flight",
				Help: "Number of enrichments currently admitted through the gate.",
			},
		)

		archiveTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_archive_total",
				Help: "Total raw payload archive writes, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_notifications_total",
				Help: "Total append notifications published, labeled by outcome.",
			},
			[]string{"outcome"},
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

// ObserveFetch records one catalog fetch and its latency.
func ObserveFetch(endpoint, outcome string, duration time.Duration) {
	fetchTotal.WithLabelValues(endpoint, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObservePage increments the page counter for the given outcome.
func ObservePage(outcome string) {
	pagesTotal.WithLabelValues(outcome).Inc()
}

// AddRecordsAppended adds to the appended-records counter.
func AddRecordsAppended(n int) {
	if n > 0 {
		recordsAppendedTotal.Add(float64(n))
	}
}

// AddDuplicatesSkipped adds to the duplicate-drop counter.
func AddDuplicatesSkipped(n int) {
	if n > 0 {
		duplicatesSkippedTotal.Add(float64(n))
	}
}

// ObserveEnrichment increments the enrichment counter for the given outcome.
func ObserveEnrichment(outcome string) {
	enrichmentsTotal.WithLabelValues(outcome).Inc()
}

// IncEnrichInFlight increments the admitted-enrichments gauge.
func IncEnrichInFlight() {
	enrichInFlight.Inc()
}

// DecEnrichInFlight decrements the admitted-enrichments gauge.
func DecEnrichInFlight() {
	enrichInFlight.Dec()
}

// ObserveArchive increments the raw-archive counter for the given outcome.
func ObserveArchive(outcome string) {
	archiveTotal.WithLabelValues(outcome).Inc()
}

// ObserveNotification increments the notification counter for the given outcome.
func ObserveNotification(outcome string) {
	notificationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the ops-server request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
