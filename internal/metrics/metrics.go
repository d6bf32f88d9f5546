// Package metrics exposes Prometheus collectors for the crawler and search API.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page outcomes recorded by ObservePage.
const (
	OutcomeHTML          = "html"
	OutcomeRetried       = "retried"
	OutcomeUnprocessable = "unprocessable"
)

var (
	crawlerPagesTotal             *prometheus.CounterVec
	crawlerBytesTotal             *prometheus.CounterVec
	crawlerLeasesTotal            *prometheus.CounterVec
	crawlerLinksDiscoveredTotal   *prometheus.CounterVec
	crawlerActiveWorkers          prometheus.Gauge
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	crawlerRobotsFallbacksTotal   *prometheus.CounterVec
	searchQueriesTotal            prometheus.Counter
	searchResultsReturned         prometheus.Histogram
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages recorded, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of HTML bytes stored, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerLeasesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_leases_total",
				Help: "Lease attempts against the frontier, labeled by result.",
			},
			[]string{"result"},
		)

		crawlerLinksDiscoveredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_links_discovered_total",
				Help: "Extracted links, labeled by whether they were new to the frontier.",
			},
			[]string{"kind"},
		)

		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of crawl workers currently running.",
			},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		crawlerRobotsFallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_robots_fallbacks_total",
				Help: "robots.txt probes that timed out and fell back to allow-all, labeled by site.",
			},
			[]string{"site"},
		)

		searchQueriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total number of ranked search queries served.",
			},
		)

		searchResultsReturned = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_returned",
				Help:    "Number of ranked results returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
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

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts a recorded page. outcome is OutcomeHTML or a failure kind.
func ObservePage(site string, outcome string, bytesStored int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlerPagesTotal.WithLabelValues(sanitizedSite, outcome).Inc()
	if bytesStored > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesStored))
	}
}

// ObserveLease counts a lease attempt; result is "acquired", "empty" or "error".
func ObserveLease(result string) {
	Init()
	crawlerLeasesTotal.WithLabelValues(result).Inc()
}

// ObserveLinks records extracted links split into new and duplicate ones.
func ObserveLinks(added, duplicates int) {
	Init()
	if added > 0 {
		crawlerLinksDiscoveredTotal.WithLabelValues("new").Add(float64(added))
	}
	if duplicates > 0 {
		crawlerLinksDiscoveredTotal.WithLabelValues("duplicate").Add(float64(duplicates))
	}
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	crawlerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	crawlerActiveWorkers.Dec()
}

// ActiveWorkers exposes the running-workers gauge, mainly for tests.
func ActiveWorkers() prometheus.Gauge {
	Init()
	return crawlerActiveWorkers
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveRobotsFallback counts a robots.txt probe answered with allow-all.
func ObserveRobotsFallback(site string) {
	Init()
	crawlerRobotsFallbacksTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// RobotsFallbacks exposes the fallback counter for site, mainly for tests.
func RobotsFallbacks(site string) prometheus.Counter {
	Init()
	return crawlerRobotsFallbacksTotal.WithLabelValues(SanitizeSite(site))
}

// ObserveSearch records one served query and its result count.
func ObserveSearch(results int) {
	Init()
	searchQueriesTotal.Inc()
	searchResultsReturned.Observe(float64(results))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
