package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jonathan/plan-auditor/internal/parsing"
	"github.com/jonathan/plan-auditor/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for analyses, crawls and HTTP traffic.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	analyses        *prometheus.CounterVec
	analysisSeconds prometheus.Histogram
	anomalies       *prometheus.CounterVec
	completionRate  prometheus.Histogram
	crawlPages      *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plan_analyses_total",
			Help: "Plan pages analyzed, by outcome",
		}, []string{"outcome"}),
		analysisSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plan_analysis_duration_seconds",
			Help:    "Time to decode, aggregate and rank one plan page",
			Buckets: prometheus.DefBuckets,
		}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plan_decode_anomalies_total",
			Help: "Decoding anomalies, by kind",
		}, []string{"kind"}),
		completionRate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plan_completion_rate_percent",
			Help:    "Completion rate of analyzed plans",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		crawlPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "review_crawl_pages_total",
			Help: "Review pages fetched, by outcome",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups, by result",
		}, []string{"result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}

	registry.MustRegister(m.analyses, m.analysisSeconds, m.anomalies, m.completionRate,
		m.crawlPages, m.cacheLookups, m.requestDuration, m.requestTotal)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAnalysis records one analysis. An empty report counts as "empty".
func (m *Metrics) ObserveAnalysis(report *types.Report, diag parsing.Diagnostics, duration time.Duration) {
	if m == nil {
		return
	}
	m.analysisSeconds.Observe(duration.Seconds())
	for _, a := range diag.Anomalies {
		m.anomalies.WithLabelValues(string(a.Kind)).Inc()
	}
	if report == nil || report.IsEmpty() {
		m.analyses.WithLabelValues("empty").Inc()
		return
	}
	m.analyses.WithLabelValues("ok").Inc()
	m.completionRate.Observe(report.Summary.CompletionRate)
}

// ObserveAnalysisError records a failed analysis.
func (m *Metrics) ObserveAnalysisError() {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues("error").Inc()
}

// ObserveCrawl records page outcomes of a crawl.
func (m *Metrics) ObserveCrawl(pages, failed int) {
	if m == nil {
		return
	}
	m.crawlPages.WithLabelValues("ok").Add(float64(pages - failed))
	m.crawlPages.WithLabelValues("failed").Add(float64(failed))
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}

// ObserveHTTPRequest records request metrics.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}
