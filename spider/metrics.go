package spider

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawler.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	PagesCrawledTotal *prometheus.CounterVec
	ItemsScrapedTotal *prometheus.CounterVec
	RendersTotal      prometheus.Counter
	RetriesTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_requests_total",
			Help: "Total fetch requests issued by the crawler.",
		},
		[]string{"retailer"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawler_request_duration_seconds",
			Help:    "Fetch latency including headless rendering.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pagesCrawled := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_pages_crawled_total",
			Help: "Total listing pages parsed per retailer.",
		},
		[]string{"retailer"},
	)
	itemsScraped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_items_scraped_total",
			Help: "Total items sent to the pipeline per retailer.",
		},
		[]string{"retailer"},
	)
	renders := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_renders_total",
			Help: "Total headless-browser page renders.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_retries_total",
			Help: "Total fetch retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_errors_total",
			Help: "Total crawl errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, pagesCrawled, itemsScraped, renders, retries, errorsTotal)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		PagesCrawledTotal: pagesCrawled,
		ItemsScrapedTotal: itemsScraped,
		RendersTotal:      renders,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
	}
}

// IncRequest increments the requests counter for a retailer.
func (m *Metrics) IncRequest(retailer string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(retailer).Inc()
}

// ObserveDuration records one fetch duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPages increments the pages counter for a retailer.
func (m *Metrics) IncPages(retailer string) {
	if m == nil {
		return
	}
	m.PagesCrawledTotal.WithLabelValues(retailer).Inc()
}

// IncItems adds to the items counter for a retailer.
func (m *Metrics) IncItems(retailer string, n int) {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.WithLabelValues(retailer).Add(float64(n))
}

// IncRenders increments the headless render counter.
func (m *Metrics) IncRenders() {
	if m == nil {
		return
	}
	m.RendersTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
