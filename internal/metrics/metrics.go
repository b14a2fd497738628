package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP and domain collectors for one service.
type Metrics struct {
	ServiceName string

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	statusCategory *prometheus.CounterVec
	quotations     *prometheus.CounterVec
	emails         *prometheus.CounterVec
	resets         prometheus.Counter
}

// New creates and registers the collectors on reg.
func New(serviceName string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ServiceName: serviceName,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "method", "path", "status"},
		),
		statusCategory: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_status_category_total",
				Help: "Total number of responses by status category (2xx, 3xx, 4xx, 5xx)",
			},
			[]string{"service", "category"},
		),
		quotations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotations_created_total",
				Help: "Quotations persisted, by company profile",
			},
			[]string{"profile"},
		),
		emails: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotation_emails_total",
				Help: "Quotation emails by kind (full, link) and outcome",
			},
			[]string{"kind", "outcome"},
		),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotation_numbering_resets_total",
			Help: "Times the quotation numbering was reset",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.statusCategory, m.quotations, m.emails, m.resets)
	return m
}

// QuotationCreated counts a persisted quotation.
func (m *Metrics) QuotationCreated(profile string) {
	if m == nil {
		return
	}
	m.quotations.WithLabelValues(profile).Inc()
}

// EmailSent records the outcome of one send attempt.
func (m *Metrics) EmailSent(kind, outcome string) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(kind, outcome).Inc()
}

// NumberingReset counts a reset.
func (m *Metrics) NumberingReset() {
	if m == nil {
		return
	}
	m.resets.Inc()
}

func category(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request metrics. It must wrap the ServeMux directly so
// the matched route pattern is visible on the request after dispatch.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(sw.status)
		m.requests.WithLabelValues(m.ServiceName, r.Method, path, status).Inc()
		m.statusCategory.WithLabelValues(m.ServiceName, category(sw.status)).Inc()
		m.duration.WithLabelValues(m.ServiceName, r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
