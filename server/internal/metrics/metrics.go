package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "checkfeed"

// Page outcomes used as the "outcome" label of checkfeed_pages_total.
const (
	OutcomeOK                 = "ok"
	OutcomeUnavailable        = "unavailable"
	OutcomeElementCardinality = "element_cardinality"
	OutcomeSchemaMismatch     = "schema_mismatch"
)

// Metrics is responsible for holding the collectors for Prometheus.
type Metrics struct {
	reg *prometheus.Registry

	Pages               *prometheus.CounterVec
	RowsSkipped         prometheus.Counter
	UpstreamDuration    *prometheus.HistogramVec
	UpstreamUp          prometheus.Gauge
	HTTPRequestDuration *prometheus.HistogramVec
}

// New builds the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Pages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_total",
				Help:      "number of pages served, by outcome",
			},
			[]string{"outcome"},
		),
		RowsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_skipped_total",
				Help:      "number of table rows skipped because the result date could not be decoded",
			},
		),
		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "management system request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"op", "outcome"},
		),
		UpstreamUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "upstream_up",
				Help:      "1 if exactly one health check element resolved on the last probe",
			},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "http request duration in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"status", "path"},
		),
	}
	m.reg.MustRegister(
		m.Pages,
		m.RowsSkipped,
		m.UpstreamDuration,
		m.UpstreamUp,
		m.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObservePage counts one served page.
func (m *Metrics) ObservePage(outcome string) {
	if m == nil {
		return
	}
	m.Pages.WithLabelValues(outcome).Inc()
}

// AddSkippedRows counts rows dropped during decoding.
func (m *Metrics) AddSkippedRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsSkipped.Add(float64(n))
}

// ObserveUpstream records the duration of one management system call.
func (m *Metrics) ObserveUpstream(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

// SetUpstreamUp records the result of the last element probe.
func (m *Metrics) SetUpstreamUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.UpstreamUp.Set(1)
	} else {
		m.UpstreamUp.Set(0)
	}
}

// traceResponseWriter captures the status code written by a handler.
type traceResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *traceResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// PathOther is the path label for requests outside the instrumented routes.
const PathOther = "other"

// Instrument wraps h so every request's latency is observed by status and
// path. Only the given routes get their own path label; any other path, and
// any 404, is recorded as PathOther so clients cannot mint new series.
func (m *Metrics) Instrument(h http.Handler, routes ...string) http.Handler {
	return m.instrument(h, routes, time.Since)
}

func (m *Metrics) instrument(h http.Handler, routes []string, since func(time.Time) time.Duration) http.Handler {
	if m == nil {
		return h
	}
	known := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		known[r] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		trw := &traceResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		h.ServeHTTP(trw, r)

		path := r.URL.Path
		if _, ok := known[path]; !ok || trw.statusCode == http.StatusNotFound {
			path = PathOther
		}
		m.HTTPRequestDuration.
			WithLabelValues(strconv.Itoa(trw.statusCode), path).
			Observe(since(start).Seconds())
	})
}
