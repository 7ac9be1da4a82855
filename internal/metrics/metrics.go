// Package metrics exposes Prometheus instruments on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TobiSchelling/annograph/internal/decode"
)

const namespace = "annograph"

type Metrics struct {
	registry *prometheus.Registry

	decodeTotal      *prometheus.CounterVec
	analysisTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	documents        prometheus.Gauge
	identities       prometheus.Gauge
	cacheTotal       *prometheus.CounterVec

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	decodeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "fields_total",
			Help:      "Decoded annotation fields by field and outcome.",
		},
		[]string{"field", "outcome"},
	)
	analysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Completed analysis runs by status.",
		},
		[]string{"status"},
	)
	analysisDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Analysis run duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	documents := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "documents",
			Help:      "Documents in the current snapshot.",
		},
	)
	identities := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "identities",
			Help:      "Distinct entity identities in the current snapshot.",
		},
	)
	cacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "cache_lookups_total",
			Help:      "Snapshot cache lookups by result.",
		},
		[]string{"result"},
	)
	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		},
	)

	registry.MustRegister(
		decodeTotal,
		analysisTotal,
		analysisDuration,
		documents,
		identities,
		cacheTotal,
		requestTotal,
		requestDuration,
		requestInFlight,
	)

	return &Metrics{
		registry:         registry,
		decodeTotal:      decodeTotal,
		analysisTotal:    analysisTotal,
		analysisDuration: analysisDuration,
		documents:        documents,
		identities:       identities,
		cacheTotal:       cacheTotal,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe implements decode.Observer.
func (m *Metrics) Observe(field decode.Field, outcome decode.Outcome) {
	m.decodeTotal.WithLabelValues(string(field), string(outcome)).Inc()
}

func (m *Metrics) RecordAnalysis(duration time.Duration, documents, identities int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.analysisTotal.WithLabelValues(status).Inc()
	m.analysisDuration.Observe(duration.Seconds())
	if err == nil {
		m.documents.Set(float64(documents))
		m.identities.Set(float64(identities))
	}
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		// ServeMux records the matched pattern on the request.
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
