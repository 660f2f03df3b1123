package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalRequestsTotal  *prometheus.CounterVec
	retrievalStrategyTotal  *prometheus.CounterVec
	retrievalHitTotal       *prometheus.CounterVec
	retrievalNoContextTotal *prometheus.CounterVec
	retrievalCandidates     *prometheus.HistogramVec
	retrievalDuration       *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finsight",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "finsight",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total completed retrieval requests.",
		},
		[]string{"service", "endpoint"},
	)
	retrievalStrategyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "retrieval",
			Name:      "strategy_requests_total",
			Help:      "Total completed retrieval requests by effective strategy.",
		},
		[]string{"service", "endpoint", "strategy"},
	)
	retrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "retrieval",
			Name:      "hit_total",
			Help:      "Total retrieval requests with at least one candidate.",
		},
		[]string{"service", "endpoint"},
	)
	retrievalNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "retrieval",
			Name:      "no_context_total",
			Help:      "Total retrieval requests that returned no candidates.",
		},
		[]string{"service", "endpoint"},
	)
	retrievalCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finsight",
			Subsystem: "retrieval",
			Name:      "retrieved_candidates",
			Help:      "Distribution of candidates returned per retrieval request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service", "endpoint"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finsight",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalRequestsTotal,
		retrievalStrategyTotal,
		retrievalHitTotal,
		retrievalNoContextTotal,
		retrievalCandidates,
		retrievalDuration,
	)

	return &HTTPServerMetrics{
		registry:                registry,
		requestTotal:            requestTotal,
		requestDuration:         requestDuration,
		requestInFlight:         requestInFlight,
		retrievalRequestsTotal:  retrievalRequestsTotal,
		retrievalStrategyTotal:  retrievalStrategyTotal,
		retrievalHitTotal:       retrievalHitTotal,
		retrievalNoContextTotal: retrievalNoContextTotal,
		retrievalCandidates:     retrievalCandidates,
		retrievalDuration:       retrievalDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses per-report paths into one label value.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/v1/reports/") {
		return path
	}
	if strings.HasSuffix(path, "/jobs") {
		return "/v1/reports/{report_id}/jobs"
	}
	return "/v1/reports/{report_id}"
}

func (m *HTTPServerMetrics) RecordRetrievalObservation(service, endpoint string, candidateCount int, duration time.Duration) {
	m.retrievalRequestsTotal.WithLabelValues(service, endpoint).Inc()
	m.retrievalCandidates.WithLabelValues(service, endpoint).Observe(float64(candidateCount))
	m.retrievalDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if candidateCount > 0 {
		m.retrievalHitTotal.WithLabelValues(service, endpoint).Inc()
		return
	}
	m.retrievalNoContextTotal.WithLabelValues(service, endpoint).Inc()
}

func (m *HTTPServerMetrics) RecordRetrievalStrategy(service, endpoint, strategy string) {
	if strategy == "" {
		strategy = "unknown"
	}
	m.retrievalStrategyTotal.WithLabelValues(service, endpoint, strategy).Inc()
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
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
