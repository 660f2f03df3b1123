package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	pagesIndexed    *prometheus.HistogramVec
	tablesIndexed   *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "worker",
			Name:      "report_process_total",
			Help:      "Total processed reports by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finsight",
			Subsystem: "worker",
			Name:      "report_process_duration_seconds",
			Help:      "Report processing duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "finsight",
			Subsystem: "worker",
			Name:      "report_process_in_flight",
			Help:      "Number of in-flight report processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pagesIndexed := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finsight",
			Subsystem: "worker",
			Name:      "report_pages_indexed",
			Help:      "Distribution of text pages indexed per report.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"service"},
	)
	tablesIndexed := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finsight",
			Subsystem: "worker",
			Name:      "report_tables_indexed",
			Help:      "Distribution of tables indexed per report.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, pagesIndexed, tablesIndexed)

	return &WorkerMetrics{
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		pagesIndexed:    pagesIndexed,
		tablesIndexed:   tablesIndexed,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartReport() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishReport(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveIndexedCounts(service string, pages, tables int) {
	m.pagesIndexed.WithLabelValues(service).Observe(float64(pages))
	m.tablesIndexed.WithLabelValues(service).Observe(float64(tables))
}
