// Package metrics provides Prometheus metrics for the diagnostic workflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DiagnosisMetrics contains Prometheus metrics for the orchestration pipeline:
// inference submissions, capability probes and report exports.
type DiagnosisMetrics struct {
	registry *prometheus.Registry

	inferenceRequestsTotal *prometheus.CounterVec
	inferenceDuration      *prometheus.HistogramVec
	probeTotal             *prometheus.CounterVec
	reportExportsTotal     *prometheus.CounterVec
	resultConfidence       prometheus.Histogram
	backendResponsesTotal  *prometheus.CounterVec
}

// NewDiagnosisMetrics creates and registers new diagnosis metrics.
func NewDiagnosisMetrics(registry *prometheus.Registry) (*DiagnosisMetrics, error) {
	m := &DiagnosisMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *DiagnosisMetrics) initMetrics() {
	m.inferenceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inference_requests_total",
			Help: "Total number of inference submissions",
		},
		[]string{"model", "status"}, // status: success, rejected, network_error, server_error, malformed, discarded
	)

	m.inferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inference_request_duration_seconds",
			Help:    "Time taken for inference round trips",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
		[]string{"model"},
	)

	m.probeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capability_probes_total",
			Help: "Total number of capability probes",
		},
		[]string{"status"}, // status: success, error, cached
	)

	m.reportExportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_exports_total",
			Help: "Total number of report export attempts",
		},
		[]string{"status"}, // status: success, error
	)

	m.backendResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_responses_total",
			Help: "Total outbound HTTP exchanges with the inference backend",
		},
		[]string{"method", "status"}, // status: numeric HTTP code, or "error" for transport failures
	)

	m.resultConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "diagnosis_confidence_percent",
			Help:    "Distribution of top prediction confidence percentages",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0% to 100%
		},
	)
}

// RecordInference records one inference submission outcome.
func (m *DiagnosisMetrics) RecordInference(model, status string) {
	m.inferenceRequestsTotal.WithLabelValues(model, status).Inc()
}

// RecordInferenceDuration records the wall time of one inference round trip.
func (m *DiagnosisMetrics) RecordInferenceDuration(model string, seconds float64) {
	m.inferenceDuration.WithLabelValues(model).Observe(seconds)
}

// RecordProbe records one capability probe outcome.
func (m *DiagnosisMetrics) RecordProbe(status string) {
	m.probeTotal.WithLabelValues(status).Inc()
}

// RecordReportExport records one report export outcome.
func (m *DiagnosisMetrics) RecordReportExport(status string) {
	m.reportExportsTotal.WithLabelValues(status).Inc()
}

// RecordConfidence records the confidence of an interpreted result.
func (m *DiagnosisMetrics) RecordConfidence(percent float64) {
	m.resultConfidence.Observe(percent)
}

// RecordBackendResponse records one outbound HTTP exchange; fed through the
// http client's after-response hook.
func (m *DiagnosisMetrics) RecordBackendResponse(method, status string) {
	m.backendResponsesTotal.WithLabelValues(method, status).Inc()
}

// Describe implements prometheus.Collector
func (m *DiagnosisMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.inferenceRequestsTotal.Describe(ch)
	m.inferenceDuration.Describe(ch)
	m.probeTotal.Describe(ch)
	m.reportExportsTotal.Describe(ch)
	m.resultConfidence.Describe(ch)
	m.backendResponsesTotal.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *DiagnosisMetrics) Collect(ch chan<- prometheus.Metric) {
	m.inferenceRequestsTotal.Collect(ch)
	m.inferenceDuration.Collect(ch)
	m.probeTotal.Collect(ch)
	m.reportExportsTotal.Collect(ch)
	m.resultConfidence.Collect(ch)
	m.backendResponsesTotal.Collect(ch)
}
