package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosisMetricsRecorders(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewDiagnosisMetrics(registry)
	require.NoError(t, err)

	m.RecordInference("ensemble", "success")
	m.RecordProbe("cached")
	m.RecordReportExport("error")
	m.RecordBackendResponse("POST", "200")
	m.RecordBackendResponse("POST", "error")
	m.RecordBackendResponse("POST", "error")

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.inferenceRequestsTotal.WithLabelValues("ensemble", "success")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.probeTotal.WithLabelValues("cached")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.reportExportsTotal.WithLabelValues("error")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.backendResponsesTotal.WithLabelValues("POST", "200")), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.backendResponsesTotal.WithLabelValues("POST", "error")), 1e-9)
}

func TestDiagnosisMetricsDoubleRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewDiagnosisMetrics(registry)
	require.NoError(t, err)

	_, err = NewDiagnosisMetrics(registry)
	assert.Error(t, err, "the same registry rejects a second collector")
}
