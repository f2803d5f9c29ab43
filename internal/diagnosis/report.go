package diagnosis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/conf"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/errors"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/httpclient"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/logging"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/observability/metrics"
)

// ErrNoResult is returned when report generation is requested before any
// diagnosis result exists.
var ErrNoResult = errors.NewStd("no diagnosis result available for report generation")

// Report is a generated diagnostic document ready for delivery.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
	GeneratedAt time.Time
}

// ReportExporter serializes a diagnosis result and exchanges it for a
// rendered document. Export never mutates the result or any view state; a
// failed export leaves the session exactly as it was.
type ReportExporter struct {
	baseURL  string
	endpoint string
	filename string
	timeout  time.Duration

	httpClient *httpclient.Client
	logger     *slog.Logger
	metrics    *metrics.DiagnosisMetrics
}

// NewReportExporter creates an exporter against the configured service.
// The metrics argument may be nil.
func NewReportExporter(settings *conf.Settings, client *httpclient.Client, m *metrics.DiagnosisMetrics) *ReportExporter {
	return &ReportExporter{
		baseURL:    settings.Service.BaseURL,
		endpoint:   settings.Report.Endpoint,
		filename:   settings.Report.Filename,
		timeout:    time.Duration(settings.Report.Timeout) * time.Second,
		httpClient: client,
		logger:     logging.ServiceLogger("report"),
		metrics:    m,
	}
}

// Export submits the result to the report service and returns the rendered
// document under the configured filename.
func (e *ReportExporter) Export(ctx context.Context, result *DiagnosisResult) (*Report, error) {
	if result == nil {
		e.recordExport("rejected")
		return nil, errors.New(ErrNoResult).
			Component("report").
			Category(errors.CategoryValidation).
			Build()
	}

	payload, err := json.Marshal(result)
	if err != nil {
		e.recordExport("error")
		return nil, errors.New(fmt.Errorf("failed to serialize diagnosis result: %w", err)).
			Component("report").
			Category(errors.CategoryReportExport).
			Build()
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	endpoint := e.baseURL + e.endpoint
	start := time.Now()
	resp, err := e.httpClient.Post(reqCtx, endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		e.recordExport("error")
		e.logger.Error("Report generation request failed",
			"url", endpoint,
			"error", err)
		return nil, errors.New(fmt.Errorf("error generating report: %w", err)).
			Component("report").
			Category(errors.CategoryReportExport).
			NetworkContext(endpoint, e.timeout).
			Timing("report-export", time.Since(start)).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		e.recordExport("error")
		return nil, errors.New(fmt.Errorf("error generating report: failed to read document: %w", err)).
			Component("report").
			Category(errors.CategoryReportExport).
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		e.recordExport("error")
		e.logger.Warn("Report service returned non-success status",
			"url", endpoint,
			"status_code", resp.StatusCode)
		return nil, errors.Newf("error generating report: service returned status %d", resp.StatusCode).
			Component("report").
			Category(errors.CategoryReportExport).
			Context("status_code", resp.StatusCode).
			Timing("report-export", time.Since(start)).
			Build()
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	e.recordExport("success")
	e.logger.Info("Report generated",
		"url", endpoint,
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds())

	return &Report{
		Filename:    e.filename,
		ContentType: contentType,
		Data:        data,
		GeneratedAt: time.Now(),
	}, nil
}

func (e *ReportExporter) recordExport(status string) {
	if e.metrics != nil {
		e.metrics.RecordReportExport(status)
	}
}
