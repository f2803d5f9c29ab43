package diagnosis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/conf"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/datastore"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/errors"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/httpclient"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/imageasset"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/logging"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/observability/metrics"
)

// Session is the top-level diagnosis workflow. It owns the image asset, the
// configurator states, the current result and its view state, and serializes
// all mutations. Result plus view state are always replaced together; no
// intermediate mix of old and new is ever observable.
type Session struct {
	mu sync.Mutex

	asset      *imageasset.Asset
	Preprocess PreprocessSettings
	Advanced   AdvancedOptions
	Heatmap    HeatmapSettings

	result    *DiagnosisResult
	viewState *ViewState

	Selector    *ModelSelector
	Tracker     *AvailabilityTracker
	client      *InferenceClient
	interpreter *ResultInterpreter
	exporter    *ReportExporter
	history     datastore.Interface
	metrics     *metrics.DiagnosisMetrics
	logger      *slog.Logger
}

// NewSession wires a session from the configured service endpoints. The
// history store and metrics may be nil when those outputs are disabled.
func NewSession(settings *conf.Settings, client *httpclient.Client, history datastore.Interface, m *metrics.DiagnosisMetrics) *Session {
	tracker := NewAvailabilityTracker(settings, client)
	tracker.SetMetrics(m)
	return &Session{
		Preprocess:  DefaultPreprocessSettings(),
		Advanced:    DefaultAdvancedOptions(),
		Heatmap:     DefaultHeatmapSettings(),
		Selector:    NewModelSelector(tracker),
		Tracker:     tracker,
		client:      NewInferenceClient(settings, client, m),
		interpreter: NewResultInterpreter(),
		exporter:    NewReportExporter(settings, client, m),
		history:     history,
		metrics:     m,
		logger:      logging.ServiceLogger("session"),
	}
}

// SetFile loads an image from disk as the session's working asset. A failed
// load leaves the previous asset and result in place.
func (s *Session) SetFile(path string) error {
	asset, err := imageasset.Load(path)
	if err != nil {
		return err
	}
	s.SetAsset(asset)
	s.logger.Info("Image selected",
		"filename", asset.Filename,
		"format", asset.Format,
		"width", asset.Width,
		"height", asset.Height)
	return nil
}

// SetAsset installs an already-loaded asset, e.g. one received over the
// gateway as an upload. Selecting a new image discards the previous result
// and view state; a response still in flight for the old image is
// invalidated so it cannot resurface as the new image's diagnosis.
func (s *Session) SetAsset(asset *imageasset.Asset) {
	s.client.Invalidate()
	s.mu.Lock()
	s.asset = asset
	s.result = nil
	s.viewState = nil
	s.mu.Unlock()
}

// UpdateSettings applies a configurator mutation under the session lock.
// The callback operates on copies; a returned error discards all of its
// edits, so a rejected batch never leaves partial state behind.
func (s *Session) UpdateSettings(apply func(p *PreprocessSettings, a *AdvancedOptions, h *HeatmapSettings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, a, h := s.Preprocess, s.Advanced, s.Heatmap
	if err := apply(&p, &a, &h); err != nil {
		return err
	}
	s.Preprocess, s.Advanced, s.Heatmap = p, a, h
	return nil
}

// Asset returns the current working asset, nil when none is selected.
func (s *Session) Asset() *imageasset.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asset
}

// Result returns the current diagnosis result and its view state. Both are
// nil until the first successful submission.
func (s *Session) Result() (*DiagnosisResult, *ViewState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.viewState
}

// Submit snapshots the current configurator states, performs the inference
// round trip and atomically installs the interpreted result. Settings changed
// after the snapshot do not affect the outcome. On any failure the previous
// result and view state survive unchanged.
func (s *Session) Submit(ctx context.Context) (*DiagnosisResult, error) {
	s.mu.Lock()
	builder := RequestBuilder{
		Asset:      s.asset,
		Model:      s.Selector.Current(),
		Preprocess: s.Preprocess,
		Advanced:   s.Advanced,
		Heatmap:    s.Heatmap,
	}
	s.mu.Unlock()

	req, err := builder.Build()
	if err != nil {
		return nil, err
	}

	raw, generation, err := s.client.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	result, viewState, err := s.interpreter.Interpret(raw)
	if err != nil {
		return nil, err
	}

	// The generation is re-checked under the session lock: a reset or new
	// file selection landing after the round trip completed must not be
	// overwritten by this response.
	s.mu.Lock()
	if s.client.Generation() != generation {
		s.mu.Unlock()
		return nil, errors.New(ErrStaleResponse).
			Component("diagnosis").
			Category(errors.CategoryState).
			Context("request_id", req.ID).
			Build()
	}
	s.result = result
	s.viewState = viewState
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordConfidence(result.Confidence)
	}
	s.logger.Info("Diagnosis complete",
		"request_id", req.ID,
		"class", result.PredictedClass,
		"confidence", result.Confidence,
		"model", result.ModelUsed,
		"high_confidence", result.HighConfidence())

	s.saveHistory(req, result)
	return result, nil
}

// Reset returns the session to its initial working state: the asset, result,
// view state and preprocessing adjustments are cleared. Heatmap and advanced
// option states survive a reset. Any in-flight response is invalidated so it
// cannot repopulate the cleared state.
func (s *Session) Reset() {
	s.client.Invalidate()
	s.mu.Lock()
	s.asset = nil
	s.result = nil
	s.viewState = nil
	s.Preprocess.Reset()
	s.mu.Unlock()
	s.logger.Info("Session reset")
}

// GenerateReport exports the current result as a diagnostic document. It is
// rejected when no result exists and never modifies session state.
func (s *Session) GenerateReport(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	result := s.result
	s.mu.Unlock()
	if result == nil {
		return nil, errors.New(ErrNoResult).
			Component("report").
			Category(errors.CategoryValidation).
			Build()
	}
	return s.exporter.Export(ctx, result)
}

// saveHistory persists a completed diagnosis. History is best-effort: a
// storage failure is logged and does not affect the returned result.
func (s *Session) saveHistory(req *InferenceRequest, result *DiagnosisResult) {
	if s.history == nil {
		return
	}

	now := time.Now()
	record := &datastore.Record{
		RequestID:      req.ID,
		Date:           now.Format("2006-01-02"),
		Time:           now.Format("15:04:05"),
		Filename:       req.Asset.Filename,
		Model:          result.ModelUsed,
		PredictedClass: result.PredictedClass,
		Confidence:     result.Confidence,
		InferenceTime:  result.InferenceTime,
		BeginTime:      now,
	}
	if result.Uncertainty != nil {
		record.Uncertainty = result.Uncertainty.UncertaintyScore
		record.Entropy = result.Uncertainty.Entropy
	}
	for i, p := range result.Top3 {
		record.Top3 = append(record.Top3, datastore.TopEntry{
			Rank:       i + 1,
			Class:      p.Class,
			Confidence: p.Confidence,
		})
	}

	if err := s.history.Save(record); err != nil {
		s.logger.Error("Failed to save diagnosis to history",
			"request_id", req.ID,
			"error", err)
	}
}
