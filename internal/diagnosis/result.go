package diagnosis

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/antonholmquist/jason"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/errors"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/logging"
)

// HighConfidenceThreshold marks the percentage above which a prediction gets
// the high-confidence indicator.
const HighConfidenceThreshold = 90.0

// TopPrediction is one entry of the top-k candidate list. Confidence here is
// a fraction in [0,1], unlike the top-level percentage.
type TopPrediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Uncertainty carries the engine's prediction-spread measures, passed through
// unchanged.
type Uncertainty struct {
	UncertaintyScore float64 `json:"uncertainty_score"`
	Entropy          float64 `json:"entropy"`
}

// ModelMetric is one per-model entry of the ensemble breakdown.
type ModelMetric struct {
	PredictedClass string  `json:"predicted_class"`
	Confidence     float64 `json:"confidence"`
}

// DiagnosisResult is the interpreted inference response. It is created
// atomically from a successful response and replaced wholesale by the next
// one; optional artifact fields are present only if the corresponding toggle
// was set on the request that produced them.
type DiagnosisResult struct {
	PredictedClass string          `json:"predicted_class"`
	Confidence     float64         `json:"confidence"` // percentage, 0-100
	Top3           []TopPrediction `json:"top3"`
	InferenceTime  float64         `json:"inference_time"`
	ModelUsed      string          `json:"model_used"`

	Uncertainty       *Uncertainty           `json:"uncertainty,omitempty"`
	ModelMetrics      map[string]ModelMetric `json:"model_metrics,omitempty"`
	GradCAM           string                 `json:"gradcam_base64,omitempty"`
	MultilayerGradCAM map[string]string      `json:"multilayer_gradcam,omitempty"`
	AttentionRollout  string                 `json:"attention_rollout_base64,omitempty"`
	Mask              string                 `json:"mask_base64,omitempty"`
}

// HighConfidence reports whether the prediction qualifies for the
// high-confidence indicator.
func (r *DiagnosisResult) HighConfidence() bool {
	return r.Confidence >= HighConfidenceThreshold
}

// VisualizationMode identifies which result artifact is displayed.
type VisualizationMode string

const (
	ModeComparative VisualizationMode = "comparative"
	ModeMultilayer  VisualizationMode = "multilayer"
	ModeAttention   VisualizationMode = "attention"
	ModeMask        VisualizationMode = "mask"
)

// allModes lists the modes in presentation order.
var allModes = []VisualizationMode{ModeComparative, ModeMultilayer, ModeAttention, ModeMask}

// ViewState is the presentation-ready view over one DiagnosisResult: the
// selected mode plus a capability map computed once per result. The mode
// always resolves to an enabled option.
type ViewState struct {
	Mode    VisualizationMode
	enabled map[VisualizationMode]bool
}

// newViewState derives the capability map from artifact presence. The
// comparative mode is always enabled; the default mode is comparative
// regardless of which optional artifacts are present.
func newViewState(result *DiagnosisResult) *ViewState {
	return &ViewState{
		Mode: ModeComparative,
		enabled: map[VisualizationMode]bool{
			ModeComparative: true,
			ModeMultilayer:  len(result.MultilayerGradCAM) > 0,
			ModeAttention:   result.AttentionRollout != "",
			ModeMask:        result.Mask != "",
		},
	}
}

// Enabled reports whether the given mode may be selected.
func (v *ViewState) Enabled(mode VisualizationMode) bool {
	return v.enabled[mode]
}

// EnabledModes returns the selectable modes in presentation order.
func (v *ViewState) EnabledModes() []VisualizationMode {
	modes := make([]VisualizationMode, 0, len(allModes))
	for _, m := range allModes {
		if v.enabled[m] {
			modes = append(modes, m)
		}
	}
	return modes
}

// SelectMode switches the displayed artifact. Disabled and unknown modes are
// rejected, leaving the current mode unchanged.
func (v *ViewState) SelectMode(mode VisualizationMode) error {
	if !v.enabled[mode] {
		return errors.Newf("visualization mode %q is not enabled for this result", string(mode)).
			Component("diagnosis").
			Category(errors.CategoryState).
			Context("mode", string(mode)).
			Build()
	}
	v.Mode = mode
	return nil
}

// mandatoryFields are the response fields whose absence makes the payload a
// contract violation rather than a transient fault.
var mandatoryFields = []string{"predicted_class", "confidence", "top3", "inference_time", "model_used"}

// ResultInterpreter maps the raw response payload into the typed result and
// its derived view state.
type ResultInterpreter struct {
	logger *slog.Logger
}

// NewResultInterpreter creates an interpreter.
func NewResultInterpreter() *ResultInterpreter {
	return &ResultInterpreter{logger: logging.ServiceLogger("interpreter")}
}

// Interpret validates the mandatory fields and unmarshals the payload.
// Optional artifact fields are carried through unchanged. The top3 ordering
// is trusted as delivered by the engine; it is not re-sorted here. On any
// failure no view state is produced.
func (i *ResultInterpreter) Interpret(raw []byte) (*DiagnosisResult, *ViewState, error) {
	obj, err := jason.NewObjectFromBytes(raw)
	if err != nil {
		return nil, nil, i.malformed(fmt.Errorf("response is not a JSON object: %w", err), "")
	}

	for _, field := range mandatoryFields {
		if _, err := obj.GetValue(field); err != nil {
			return nil, nil, i.malformed(fmt.Errorf("response is missing mandatory field %q", field), field)
		}
	}

	var result DiagnosisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, nil, i.malformed(fmt.Errorf("failed to decode response: %w", err), "")
	}

	view := newViewState(&result)

	i.logger.Info("Inference response interpreted",
		"predicted_class", result.PredictedClass,
		"confidence", result.Confidence,
		"model_used", result.ModelUsed,
		"inference_time", result.InferenceTime,
		"high_confidence", result.HighConfidence(),
		"enabled_modes", len(view.EnabledModes()))

	return &result, view, nil
}

// malformed builds the distinctly-logged contract-violation error. Malformed
// responses surface to the user as server-class failures but are logged
// separately because they indicate a contract break, not a transient fault.
func (i *ResultInterpreter) malformed(err error, field string) error {
	i.logger.Error("Inference response violates the result contract", "error", err, "field", field)
	eb := errors.New(err).
		Component("diagnosis").
		Category(errors.CategoryMalformedResponse)
	if field != "" {
		eb = eb.Context("field", field)
	}
	return eb.Build()
}
