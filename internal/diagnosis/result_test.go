package diagnosis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/errors"
)

func TestInterpretValidResponse(t *testing.T) {
	t.Parallel()

	interp := NewResultInterpreter()
	result, view, err := interp.Interpret([]byte(validResultJSON()))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotNil(t, view)

	assert.Equal(t, "polyps", result.PredictedClass)
	assert.InDelta(t, 94.2, result.Confidence, 1e-9)
	assert.Len(t, result.Top3, 3)
	for i := 1; i < len(result.Top3); i++ {
		assert.LessOrEqual(t, result.Top3[i].Confidence, result.Top3[i-1].Confidence,
			"top3 must be ordered by descending confidence")
	}
	assert.Equal(t, "ensemble", result.ModelUsed)
	assert.True(t, result.HighConfidence())
	assert.Nil(t, result.Uncertainty)
}

func TestInterpretMissingMandatoryField(t *testing.T) {
	t.Parallel()

	interp := NewResultInterpreter()

	for _, field := range []string{"predicted_class", "confidence", "top3", "inference_time", "model_used"} {
		t.Run(field, func(t *testing.T) {
			t.Parallel()

			var payload map[string]json.RawMessage
			require.NoError(t, json.Unmarshal([]byte(validResultJSON()), &payload))
			delete(payload, field)
			raw, err := json.Marshal(payload)
			require.NoError(t, err)

			result, view, err := interp.Interpret(raw)
			require.Error(t, err)
			assert.Nil(t, result, "no result is produced from a contract-violating payload")
			assert.Nil(t, view)
			assert.True(t, errors.IsCategory(err, errors.CategoryMalformedResponse))
			assert.Contains(t, err.Error(), field)
		})
	}
}

func TestInterpretNonJSONResponse(t *testing.T) {
	t.Parallel()

	interp := NewResultInterpreter()
	result, view, err := interp.Interpret([]byte("<html>502 Bad Gateway</html>"))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Nil(t, view)
	assert.True(t, errors.IsCategory(err, errors.CategoryMalformedResponse))
}

func TestInterpretOptionalArtifacts(t *testing.T) {
	t.Parallel()

	payload := `{
		"predicted_class": "esophagitis",
		"confidence": 71.5,
		"top3": [{"class": "esophagitis", "confidence": 0.715}],
		"inference_time": 1.2,
		"model_used": "deit3",
		"uncertainty": {"uncertainty_score": 0.22, "entropy": 0.9},
		"gradcam_base64": "aGVhdG1hcA==",
		"multilayer_gradcam": {"layer1": "YQ==", "layer2": "Yg=="},
		"attention_rollout_base64": "cm9sbG91dA=="
	}`

	interp := NewResultInterpreter()
	result, view, err := interp.Interpret([]byte(payload))
	require.NoError(t, err)

	require.NotNil(t, result.Uncertainty)
	assert.InDelta(t, 0.22, result.Uncertainty.UncertaintyScore, 1e-9)
	assert.InDelta(t, 0.9, result.Uncertainty.Entropy, 1e-9)
	assert.False(t, result.HighConfidence())

	assert.True(t, view.Enabled(ModeComparative))
	assert.True(t, view.Enabled(ModeMultilayer))
	assert.True(t, view.Enabled(ModeAttention))
	assert.False(t, view.Enabled(ModeMask), "mask view requires the mask artifact")
}

func TestViewStateDefaultsToComparative(t *testing.T) {
	t.Parallel()

	interp := NewResultInterpreter()
	_, view, err := interp.Interpret([]byte(validResultJSON()))
	require.NoError(t, err)

	assert.Equal(t, ModeComparative, view.Mode)
	assert.Equal(t, []VisualizationMode{ModeComparative}, view.EnabledModes())
}

func TestViewStateSelectMode(t *testing.T) {
	t.Parallel()

	payload := `{
		"predicted_class": "normal",
		"confidence": 88.0,
		"top3": [{"class": "normal", "confidence": 0.88}],
		"inference_time": 0.5,
		"model_used": "vit",
		"mask_base64": "bWFzaw=="
	}`

	interp := NewResultInterpreter()
	_, view, err := interp.Interpret([]byte(payload))
	require.NoError(t, err)

	require.NoError(t, view.SelectMode(ModeMask))
	assert.Equal(t, ModeMask, view.Mode)

	err = view.SelectMode(ModeAttention)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
	assert.Equal(t, ModeMask, view.Mode, "a rejected selection leaves the mode unchanged")

	err = view.SelectMode(VisualizationMode("hologram"))
	require.Error(t, err)
	assert.Equal(t, ModeMask, view.Mode)
}

func TestHighConfidenceThresholdBoundary(t *testing.T) {
	t.Parallel()

	r := DiagnosisResult{Confidence: 90.0}
	assert.True(t, r.HighConfidence())
	r.Confidence = 89.99
	assert.False(t, r.HighConfidence())
}
