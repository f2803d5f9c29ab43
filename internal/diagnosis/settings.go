// Package diagnosis implements the request-configuration and
// response-interpretation pipeline for the explainable-AI diagnostic
// workflow: configuration groups are accumulated into one outbound inference
// request, dispatched with at-most-one-in-flight semantics, and the
// heterogeneous response payload is mapped into a typed view state.
package diagnosis

import (
	"math"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/errors"
)

// Value domains for the preprocess and heatmap sliders. These match the
// inference engine's accepted input ranges; out-of-range values are rejected
// at the setter, never silently clamped.
const (
	BrightnessMin = 0.5
	BrightnessMax = 2.0
	ContrastMin   = 0.5
	ContrastMax   = 2.0

	RotationSliderMin  = -180.0
	RotationSliderMax  = 180.0
	RotationSliderStep = 15.0

	HeatmapAlphaMin = 0.0
	HeatmapAlphaMax = 1.0
	SigmaMin        = 0.5
	SigmaMax        = 5.0
	ContourMin      = 0.3
	ContourMax      = 0.9
)

// PreprocessSettings holds the geometric and tonal adjustments applied by the
// inference engine before analysis. All numeric fields stay within their
// declared ranges; rotation is the exception, see SetRotation.
type PreprocessSettings struct {
	Brightness float64
	Contrast   float64
	Rotation   float64
	FlipH      bool
	FlipV      bool
	Enhance    bool
	Sharpen    bool
}

// DefaultPreprocessSettings returns the documented default tuple.
func DefaultPreprocessSettings() PreprocessSettings {
	return PreprocessSettings{
		Brightness: 1.0,
		Contrast:   1.0,
		Rotation:   0,
	}
}

// Reset restores the documented default tuple.
func (p *PreprocessSettings) Reset() {
	*p = DefaultPreprocessSettings()
}

// SetBrightness validates and stores the brightness multiplier.
func (p *PreprocessSettings) SetBrightness(v float64) error {
	if v < BrightnessMin || v > BrightnessMax {
		return rangeError("brightness", v, BrightnessMin, BrightnessMax)
	}
	p.Brightness = v
	return nil
}

// SetContrast validates and stores the contrast multiplier.
func (p *PreprocessSettings) SetContrast(v float64) error {
	if v < ContrastMin || v > ContrastMax {
		return rangeError("contrast", v, ContrastMin, ContrastMax)
	}
	p.Contrast = v
	return nil
}

// SetRotation validates and stores a slider rotation value. The slider domain
// is [-180, 180] in steps of 15. The two quarter-turn shortcuts (RotateCW,
// RotateCCW) bypass this domain, so the accumulated rotation is logically
// unbounded; consumers needing a canonical angle use NormalizedRotation.
func (p *PreprocessSettings) SetRotation(v float64) error {
	if v < RotationSliderMin || v > RotationSliderMax {
		return rangeError("rotation", v, RotationSliderMin, RotationSliderMax)
	}
	if math.Mod(v, RotationSliderStep) != 0 {
		return errors.Newf("rotation must be a multiple of %g degrees, got %g", RotationSliderStep, v).
			Component("diagnosis").
			Category(errors.CategoryValidation).
			Context("field", "rotation").
			Build()
	}
	p.Rotation = v
	return nil
}

// RotateCW adds a quarter turn clockwise without clamping.
func (p *PreprocessSettings) RotateCW() {
	p.Rotation += 90
}

// RotateCCW adds a quarter turn counterclockwise without clamping.
func (p *PreprocessSettings) RotateCCW() {
	p.Rotation -= 90
}

// NormalizedRotation returns the canonical angle in [0, 360).
func (p *PreprocessSettings) NormalizedRotation() float64 {
	r := math.Mod(p.Rotation, 360)
	if r < 0 {
		r += 360
	}
	return r
}

// AdvancedOptions holds the boolean feature toggles affecting what the
// inference engine computes. The toggles are independent, there are no
// cross-constraints.
type AdvancedOptions struct {
	UseMultilayer       bool
	UseAttentionRollout bool
	UseUncertainty      bool
	GenerateMask        bool
}

// DefaultAdvancedOptions returns the defaults; uncertainty estimation is the
// only feature enabled out of the box.
func DefaultAdvancedOptions() AdvancedOptions {
	return AdvancedOptions{UseUncertainty: true}
}

// Reset restores the defaults.
func (a *AdvancedOptions) Reset() {
	*a = DefaultAdvancedOptions()
}

// ToggleMultilayer flips multilayer Grad-CAM computation.
func (a *AdvancedOptions) ToggleMultilayer() { a.UseMultilayer = !a.UseMultilayer }

// ToggleAttentionRollout flips attention rollout computation.
func (a *AdvancedOptions) ToggleAttentionRollout() { a.UseAttentionRollout = !a.UseAttentionRollout }

// ToggleUncertainty flips uncertainty estimation.
func (a *AdvancedOptions) ToggleUncertainty() { a.UseUncertainty = !a.UseUncertainty }

// ToggleMask flips segmentation mask generation.
func (a *AdvancedOptions) ToggleMask() { a.GenerateMask = !a.GenerateMask }

// Colormap enumerates the heatmap colormaps accepted by the inference engine.
type Colormap string

const (
	ColormapJet    Colormap = "jet"
	ColormapPlasma Colormap = "plasma"
	ColormapMagma  Colormap = "magma"
)

// Valid reports whether c is one of the accepted colormaps.
func (c Colormap) Valid() bool {
	switch c {
	case ColormapJet, ColormapPlasma, ColormapMagma:
		return true
	}
	return false
}

// HeatmapSettings holds visualization tuning parameters, independent of the
// inference itself. Sigma is meaningful only while Smooth is set and
// ContourThreshold only while ShowContours is set; the dependent values are
// deliberately retained when their governing flag turns off so that
// re-enabling restores the previous value. Consumers must check the governing
// flag before using a dependent field.
type HeatmapSettings struct {
	Alpha            float64
	Smooth           bool
	Sigma            float64
	ColormapName     Colormap
	ShowContours     bool
	ContourThreshold float64
}

// DefaultHeatmapSettings returns the standard visualization defaults.
func DefaultHeatmapSettings() HeatmapSettings {
	return HeatmapSettings{
		Alpha:            0.4,
		Smooth:           true,
		Sigma:            2.0,
		ColormapName:     ColormapJet,
		ShowContours:     true,
		ContourThreshold: 0.7,
	}
}

// Reset restores the defaults.
func (h *HeatmapSettings) Reset() {
	*h = DefaultHeatmapSettings()
}

// SetAlpha validates and stores the heatmap blend factor.
func (h *HeatmapSettings) SetAlpha(v float64) error {
	if v < HeatmapAlphaMin || v > HeatmapAlphaMax {
		return rangeError("alpha", v, HeatmapAlphaMin, HeatmapAlphaMax)
	}
	h.Alpha = v
	return nil
}

// SetSigma validates and stores the smoothing kernel width. The value is
// stored even while smoothing is disabled.
func (h *HeatmapSettings) SetSigma(v float64) error {
	if v < SigmaMin || v > SigmaMax {
		return rangeError("sigma", v, SigmaMin, SigmaMax)
	}
	h.Sigma = v
	return nil
}

// SetColormap validates and stores the colormap selection.
func (h *HeatmapSettings) SetColormap(c Colormap) error {
	if !c.Valid() {
		return errors.Newf("unknown colormap %q", string(c)).
			Component("diagnosis").
			Category(errors.CategoryValidation).
			Context("field", "colormap").
			Build()
	}
	h.ColormapName = c
	return nil
}

// SetContourThreshold validates and stores the contour cut-off. The value is
// stored even while contours are disabled.
func (h *HeatmapSettings) SetContourThreshold(v float64) error {
	if v < ContourMin || v > ContourMax {
		return rangeError("contour_threshold", v, ContourMin, ContourMax)
	}
	h.ContourThreshold = v
	return nil
}

// ToggleSmooth flips Gaussian smoothing; the stored sigma survives the toggle.
func (h *HeatmapSettings) ToggleSmooth() { h.Smooth = !h.Smooth }

// ToggleContours flips contour rendering; the stored threshold survives the toggle.
func (h *HeatmapSettings) ToggleContours() { h.ShowContours = !h.ShowContours }

func rangeError(field string, v, minVal, maxVal float64) error {
	return errors.Newf("%s must be within [%g, %g], got %g", field, minVal, maxVal, v).
		Component("diagnosis").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}
