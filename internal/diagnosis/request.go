package diagnosis

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"strconv"

	"github.com/google/uuid"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/errors"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/imageasset"
)

// ErrMissingAsset is returned by Build when no image asset is present. The
// message is surfaced to the user verbatim.
var ErrMissingAsset = errors.NewStd("Please select an image file")

// InferenceRequest is one outbound request payload: a point-in-time snapshot
// of the image asset, all configurator groups and the selected model. Edits
// made after Build apply to the next request, never to this one.
type InferenceRequest struct {
	ID         string
	Asset      *imageasset.Asset
	Model      ModelID
	Preprocess PreprocessSettings
	Advanced   AdvancedOptions
	Heatmap    HeatmapSettings
}

// RequestBuilder merges the configurator states plus the image asset into one
// outbound request payload.
type RequestBuilder struct {
	Asset      *imageasset.Asset
	Model      ModelID
	Preprocess PreprocessSettings
	Advanced   AdvancedOptions
	Heatmap    HeatmapSettings
}

// Build produces the request. A missing image asset is the only failure mode;
// every other field has a default and cannot make the build fail.
func (b RequestBuilder) Build() (*InferenceRequest, error) {
	if b.Asset == nil {
		return nil, errors.New(ErrMissingAsset).
			Component("diagnosis").
			Category(errors.CategoryValidation).
			Build()
	}
	model := b.Model
	if model == "" {
		model = ModelEnsemble
	}
	return &InferenceRequest{
		ID:         uuid.New().String(),
		Asset:      b.Asset,
		Model:      model,
		Preprocess: b.Preprocess,
		Advanced:   b.Advanced,
		Heatmap:    b.Heatmap,
	}, nil
}

// EncodeMultipart serializes the request as a multipart form body with the
// wire field names the inference service expects. Numeric and boolean fields
// are carried as their plain string forms; no unit conversion happens here.
func (r *InferenceRequest) EncodeMultipart() (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", r.Asset.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(r.Asset.Bytes()); err != nil {
		return nil, "", fmt.Errorf("failed to write image data: %w", err)
	}

	fields := map[string]string{
		"model": string(r.Model),

		"use_multilayer":        strconv.FormatBool(r.Advanced.UseMultilayer),
		"use_attention_rollout": strconv.FormatBool(r.Advanced.UseAttentionRollout),
		"use_uncertainty":       strconv.FormatBool(r.Advanced.UseUncertainty),
		"generate_mask":         strconv.FormatBool(r.Advanced.GenerateMask),

		"brightness": formatFloat(r.Preprocess.Brightness),
		"contrast":   formatFloat(r.Preprocess.Contrast),
		"rotation":   formatFloat(r.Preprocess.Rotation),
		"flip_h":     strconv.FormatBool(r.Preprocess.FlipH),
		"flip_v":     strconv.FormatBool(r.Preprocess.FlipV),
		"enhance":    strconv.FormatBool(r.Preprocess.Enhance),
		"sharpen":    strconv.FormatBool(r.Preprocess.Sharpen),

		"heatmap_alpha":     formatFloat(r.Heatmap.Alpha),
		"heatmap_smooth":    strconv.FormatBool(r.Heatmap.Smooth),
		"heatmap_sigma":     formatFloat(r.Heatmap.Sigma),
		"heatmap_colormap":  string(r.Heatmap.ColormapName),
		"show_contours":     strconv.FormatBool(r.Heatmap.ShowContours),
		"contour_threshold": formatFloat(r.Heatmap.ContourThreshold),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
