package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/diagnosis"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/imageasset"
)

const defaultHistoryLimit = 20

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

// HealthResponse mirrors the capability probe of the inference service.
type HealthResponse struct {
	Status         string `json:"status"`
	DeiT3Available bool   `json:"deit3_available"`
	ViTAvailable   bool   `json:"vit_available"`
}

// GetHealth probes backend capability and reports gateway liveness.
func (c *Controller) GetHealth(ctx echo.Context) error {
	avail := c.Session.Tracker.Probe(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, HealthResponse{
		Status:         "ok",
		DeiT3Available: avail.DeiT3,
		ViTAvailable:   avail.ViT,
	})
}

// ModelsResponse lists the selectable variants and the current choice.
type ModelsResponse struct {
	Current   string              `json:"current"`
	Available map[string]bool     `json:"available"`
	Models    []diagnosis.ModelID `json:"models"`
}

// GetModels reports the current model selection and availability.
func (c *Controller) GetModels(ctx echo.Context) error {
	avail := c.Session.Tracker.Availability()
	return ctx.JSON(http.StatusOK, ModelsResponse{
		Current: string(c.Session.Selector.Current()),
		Available: map[string]bool{
			string(diagnosis.ModelEnsemble): true,
			string(diagnosis.ModelDeiT3):    avail.DeiT3,
			string(diagnosis.ModelViT):      avail.ViT,
		},
		Models: []diagnosis.ModelID{diagnosis.ModelEnsemble, diagnosis.ModelDeiT3, diagnosis.ModelViT},
	})
}

// SelectModelRequest is the payload for switching the classifier variant.
type SelectModelRequest struct {
	Model string `json:"model"`
}

// SelectModel switches the classifier variant for subsequent analyses.
func (c *Controller) SelectModel(ctx echo.Context) error {
	var req SelectModelRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if err := c.Session.Selector.Select(diagnosis.ModelID(req.Model)); err != nil {
		return c.HandleError(ctx, err, "Failed to select model", 0)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"current": string(c.Session.Selector.Current())})
}

// Analyze accepts an endoscopy image upload with optional settings overrides
// and runs the full diagnosis round trip.
func (c *Controller) Analyze(ctx echo.Context) error {
	file, err := ctx.FormFile("file")
	if err != nil {
		return c.HandleError(ctx, err, "Please select an image file", http.StatusBadRequest)
	}

	src, err := file.Open()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read uploaded file", http.StatusBadRequest)
	}
	defer func() { _ = src.Close() }()

	asset, err := imageasset.FromReader(src, file.Filename)
	if err != nil {
		return c.HandleError(ctx, err, "Unsupported or corrupt image file", http.StatusBadRequest)
	}
	c.Session.SetAsset(asset)

	if err := c.applySettingsOverrides(ctx); err != nil {
		return c.HandleError(ctx, err, "Invalid analysis settings", 0)
	}

	if model := ctx.FormValue("model"); model != "" {
		if err := c.Session.Selector.Select(diagnosis.ModelID(model)); err != nil {
			return c.HandleError(ctx, err, "Failed to select model", 0)
		}
	}

	result, err := c.Session.Submit(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Analysis failed", 0)
	}

	_, view := c.Session.Result()
	return ctx.JSON(http.StatusOK, resultEnvelope(result, view))
}

// applySettingsOverrides folds optional form fields into the session's
// configurator states. Absent fields leave the current values alone. All
// edits go through the session's locked update so concurrent requests never
// race an in-flight submit, and a rejected field discards the whole batch.
func (c *Controller) applySettingsOverrides(ctx echo.Context) error {
	floatField := func(name string, set func(float64) error) error {
		v := ctx.FormValue(name)
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		return set(f)
	}

	return c.Session.UpdateSettings(func(p *diagnosis.PreprocessSettings, a *diagnosis.AdvancedOptions, h *diagnosis.HeatmapSettings) error {
		if err := floatField("brightness", p.SetBrightness); err != nil {
			return err
		}
		if err := floatField("contrast", p.SetContrast); err != nil {
			return err
		}
		if err := floatField("rotation", p.SetRotation); err != nil {
			return err
		}
		for field, target := range map[string]*bool{
			"flip_h":  &p.FlipH,
			"flip_v":  &p.FlipV,
			"enhance": &p.Enhance,
			"sharpen": &p.Sharpen,

			"use_multilayer":        &a.UseMultilayer,
			"use_attention_rollout": &a.UseAttentionRollout,
			"use_uncertainty":       &a.UseUncertainty,
			"generate_mask":         &a.GenerateMask,

			"heatmap_smooth": &h.Smooth,
			"show_contours":  &h.ShowContours,
		} {
			if v := ctx.FormValue(field); v != "" {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return err
				}
				*target = b
			}
		}
		if err := floatField("heatmap_alpha", h.SetAlpha); err != nil {
			return err
		}
		if err := floatField("heatmap_sigma", h.SetSigma); err != nil {
			return err
		}
		if v := ctx.FormValue("heatmap_colormap"); v != "" {
			if err := h.SetColormap(diagnosis.Colormap(v)); err != nil {
				return err
			}
		}
		return floatField("contour_threshold", h.SetContourThreshold)
	})
}

// ResultEnvelope is the diagnosis result plus its derived presentation state.
type ResultEnvelope struct {
	Result         *diagnosis.DiagnosisResult    `json:"result"`
	HighConfidence bool                          `json:"high_confidence"`
	ViewMode       string                        `json:"view_mode"`
	EnabledViews   []diagnosis.VisualizationMode `json:"enabled_views"`
}

func resultEnvelope(result *diagnosis.DiagnosisResult, view *diagnosis.ViewState) *ResultEnvelope {
	return &ResultEnvelope{
		Result:         result,
		HighConfidence: result.HighConfidence(),
		ViewMode:       string(view.Mode),
		EnabledViews:   view.EnabledModes(),
	}
}

// GetLatestResult returns the current diagnosis, 404 when none exists.
func (c *Controller) GetLatestResult(ctx echo.Context) error {
	result, view := c.Session.Result()
	if result == nil {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "no diagnosis result available"})
	}
	return ctx.JSON(http.StatusOK, resultEnvelope(result, view))
}

// SelectViewRequest switches the displayed visualization artifact.
type SelectViewRequest struct {
	Mode string `json:"mode"`
}

// SelectView changes the visualization mode of the current result.
func (c *Controller) SelectView(ctx echo.Context) error {
	var req SelectViewRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	result, view := c.Session.Result()
	if result == nil {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "no diagnosis result available"})
	}
	if err := view.SelectMode(diagnosis.VisualizationMode(req.Mode)); err != nil {
		return c.HandleError(ctx, err, "Failed to switch view", 0)
	}
	return ctx.JSON(http.StatusOK, resultEnvelope(result, view))
}

// Reset clears the working image, result and preprocessing adjustments.
func (c *Controller) Reset(ctx echo.Context) error {
	c.Session.Reset()
	return ctx.JSON(http.StatusOK, map[string]string{"status": "reset"})
}

// GenerateReport exports the current result as a PDF document.
func (c *Controller) GenerateReport(ctx echo.Context) error {
	report, err := c.Session.GenerateReport(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to generate report", 0)
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+report.Filename+`"`)
	return ctx.Blob(http.StatusOK, report.ContentType, report.Data)
}

// GetHistory returns recent diagnoses from the history store.
func (c *Controller) GetHistory(ctx echo.Context) error {
	if c.DS == nil {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "history persistence is disabled"})
	}

	limit := defaultHistoryLimit
	if v := ctx.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.HandleError(ctx, err, "Invalid limit parameter", http.StatusBadRequest)
		}
		limit = n
	}

	records, err := c.DS.GetLastRecords(limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read history", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, records)
}
