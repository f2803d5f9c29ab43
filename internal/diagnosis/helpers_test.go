package diagnosis

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/conf"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/imageasset"
)

// testSettings returns settings pointed at the given service base URL with
// short timeouts suitable for tests.
func testSettings(baseURL string) *conf.Settings {
	return &conf.Settings{
		Service: conf.ServiceSettings{
			BaseURL: baseURL,
			Timeout: 5,
		},
		Probe: conf.ProbeSettings{
			Endpoint: "/health",
			Timeout:  2,
			CacheTTL: 300,
		},
		Report: conf.ReportSettings{
			Endpoint: "/generate-report",
			Filename: "diagnosis_report.pdf",
			Timeout:  5,
		},
	}
}

// testAsset builds a small in-memory endoscopy frame stand-in.
func testAsset(t *testing.T) *imageasset.Asset {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 120, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	asset, err := imageasset.FromReader(&buf, "frame.png")
	require.NoError(t, err)
	return asset
}

// validResultJSON is a minimal well-formed inference response.
func validResultJSON() string {
	return `{
		"predicted_class": "polyps",
		"confidence": 94.2,
		"top3": [
			{"class": "polyps", "confidence": 0.942},
			{"class": "ulcerative-colitis", "confidence": 0.031},
			{"class": "normal", "confidence": 0.027}
		],
		"inference_time": 0.84,
		"model_used": "ensemble"
	}`
}
