// Package imageasset turns a user-supplied file into an in-memory previewable
// image representation. Exactly one asset is active at a time; replacement and
// clearing are the session's responsibility.
package imageasset

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/errors"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/logging"
)

// maxAssetSize bounds the file size read into memory. Endoscopy frames are
// single images, anything beyond this is not a valid upload.
const maxAssetSize = 50 * 1024 * 1024

// Asset is the in-memory representation of the user's uploaded image.
type Asset struct {
	ID       string // unique asset identifier
	Filename string // original filename, used as the multipart part filename
	Format   string // decoded image format, e.g. "jpeg", "png"
	Width    int
	Height   int

	data    []byte      // raw bytes as read from the source, sent to the inference service unchanged
	preview image.Image // decoded representation for preview rendering
}

// PreviewOptions mirrors the geometric and tonal preprocess settings for
// client-side preview. Values use the same domains as the wire fields:
// brightness and contrast are multipliers around 1.0, rotation is degrees.
type PreviewOptions struct {
	Brightness float64
	Contrast   float64
	Rotation   float64
	FlipH      bool
	FlipV      bool
	Sharpen    bool
}

// Load reads and decodes an image file from disk.
func Load(path string) (*Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open image file: %w", err)).
			Component("imageasset").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()

	return FromReader(f, filepath.Base(path))
}

// FromReader reads and decodes an image from r. The full contents are kept in
// memory: the raw bytes go to the inference service, the decoded image backs
// the preview.
func FromReader(r io.Reader, filename string) (*Asset, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxAssetSize+1))
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read image data: %w", err)).
			Component("imageasset").
			Category(errors.CategoryFileIO).
			Context("filename", filename).
			Build()
	}
	if len(data) > maxAssetSize {
		return nil, errors.Newf("image file exceeds maximum size of %d bytes", maxAssetSize).
			Component("imageasset").
			Category(errors.CategoryValidation).
			Context("filename", filename).
			Build()
	}
	if len(data) == 0 {
		return nil, errors.Newf("image file is empty").
			Component("imageasset").
			Category(errors.CategoryValidation).
			Context("filename", filename).
			Build()
	}

	// Decoding doubles as the image-typed file check: anything that does not
	// decode is rejected before a request can be built around it.
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New(fmt.Errorf("file is not a supported image: %w", err)).
			Component("imageasset").
			Category(errors.CategoryImageLoad).
			Context("filename", filename).
			Build()
	}

	asset := &Asset{
		ID:       uuid.New().String(),
		Filename: filename,
		Format:   format,
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
		data:     data,
		preview:  img,
	}

	assetLogger().Debug("Image asset loaded",
		"asset_id", asset.ID,
		"filename", filename,
		"format", format,
		"width", asset.Width,
		"height", asset.Height,
		"size_bytes", len(data))

	return asset, nil
}

// Bytes returns the raw image bytes exactly as read from the source.
func (a *Asset) Bytes() []byte {
	return a.data
}

// Size returns the raw byte length of the asset.
func (a *Asset) Size() int {
	return len(a.data)
}

// Preview returns the decoded image without any adjustments.
func (a *Asset) Preview() image.Image {
	return a.preview
}

// PreviewWith applies the given preprocess options to the decoded image and
// returns the adjusted preview. The raw bytes are never modified; the actual
// preprocessing happens server-side from the wire fields.
func (a *Asset) PreviewWith(opts PreviewOptions) image.Image {
	img := a.preview

	if opts.Brightness != 0 && opts.Brightness != 1.0 {
		// imaging uses percentage deltas, the wire uses multipliers around 1.0
		img = imaging.AdjustBrightness(img, (opts.Brightness-1.0)*100)
	}
	if opts.Contrast != 0 && opts.Contrast != 1.0 {
		img = imaging.AdjustContrast(img, (opts.Contrast-1.0)*100)
	}
	if opts.Rotation != 0 {
		img = imaging.Rotate(img, -opts.Rotation, image.Transparent)
	}
	if opts.FlipH {
		img = imaging.FlipH(img)
	}
	if opts.FlipV {
		img = imaging.FlipV(img)
	}
	if opts.Sharpen {
		img = imaging.Sharpen(img, 1.0)
	}
	return img
}

// SavePreview encodes the adjusted preview to the given path, format inferred
// from the file extension.
func (a *Asset) SavePreview(path string, opts PreviewOptions) error {
	if err := imaging.Save(a.PreviewWith(opts), path); err != nil {
		return errors.New(fmt.Errorf("failed to save preview: %w", err)).
			Component("imageasset").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}

var (
	serviceLogger *slog.Logger
	loggerOnce    sync.Once
)

func assetLogger() *slog.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logging.ServiceLogger("imageasset")
	})
	return serviceLogger
}
