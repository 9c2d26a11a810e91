// Package export turns a rendered diagram into a downloadable artifact.
package export

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"image/png"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"

	"github.com/rendis/erdstudio/internal/diagram"
	"github.com/rendis/erdstudio/internal/logging"
	"github.com/rendis/erdstudio/internal/vector"
	"github.com/rendis/erdstudio/pkg/schema"
)

// Raster defaults, used when Options leaves a field zero.
const (
	// DefaultPadding is the border in diagram units added on every side.
	DefaultPadding = 20
	// DefaultScale is the pixels per diagram unit.
	DefaultScale = 2
)

const rasterHint = "try vector export instead"

// Options tunes raster output.
type Options struct {
	Padding   float64
	Scale     float64
	MaxPixels int64
}

// DefaultOptions returns the padding and scale used by the product.
func DefaultOptions() Options {
	return Options{Padding: DefaultPadding, Scale: DefaultScale, MaxPixels: vector.MaxPixels}
}

// Exporter produces artifacts from rendered diagrams. It never caches and
// never mutates the diagram it is given.
type Exporter struct {
	opts   Options
	logger *slog.Logger
}

// NewExporter creates an Exporter. A zero Options selects the defaults; a
// non-positive scale or pixel limit falls back to its default.
func NewExporter(opts Options, logger *slog.Logger) *Exporter {
	def := DefaultOptions()
	if opts == (Options{}) {
		opts = def
	}
	opts.Padding = max(opts.Padding, 0)
	if opts.Scale <= 0 {
		opts.Scale = def.Scale
	}
	if opts.MaxPixels <= 0 || opts.MaxPixels > vector.MaxPixels {
		opts.MaxPixels = def.MaxPixels
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{opts: opts, logger: logger}
}

// Options returns the effective options.
func (e *Exporter) Options() Options {
	return e.opts
}

// Export encodes r in the given format. label names the source and ends up
// in the suggested file name.
func (e *Exporter) Export(ctx context.Context, r *diagram.Rendered, format schema.ExportFormat, label string) (*schema.Artifact, error) {
	if r == nil || r.Doc == nil {
		return nil, schema.NewError(schema.ErrCodeNothingToExport, "no diagram has been rendered yet")
	}
	if err := ctx.Err(); err != nil {
		return nil, schema.NewError(schema.ErrCodeCancelled, "export cancelled").WithCause(err)
	}

	var (
		art *schema.Artifact
		err error
	)
	switch format {
	case schema.FormatVector:
		art, err = e.vectorArtifact(r)
	case schema.FormatRasterLossless, schema.FormatRasterLossy:
		art, err = e.rasterArtifact(r, format)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown export format %q", format)
	}
	if err != nil {
		return nil, err
	}

	art.Format = format
	art.FileName = format.FileName(label)
	art.MediaType = format.MediaType()
	logging.LogWith(ctx, e.logger).Debug("diagram exported",
		"format", string(format), "file", art.FileName,
		"bytes", len(art.Bytes), "width", art.Width, "height", art.Height)
	return art, nil
}

func (e *Exporter) vectorArtifact(r *diagram.Rendered) (*schema.Artifact, error) {
	data, err := r.Doc.Bytes()
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeRasterizationFailed, "serialize document").WithCause(err)
	}
	w, h := r.Doc.Size()
	return &schema.Artifact{Bytes: data, Width: int(math.Round(w)), Height: int(math.Round(h))}, nil
}

func (e *Exporter) rasterArtifact(r *diagram.Rendered, format schema.ExportFormat) (*schema.Artifact, error) {
	doc := r.Doc.Clone()
	box := doc.BBox()
	if box.Empty() {
		return nil, rasterFailed("diagram has no drawable content", nil)
	}

	w, h := PixelSize(box, e.opts.Padding, e.opts.Scale)
	if w <= 0 || h <= 0 {
		return nil, rasterFailed(fmt.Sprintf("invalid canvas size %dx%d", w, h), nil)
	}
	if int64(w)*int64(h) > e.opts.MaxPixels {
		return nil, rasterFailed(fmt.Sprintf("canvas %dx%d exceeds %d pixels", w, h, e.opts.MaxPixels), nil)
	}

	doc.Fit(box, e.opts.Padding)

	var bg color.Color
	if format == schema.FormatRasterLossy {
		bg = color.White
	}
	img, err := vector.Rasterize(doc, w, h, bg)
	if err != nil {
		return nil, rasterFailed("rasterize", err)
	}

	var buf bytes.Buffer
	switch format {
	case schema.FormatRasterLossy:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(100))
	default:
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	}
	if err != nil {
		return nil, rasterFailed("encode", err)
	}
	return &schema.Artifact{Bytes: buf.Bytes(), Width: w, Height: h}, nil
}

// PixelSize is the raster canvas for a content box: the padded box scaled,
// rounded to whole pixels.
func PixelSize(box vector.Rect, pad, scale float64) (int, int) {
	return int(math.Round((box.W + 2*pad) * scale)), int(math.Round((box.H + 2*pad) * scale))
}

func rasterFailed(msg string, cause error) *schema.ErdError {
	err := schema.NewError(schema.ErrCodeRasterizationFailed, msg).WithDetails(map[string]any{"hint": rasterHint})
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}
