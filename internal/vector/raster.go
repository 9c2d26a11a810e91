package vector

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
)

// MaxPixels bounds raster canvases when the caller sets no limit.
const MaxPixels = 64 << 20

// Rasterize paints the document onto a w×h canvas. The viewBox (or the
// declared size when there is none) is mapped onto the canvas with uniform
// scaling, centered. A nil background leaves the canvas transparent.
func Rasterize(d *Document, w, h int, background color.Color) (image.Image, error) {
	if d == nil {
		return nil, errors.New("vector: rasterize: nil document")
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("vector: rasterize: invalid size %dx%d", w, h)
	}
	if int64(w)*int64(h) > MaxPixels {
		return nil, fmt.Errorf("vector: rasterize: %dx%d exceeds %d pixels", w, h, MaxPixels)
	}

	vb, ok := d.ViewBox()
	if !ok {
		dw, dh := d.Size()
		vb = Rect{W: dw, H: dh}
	}
	if vb.Empty() {
		return nil, errors.New("vector: rasterize: document has no viewport")
	}

	s := math.Min(float64(w)/vb.W, float64(h)/vb.H)
	ox := (float64(w) - vb.W*s) / 2
	oy := (float64(h) - vb.H*s) / 2
	base := Translate(ox, oy).Mul(Scale(s, s)).Mul(Translate(-vb.X, -vb.Y))

	dc := gg.NewContext(w, h)
	if background != nil {
		dc.SetColor(background)
		dc.Clear()
	}

	for _, shape := range d.Shapes() {
		ctm := base.Mul(shape.CTM)
		if shape.IsText() {
			if err := drawText(dc, shape, ctm); err != nil {
				return nil, err
			}
			continue
		}
		drawPath(dc, shape, ctm)
	}
	return dc.Image(), nil
}

func drawPath(dc *gg.Context, shape Shape, ctm Matrix) {
	fill := shape.Style.FillColor()
	stroke := shape.Style.StrokeColor()
	if fill == nil && stroke == nil {
		return
	}

	dc.ClearPath()
	for _, seg := range shape.Path {
		switch seg.Op {
		case OpMove:
			p := ctm.Apply(seg.Pts[0])
			dc.NewSubPath()
			dc.MoveTo(p.X, p.Y)
		case OpLine:
			p := ctm.Apply(seg.Pts[0])
			dc.LineTo(p.X, p.Y)
		case OpCubic:
			c1, c2, end := ctm.Apply(seg.Pts[0]), ctm.Apply(seg.Pts[1]), ctm.Apply(seg.Pts[2])
			dc.CubicTo(c1.X, c1.Y, c2.X, c2.Y, end.X, end.Y)
		case OpClose:
			dc.ClosePath()
		}
	}

	// Open paths such as lines and edge splines are not filled.
	closed := len(shape.Path) > 0 && shape.Path[len(shape.Path)-1].Op == OpClose
	if fill != nil && (closed || shape.Element.Tag == "path") {
		dc.SetColor(fill)
		dc.FillPreserve()
	}
	if stroke != nil && shape.Style.StrokeWidth > 0 {
		scale := ctm.ScaleFactor()
		dc.SetColor(stroke)
		dc.SetLineWidth(shape.Style.StrokeWidth * scale)
		if shape.Style.Dashed {
			dc.SetDash(5*scale, 2*scale)
		} else {
			dc.SetDash()
		}
		dc.StrokePreserve()
	}
	dc.ClearPath()
}

func drawText(dc *gg.Context, shape Shape, ctm Matrix) error {
	fill := shape.Style.FillColor()
	if fill == nil {
		return nil
	}
	size := shape.Style.FontSize * ctm.ScaleFactor()
	if size < 0.5 {
		return nil
	}
	face, err := NewFace(size)
	if err != nil {
		return fmt.Errorf("vector: rasterize: load font: %w", err)
	}
	defer face.Close()

	var ax float64
	switch shape.Style.TextAnchor {
	case "middle":
		ax = 0.5
	case "end":
		ax = 1
	}
	p := ctm.Apply(shape.Origin)
	dc.SetFontFace(face)
	dc.SetColor(fill)
	dc.DrawStringAnchored(shape.Text, p.X, p.Y, ax, 0)
	return nil
}
