package vector

import (
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-6

func mustParse(t *testing.T, svg string) *Document {
	t.Helper()
	d, err := Parse([]byte(svg))
	require.NoError(t, err)
	return d
}

func assertRect(t *testing.T, want, got Rect, delta float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, delta, "x")
	assert.InDelta(t, want.Y, got.Y, delta, "y")
	assert.InDelta(t, want.W, got.W, delta, "w")
	assert.InDelta(t, want.H, got.H, delta, "h")
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("not xml <"))
	assert.Error(t, err)

	_, err = Parse([]byte(`<html><body/></html>`))
	assert.Error(t, err)

	_, err = Parse(nil)
	assert.Error(t, err)
}

func TestBytes_StartsWithRoot(t *testing.T) {
	src := `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<!DOCTYPE svg PUBLIC "-//W3C//DTD SVG 1.1//EN" "http://www.w3.org/Graphics/SVG/1.1/DTD/svg11.dtd">
<!-- Generated by graphviz -->
<svg xmlns="http://www.w3.org/2000/svg" width="10pt" height="10pt"><rect width="1" height="1"/></svg>`
	d := mustParse(t, src)
	out, err := d.Bytes()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "<svg"), string(out))
	assert.Contains(t, string(out), "<rect")
}

func TestBBox_SkipsGraphBackground(t *testing.T) {
	d := mustParse(t, `<svg viewBox="0 0 100 104">
<g id="graph0" class="graph" transform="scale(1 1) rotate(0) translate(4 100)">
<title>G</title>
<polygon fill="white" stroke="none" points="-4,4 -4,-100 96,-100 96,4 -4,4"/>
<g class="node"><rect x="0" y="-50" width="20" height="10" fill="none" stroke="black"/></g>
</g></svg>`)
	assertRect(t, Rect{X: 4, Y: 50, W: 20, H: 10}, d.BBox(), eps)
}

func TestBBox_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Rect
	}{
		{"rect", `<rect x="1" y="2" width="3" height="4"/>`, Rect{1, 2, 3, 4}},
		{"line", `<line x1="0" y1="5" x2="10" y2="0" stroke="black"/>`, Rect{0, 0, 10, 5}},
		{"circle", `<circle cx="10" cy="10" r="5"/>`, Rect{5, 5, 10, 10}},
		{"ellipse", `<ellipse cx="0" cy="0" rx="4" ry="2"/>`, Rect{-4, -2, 8, 4}},
		{"polyline", `<polyline points="0,0 5,5 10,-5"/>`, Rect{0, -5, 10, 10}},
		{"cubic extremum", `<path d="M0,0 C0,10 10,10 10,0"/>`, Rect{0, 0, 10, 7.5}},
		{"relative", `<path d="m10,10 h5 v5 z"/>`, Rect{10, 10, 5, 5}},
		{"quadratic", `<path d="M0,0 Q5,10 10,0"/>`, Rect{0, 0, 10, 5}},
		{"arc", `<path d="M0,0 A5,5 0 0 1 10,0"/>`, Rect{0, -5, 10, 5}},
		{"nested transforms", `<g transform="scale(2)"><g transform="translate(5,5)"><rect width="1" height="1"/></g></g>`, Rect{10, 10, 2, 2}},
		{"rotate", `<rect width="10" height="2" transform="rotate(90)"/>`, Rect{-2, 0, 2, 10}},
		{"matrix", `<rect width="1" height="1" transform="matrix(2 0 0 3 1 1)"/>`, Rect{1, 1, 2, 3}},
		{"hidden skipped", `<rect width="1" height="1"/><rect x="50" width="1" height="1" display="none"/>`, Rect{0, 0, 1, 1}},
		{"defs skipped", `<defs><rect x="-100" width="1" height="1"/></defs><rect width="1" height="1"/>`, Rect{0, 0, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustParse(t, `<svg xmlns="http://www.w3.org/2000/svg">`+tt.body+`</svg>`)
			assertRect(t, tt.want, d.BBox(), 1e-3)
		})
	}
}

func TestBBox_Text(t *testing.T) {
	d := mustParse(t, `<svg><text x="100" y="50" font-size="14" text-anchor="middle">users</text></svg>`)
	box := d.BBox()
	w := MeasureText("users", 14)
	require.Greater(t, w, 0.0)

	assertRect(t, Rect{X: 100 - w/2, Y: 50 - 0.8*14, W: w, H: 14}, box, eps)
}

func TestBBox_TextInheritsFontSize(t *testing.T) {
	d := mustParse(t, `<svg><g font-size="20" text-anchor="end"><text x="0" y="0">ab</text></g></svg>`)
	box := d.BBox()
	w := MeasureText("ab", 20)
	assertRect(t, Rect{X: -w, Y: -16, W: w, H: 20}, box, eps)
}

func TestBBox_Empty(t *testing.T) {
	assert.True(t, mustParse(t, `<svg/>`).BBox().Empty())
	assert.True(t, mustParse(t, `<svg><g><title>x</title></g><text> </text></svg>`).BBox().Empty())
}

func TestBBox_Idempotent(t *testing.T) {
	d := mustParse(t, `<svg><g transform="translate(3,4)"><text x="1" y="2">orders</text><path d="M0,0 C5,-5 10,5 15,0"/></g></svg>`)
	first := d.BBox()
	assert.Equal(t, first, d.BBox())
	assert.Equal(t, first, d.Clone().BBox())
}

func TestClone_IsDeep(t *testing.T) {
	d := mustParse(t, `<svg width="10" height="10"><rect width="1" height="1"/></svg>`)
	c := d.Clone()
	c.Fit(Rect{W: 1, H: 1}, 5)

	assert.Equal(t, "10", d.Root().SelectAttrValue("width", ""))
	assert.Equal(t, "11", c.Root().SelectAttrValue("width", ""))
}

func TestFit(t *testing.T) {
	d := mustParse(t, `<svg width="200pt" height="100pt" viewBox="0 0 200 100"><rect x="10" y="20" width="30" height="40"/></svg>`)
	d.Fit(d.BBox(), 20)

	root := d.Root()
	assert.Equal(t, "-10 0 70 80", root.SelectAttrValue("viewBox", ""))
	assert.Equal(t, "70", root.SelectAttrValue("width", ""))
	assert.Equal(t, "80", root.SelectAttrValue("height", ""))

	vb, ok := d.ViewBox()
	require.True(t, ok)
	assertRect(t, Rect{-10, 0, 70, 80}, vb, eps)
	w, h := d.Size()
	assert.Equal(t, 70.0, w)
	assert.Equal(t, 80.0, h)
}

func TestSize_FallsBackToViewBox(t *testing.T) {
	d := mustParse(t, `<svg width="100%" viewBox="0 0 30 40"/>`)
	w, h := d.Size()
	assert.Equal(t, 30.0, w)
	assert.Equal(t, 40.0, h)
}

func TestParseTransform(t *testing.T) {
	m, err := ParseTransform("translate(10,0) scale(2)")
	require.NoError(t, err)
	p := m.Apply(Point{1, 1})
	assert.InDelta(t, 12, p.X, eps)
	assert.InDelta(t, 2, p.Y, eps)

	m, err = ParseTransform("rotate(90 5 5)")
	require.NoError(t, err)
	p = m.Apply(Point{10, 5})
	assert.InDelta(t, 5, p.X, eps)
	assert.InDelta(t, 10, p.Y, eps)

	m, err = ParseTransform("")
	require.NoError(t, err)
	assert.Equal(t, Identity, m)

	for _, bad := range []string{"spin(3)", "translate(1,2", "matrix(1 2 3)", "scale()"} {
		_, err := ParseTransform(bad)
		assert.Error(t, err, bad)
	}
}

func TestParsePathData_Errors(t *testing.T) {
	for _, bad := range []string{"10 10", "M 10", "M0,0 X5,5", "M0,0 Z 5 5"} {
		_, err := ParsePathData(bad)
		assert.Error(t, err, bad)
	}
}

func TestParsePathData_CompactNumbers(t *testing.T) {
	p, err := ParsePathData("M1.5.5L-1e1-2")
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.Equal(t, Point{1.5, 0.5}, p[0].Pts[0])
	assert.Equal(t, Point{-10, -2}, p[1].Pts[0])
}

func TestParseColor(t *testing.T) {
	black := color.Color(color.Black)
	tests := []struct {
		in   string
		want color.Color
	}{
		{"#f00", color.NRGBA{255, 0, 0, 255}},
		{"#00FF00", color.NRGBA{0, 255, 0, 255}},
		{"rgb(0, 0, 255)", color.NRGBA{0, 0, 255, 255}},
		{"none", nil},
		{"transparent", nil},
		{"bogus", black},
		{"#12", black},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseColor(tt.in, black), tt.in)
	}
	navy := parseColor("navy", nil)
	r, g, b, _ := navy.RGBA()
	assert.Equal(t, []uint32{0, 0, 0x8080}, []uint32{r, g, b})
}

func TestStyle_InlineWinsAndOpacity(t *testing.T) {
	d := mustParse(t, `<svg><g opacity="0.5"><rect width="1" height="1" fill="red" style="fill: blue; fill-opacity: 0.5"/></g></svg>`)
	shapes := d.Shapes()
	require.Len(t, shapes, 1)
	c := color.NRGBAModel.Convert(shapes[0].Style.FillColor()).(color.NRGBA)
	assert.Equal(t, uint8(0), c.R)
	assert.Equal(t, uint8(255), c.B)
	assert.Equal(t, uint8(64), c.A)
}

func TestRasterize(t *testing.T) {
	d := mustParse(t, `<svg viewBox="0 0 10 10" width="10" height="10">
<rect x="0" y="0" width="5" height="10" fill="#ff0000" stroke="none"/>
</svg>`)

	img, err := Rasterize(d, 20, 20, color.White)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())

	left := color.NRGBAModel.Convert(img.At(4, 10)).(color.NRGBA)
	right := color.NRGBAModel.Convert(img.At(15, 10)).(color.NRGBA)
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, left)
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, right)
}

func TestRasterize_TransparentBackground(t *testing.T) {
	d := mustParse(t, `<svg viewBox="0 0 10 10"><rect x="4" y="4" width="2" height="2"/><text x="0" y="9" font-size="4">x</text></svg>`)
	img, err := Rasterize(d, 10, 10, nil)
	require.NoError(t, err)

	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), a)
	_, _, _, a = img.At(5, 5).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}

func TestRasterize_InvalidInput(t *testing.T) {
	d := mustParse(t, `<svg viewBox="0 0 10 10"/>`)
	_, err := Rasterize(d, 0, 10, nil)
	assert.Error(t, err)
	_, err = Rasterize(nil, 10, 10, nil)
	assert.Error(t, err)
	_, err = Rasterize(d, 1<<14, 1<<14, nil)
	assert.Error(t, err)
	_, err = Rasterize(mustParse(t, `<svg/>`), 10, 10, nil)
	assert.Error(t, err)
}

func TestMeasureText_ScalesWithSize(t *testing.T) {
	w := MeasureText("orders", 10)
	require.Greater(t, w, 0.0)
	assert.InDelta(t, 3*w, MeasureText("orders", 30), 1e-9)
	assert.InDelta(t, 1.37*w, MeasureText("orders", 13.7), 1e-9)
	assert.Zero(t, MeasureText("orders", 0))
}
