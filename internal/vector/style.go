package vector

import (
	"image/color"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/image/colornames"
)

// Style is the resolved presentation state of an element.
type Style struct {
	Fill          color.Color
	Stroke        color.Color
	StrokeWidth   float64
	Dashed        bool
	FontSize      float64
	FontFamily    string
	TextAnchor    string
	Opacity       float64
	FillOpacity   float64
	StrokeOpacity float64
	Hidden        bool
}

// defaultStyle mirrors the SVG initial values.
func defaultStyle() Style {
	return Style{
		Fill:          color.Black,
		StrokeWidth:   1,
		FontSize:      16,
		TextAnchor:    "start",
		Opacity:       1,
		FillOpacity:   1,
		StrokeOpacity: 1,
	}
}

// inherit resolves el's style given its parent's. Opacity multiplies down
// the tree; every other property is replaced when set.
func (s Style) inherit(el *etree.Element) Style {
	props := presentation(el)
	out := s
	if v, ok := props["fill"]; ok {
		out.Fill = parseColor(v, s.Fill)
	}
	if v, ok := props["stroke"]; ok {
		out.Stroke = parseColor(v, s.Stroke)
	}
	if v, ok := props["stroke-width"]; ok {
		if f, ok := parseLength(v); ok {
			out.StrokeWidth = f
		}
	}
	if v, ok := props["stroke-dasharray"]; ok {
		out.Dashed = v != "none" && strings.TrimSpace(v) != ""
	}
	if v, ok := props["font-size"]; ok {
		if f, ok := parseLength(v); ok && f > 0 {
			out.FontSize = f
		}
	}
	if v, ok := props["font-family"]; ok {
		out.FontFamily = v
	}
	if v, ok := props["text-anchor"]; ok {
		out.TextAnchor = v
	}
	if v, ok := props["opacity"]; ok {
		out.Opacity = s.Opacity * parseUnit(v)
	}
	if v, ok := props["fill-opacity"]; ok {
		out.FillOpacity = parseUnit(v)
	}
	if v, ok := props["stroke-opacity"]; ok {
		out.StrokeOpacity = parseUnit(v)
	}
	if props["display"] == "none" || props["visibility"] == "hidden" {
		out.Hidden = true
	}
	return out
}

// presentation merges presentation attributes with the inline style
// attribute, which wins.
func presentation(el *etree.Element) map[string]string {
	props := make(map[string]string)
	for _, a := range el.Attr {
		if a.Space == "" {
			props[a.Key] = strings.TrimSpace(a.Value)
		}
	}
	if inline, ok := props["style"]; ok {
		for _, decl := range strings.Split(inline, ";") {
			k, v, found := strings.Cut(decl, ":")
			if !found {
				continue
			}
			props[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return props
}

// FillColor returns the effective fill including opacity, or nil.
func (s Style) FillColor() color.Color {
	return withAlpha(s.Fill, s.Opacity*s.FillOpacity)
}

// StrokeColor returns the effective stroke including opacity, or nil.
func (s Style) StrokeColor() color.Color {
	return withAlpha(s.Stroke, s.Opacity*s.StrokeOpacity)
}

func withAlpha(c color.Color, alpha float64) color.Color {
	if c == nil || alpha <= 0 {
		return nil
	}
	if alpha >= 1 {
		return c
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(float64(n.A)*alpha + 0.5)
	return n
}

// parseColor resolves an SVG paint value. "none" and "transparent" yield nil;
// unparseable values keep the inherited paint.
func parseColor(v string, inherited color.Color) color.Color {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "none", "transparent":
		return nil
	case "", "inherit", "currentcolor":
		return inherited
	}
	if strings.HasPrefix(v, "#") {
		if c, ok := parseHex(v[1:]); ok {
			return c
		}
		return inherited
	}
	if strings.HasPrefix(v, "rgb(") && strings.HasSuffix(v, ")") {
		parts := strings.Split(v[4:len(v)-1], ",")
		if len(parts) == 3 {
			var rgb [3]uint8
			for i, p := range parts {
				p = strings.TrimSpace(p)
				var f float64
				var err error
				if strings.HasSuffix(p, "%") {
					f, err = strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
					f = f * 255 / 100
				} else {
					f, err = strconv.ParseFloat(p, 64)
				}
				if err != nil {
					return inherited
				}
				rgb[i] = clampByte(f)
			}
			return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
		}
		return inherited
	}
	if c, ok := colornames.Map[v]; ok {
		return c
	}
	return inherited
}

func parseHex(h string) (color.Color, bool) {
	expand := func(s string) (uint8, bool) {
		n, err := strconv.ParseUint(s, 16, 8)
		return uint8(n), err == nil
	}
	switch len(h) {
	case 3, 4:
		var c [4]uint8
		c[3] = 255
		for i := 0; i < len(h); i++ {
			v, ok := expand(strings.Repeat(h[i:i+1], 2))
			if !ok {
				return nil, false
			}
			c[i] = v
		}
		return color.NRGBA{R: c[0], G: c[1], B: c[2], A: c[3]}, true
	case 6, 8:
		var c [4]uint8
		c[3] = 255
		for i := 0; i < len(h)/2; i++ {
			v, ok := expand(h[2*i : 2*i+2])
			if !ok {
				return nil, false
			}
			c[i] = v
		}
		return color.NRGBA{R: c[0], G: c[1], B: c[2], A: c[3]}, true
	}
	return nil, false
}

func clampByte(f float64) uint8 {
	switch {
	case f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	return uint8(f + 0.5)
}

// parseLength reads a number with an optional px/pt unit.
func parseLength(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	for _, unit := range []string{"px", "pt"} {
		v = strings.TrimSuffix(v, unit)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f, err == nil
}

// parseUnit reads an opacity value clamped to [0,1].
func parseUnit(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 1
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
