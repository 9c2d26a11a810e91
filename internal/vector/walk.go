package vector

import (
	"strings"

	"github.com/beevik/etree"
)

// Shape is one drawable primitive with its resolved transform and style.
type Shape struct {
	Element *etree.Element
	CTM     Matrix
	Style   Style

	// Path is set for geometric elements.
	Path Path

	// Text fields are set for <text> elements.
	Text   string
	Origin Point
}

// IsText reports whether the shape is a text run.
func (s Shape) IsText() bool { return s.Element.Tag == "text" }

// skipped elements never draw directly.
var skipped = map[string]bool{
	"defs": true, "title": true, "desc": true, "metadata": true, "clipPath": true,
	"mask": true, "marker": true, "symbol": true, "pattern": true, "style": true,
	"linearGradient": true, "radialGradient": true, "script": true,
}

// Shapes walks the document in paint order and returns every drawable
// primitive. The canvas background polygon that graphviz emits as a direct
// child of the top <g class="graph"> is excluded. Malformed geometry on a
// single element is skipped.
func (d *Document) Shapes() []Shape {
	var out []Shape
	root := d.Root()
	style := defaultStyle().inherit(root)
	for _, child := range root.ChildElements() {
		walk(child, Identity, style, false, &out)
	}
	return out
}

func walk(el *etree.Element, parent Matrix, ps Style, inGraphGroup bool, out *[]Shape) {
	if skipped[el.Tag] {
		return
	}
	style := ps.inherit(el)
	if style.Hidden {
		return
	}
	ctm := parent
	if t := el.SelectAttrValue("transform", ""); t != "" {
		m, err := ParseTransform(t)
		if err != nil {
			return
		}
		ctm = parent.Mul(m)
	}

	switch el.Tag {
	case "g", "a", "switch":
		graph := el.Tag == "g" && hasClass(el, "graph")
		for _, child := range el.ChildElements() {
			walk(child, ctm, style, graph, out)
		}
		return
	case "svg":
		// Nested viewports are flattened without clipping.
		x := attrFloat(el, "x")
		y := attrFloat(el, "y")
		ctm = ctm.Mul(Translate(x, y))
		for _, child := range el.ChildElements() {
			walk(child, ctm, style, false, out)
		}
		return
	case "text":
		text := collectText(el)
		if strings.TrimSpace(text) == "" {
			return
		}
		*out = append(*out, Shape{
			Element: el, CTM: ctm, Style: style, Text: text,
			Origin: Point{X: firstNumber(el, "x"), Y: firstNumber(el, "y")},
		})
		return
	case "polygon":
		if inGraphGroup && isBackground(el) {
			return
		}
	}

	path, ok := geometry(el)
	if !ok || len(path) == 0 {
		return
	}
	*out = append(*out, Shape{Element: el, CTM: ctm, Style: style, Path: path})
}

func geometry(el *etree.Element) (Path, bool) {
	switch el.Tag {
	case "path":
		p, err := ParsePathData(el.SelectAttrValue("d", ""))
		return p, err == nil
	case "polygon", "polyline":
		pts, err := ParsePoints(el.SelectAttrValue("points", ""))
		if err != nil {
			return nil, false
		}
		return polyPath(pts, el.Tag == "polygon"), true
	case "rect":
		w, h := attrFloat(el, "width"), attrFloat(el, "height")
		if w <= 0 || h <= 0 {
			return nil, false
		}
		return rectPath(attrFloat(el, "x"), attrFloat(el, "y"), w, h), true
	case "line":
		return polyPath([]Point{
			{attrFloat(el, "x1"), attrFloat(el, "y1")},
			{attrFloat(el, "x2"), attrFloat(el, "y2")},
		}, false), true
	case "circle":
		r := attrFloat(el, "r")
		if r <= 0 {
			return nil, false
		}
		return ellipsePath(attrFloat(el, "cx"), attrFloat(el, "cy"), r, r), true
	case "ellipse":
		rx, ry := attrFloat(el, "rx"), attrFloat(el, "ry")
		if rx <= 0 || ry <= 0 {
			return nil, false
		}
		return ellipsePath(attrFloat(el, "cx"), attrFloat(el, "cy"), rx, ry), true
	}
	return nil, false
}

// isBackground reports whether a polygon is the graph canvas fill: graphviz
// draws it unstroked before any node.
func isBackground(el *etree.Element) bool {
	stroke := strings.TrimSpace(el.SelectAttrValue("stroke", ""))
	return stroke == "none" || stroke == "transparent"
}

func hasClass(el *etree.Element, class string) bool {
	for _, c := range strings.Fields(el.SelectAttrValue("class", "")) {
		if c == class {
			return true
		}
	}
	return false
}

func attrFloat(el *etree.Element, key string) float64 {
	f, _ := parseLength(el.SelectAttrValue(key, "0"))
	return f
}

// firstNumber reads the first entry of a possibly list-valued attribute.
func firstNumber(el *etree.Element, key string) float64 {
	nums, err := parseNumbers(el.SelectAttrValue(key, "0"))
	if err != nil || len(nums) == 0 {
		return 0
	}
	return nums[0]
}

func collectText(el *etree.Element) string {
	var b strings.Builder
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			b.WriteString(t.Data)
		case *etree.Element:
			b.WriteString(collectText(t))
		}
	}
	return b.String()
}
