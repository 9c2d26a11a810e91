// Package vector holds rendered diagrams as SVG element trees: it measures
// their drawable content, fits their viewport and rasterizes them.
package vector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Document is an owned SVG tree. Renders hand out a Document and never touch
// it again; exports work on a Clone.
type Document struct {
	doc *etree.Document
}

// Parse reads SVG bytes. The root element must be <svg>. The XML prolog,
// doctype and any top-level comments are dropped.
func Parse(data []byte) (*Document, error) {
	src := etree.NewDocument()
	if err := src.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("vector: parse svg: %w", err)
	}
	root := src.Root()
	if root == nil {
		return nil, errors.New("vector: parse svg: no root element")
	}
	if root.Tag != "svg" {
		return nil, fmt.Errorf("vector: parse svg: root element is <%s>, want <svg>", root.Tag)
	}
	doc := etree.NewDocument()
	doc.SetRoot(root.Copy())
	return &Document{doc: doc}, nil
}

// Root returns the <svg> element.
func (d *Document) Root() *etree.Element {
	return d.doc.Root()
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	return &Document{doc: d.doc.Copy()}
}

// Bytes serializes the document starting at the <svg> root tag.
func (d *Document) Bytes() ([]byte, error) {
	return d.doc.WriteToBytes()
}

// ViewBox returns the parsed viewBox attribute.
func (d *Document) ViewBox() (Rect, bool) {
	v := d.Root().SelectAttrValue("viewBox", "")
	nums, err := parseNumbers(v)
	if err != nil || len(nums) != 4 {
		return Rect{}, false
	}
	r := Rect{X: nums[0], Y: nums[1], W: nums[2], H: nums[3]}
	return r, !r.Empty()
}

// Size returns the declared width and height in user units. Percentages and
// missing values fall back to the viewBox.
func (d *Document) Size() (float64, float64) {
	root := d.Root()
	w, wok := parseLength(root.SelectAttrValue("width", ""))
	h, hok := parseLength(root.SelectAttrValue("height", ""))
	if wok && hok && w > 0 && h > 0 {
		return w, h
	}
	if vb, ok := d.ViewBox(); ok {
		return vb.W, vb.H
	}
	return 0, 0
}

// Fit sets the viewport to box grown by pad: the viewBox origin moves to the
// padded corner and width/height become the padded dimensions.
func (d *Document) Fit(box Rect, pad float64) {
	p := box.Pad(pad)
	root := d.Root()
	root.CreateAttr("viewBox", strings.Join([]string{
		formatNumber(p.X), formatNumber(p.Y), formatNumber(p.W), formatNumber(p.H),
	}, " "))
	root.CreateAttr("width", formatNumber(p.W))
	root.CreateAttr("height", formatNumber(p.H))
	root.CreateAttr("preserveAspectRatio", "xMidYMid meet")
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
