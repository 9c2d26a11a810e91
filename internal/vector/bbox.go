package vector

// BBox returns the tight bounding box of the drawable content in document
// units, before any viewBox mapping. Strokes are not included. A document
// with nothing drawable yields an empty Rect.
func (d *Document) BBox() Rect {
	var b bounds
	for _, s := range d.Shapes() {
		if s.IsText() {
			textBounds(s, &b)
			continue
		}
		s.Path.addBounds(s.CTM, &b)
	}
	return b.rect()
}

// textBounds adds the four corners of a text run's layout box.
func textBounds(s Shape, b *bounds) {
	fs := s.Style.FontSize
	w := MeasureText(s.Text, fs)
	x := s.Origin.X
	switch s.Style.TextAnchor {
	case "middle":
		x -= w / 2
	case "end":
		x -= w
	}
	top := s.Origin.Y - ascentRatio*fs
	bottom := s.Origin.Y + descentRatio*fs
	for _, p := range []Point{{x, top}, {x + w, top}, {x, bottom}, {x + w, bottom}} {
		b.add(s.CTM.Apply(p))
	}
}
