package vector

import (
	"fmt"
	"math"
	"strconv"
)

// SegmentOp is the kind of a normalized path segment.
type SegmentOp int

const (
	OpMove SegmentOp = iota
	OpLine
	OpCubic
	OpClose
)

// Segment is one absolute path command. Line uses Pts[0]; Cubic uses
// Pts[0..2] as control1, control2, end; Close uses none.
type Segment struct {
	Op  SegmentOp
	Pts [3]Point
}

// Path is a normalized path: only move, line, cubic and close segments in
// absolute coordinates.
type Path []Segment

func (p *Path) moveTo(pt Point) { *p = append(*p, Segment{Op: OpMove, Pts: [3]Point{pt}}) }
func (p *Path) lineTo(pt Point) { *p = append(*p, Segment{Op: OpLine, Pts: [3]Point{pt}}) }
func (p *Path) close()          { *p = append(*p, Segment{Op: OpClose}) }

func (p *Path) cubicTo(c1, c2, end Point) {
	*p = append(*p, Segment{Op: OpCubic, Pts: [3]Point{c1, c2, end}})
}

// Bounds returns the tight bounding box of the path after m is applied.
func (p Path) Bounds(m Matrix) Rect {
	var b bounds
	p.addBounds(m, &b)
	return b.rect()
}

func (p Path) addBounds(m Matrix, b *bounds) {
	var cur Point
	for _, s := range p {
		switch s.Op {
		case OpMove, OpLine:
			cur = m.Apply(s.Pts[0])
			b.add(cur)
		case OpCubic:
			c1, c2, end := m.Apply(s.Pts[0]), m.Apply(s.Pts[1]), m.Apply(s.Pts[2])
			cubicBounds(cur, c1, c2, end, b)
			cur = end
		}
	}
}

// cubicBounds adds the endpoints and axis extrema of a cubic Bezier.
// Affine maps preserve Bezier curves, so the control points are already in
// target space.
func cubicBounds(p0, p1, p2, p3 Point, b *bounds) {
	b.add(p0)
	b.add(p3)
	for _, t := range cubicExtrema(p0.X, p1.X, p2.X, p3.X) {
		b.add(cubicAt(p0, p1, p2, p3, t))
	}
	for _, t := range cubicExtrema(p0.Y, p1.Y, p2.Y, p3.Y) {
		b.add(cubicAt(p0, p1, p2, p3, t))
	}
}

// cubicExtrema returns the parameters in (0,1) where the derivative of a
// one-dimensional cubic Bezier vanishes.
func cubicExtrema(a, b, c, d float64) []float64 {
	// B'(t)/3 = qa*t^2 + qb*t + qc
	qa := -a + 3*b - 3*c + d
	qb := 2 * (a - 2*b + c)
	qc := b - a

	var ts []float64
	in := func(t float64) {
		if t > 0 && t < 1 {
			ts = append(ts, t)
		}
	}
	const eps = 1e-12
	if math.Abs(qa) < eps {
		if math.Abs(qb) > eps {
			in(-qc / qb)
		}
		return ts
	}
	disc := qb*qb - 4*qa*qc
	if disc < 0 {
		return ts
	}
	sq := math.Sqrt(disc)
	in((-qb + sq) / (2 * qa))
	in((-qb - sq) / (2 * qa))
	return ts
}

func cubicAt(p0, p1, p2, p3 Point, t float64) Point {
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	c := 3 * mt * t * t
	d := t * t * t
	return Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

// ParsePathData parses SVG path data ("d" attribute) into a normalized Path.
func ParsePathData(d string) (Path, error) {
	sc := &scanner{s: d}
	var (
		path             Path
		cur, start, ctrl Point
		prevCmd          byte
		cmd              byte
	)
	for {
		sc.skipSeparators()
		if sc.done() {
			break
		}
		if c := sc.peek(); isCommand(c) {
			cmd = c
			sc.pos++
		} else if cmd == 0 {
			return nil, fmt.Errorf("path data: expected command at offset %d", sc.pos)
		}
		rel := cmd >= 'a' && cmd <= 'z'
		abs := func(p Point) Point {
			if rel {
				return Point{X: cur.X + p.X, Y: cur.Y + p.Y}
			}
			return p
		}

		switch cmd {
		case 'M', 'm':
			p, err := sc.point()
			if err != nil {
				return nil, err
			}
			cur = abs(p)
			start = cur
			path.moveTo(cur)
			// Subsequent pairs are implicit line-tos.
			if rel {
				cmd = 'l'
			} else {
				cmd = 'L'
			}
		case 'L', 'l':
			p, err := sc.point()
			if err != nil {
				return nil, err
			}
			cur = abs(p)
			path.lineTo(cur)
		case 'H', 'h':
			x, err := sc.number()
			if err != nil {
				return nil, err
			}
			if rel {
				x += cur.X
			}
			cur = Point{X: x, Y: cur.Y}
			path.lineTo(cur)
		case 'V', 'v':
			y, err := sc.number()
			if err != nil {
				return nil, err
			}
			if rel {
				y += cur.Y
			}
			cur = Point{X: cur.X, Y: y}
			path.lineTo(cur)
		case 'C', 'c':
			pts, err := sc.points(3)
			if err != nil {
				return nil, err
			}
			c1, c2, end := abs(pts[0]), abs(pts[1]), abs(pts[2])
			path.cubicTo(c1, c2, end)
			ctrl, cur = c2, end
		case 'S', 's':
			pts, err := sc.points(2)
			if err != nil {
				return nil, err
			}
			c1 := cur
			if isCubic(prevCmd) {
				c1 = reflect(ctrl, cur)
			}
			c2, end := abs(pts[0]), abs(pts[1])
			path.cubicTo(c1, c2, end)
			ctrl, cur = c2, end
		case 'Q', 'q':
			pts, err := sc.points(2)
			if err != nil {
				return nil, err
			}
			q, end := abs(pts[0]), abs(pts[1])
			path.cubicTo(quadToCubic(cur, q, end))
			ctrl, cur = q, end
		case 'T', 't':
			p, err := sc.point()
			if err != nil {
				return nil, err
			}
			q := cur
			if isQuad(prevCmd) {
				q = reflect(ctrl, cur)
			}
			end := abs(p)
			path.cubicTo(quadToCubic(cur, q, end))
			ctrl, cur = q, end
		case 'A', 'a':
			nums, err := sc.numbers(7)
			if err != nil {
				return nil, err
			}
			end := abs(Point{X: nums[5], Y: nums[6]})
			arcTo(&path, cur, nums[0], nums[1], nums[2], nums[3] != 0, nums[4] != 0, end)
			cur = end
		case 'Z', 'z':
			path.close()
			cur = start
		default:
			return nil, fmt.Errorf("path data: unknown command %q", cmd)
		}
		prevCmd = cmd
		if cmd == 'Z' || cmd == 'z' {
			// Z takes no arguments; a following number needs a new command.
			cmd = 0
			prevCmd = 'Z'
		}
	}
	return path, nil
}

func isCommand(c byte) bool {
	switch c {
	case 'M', 'm', 'L', 'l', 'H', 'h', 'V', 'v', 'C', 'c', 'S', 's', 'Q', 'q', 'T', 't', 'A', 'a', 'Z', 'z':
		return true
	}
	return false
}

func isCubic(c byte) bool { return c == 'C' || c == 'c' || c == 'S' || c == 's' }
func isQuad(c byte) bool  { return c == 'Q' || c == 'q' || c == 'T' || c == 't' }

func reflect(ctrl, about Point) Point {
	return Point{X: 2*about.X - ctrl.X, Y: 2*about.Y - ctrl.Y}
}

func quadToCubic(p0, q, p Point) (Point, Point, Point) {
	c1 := Point{X: p0.X + 2.0/3.0*(q.X-p0.X), Y: p0.Y + 2.0/3.0*(q.Y-p0.Y)}
	c2 := Point{X: p.X + 2.0/3.0*(q.X-p.X), Y: p.Y + 2.0/3.0*(q.Y-p.Y)}
	return c1, c2, p
}

// arcTo appends an elliptical arc as cubic segments using the endpoint to
// center conversion of SVG 1.1 appendix F.6.
func arcTo(path *Path, p0 Point, rx, ry, phiDeg float64, large, sweep bool, p1 Point) {
	if p0 == p1 {
		return
	}
	rx, ry = math.Abs(rx), math.Abs(ry)
	if rx == 0 || ry == 0 {
		path.lineTo(p1)
		return
	}
	sinPhi, cosPhi := math.Sincos(phiDeg * math.Pi / 180)
	dx, dy := (p0.X-p1.X)/2, (p0.Y-p1.Y)/2
	x1 := cosPhi*dx + sinPhi*dy
	y1 := -sinPhi*dx + cosPhi*dy

	if lambda := x1*x1/(rx*rx) + y1*y1/(ry*ry); lambda > 1 {
		s := math.Sqrt(lambda)
		rx, ry = rx*s, ry*s
	}

	num := rx*rx*ry*ry - rx*rx*y1*y1 - ry*ry*x1*x1
	den := rx*rx*y1*y1 + ry*ry*x1*x1
	coef := 0.0
	if den != 0 && num > 0 {
		coef = math.Sqrt(num / den)
	}
	if large == sweep {
		coef = -coef
	}
	cx1 := coef * rx * y1 / ry
	cy1 := -coef * ry * x1 / rx
	cx := cosPhi*cx1 - sinPhi*cy1 + (p0.X+p1.X)/2
	cy := sinPhi*cx1 + cosPhi*cy1 + (p0.Y+p1.Y)/2

	angle := func(ux, uy, vx, vy float64) float64 {
		return math.Atan2(ux*vy-uy*vx, ux*vx+uy*vy)
	}
	theta := angle(1, 0, (x1-cx1)/rx, (y1-cy1)/ry)
	delta := angle((x1-cx1)/rx, (y1-cy1)/ry, (-x1-cx1)/rx, (-y1-cy1)/ry)
	if !sweep && delta > 0 {
		delta -= 2 * math.Pi
	} else if sweep && delta < 0 {
		delta += 2 * math.Pi
	}

	n := int(math.Ceil(math.Abs(delta) / (math.Pi / 2)))
	if n < 1 {
		n = 1
	}
	step := delta / float64(n)
	k := 4.0 / 3.0 * math.Tan(step/4)

	onEllipse := func(t float64) (Point, Point) {
		sin, cos := math.Sincos(t)
		p := Point{
			X: cx + rx*cos*cosPhi - ry*sin*sinPhi,
			Y: cy + rx*cos*sinPhi + ry*sin*cosPhi,
		}
		d := Point{
			X: -rx*sin*cosPhi - ry*cos*sinPhi,
			Y: -rx*sin*sinPhi + ry*cos*cosPhi,
		}
		return p, d
	}
	t := theta
	from, dFrom := onEllipse(t)
	for i := 0; i < n; i++ {
		t += step
		to, dTo := onEllipse(t)
		if i == n-1 {
			to = p1
		}
		path.cubicTo(
			Point{X: from.X + k*dFrom.X, Y: from.Y + k*dFrom.Y},
			Point{X: to.X - k*dTo.X, Y: to.Y - k*dTo.Y},
			to,
		)
		from, dFrom = to, dTo
	}
}

// scanner tokenizes numbers in path data, point lists and transform arguments.
type scanner struct {
	s   string
	pos int
}

func (sc *scanner) done() bool { return sc.pos >= len(sc.s) }
func (sc *scanner) peek() byte { return sc.s[sc.pos] }

func (sc *scanner) skipSeparators() {
	for !sc.done() {
		switch sc.peek() {
		case ' ', '\t', '\n', '\r', ',':
			sc.pos++
		default:
			return
		}
	}
}

func (sc *scanner) number() (float64, error) {
	sc.skipSeparators()
	start := sc.pos
	if !sc.done() && (sc.peek() == '+' || sc.peek() == '-') {
		sc.pos++
	}
	digits, dot := false, false
mantissa:
	for !sc.done() {
		c := sc.peek()
		switch {
		case c >= '0' && c <= '9':
			digits = true
		case c == '.' && !dot:
			dot = true
		default:
			break mantissa
		}
		sc.pos++
	}
	if digits && !sc.done() && (sc.peek() == 'e' || sc.peek() == 'E') {
		save := sc.pos
		sc.pos++
		if !sc.done() && (sc.peek() == '+' || sc.peek() == '-') {
			sc.pos++
		}
		expDigits := false
		for !sc.done() && sc.peek() >= '0' && sc.peek() <= '9' {
			sc.pos++
			expDigits = true
		}
		if !expDigits {
			sc.pos = save
		}
	}
	if !digits {
		return 0, fmt.Errorf("expected number at offset %d", start)
	}
	return strconv.ParseFloat(sc.s[start:sc.pos], 64)
}

func (sc *scanner) numbers(n int) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		v, err := sc.number()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (sc *scanner) point() (Point, error) {
	v, err := sc.numbers(2)
	if err != nil {
		return Point{}, err
	}
	return Point{X: v[0], Y: v[1]}, nil
}

func (sc *scanner) points(n int) ([]Point, error) {
	out := make([]Point, n)
	for i := range out {
		p, err := sc.point()
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// parseNumbers reads every number in s.
func parseNumbers(s string) ([]float64, error) {
	sc := &scanner{s: s}
	var out []float64
	for {
		sc.skipSeparators()
		if sc.done() {
			return out, nil
		}
		v, err := sc.number()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// ParsePoints parses a polygon/polyline points list.
func ParsePoints(s string) ([]Point, error) {
	nums, err := parseNumbers(s)
	if err != nil {
		return nil, err
	}
	if len(nums)%2 != 0 {
		return nil, fmt.Errorf("points: odd coordinate count %d", len(nums))
	}
	pts := make([]Point, len(nums)/2)
	for i := range pts {
		pts[i] = Point{X: nums[2*i], Y: nums[2*i+1]}
	}
	return pts, nil
}

// kappa places cubic control points to approximate a quarter ellipse.
const kappa = 0.5522847498

func ellipsePath(cx, cy, rx, ry float64) Path {
	var p Path
	kx, ky := rx*kappa, ry*kappa
	p.moveTo(Point{X: cx + rx, Y: cy})
	p.cubicTo(Point{X: cx + rx, Y: cy + ky}, Point{X: cx + kx, Y: cy + ry}, Point{X: cx, Y: cy + ry})
	p.cubicTo(Point{X: cx - kx, Y: cy + ry}, Point{X: cx - rx, Y: cy + ky}, Point{X: cx - rx, Y: cy})
	p.cubicTo(Point{X: cx - rx, Y: cy - ky}, Point{X: cx - kx, Y: cy - ry}, Point{X: cx, Y: cy - ry})
	p.cubicTo(Point{X: cx + kx, Y: cy - ry}, Point{X: cx + rx, Y: cy - ky}, Point{X: cx + rx, Y: cy})
	p.close()
	return p
}

func polyPath(pts []Point, closed bool) Path {
	var p Path
	for i, pt := range pts {
		if i == 0 {
			p.moveTo(pt)
		} else {
			p.lineTo(pt)
		}
	}
	if closed && len(pts) > 0 {
		p.close()
	}
	return p
}

func rectPath(x, y, w, h float64) Path {
	return polyPath([]Point{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}, true)
}
