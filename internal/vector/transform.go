package vector

import (
	"fmt"
	"math"
	"strings"
)

// ParseTransform parses an SVG transform list such as
// "scale(1 1) rotate(0) translate(4 220)". Functions compose left to right,
// so the rightmost is applied to points first.
func ParseTransform(s string) (Matrix, error) {
	m := Identity
	rest := strings.TrimSpace(s)
	for rest != "" {
		open := strings.IndexByte(rest, '(')
		if open < 0 {
			return Identity, fmt.Errorf("transform %q: missing '('", s)
		}
		closing := strings.IndexByte(rest, ')')
		if closing < open {
			return Identity, fmt.Errorf("transform %q: missing ')'", s)
		}
		name := strings.TrimSpace(strings.TrimLeft(rest[:open], ", \t\n\r"))
		args, err := parseNumbers(rest[open+1 : closing])
		if err != nil {
			return Identity, fmt.Errorf("transform %q: %w", s, err)
		}
		fn, err := transformFunc(name, args)
		if err != nil {
			return Identity, fmt.Errorf("transform %q: %w", s, err)
		}
		m = m.Mul(fn)
		rest = strings.TrimSpace(rest[closing+1:])
	}
	return m, nil
}

func transformFunc(name string, a []float64) (Matrix, error) {
	switch name {
	case "matrix":
		if len(a) != 6 {
			return Identity, fmt.Errorf("matrix needs 6 arguments, got %d", len(a))
		}
		return Matrix{A: a[0], B: a[1], C: a[2], D: a[3], E: a[4], F: a[5]}, nil
	case "translate":
		switch len(a) {
		case 1:
			return Translate(a[0], 0), nil
		case 2:
			return Translate(a[0], a[1]), nil
		}
	case "scale":
		switch len(a) {
		case 1:
			return Scale(a[0], a[0]), nil
		case 2:
			return Scale(a[0], a[1]), nil
		}
	case "rotate":
		switch len(a) {
		case 1:
			return Rotate(a[0]), nil
		case 3:
			return Translate(a[1], a[2]).Mul(Rotate(a[0])).Mul(Translate(-a[1], -a[2])), nil
		}
	case "skewX":
		if len(a) == 1 {
			return Matrix{A: 1, C: math.Tan(a[0] * math.Pi / 180), D: 1}, nil
		}
	case "skewY":
		if len(a) == 1 {
			return Matrix{A: 1, B: math.Tan(a[0] * math.Pi / 180), D: 1}, nil
		}
	default:
		return Identity, fmt.Errorf("unknown function %q", name)
	}
	return Identity, fmt.Errorf("%s: wrong argument count %d", name, len(a))
}
