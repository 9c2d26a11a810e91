package vector

import (
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Text metrics use Go Regular for every font family. The vertical extent of
// a line is approximated from the font size: ascent 0.8em, descent 0.2em.
const (
	ascentRatio  = 0.8
	descentRatio = 0.2
)

// measureSize is the one face size text is measured at. Unhinted advances
// scale linearly, so other sizes are derived from it.
const measureSize = 128

var (
	fontOnce  sync.Once
	regular   *truetype.Font
	fontErr   error
	measureMu sync.Mutex
	measure   font.Face
)

func loadFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		regular, fontErr = truetype.Parse(goregular.TTF)
	})
	return regular, fontErr
}

// NewFace returns a new Go Regular face at size pixels. Faces are not safe
// for concurrent use; callers own the returned face.
func NewFace(size float64) (font.Face, error) {
	f, err := loadFont()
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone}), nil
}

// MeasureText returns the advance width of s at the given font size.
func MeasureText(s string, size float64) float64 {
	if s == "" || size <= 0 {
		return 0
	}
	measureMu.Lock()
	defer measureMu.Unlock()
	if measure == nil {
		face, err := NewFace(measureSize)
		if err != nil {
			return 0
		}
		measure = face
	}
	return float64(font.MeasureString(measure, s)) / 64 * size / measureSize
}
