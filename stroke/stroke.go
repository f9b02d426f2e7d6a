// Package stroke holds pen-stroke sequences produced by a handwriting model.
package stroke

import (
	"math"

	"github.com/ByLCY/scribe/layout"
)

// ReferenceFontSize is the font size at which model units equal pixels.
const ReferenceFontSize = 18.0

// Point is one pen sample in model units. PenUp marks the last point of a
// stroke; the pen lifts before the next point.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	PenUp bool    `json:"pen_up,omitempty"`
}

// Sequence is an ordered list of pen samples for one word.
type Sequence []Point

// Extent returns the bounding box of the sequence.
func (s Sequence) Extent() (minX, minY, maxX, maxY float64) {
	if len(s) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range s {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return minX, minY, maxX, maxY
}

// Width is the horizontal extent in model units.
func (s Sequence) Width() float64 {
	minX, _, maxX, _ := s.Extent()
	return maxX - minX
}

// Normalize shifts the sequence so it starts at x=0 with its lowest point at y=0.
func (s Sequence) Normalize() Sequence {
	if len(s) == 0 {
		return nil
	}
	minX, minY, _, _ := s.Extent()
	out := make(Sequence, len(s))
	for i, p := range s {
		out[i] = Point{X: p.X - minX, Y: p.Y - minY, PenUp: p.PenUp}
	}
	return out
}

// Strokes splits the sequence at pen lifts.
func (s Sequence) Strokes() []Sequence {
	var out []Sequence
	start := 0
	for i, p := range s {
		if p.PenUp {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// Clone returns an independent copy.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	return append(Sequence(nil), s...)
}

// UnitToMM maps model units to millimetres for a style's font size and scale.
func UnitToMM(fontSize, scale float64) float64 {
	return scale * fontSize / ReferenceFontSize * layout.PxToMm
}

// WidthMM is the rendered width of the sequence in millimetres.
func (s Sequence) WidthMM(fontSize, scale float64) float64 {
	return s.Width() * UnitToMM(fontSize, scale)
}
