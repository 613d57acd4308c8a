// Package field defines the value types shared by the contour and distance
// field packages: scalar grids, distance fields, line segments and
// polylines, plus the mapping between grid and normalized coordinates.
//
// Grids are square and row-major. Row index y grows upward so the corners of
// cell (x,y) are, in order, bottom-left (x,y), bottom-right (x+1,y),
// top-right (x+1,y+1) and top-left (x,y+1). Normalized space is [-1,1] on
// both axes with sample 0 at -1 and sample N-1 at +1.
package field

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
)

// ScalarGrid is an N×N row-major grid of density values, usually in [0,1].
type ScalarGrid struct {
	Width  int
	Values []float32
}

// NewScalarGrid allocates a zeroed width×width grid.
func NewScalarGrid(width int) (ScalarGrid, error) {
	if width <= 0 {
		return ScalarGrid{}, fmt.Errorf("%w: %d", ErrBadWidth, width)
	}
	return ScalarGrid{Width: width, Values: make([]float32, width*width)}, nil
}

// ScalarGridFromValues wraps values as a grid without copying.
func ScalarGridFromValues(width int, values []float32) (ScalarGrid, error) {
	g := ScalarGrid{Width: width, Values: values}
	return g, g.Validate()
}

// Validate checks the length invariant.
func (g ScalarGrid) Validate() error {
	if g.Width <= 0 {
		return fmt.Errorf("%w: %d", ErrBadWidth, g.Width)
	} else if len(g.Values) != g.Width*g.Width {
		return fmt.Errorf("%w: have %d values for width %d", ErrLengthMismatch, len(g.Values), g.Width)
	}
	return nil
}

// At returns the value at sample (x,y). It panics when out of range.
func (g ScalarGrid) At(x, y int) float32 {
	return g.Values[y*g.Width+x]
}

// Sample bilinearly samples the grid at a grid-space position, clamping to the border.
func (g ScalarGrid) Sample(p ms2.Vec) float32 {
	maxc := float32(g.Width - 1)
	x := math32.Max(0, math32.Min(p.X, maxc))
	y := math32.Max(0, math32.Min(p.Y, maxc))
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, g.Width-1), min(y0+1, g.Width-1)
	tx, ty := x-float32(x0), y-float32(y0)
	a := g.At(x0, y0)*(1-tx) + g.At(x1, y0)*tx
	b := g.At(x0, y1)*(1-tx) + g.At(x1, y1)*tx
	return a*(1-ty) + b*ty
}

// Clone returns a deep copy of g.
func (g ScalarGrid) Clone() ScalarGrid {
	return ScalarGrid{Width: g.Width, Values: append([]float32(nil), g.Values...)}
}

// DistanceField is the per-sample output of the distance solvers. Values
// are expressed in sample units of this field's own grid.
type DistanceField struct {
	Width  int
	Values []float32
	Signed bool
}

// NewDistanceField allocates a zeroed width×width field.
func NewDistanceField(width int) (DistanceField, error) {
	if width <= 0 {
		return DistanceField{}, fmt.Errorf("%w: %d", ErrBadWidth, width)
	}
	return DistanceField{Width: width, Values: make([]float32, width*width)}, nil
}

// Resize reallocates Values when width changed and zeroes the field.
func (d *DistanceField) Resize(width int) error {
	if width <= 0 {
		return fmt.Errorf("%w: %d", ErrBadWidth, width)
	}
	if cap(d.Values) < width*width {
		d.Values = make([]float32, width*width)
	} else {
		d.Values = d.Values[:width*width]
		clear(d.Values)
	}
	d.Width = width
	return nil
}

// At returns the distance at sample (x,y).
func (d DistanceField) At(x, y int) float32 {
	return d.Values[y*d.Width+x]
}

// NormalizedScale is the factor converting this field's sample units into
// normalized [-1,1] units.
func (d DistanceField) NormalizedScale() float32 {
	return SampleSpacing(d.Width)
}

// SampleSpacing is the normalized distance between adjacent samples of a
// width-wide grid.
func SampleSpacing(width int) float32 {
	if width < 2 {
		return 2
	}
	return 2 / float32(width-1)
}

// ToNormalized maps a grid-space position of a width-wide grid to normalized space.
func ToNormalized(width int, p ms2.Vec) ms2.Vec {
	s := SampleSpacing(width)
	return ms2.AddScalar(-1, ms2.Scale(s, p))
}

// ToGrid maps a normalized position to grid space of a width-wide grid.
func ToGrid(width int, p ms2.Vec) ms2.Vec {
	s := SampleSpacing(width)
	return ms2.Scale(1/s, ms2.AddScalar(1, p))
}
