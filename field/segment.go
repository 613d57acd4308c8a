package field

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
)

// UnknownCell marks a segment whose originating grid cell is not known.
const UnknownCell = -1

// Segment is a contour line segment in normalized space.
type Segment struct {
	Start, End ms2.Vec
	// CellX, CellY record the grid cell the segment came from, or UnknownCell.
	CellX, CellY int32
}

// Length returns the segment's euclidean length.
func (s Segment) Length() float32 {
	return ms2.Norm(ms2.Sub(s.End, s.Start))
}

// Bounds returns the axis aligned box containing the segment.
func (s Segment) Bounds() ms2.Box {
	return ms2.Box{Min: ms2.MinElem(s.Start, s.End), Max: ms2.MaxElem(s.Start, s.End)}
}

// Dist2 returns the squared distance from p to the segment.
func (s Segment) Dist2(p ms2.Vec) float32 {
	pa := ms2.Sub(p, s.Start)
	ba := ms2.Sub(s.End, s.Start)
	dd := ms2.Dot(ba, ba)
	var h float32
	if dd > 0 {
		h = math32.Max(0, math32.Min(1, ms2.Dot(pa, ba)/dd))
	}
	return ms2.Norm2(ms2.Sub(pa, ms2.Scale(h, ba)))
}

// Closest returns the point on the segment closest to p.
func (s Segment) Closest(p ms2.Vec) ms2.Vec {
	pa := ms2.Sub(p, s.Start)
	ba := ms2.Sub(s.End, s.Start)
	dd := ms2.Dot(ba, ba)
	if dd == 0 {
		return s.Start
	}
	h := math32.Max(0, math32.Min(1, ms2.Dot(pa, ba)/dd))
	return ms2.Add(s.Start, ms2.Scale(h, ba))
}

// SegmentSet is a capacity-bounded segment buffer. Segments is sized to the
// worst case and Count records how many leading slots are populated.
type SegmentSet struct {
	Segments []Segment
	Count    int
	// Width is the grid width the set was extracted from, 0 if unknown.
	Width int
}

// NewSegmentSet allocates a set with room for capacity segments.
func NewSegmentSet(capacity int) SegmentSet {
	return SegmentSet{Segments: make([]Segment, max(capacity, 0))}
}

// MaxSegments is the worst case segment count for a width-wide grid:
// two segments per cell.
func MaxSegments(width int) int {
	if width < 2 {
		return 0
	}
	return 2 * (width - 1) * (width - 1)
}

// Cap returns the set's capacity.
func (s SegmentSet) Cap() int { return len(s.Segments) }

// Valid returns the populated segments.
func (s SegmentSet) Valid() []Segment { return s.Segments[:s.Count] }

// Validate checks 0 <= Count <= Cap.
func (s SegmentSet) Validate() error {
	if s.Count < 0 || s.Count > len(s.Segments) {
		return fmt.Errorf("%w: count %d, capacity %d", ErrCountRange, s.Count, len(s.Segments))
	}
	return nil
}

// SpatialKey is a quantized 2D position used as a hash key.
type SpatialKey struct {
	X, Y int32
}

// KeyOf quantizes p with cells of size 1/invCellSize.
func KeyOf(p ms2.Vec, invCellSize float32) SpatialKey {
	return SpatialKey{
		X: int32(math32.Floor(p.X * invCellSize)),
		Y: int32(math32.Floor(p.Y * invCellSize)),
	}
}

// Add offsets the key by dx, dy.
func (k SpatialKey) Add(dx, dy int32) SpatialKey {
	return SpatialKey{X: k.X + dx, Y: k.Y + dy}
}
