// Package udf computes unsigned distance fields to contour segments.
//
// The Solver buckets segments into a uniform grid over normalized space
// and answers every output pixel with an expanding ring search over grid
// cells. [BruteForce] tests every segment against every pixel and serves
// as the reference implementation.
package udf

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/isodist/field"
	"github.com/soypat/isodist/internal/logger"
	"github.com/soypat/isodist/internal/parallel"
)

var (
	ErrBadResolution   = errors.New("udf: grid resolution must be at least 1")
	ErrBadCellCapacity = errors.New("udf: max segments per cell must be at least 1")
	ErrNotInitialized  = errors.New("udf: Generate called before Init")
)

// Solver is a spatial grid accelerated UDF generator. It is not safe for
// concurrent use; the zero value must be initialized with Init.
type Solver struct {
	// MaxQueryRadius bounds the ring search around a pixel's cell. Distances
	// are then clamped to MaxQueryRadius cells, the nearest an unsearched
	// segment can be, so a clamped pixel never reads above its true
	// distance. Zero searches the whole grid.
	MaxQueryRadius int

	res        int
	maxPerCell int
	cellSize   float32
	start      []int32
	count      []int32
	indices    []int32
	dropped    int
}

// NewSolver returns an initialized Solver.
func NewSolver(gridResolution, maxSegmentsPerCell int) (*Solver, error) {
	s := new(Solver)
	if err := s.Init(gridResolution, maxSegmentsPerCell); err != nil {
		return nil, err
	}
	return s, nil
}

// Init sets the grid to gridResolution×gridResolution cells over [-1,1]²
// each holding at most maxSegmentsPerCell segment indices.
func (s *Solver) Init(gridResolution, maxSegmentsPerCell int) error {
	var err error
	if gridResolution < 1 {
		err = fmt.Errorf("%w: %d", ErrBadResolution, gridResolution)
	} else if maxSegmentsPerCell < 1 {
		err = fmt.Errorf("%w: %d", ErrBadCellCapacity, maxSegmentsPerCell)
	}
	if err != nil {
		logger.L().Error("udf init", slog.String("err", err.Error()))
		return err
	}
	cells := gridResolution * gridResolution
	if cap(s.start) < cells {
		s.start = make([]int32, cells)
		s.count = make([]int32, cells)
	}
	s.start = s.start[:cells]
	s.count = s.count[:cells]
	s.res = gridResolution
	s.maxPerCell = maxSegmentsPerCell
	s.cellSize = 2 / float32(gridResolution)
	return nil
}

// Dropped returns how many segment-to-cell registrations the last
// Generate discarded because a cell was full. When non-zero the result
// may overestimate distances near crowded cells.
func (s *Solver) Dropped() int { return s.dropped }

// Release frees the solver's buffers. Safe to call any number of times.
// Init must be called before the solver is used again.
func (s *Solver) Release() {
	*s = Solver{MaxQueryRadius: s.MaxQueryRadius}
}

// Generate writes into out the distance from every pixel to the nearest of
// the first count segments. out.Width selects the output resolution and
// distances are expressed in its sample units. An empty segment set
// produces an all-zero field.
func (s *Solver) Generate(segs []field.Segment, count int, out *field.DistanceField) error {
	if s.res == 0 {
		return ErrNotInitialized
	}
	if err := prepare(segs, count, out); err != nil {
		return err
	}
	s.dropped = 0
	if count == 0 {
		return nil
	}
	s.build(segs[:count])
	if s.dropped > 0 {
		logger.L().Debug("udf grid cells overflowed", slog.Int("dropped", s.dropped), slog.Int("maxPerCell", s.maxPerCell))
	}
	segs = segs[:count]
	w := out.Width
	unit := 1 / field.SampleSpacing(w)
	maxR := s.res - 1
	limit := math32.Inf(1)
	if s.MaxQueryRadius > 0 && s.MaxQueryRadius < maxR {
		maxR = s.MaxQueryRadius
		limit = float32(maxR) * s.cellSize
	}
	return parallel.For(w, 0, func(startRow, endRow int) error {
		for y := startRow; y < endRow; y++ {
			for x := 0; x < w; x++ {
				p := field.ToNormalized(w, ms2.Vec{X: float32(x), Y: float32(y)})
				d := math32.Min(s.query(segs, p, maxR), limit)
				out.Values[y*w+x] = d * unit
			}
		}
		return nil
	})
}

// build registers every segment in the cells its bounding box overlaps with
// a count pass, an exclusive prefix sum and a fill pass.
func (s *Solver) build(segs []field.Segment) {
	clear(s.count)
	for _, seg := range segs {
		x0, y0, x1, y1 := s.cellRange(seg.Bounds())
		for cy := y0; cy <= y1; cy++ {
			for cx := x0; cx <= x1; cx++ {
				s.count[cy*s.res+cx]++
			}
		}
	}
	var total int32
	for i, n := range s.count {
		if int(n) > s.maxPerCell {
			s.dropped += int(n) - s.maxPerCell
			n = int32(s.maxPerCell)
		}
		s.start[i] = total
		s.count[i] = 0
		total += n
	}
	if cap(s.indices) < int(total) {
		s.indices = make([]int32, total)
	}
	s.indices = s.indices[:total]
	for i, seg := range segs {
		x0, y0, x1, y1 := s.cellRange(seg.Bounds())
		for cy := y0; cy <= y1; cy++ {
			for cx := x0; cx <= x1; cx++ {
				c := cy*s.res + cx
				if int(s.count[c]) >= s.maxPerCell {
					continue
				}
				s.indices[s.start[c]+s.count[c]] = int32(i)
				s.count[c]++
			}
		}
	}
}

func (s *Solver) cellOf(v float32) int {
	c := int(math32.Floor((v + 1) / s.cellSize))
	return max(0, min(c, s.res-1))
}

func (s *Solver) cellRange(b ms2.Box) (x0, y0, x1, y1 int) {
	return s.cellOf(b.Min.X), s.cellOf(b.Min.Y), s.cellOf(b.Max.X), s.cellOf(b.Max.Y)
}

// query searches rings of cells around p's cell. After ring r every segment
// not yet tested lies outside a square whose border is at least r cells
// from p, so the search stops once the best distance is within that bound.
func (s *Solver) query(segs []field.Segment, p ms2.Vec, maxR int) float32 {
	cx, cy := s.cellOf(p.X), s.cellOf(p.Y)
	best2 := math32.Inf(1)
	for r := 0; r <= maxR; r++ {
		for y := cy - r; y <= cy+r; y++ {
			if y < 0 || y >= s.res {
				continue
			}
			onEdge := y == cy-r || y == cy+r
			for x := cx - r; x <= cx+r; x++ {
				if x < 0 || x >= s.res || (!onEdge && x != cx-r && x != cx+r) {
					continue
				}
				c := y*s.res + x
				for _, idx := range s.indices[s.start[c] : s.start[c]+s.count[c]] {
					best2 = math32.Min(best2, segs[idx].Dist2(p))
				}
			}
		}
		bound := float32(r) * s.cellSize
		if best2 <= bound*bound {
			break
		}
	}
	return math32.Sqrt(best2)
}

// BruteForce writes into out the distance from every pixel to the nearest
// of the first count segments by testing all of them.
func BruteForce(segs []field.Segment, count int, out *field.DistanceField) error {
	if err := prepare(segs, count, out); err != nil || count == 0 {
		return err
	}
	segs = segs[:count]
	w := out.Width
	unit := 1 / field.SampleSpacing(w)
	return parallel.For(w, 0, func(start, end int) error {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				p := field.ToNormalized(w, ms2.Vec{X: float32(x), Y: float32(y)})
				best2 := math32.Inf(1)
				for i := range segs {
					best2 = math32.Min(best2, segs[i].Dist2(p))
				}
				out.Values[y*w+x] = math32.Sqrt(best2) * unit
			}
		}
		return nil
	})
}

func prepare(segs []field.Segment, count int, out *field.DistanceField) error {
	if count < 0 || count > len(segs) {
		return fmt.Errorf("%w: count %d, have %d segments", field.ErrCountRange, count, len(segs))
	}
	if err := out.Resize(out.Width); err != nil {
		return err
	}
	out.Signed = false
	return nil
}
