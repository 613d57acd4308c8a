// Package contour extracts iso-value line segments from scalar grids using
// marching squares. Three strategies are offered that differ only in how
// parallel cells reserve output space:
//
//   - FixedSlot: each cell owns two output slots plus valid flags and a final
//     compaction drops the unused ones. No coordination between cells.
//   - CountCompact: a first pass counts segments per batch of rows, a prefix
//     sum gives each batch its write offset and a second pass writes.
//   - Append: cells reserve space with an atomic counter. Segments beyond
//     capacity are dropped and counted.
//
// FixedSlot and CountCompact produce identical output in cell order.
package contour

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/isodist/field"
	"github.com/soypat/isodist/internal/logger"
	"github.com/soypat/isodist/internal/parallel"
)

// lerpEpsilon is the corner value difference below which an edge crossing
// is placed at the edge midpoint.
const lerpEpsilon = 1e-3

// Strategy selects how parallel cells reserve output space.
type Strategy uint8

const (
	// Auto uses FixedSlot when the cell count is at most Config.FixedSlotMaxCells
	// and CountCompact otherwise.
	Auto Strategy = iota
	FixedSlot
	CountCompact
	Append
)

func (s Strategy) String() string {
	switch s {
	case Auto:
		return "auto"
	case FixedSlot:
		return "fixed-slot"
	case CountCompact:
		return "count-compact"
	case Append:
		return "append"
	}
	return "invalid"
}

// ErrBadIso is returned for NaN or infinite iso-values.
var ErrBadIso = errors.New("contour: iso-value must be finite")

// Config configures an Extractor.
type Config struct {
	Strategy Strategy
	// BatchRows is the number of cell rows per CountCompact batch. Zero picks one.
	BatchRows int
	// FixedSlotMaxCells is the largest cell count for which Auto picks FixedSlot.
	FixedSlotMaxCells int
	// AppendCapacity bounds the Append strategy's output. Zero means two segments per cell.
	AppendCapacity int
}

// DefaultConfig returns the configuration used by [Extract].
func DefaultConfig() Config {
	return Config{
		Strategy:          Auto,
		FixedSlotMaxCells: 1 << 20,
	}
}

// Validate checks the configuration.
func (cfg Config) Validate() error {
	switch {
	case cfg.Strategy > Append:
		return fmt.Errorf("contour: unknown strategy %d", cfg.Strategy)
	case cfg.BatchRows < 0:
		return errors.New("contour: negative BatchRows")
	case cfg.FixedSlotMaxCells < 0:
		return errors.New("contour: negative FixedSlotMaxCells")
	case cfg.AppendCapacity < 0:
		return errors.New("contour: negative AppendCapacity")
	}
	return nil
}

// Stats reports on the last extraction.
type Stats struct {
	Strategy Strategy
	Cells    int
	Segments int
	// Dropped counts segments discarded by Append for lack of capacity.
	Dropped int
}

// Extractor extracts contours and reuses its scratch buffers between calls.
// It is not safe for concurrent use.
type Extractor struct {
	cfg    Config
	slots  []field.Segment
	valid  []bool
	counts []int
	stats  Stats
}

// NewExtractor returns an Extractor with cfg.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{cfg: cfg}, nil
}

// Stats returns statistics of the last Extract call.
func (e *Extractor) Stats() Stats { return e.stats }

// Extract marches every cell of g against iso and returns the segments found,
// reusing dst's storage when it is large enough. The returned set's capacity
// is the worst case of two segments per cell. Grids narrower than two samples
// produce an empty set.
func (e *Extractor) Extract(dst field.SegmentSet, g field.ScalarGrid, iso float32) (field.SegmentSet, error) {
	if err := g.Validate(); err != nil {
		return dst, err
	} else if math32.IsNaN(iso) || math32.IsInf(iso, 0) {
		return dst, ErrBadIso
	}
	capacity := field.MaxSegments(g.Width)
	strategy := e.cfg.Strategy
	if strategy == Auto {
		strategy = CountCompact
		if cells := (g.Width - 1) * (g.Width - 1); cells <= e.cfg.FixedSlotMaxCells {
			strategy = FixedSlot
		}
	}
	if strategy == Append && e.cfg.AppendCapacity > 0 {
		capacity = e.cfg.AppendCapacity
	}
	if cap(dst.Segments) < capacity {
		dst.Segments = make([]field.Segment, capacity)
	}
	dst.Segments = dst.Segments[:capacity]
	dst.Count = 0
	dst.Width = g.Width
	e.stats = Stats{Strategy: strategy}
	if g.Width < 2 {
		return dst, nil
	}
	m := marcher{g: g, iso: iso, cellsX: g.Width - 1}
	e.stats.Cells = m.cellsX * m.cellsX
	var err error
	switch strategy {
	case FixedSlot:
		err = e.fixedSlot(&dst, m)
	case CountCompact:
		err = e.countCompact(&dst, m)
	case Append:
		err = e.appendAtomic(&dst, m)
	}
	if err != nil {
		return dst, err
	}
	e.stats.Segments = dst.Count
	logger.L().Debug("contour extracted",
		slog.String("strategy", strategy.String()),
		slog.Int("width", g.Width),
		slog.Int("segments", dst.Count),
		slog.Int("dropped", e.stats.Dropped),
	)
	return dst, nil
}

// Extract extracts the iso-contour of g with [DefaultConfig].
func Extract(g field.ScalarGrid, iso float32) (field.SegmentSet, error) {
	var e Extractor
	e.cfg = DefaultConfig()
	return e.Extract(field.SegmentSet{}, g, iso)
}

// ExtractWith extracts the iso-contour of g with cfg.
func ExtractWith(g field.ScalarGrid, iso float32, cfg Config) (field.SegmentSet, Stats, error) {
	e, err := NewExtractor(cfg)
	if err != nil {
		return field.SegmentSet{}, Stats{}, err
	}
	set, err := e.Extract(field.SegmentSet{}, g, iso)
	return set, e.stats, err
}

func (e *Extractor) fixedSlot(dst *field.SegmentSet, m marcher) error {
	cells := m.cellsX * m.cellsX
	if cap(e.slots) < 2*cells {
		e.slots = make([]field.Segment, 2*cells)
		e.valid = make([]bool, 2*cells)
	}
	slots := e.slots[:2*cells]
	valid := e.valid[:2*cells]
	err := parallel.For(m.cellsX, 0, func(start, end int) error {
		var buf [2]field.Segment
		for y := start; y < end; y++ {
			for x := 0; x < m.cellsX; x++ {
				ci := y*m.cellsX + x
				n := m.cell(x, y, &buf)
				slots[2*ci], slots[2*ci+1] = buf[0], buf[1]
				valid[2*ci] = n > 0
				valid[2*ci+1] = n > 1
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	n := 0
	for i, ok := range valid {
		if ok {
			dst.Segments[n] = slots[i]
			n++
		}
	}
	dst.Count = n
	return nil
}

func (e *Extractor) countCompact(dst *field.SegmentSet, m marcher) error {
	batchRows := e.cfg.BatchRows
	if batchRows <= 0 {
		batchRows = max(1, m.cellsX/(4*parallel.Default().Workers()))
	}
	batches := (m.cellsX + batchRows - 1) / batchRows
	if cap(e.counts) < batches+1 {
		e.counts = make([]int, batches+1)
	}
	counts := e.counts[:batches+1]
	err := parallel.For(batches, 1, func(start, end int) error {
		for b := start; b < end; b++ {
			n := 0
			for y := b * batchRows; y < min((b+1)*batchRows, m.cellsX); y++ {
				for x := 0; x < m.cellsX; x++ {
					n += CaseCount(m.code(x, y))
				}
			}
			counts[b+1] = n
		}
		return nil
	})
	if err != nil {
		return err
	}
	// Exclusive prefix sum: counts[b] becomes batch b's write offset.
	counts[0] = 0
	for b := 1; b <= batches; b++ {
		counts[b] += counts[b-1]
	}
	err = parallel.For(batches, 1, func(start, end int) error {
		var buf [2]field.Segment
		for b := start; b < end; b++ {
			off := counts[b]
			for y := b * batchRows; y < min((b+1)*batchRows, m.cellsX); y++ {
				for x := 0; x < m.cellsX; x++ {
					n := m.cell(x, y, &buf)
					off += copy(dst.Segments[off:], buf[:n])
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	dst.Count = counts[batches]
	return nil
}

func (e *Extractor) appendAtomic(dst *field.SegmentSet, m marcher) error {
	var cursor, dropped atomic.Int64
	capacity := int64(len(dst.Segments))
	err := parallel.For(m.cellsX, 0, func(start, end int) error {
		var buf [2]field.Segment
		for y := start; y < end; y++ {
			for x := 0; x < m.cellsX; x++ {
				n := int64(m.cell(x, y, &buf))
				if n == 0 {
					continue
				}
				at := cursor.Add(n) - n
				for i := int64(0); i < n; i++ {
					if at+i >= capacity {
						dropped.Add(1)
						continue
					}
					dst.Segments[at+i] = buf[i]
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	dst.Count = int(min(cursor.Load(), capacity))
	e.stats.Dropped = int(dropped.Load())
	return nil
}

// marcher evaluates single cells of a grid.
type marcher struct {
	g      field.ScalarGrid
	iso    float32
	cellsX int
}

func (m marcher) corners(x, y int) (bl, br, tr, tl float32) {
	w := m.g.Width
	v := m.g.Values
	i := y*w + x
	return v[i], v[i+1], v[i+w+1], v[i+w]
}

func (m marcher) code(x, y int) uint8 {
	bl, br, tr, tl := m.corners(x, y)
	return Code(bl, br, tr, tl, m.iso)
}

// cell writes the segments of cell (x,y) to dst and returns how many.
func (m marcher) cell(x, y int, dst *[2]field.Segment) int {
	bl, br, tr, tl := m.corners(x, y)
	c := caseTable[Code(bl, br, tr, tl, m.iso)]
	for i := range int(c.n) {
		a := m.edgePoint(x, y, c.edges[i][0], bl, br, tr, tl)
		b := m.edgePoint(x, y, c.edges[i][1], bl, br, tr, tl)
		dst[i] = field.Segment{
			Start: field.ToNormalized(m.g.Width, a),
			End:   field.ToNormalized(m.g.Width, b),
			CellX: int32(x),
			CellY: int32(y),
		}
	}
	return int(c.n)
}

// edgePoint returns the grid-space crossing on edge e. Each edge is always
// interpolated from its lower-indexed corner so neighboring cells sharing
// the edge compute the same point.
func (m marcher) edgePoint(x, y int, e Edge, bl, br, tr, tl float32) ms2.Vec {
	fx, fy := float32(x), float32(y)
	switch e {
	case EdgeBottom:
		return ms2.Vec{X: fx + crossing(bl, br, m.iso), Y: fy}
	case EdgeRight:
		return ms2.Vec{X: fx + 1, Y: fy + crossing(br, tr, m.iso)}
	case EdgeTop:
		return ms2.Vec{X: fx + crossing(tl, tr, m.iso), Y: fy + 1}
	default:
		return ms2.Vec{X: fx, Y: fy + crossing(bl, tl, m.iso)}
	}
}

// crossing returns the fraction along a→b where the value equals iso.
func crossing(a, b, iso float32) float32 {
	d := b - a
	if math32.Abs(d) < lerpEpsilon {
		return 0.5
	}
	return math32.Max(0, math32.Min(1, (iso-a)/d))
}
