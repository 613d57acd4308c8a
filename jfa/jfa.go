// Package jfa approximates distance fields with the jump flood algorithm.
//
// A Solver seeds an RG32F buffer with the grid positions of samples lying on
// the contour, floods nearest-seed information across the grid in
// O(log N) ping-pong passes run through a [pipeline.Pipeline], then
// converts the nearest seed of every sample into a distance, optionally
// signed by sampling the scalar field.
package jfa

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/isodist/field"
	"github.com/soypat/isodist/internal/logger"
	"github.com/soypat/isodist/internal/parallel"
	"github.com/soypat/isodist/pipeline"
)

var (
	ErrBadWidth      = errors.New("jfa: width must be at least 1")
	ErrWidthMismatch = errors.New("jfa: input width does not match solver")
	ErrNotRun        = errors.New("jfa: Finalize called before Run")
	ErrReleased      = errors.New("jfa: solver released")
)

// SeedMode selects which position a seed sample stores.
type SeedMode uint8

const (
	// CellCenter seeds store their own sample position.
	CellCenter SeedMode = iota
	// Subcell seeds store the interpolated iso-crossing or the closest
	// point on the seeding segment.
	Subcell
)

func (m SeedMode) String() string {
	switch m {
	case CellCenter:
		return "cell-center"
	case Subcell:
		return "subcell"
	}
	return "invalid"
}

// Config configures a Solver.
type Config struct {
	Width    int
	SeedMode SeedMode
	// ExtraPass appends a final jump=1 pass which fixes most of the
	// residual errors of the plain schedule.
	ExtraPass bool
	// Kernel runs a flood pass. Nil selects [FloodKernel].
	Kernel pipeline.Kernel
}

// Solver is a jump flood distance solver for a fixed grid width.
// It is not safe for concurrent use.
type Solver struct {
	cfg    Config
	pipe   pipeline.Pipeline
	input  pipeline.BufferSet
	result pipeline.BufferSet
	seeds  int
	ran    bool
}

// NewSolver allocates buffers and builds the flood schedule for cfg.Width.
func NewSolver(cfg Config) (*Solver, error) {
	if cfg.Width < 1 {
		err := fmt.Errorf("%w: %d", ErrBadWidth, cfg.Width)
		logger.L().Error("jfa new solver", slog.String("err", err.Error()))
		return nil, err
	} else if cfg.SeedMode > Subcell {
		return nil, fmt.Errorf("jfa: unknown seed mode %d", cfg.SeedMode)
	}
	if cfg.Kernel == nil {
		cfg.Kernel = FloodKernel()
	}
	s := &Solver{cfg: cfg}
	if err := s.pipe.Configure(Spec()); err != nil {
		return nil, err
	}
	if err := s.pipe.Init(cfg.Width); err != nil {
		return nil, err
	}
	for _, jump := range Schedule(cfg.Width, cfg.ExtraPass) {
		err := s.pipe.AddStage(cfg.Kernel, pipeline.StageConfig{
			Name:   fmt.Sprintf("flood%d", jump),
			Params: []pipeline.Param{{Name: JumpParam, Value: func() float32 { return float32(jump) }}},
		})
		if err != nil {
			return nil, err
		}
	}
	input, err := s.pipe.NewInput()
	if err != nil {
		return nil, err
	}
	s.input = input
	s.clearSeeds()
	return s, nil
}

// Width returns the solver's grid width.
func (s *Solver) Width() int { return s.cfg.Width }

// Passes returns the number of flood passes Run dispatches.
func (s *Solver) Passes() int { return s.pipe.Stages() }

// SeedCount returns the number of seeded samples.
func (s *Solver) SeedCount() int { return s.seeds }

func (s *Solver) clearSeeds() {
	buf := s.input.Buffer(Buffer)
	for i := range buf {
		buf[i] = noSeed
	}
	s.seeds = 0
	s.ran = false
	s.result = pipeline.BufferSet{}
}

func (s *Solver) setSeed(x, y int, p ms2.Vec) {
	buf := s.input.Buffer(Buffer)
	i := 2 * (y*s.cfg.Width + x)
	if buf[i] < 0 {
		s.seeds++
	}
	buf[i], buf[i+1] = p.X, p.Y
}

// SeedPoints replaces the seeds with the given grid-space points. Each
// point seeds the sample nearest to it. Points outside the grid are ignored.
func (s *Solver) SeedPoints(pts []ms2.Vec) error {
	if s.input.IsZero() {
		return ErrReleased
	}
	s.clearSeeds()
	w := s.cfg.Width
	maxc := float32(w - 1)
	for _, p := range pts {
		if !(p.X >= 0 && p.Y >= 0 && p.X <= maxc && p.Y <= maxc) {
			continue
		}
		x, y := int(math32.Round(p.X)), int(math32.Round(p.Y))
		if s.cfg.SeedMode == CellCenter {
			p = ms2.Vec{X: float32(x), Y: float32(y)}
		}
		s.setSeed(x, y, p)
	}
	return nil
}

// SeedFromScalar replaces the seeds with every sample of g that has a
// 4-neighbor on the other side of iso. Samples above iso are inside.
func (s *Solver) SeedFromScalar(g field.ScalarGrid, iso float32) error {
	if s.input.IsZero() {
		return ErrReleased
	} else if err := g.Validate(); err != nil {
		return err
	} else if g.Width != s.cfg.Width {
		return fmt.Errorf("%w: grid %d, solver %d", ErrWidthMismatch, g.Width, s.cfg.Width)
	}
	s.clearSeeds()
	w := g.Width
	offsets := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for y := 0; y < w; y++ {
		for x := 0; x < w; x++ {
			v := g.At(x, y)
			inside := v > iso
			bestT := float32(2)
			var best ms2.Vec
			for _, off := range offsets {
				nx, ny := x+off[0], y+off[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= w {
					continue
				}
				nv := g.At(nx, ny)
				if (nv > iso) == inside {
					continue
				}
				t := float32(0)
				if s.cfg.SeedMode == Subcell {
					t = crossing(v, nv, iso)
				}
				if t < bestT {
					bestT = t
					best = ms2.Vec{X: float32(x) + t*float32(off[0]), Y: float32(y) + t*float32(off[1])}
				}
			}
			if bestT <= 1 {
				s.setSeed(x, y, best)
			}
		}
	}
	logger.L().Debug("jfa seeded from scalar", slog.Int("seeds", s.seeds), slog.String("mode", s.cfg.SeedMode.String()))
	return nil
}

// SeedFromSegments replaces the seeds with the samples lying under segs,
// which are in normalized space. Each segment is walked at half-sample
// steps and the nearest sample at each step is seeded.
func (s *Solver) SeedFromSegments(segs []field.Segment) error {
	if s.input.IsZero() {
		return ErrReleased
	}
	s.clearSeeds()
	w := s.cfg.Width
	maxc := float32(w - 1)
	for _, seg := range segs {
		a := field.ToGrid(w, seg.Start)
		b := field.ToGrid(w, seg.End)
		steps := max(1, int(math32.Ceil(2*ms2.Norm(ms2.Sub(b, a)))))
		for i := 0; i <= steps; i++ {
			p := ms2.Add(a, ms2.Scale(float32(i)/float32(steps), ms2.Sub(b, a)))
			x, y := int(math32.Round(p.X)), int(math32.Round(p.Y))
			if x < 0 || y < 0 || x >= w || y >= w {
				continue
			}
			cell := ms2.Vec{X: float32(x), Y: float32(y)}
			if s.cfg.SeedMode == CellCenter {
				s.setSeed(x, y, cell)
				continue
			}
			gs := field.Segment{Start: a, End: b}
			q := gs.Closest(cell)
			q = ms2.ClampElem(q, ms2.Vec{}, ms2.Vec{X: maxc, Y: maxc})
			// Keep the closest candidate when several segments cover a sample.
			buf := s.input.Buffer(Buffer)
			j := 2 * (y*w + x)
			if buf[j] >= 0 {
				old := ms2.Vec{X: buf[j], Y: buf[j+1]}
				if ms2.Norm2(ms2.Sub(old, cell)) <= ms2.Norm2(ms2.Sub(q, cell)) {
					continue
				}
			}
			s.setSeed(x, y, q)
		}
	}
	logger.L().Debug("jfa seeded from segments", slog.Int("segments", len(segs)), slog.Int("seeds", s.seeds))
	return nil
}

// Run floods the seeds across the grid.
func (s *Solver) Run() error {
	if s.input.IsZero() {
		return ErrReleased
	}
	s.ran = false
	if s.seeds == 0 {
		s.result = s.input
		s.ran = true
		return nil
	}
	out, err := s.pipe.Dispatch(s.input)
	if err != nil {
		return err
	}
	s.result = out
	s.ran = true
	return nil
}

// NearestSeed returns the seed position found for sample (x,y) by the last Run.
func (s *Solver) NearestSeed(x, y int) (ms2.Vec, bool) {
	if !s.ran {
		return ms2.Vec{}, false
	}
	buf := s.result.Buffer(Buffer)
	i := 2 * (y*s.cfg.Width + x)
	if buf[i] < 0 {
		return ms2.Vec{}, false
	}
	return ms2.Vec{X: buf[i], Y: buf[i+1]}, true
}

// Finalize writes into out the distance, in samples, from every sample to
// its nearest seed. When signed is set and grid is given, samples above iso
// are negative. Without seeds the result is all zeros.
func (s *Solver) Finalize(out *field.DistanceField, signed bool, grid *field.ScalarGrid, iso float32) error {
	if !s.ran {
		return ErrNotRun
	}
	w := s.cfg.Width
	if signed && grid == nil {
		logger.L().Warn("jfa signed output requested without scalar field, writing unsigned distances")
		signed = false
	} else if signed {
		if err := grid.Validate(); err != nil {
			return err
		} else if grid.Width != w {
			return fmt.Errorf("%w: grid %d, solver %d", ErrWidthMismatch, grid.Width, w)
		}
	}
	if err := out.Resize(w); err != nil {
		return err
	}
	out.Signed = signed
	if s.seeds == 0 {
		return nil
	}
	seeds := s.result.Buffer(Buffer)
	return parallel.For(w, 0, func(start, end int) error {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				sx, sy := seeds[2*i], seeds[2*i+1]
				if sx < 0 {
					continue
				}
				d := math32.Hypot(sx-float32(x), sy-float32(y))
				if signed && grid.Values[i] > iso {
					d = -d
				}
				out.Values[i] = d
			}
		}
		return nil
	})
}

// Release frees the solver's buffers. Safe to call any number of times.
func (s *Solver) Release() {
	s.pipe.Release()
	s.input = pipeline.BufferSet{}
	s.result = pipeline.BufferSet{}
	s.ran = false
	s.seeds = 0
}

func crossing(a, b, iso float32) float32 {
	d := b - a
	if math32.Abs(d) < 1e-3 {
		return 0.5
	}
	return ms1.Clamp((iso-a)/d, 0, 1)
}
