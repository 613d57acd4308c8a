// Package isodist turns scalar density grids into iso-contours and distance
// fields. A Generator runs the whole flow for one configuration: optional
// preprocessing stages, marching squares contour extraction, then polyline
// reconstruction, a jump flood signed distance field and an exact spatial
// grid unsigned distance field computed concurrently.
//
// The building blocks live in their own packages and can be used directly:
// [github.com/soypat/isodist/contour], [github.com/soypat/isodist/polyline],
// [github.com/soypat/isodist/jfa] and [github.com/soypat/isodist/udf].
package isodist

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/soypat/isodist/contour"
	"github.com/soypat/isodist/field"
	"github.com/soypat/isodist/internal/logger"
	"github.com/soypat/isodist/internal/parallel"
	"github.com/soypat/isodist/jfa"
	"github.com/soypat/isodist/pipeline"
	"github.com/soypat/isodist/polyline"
	"github.com/soypat/isodist/stages"
	"github.com/soypat/isodist/udf"
)

// Result holds everything one Generate call produced. It owns its memory.
type Result struct {
	// Width is the field resolution and TextureWidth the UDF resolution.
	Width        int
	TextureWidth int
	// Field is the scalar grid after preprocessing.
	Field     field.ScalarGrid
	Segments  field.SegmentSet
	Polylines field.PolylineData
	SDF       field.DistanceField
	UDF       field.DistanceField
	Contour   contour.Stats
	// Dropped is the number of segments discarded by the contour append
	// strategy plus the UDF grid registrations lost to full cells.
	Dropped int
}

// Generator runs the contour and distance field flow. Its scratch buffers
// are reused across Generate calls. It is not safe for concurrent use.
type Generator struct {
	cfg      Config
	params   []map[string]float32
	pre      pipeline.Pipeline
	preInput pipeline.BufferSet
	extract  *contour.Extractor
	segs     field.SegmentSet
	poly     polyline.Reconstructor
	sdf      *jfa.Solver
	grid     *udf.Solver
	udf      UDFGenerator
	released bool
}

// NewGenerator validates cfg and allocates the generator's resources.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		logger.L().Error("isodist config", slog.String("err", err.Error()))
		return nil, err
	}
	g := &Generator{cfg: cfg}
	var err error
	g.extract, err = contour.NewExtractor(cfg.Contour)
	if err != nil {
		return nil, err
	}
	if err = g.configurePreprocess(); err != nil {
		g.Release()
		return nil, err
	}
	if !cfg.SkipSDF {
		g.sdf, err = jfa.NewSolver(jfa.Config{
			Width:     cfg.FieldResolution,
			SeedMode:  cfg.SeedMode,
			ExtraPass: cfg.ExtraPass,
			Kernel:    cfg.FloodKernel,
		})
		if err != nil {
			g.Release()
			return nil, err
		}
	}
	switch {
	case cfg.SkipUDF:
	case cfg.UDF != nil:
		g.udf = cfg.UDF
	default:
		g.grid, err = udf.NewSolver(cfg.GridResolution, cfg.MaxSegmentsPerCell)
		if err != nil {
			g.Release()
			return nil, err
		}
		g.grid.MaxQueryRadius = cfg.MaxQueryRadius
		g.udf = g.grid
	}
	return g, nil
}

func (g *Generator) configurePreprocess() error {
	if len(g.cfg.Preprocess) == 0 {
		return nil
	}
	reg := g.cfg.Registry
	if reg == nil {
		reg = stages.DefaultRegistry()
	}
	if err := g.pre.Configure(stages.FieldSpec()); err != nil {
		return err
	}
	g.params = make([]map[string]float32, len(g.cfg.Preprocess))
	for i, st := range g.cfg.Preprocess {
		g.params[i] = make(map[string]float32, len(st.Params))
		sc := pipeline.StageConfig{Name: fmt.Sprintf("%s%d", st.Name, i)}
		if st.Iterations > 0 {
			sc.Iterations = pipeline.Fixed(st.Iterations)
		}
		for name, v := range st.Params {
			g.params[i][name] = v
			sc.Params = append(sc.Params, pipeline.Param{
				Name:  name,
				Value: func() float32 { return g.params[i][name] },
			})
		}
		// Map iteration order is random; keep parameter order stable.
		slices.SortFunc(sc.Params, func(a, b pipeline.Param) int { return strings.Compare(a.Name, b.Name) })
		if err := g.pre.AddStageByName(reg, st.Name, sc); err != nil {
			return err
		}
	}
	if err := g.pre.Init(g.cfg.FieldResolution); err != nil {
		return err
	}
	input, err := g.pre.NewInput()
	if err != nil {
		return err
	}
	g.preInput = input
	return nil
}

// SetStageParam changes a preprocessing stage parameter for subsequent
// Generate calls. The parameter must have been configured.
func (g *Generator) SetStageParam(stage int, name string, v float32) error {
	if stage < 0 || stage >= len(g.params) {
		return fmt.Errorf("isodist: no preprocess stage %d", stage)
	}
	if _, ok := g.params[stage][name]; !ok {
		return fmt.Errorf("isodist: stage %d has no param %q", stage, name)
	}
	g.params[stage][name] = v
	return nil
}

// Config returns the generator's configuration.
func (g *Generator) Config() Config { return g.cfg }

// Generate runs the flow over a row-major FieldResolution² grid of values.
// values is not modified.
func (g *Generator) Generate(values []float32) (*Result, error) {
	if g.released {
		return nil, ErrReleased
	}
	cfg := g.cfg
	grid, err := field.ScalarGridFromValues(cfg.FieldResolution, values)
	if err != nil {
		return nil, err
	}
	if !g.preInput.IsZero() {
		copy(g.preInput.Buffer(stages.Buffer), values)
		out, err := g.pre.Dispatch(g.preInput)
		if err != nil {
			return nil, fmt.Errorf("isodist: preprocessing: %w", err)
		}
		grid.Values = out.Buffer(stages.Buffer)
	}
	g.segs, err = g.extract.Extract(g.segs, grid, cfg.IsoValue)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Width:        cfg.FieldResolution,
		TextureWidth: cfg.textureWidth(),
		Field:        grid.Clone(),
		Segments:     field.SegmentSet{Segments: slices.Clone(g.segs.Segments), Count: g.segs.Count, Width: g.segs.Width},
		Contour:      g.extract.Stats(),
	}
	res.Dropped = res.Contour.Dropped
	valid := res.Segments.Valid()

	var tasks []func() error
	if !cfg.SkipPolylines {
		tasks = append(tasks, func() (err error) {
			res.Polylines, err = g.poly.Extract(valid, cfg.PolylineEpsilon)
			res.Polylines.Width = res.Segments.Width
			return err
		})
	}
	if !cfg.SkipSDF {
		tasks = append(tasks, func() error { return g.runSDF(res, valid) })
	}
	if !cfg.SkipUDF {
		tasks = append(tasks, func() error {
			res.UDF.Width = res.TextureWidth
			return g.udf.Generate(valid, len(valid), &res.UDF)
		})
	}
	if cfg.Serial {
		for _, task := range tasks {
			if err = task(); err != nil {
				return nil, err
			}
		}
	} else if err = parallel.Tasks(tasks...); err != nil {
		return nil, err
	}
	if g.grid != nil && !cfg.SkipUDF {
		res.Dropped += g.grid.Dropped()
	}
	logger.L().Debug("isodist generate",
		slog.Int("width", res.Width),
		slog.Int("segments", res.Segments.Count),
		slog.Int("polylines", res.Polylines.Len()),
		slog.Int("dropped", res.Dropped),
	)
	return res, nil
}

func (g *Generator) runSDF(res *Result, segs []field.Segment) error {
	var err error
	if g.cfg.SeedFromSegments {
		err = g.sdf.SeedFromSegments(segs)
	} else {
		err = g.sdf.SeedFromScalar(res.Field, g.cfg.IsoValue)
	}
	if err != nil {
		return err
	}
	if err = g.sdf.Run(); err != nil {
		return err
	}
	return g.sdf.Finalize(&res.SDF, !g.cfg.OutputUnsigned, &res.Field, g.cfg.IsoValue)
}

// Release frees every resource held by the generator. Safe to call any
// number of times.
func (g *Generator) Release() {
	g.pre.Release()
	g.preInput = pipeline.BufferSet{}
	if g.sdf != nil {
		g.sdf.Release()
	}
	if g.grid != nil {
		g.grid.Release()
	}
	g.segs = field.SegmentSet{}
	g.released = true
}
