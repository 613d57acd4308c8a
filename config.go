package isodist

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/isodist/contour"
	"github.com/soypat/isodist/field"
	"github.com/soypat/isodist/jfa"
	"github.com/soypat/isodist/pipeline"
	"github.com/soypat/isodist/polyline"
)

var (
	ErrBadResolution = errors.New("isodist: resolution must be at least 2")
	ErrBadIso        = errors.New("isodist: iso-value must be finite")
	ErrBadGrid       = errors.New("isodist: grid resolution and max segments per cell must be at least 1")
	ErrReleased      = errors.New("isodist: generator released")
)

// UDFGenerator computes unsigned distance fields from contour segments.
// [github.com/soypat/isodist/udf.Solver] and the glcompute GPU
// implementation satisfy it.
type UDFGenerator interface {
	Generate(segs []field.Segment, count int, out *field.DistanceField) error
}

// StageOption configures one preprocessing stage run before contouring.
type StageOption struct {
	// Name is the kernel's name in the generator's registry, e.g. "blur" or "warp".
	Name string
	// Iterations is the number of dispatches. Zero means one.
	Iterations int
	// Params are the stage's named scalar parameters. They can be changed
	// between Generate calls with [Generator.SetStageParam].
	Params map[string]float32
}

// Config configures a Generator.
type Config struct {
	// FieldResolution is the width of the input scalar grid and of the SDF.
	FieldResolution int
	// TextureResolution is the width of the UDF. Zero means FieldResolution.
	TextureResolution int
	// IsoValue is the contour level. Samples above it are inside.
	IsoValue float32

	// GridResolution and MaxSegmentsPerCell tune the UDF spatial grid.
	GridResolution     int
	MaxSegmentsPerCell int
	// MaxQueryRadius bounds the UDF ring search in cells. Zero is unbounded.
	MaxQueryRadius int
	// UDF replaces the spatial grid solver. The grid options above are then ignored.
	UDF UDFGenerator

	// OutputUnsigned makes the SDF unsigned.
	OutputUnsigned bool
	// SeedMode and ExtraPass configure the jump flood.
	SeedMode  jfa.SeedMode
	ExtraPass bool
	// SeedFromSegments seeds the jump flood from contour segments instead
	// of the scalar field.
	SeedFromSegments bool
	// FloodKernel replaces the CPU flood pass, e.g. with a GPU kernel.
	FloodKernel pipeline.Kernel

	Contour contour.Config
	// PolylineEpsilon is the endpoint matching tolerance in normalized units.
	PolylineEpsilon float32

	Preprocess []StageOption
	// Registry resolves Preprocess names. Nil selects the stages package defaults.
	Registry *pipeline.Registry

	SkipPolylines bool
	SkipSDF       bool
	SkipUDF       bool
	// Serial runs polylines, SDF and UDF one after the other on the calling
	// goroutine. GPU kernels need it since their GL context is bound to the
	// calling thread.
	Serial bool
}

// DefaultConfig returns a configuration for a width×width field.
func DefaultConfig(width int) Config {
	return Config{
		FieldResolution:    width,
		IsoValue:           0.5,
		GridResolution:     max(1, width/4),
		MaxSegmentsPerCell: 64,
		Contour:            contour.DefaultConfig(),
		PolylineEpsilon:    polyline.DefaultEpsilon,
	}
}

// Validate checks the configuration without dispatching any work.
func (cfg Config) Validate() error {
	switch {
	case cfg.FieldResolution < 2:
		return fmt.Errorf("%w: field %d", ErrBadResolution, cfg.FieldResolution)
	case cfg.TextureResolution != 0 && cfg.TextureResolution < 2:
		return fmt.Errorf("%w: texture %d", ErrBadResolution, cfg.TextureResolution)
	case math32.IsNaN(cfg.IsoValue) || math32.IsInf(cfg.IsoValue, 0):
		return ErrBadIso
	case !cfg.SkipUDF && cfg.UDF == nil && (cfg.GridResolution < 1 || cfg.MaxSegmentsPerCell < 1):
		return fmt.Errorf("%w: got %d and %d", ErrBadGrid, cfg.GridResolution, cfg.MaxSegmentsPerCell)
	case cfg.MaxQueryRadius < 0:
		return errors.New("isodist: negative MaxQueryRadius")
	case cfg.SeedMode > jfa.Subcell:
		return fmt.Errorf("isodist: unknown seed mode %d", cfg.SeedMode)
	case !cfg.SkipPolylines && (!(cfg.PolylineEpsilon > 0) || math32.IsInf(cfg.PolylineEpsilon, 1)):
		return polyline.ErrBadEpsilon
	}
	if err := cfg.Contour.Validate(); err != nil {
		return err
	}
	for i, st := range cfg.Preprocess {
		if st.Name == "" {
			return fmt.Errorf("isodist: preprocess stage %d has no name", i)
		} else if st.Iterations < 0 {
			return fmt.Errorf("isodist: preprocess stage %q has negative iterations", st.Name)
		}
	}
	return nil
}

func (cfg Config) textureWidth() int {
	if cfg.TextureResolution == 0 {
		return cfg.FieldResolution
	}
	return cfg.TextureResolution
}
