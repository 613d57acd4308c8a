package stages_test

import (
	"testing"

	"github.com/soypat/isodist/pipeline"
	"github.com/soypat/isodist/stages"
	"github.com/stretchr/testify/require"
)

type stageCfg struct {
	name string
	cfg  pipeline.StageConfig
}

func run(t *testing.T, width int, values []float32, cfgs ...stageCfg) []float32 {
	t.Helper()
	var p pipeline.Pipeline
	require.NoError(t, p.Configure(stages.FieldSpec()))
	require.NoError(t, p.Init(width))
	reg := stages.DefaultRegistry()
	for _, c := range cfgs {
		require.NoError(t, p.AddStageByName(reg, c.name, c.cfg))
	}
	in, err := p.NewInput()
	require.NoError(t, err)
	copy(in.Buffer(stages.Buffer), values)
	out, err := p.Dispatch(in)
	require.NoError(t, err)
	return append([]float32(nil), out.Buffer(stages.Buffer)...)
}

func impulse(width int) []float32 {
	v := make([]float32, width*width)
	v[(width/2)*width+width/2] = 1
	return v
}

func TestBlurConservesMassInInterior(t *testing.T) {
	const w = 9
	out := run(t, w, impulse(w), stageCfg{"blur", pipeline.StageConfig{Params: []pipeline.Param{pipeline.Const("radius", 1)}}})
	var sum float32
	for _, v := range out {
		sum += v
	}
	require.InDelta(t, 1, sum, 1e-5)
	require.InDelta(t, 1.0/9, out[4*w+4], 1e-6)
	require.InDelta(t, 1.0/9, out[3*w+5], 1e-6)
	require.Zero(t, out[2*w+4])
}

func TestDilateErodeRoundTrip(t *testing.T) {
	const w = 7
	dilated := run(t, w, impulse(w), stageCfg{"dilate", pipeline.StageConfig{}})
	var n int
	for _, v := range dilated {
		if v == 1 {
			n++
		}
	}
	require.Equal(t, 9, n)
	closed := run(t, w, impulse(w), stageCfg{"dilate", pipeline.StageConfig{}}, stageCfg{"erode", pipeline.StageConfig{}})
	require.Equal(t, impulse(w), closed)
}

func TestThresholdNormalizeInvert(t *testing.T) {
	vals := []float32{0.2, 0.4, 0.6, 1.0}
	out := run(t, 2, vals, stageCfg{"threshold", pipeline.StageConfig{Params: []pipeline.Param{pipeline.Const("iso", 0.5)}}})
	require.Equal(t, []float32{0, 0, 1, 1}, out)

	out = run(t, 2, vals, stageCfg{"normalize", pipeline.StageConfig{}})
	require.InDeltaSlice(t, []float32{0, 0.25, 0.5, 1}, out, 1e-6)

	out = run(t, 2, vals, stageCfg{"invert", pipeline.StageConfig{}})
	require.InDeltaSlice(t, []float32{0.8, 0.6, 0.4, 0}, out, 1e-6)
}

func TestWarpZeroAmplitudeIsIdentity(t *testing.T) {
	const w = 8
	vals := make([]float32, w*w)
	for i := range vals {
		vals[i] = float32(i%w) / w
	}
	out := run(t, w, vals, stageCfg{"warp", pipeline.StageConfig{Params: []pipeline.Param{pipeline.Const("amplitude", 0)}}})
	require.InDeltaSlice(t, vals, out, 1e-6)
}

func TestRegistryNames(t *testing.T) {
	require.Equal(t, []string{"blur", "dilate", "erode", "invert", "normalize", "threshold", "warp"}, stages.DefaultRegistry().Names())
}
