package jfa_test

import (
	"math/rand/v2"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/isodist/field"
	"github.com/soypat/isodist/jfa"
	"github.com/soypat/isodist/pipeline"
	"github.com/stretchr/testify/require"
)

func circle(width int, r float32) field.ScalarGrid {
	g, _ := field.NewScalarGrid(width)
	c := float32(width / 2)
	for y := range width {
		for x := range width {
			if math32.Hypot(float32(x)-c, float32(y)-c) <= r {
				g.Values[y*width+x] = 1
			}
		}
	}
	return g
}

func TestSchedule(t *testing.T) {
	require.Equal(t, []int{32, 16, 8, 4, 2, 1}, jfa.Schedule(64, false))
	require.Equal(t, []int{32, 16, 8, 4, 2, 1, 1}, jfa.Schedule(50, true))
	require.Equal(t, []int{1}, jfa.Schedule(2, false))
	require.Empty(t, jfa.Schedule(1, true))
}

func TestSingleSeedConverges(t *testing.T) {
	for _, tc := range []struct {
		width int
		seed  ms2.Vec
	}{
		{37, ms2.Vec{}},
		{64, ms2.Vec{}},
		{50, ms2.Vec{X: 13, Y: 29}},
	} {
		s, err := jfa.NewSolver(jfa.Config{Width: tc.width})
		require.NoError(t, err)
		require.NoError(t, s.SeedPoints([]ms2.Vec{tc.seed}))
		require.Equal(t, 1, s.SeedCount())
		require.NoError(t, s.Run())
		var out field.DistanceField
		require.NoError(t, s.Finalize(&out, false, nil, 0))
		require.False(t, out.Signed)
		for y := range tc.width {
			for x := range tc.width {
				want := math32.Hypot(float32(x)-tc.seed.X, float32(y)-tc.seed.Y)
				require.InDelta(t, want, out.At(x, y), 1e-4, "width %d at (%d,%d)", tc.width, x, y)
			}
		}
		s.Release()
	}
}

func TestManySeedsNearlyExact(t *testing.T) {
	const w = 64
	rng := rand.New(rand.NewPCG(7, 8))
	seeds := make([]ms2.Vec, 20)
	for i := range seeds {
		seeds[i] = ms2.Vec{X: float32(rng.IntN(w)), Y: float32(rng.IntN(w))}
	}
	s, err := jfa.NewSolver(jfa.Config{Width: w, ExtraPass: true})
	require.NoError(t, err)
	require.NoError(t, s.SeedPoints(seeds))
	require.NoError(t, s.Run())
	var out field.DistanceField
	require.NoError(t, s.Finalize(&out, false, nil, 0))
	exact := 0
	for y := range w {
		for x := range w {
			best := math32.Inf(1)
			for _, sd := range seeds {
				best = math32.Min(best, math32.Hypot(float32(x)-sd.X, float32(y)-sd.Y))
			}
			got := out.At(x, y)
			require.GreaterOrEqual(t, got, best-1e-4)
			require.Less(t, got-best, float32(2))
			if got-best < 1e-4 {
				exact++
			}
		}
	}
	require.Greater(t, float64(exact)/(w*w), 0.98)
}

func TestCircleSignedDistance(t *testing.T) {
	const w = 64
	g := circle(w, 20)
	for _, tc := range []struct {
		cfg jfa.Config
		tol float64
	}{
		{jfa.Config{Width: w}, 1},
		{jfa.Config{Width: w, SeedMode: jfa.Subcell, ExtraPass: true}, 0.5},
	} {
		s, err := jfa.NewSolver(tc.cfg)
		require.NoError(t, err)
		require.NoError(t, s.SeedFromScalar(g, 0.5))
		require.Positive(t, s.SeedCount())
		require.NoError(t, s.Run())
		var sdf field.DistanceField
		require.NoError(t, s.Finalize(&sdf, true, &g, 0.5))
		require.True(t, sdf.Signed)
		require.InDelta(t, -20, sdf.At(32, 32), tc.tol, "mode %s", tc.cfg.SeedMode)
		require.InDelta(t, math32.Hypot(32, 32)-20, sdf.At(0, 0), tc.tol+0.5)
		require.Positive(t, sdf.At(0, 0))
		seed, ok := s.NearestSeed(32, 32)
		require.True(t, ok)
		require.InDelta(t, 20, ms2.Norm(ms2.Sub(seed, ms2.Vec{X: 32, Y: 32})), tc.tol)

		var udf field.DistanceField
		require.NoError(t, s.Finalize(&udf, false, &g, 0.5))
		require.InDelta(t, -sdf.At(32, 32), udf.At(32, 32), 1e-6)
	}
}

func TestSeedFromSegments(t *testing.T) {
	const w = 33
	segs := []field.Segment{{Start: ms2.Vec{X: -1, Y: 0}, End: ms2.Vec{X: 1, Y: 0}}}
	for _, mode := range []jfa.SeedMode{jfa.CellCenter, jfa.Subcell} {
		s, err := jfa.NewSolver(jfa.Config{Width: w, SeedMode: mode})
		require.NoError(t, err)
		require.NoError(t, s.SeedFromSegments(segs))
		require.Equal(t, w, s.SeedCount())
		require.NoError(t, s.Run())
		var out field.DistanceField
		require.NoError(t, s.Finalize(&out, false, nil, 0))
		require.InDelta(t, 14, out.At(5, 30), 1e-4)
		require.InDelta(t, 16, out.At(20, 0), 1e-4)
		require.Zero(t, out.At(7, 16))
	}
}

func TestNoSeedsGivesZeros(t *testing.T) {
	s, err := jfa.NewSolver(jfa.Config{Width: 16})
	require.NoError(t, err)
	g, _ := field.NewScalarGrid(16)
	require.NoError(t, s.SeedFromScalar(g, 0.5))
	require.Zero(t, s.SeedCount())
	require.NoError(t, s.Run())
	out := field.DistanceField{Values: []float32{1, 2, 3}}
	require.NoError(t, s.Finalize(&out, true, &g, 0.5))
	require.Equal(t, 16, out.Width)
	require.Equal(t, make([]float32, 16*16), out.Values)
}

func TestSolverErrors(t *testing.T) {
	_, err := jfa.NewSolver(jfa.Config{})
	require.ErrorIs(t, err, jfa.ErrBadWidth)
	_, err = jfa.NewSolver(jfa.Config{Width: 4, SeedMode: 9})
	require.Error(t, err)

	s, err := jfa.NewSolver(jfa.Config{Width: 8})
	require.NoError(t, err)
	var out field.DistanceField
	require.ErrorIs(t, s.Finalize(&out, false, nil, 0), jfa.ErrNotRun)
	g := circle(9, 3)
	require.ErrorIs(t, s.SeedFromScalar(g, 0.5), jfa.ErrWidthMismatch)

	require.NoError(t, s.SeedPoints([]ms2.Vec{{X: 1, Y: 1}, {X: -3, Y: 2}}))
	require.Equal(t, 1, s.SeedCount())
	require.NoError(t, s.Run())
	require.ErrorIs(t, s.Finalize(&out, true, &g, 0.5), jfa.ErrWidthMismatch)
	// Signed without a scalar field falls back to unsigned.
	require.NoError(t, s.Finalize(&out, true, nil, 0.5))
	require.False(t, out.Signed)

	s.Release()
	s.Release()
	require.ErrorIs(t, s.Run(), jfa.ErrReleased)
	require.ErrorIs(t, s.SeedPoints(nil), jfa.ErrReleased)
}

func TestCustomKernelSeesJumpSchedule(t *testing.T) {
	var jumps []float32
	cpu := jfa.FloodKernel()
	k := pipeline.KernelFunc(func(b *pipeline.Binding) error {
		j, ok := b.Param(jfa.JumpParam)
		require.True(t, ok)
		jumps = append(jumps, j)
		return cpu.Dispatch(b)
	})
	s, err := jfa.NewSolver(jfa.Config{Width: 20, ExtraPass: true, Kernel: k})
	require.NoError(t, err)
	require.Equal(t, 6, s.Passes())
	require.NoError(t, s.SeedPoints([]ms2.Vec{{X: 3, Y: 4}}))
	require.NoError(t, s.Run())
	require.Equal(t, []float32{16, 8, 4, 2, 1, 1}, jumps)
	var out field.DistanceField
	require.NoError(t, s.Finalize(&out, false, nil, 0))
	require.InDelta(t, 5, out.At(0, 0), 1e-5)
}
