package udf_test

import (
	"math/rand/v2"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/isodist/contour"
	"github.com/soypat/isodist/field"
	"github.com/soypat/isodist/udf"
	"github.com/stretchr/testify/require"
)

func randomSegments(rng *rand.Rand, n int, maxLen float32) []field.Segment {
	segs := make([]field.Segment, n)
	for i := range segs {
		a := ms2.Vec{X: 2*rng.Float32() - 1, Y: 2*rng.Float32() - 1}
		d := ms2.Vec{X: (2*rng.Float32() - 1) * maxLen, Y: (2*rng.Float32() - 1) * maxLen}
		segs[i] = field.Segment{Start: a, End: ms2.Add(a, d), CellX: field.UnknownCell, CellY: field.UnknownCell}
	}
	return segs
}

func TestGridMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, tc := range []struct {
		n, res, width int
		maxLen        float32
	}{
		{1, 8, 32, 0.1},
		{50, 16, 48, 0.2},
		{300, 32, 64, 0.05},
		{40, 1, 17, 1},
		{25, 64, 40, 0.5},
	} {
		segs := randomSegments(rng, tc.n, tc.maxLen)
		s, err := udf.NewSolver(tc.res, 1<<16)
		require.NoError(t, err)
		got := field.DistanceField{Width: tc.width}
		require.NoError(t, s.Generate(segs, len(segs), &got))
		require.Zero(t, s.Dropped())
		want := field.DistanceField{Width: tc.width}
		require.NoError(t, udf.BruteForce(segs, len(segs), &want))
		require.False(t, got.Signed)
		require.InDeltaSlice(t, want.Values, got.Values, 1e-5, "n=%d res=%d", tc.n, tc.res)
	}
}

func TestCountLimitsSegments(t *testing.T) {
	segs := []field.Segment{
		{Start: ms2.Vec{X: -1, Y: 0}, End: ms2.Vec{X: 1, Y: 0}},
		{Start: ms2.Vec{X: -1, Y: -1}, End: ms2.Vec{X: 1, Y: -1}},
	}
	s, err := udf.NewSolver(4, 8)
	require.NoError(t, err)
	out := field.DistanceField{Width: 5}
	require.NoError(t, s.Generate(segs, 1, &out))
	// Sample spacing is 0.5 so row y is |y-2| samples from the first segment.
	for y := range 5 {
		for x := range 5 {
			require.InDelta(t, math32.Abs(float32(y-2)), out.At(x, y), 1e-5)
		}
	}
	require.ErrorIs(t, s.Generate(segs, 3, &out), field.ErrCountRange)
	require.ErrorIs(t, udf.BruteForce(segs, -1, &out), field.ErrCountRange)
}

func TestEmptyGivesZeros(t *testing.T) {
	s, err := udf.NewSolver(8, 4)
	require.NoError(t, err)
	out := field.DistanceField{Width: 6, Values: []float32{9}}
	require.NoError(t, s.Generate(nil, 0, &out))
	require.Equal(t, make([]float32, 36), out.Values)
	require.NoError(t, udf.BruteForce(nil, 0, &out))
	require.Equal(t, make([]float32, 36), out.Values)
}

func TestOverflowDropped(t *testing.T) {
	// Ten short parallel segments inside one cell.
	var segs []field.Segment
	for i := range 10 {
		y := -0.9 + float32(i)*0.01
		segs = append(segs, field.Segment{Start: ms2.Vec{X: -0.9, Y: y}, End: ms2.Vec{X: -0.85, Y: y}})
	}
	s, err := udf.NewSolver(4, 3)
	require.NoError(t, err)
	out := field.DistanceField{Width: 16}
	require.NoError(t, s.Generate(segs, len(segs), &out))
	require.Equal(t, 7, s.Dropped())

	// Dropped segments can only make distances larger.
	want := field.DistanceField{Width: 16}
	require.NoError(t, udf.BruteForce(segs, len(segs), &want))
	for i := range out.Values {
		require.GreaterOrEqual(t, out.Values[i], want.Values[i]-1e-5)
	}
}

func TestMaxQueryRadiusClamps(t *testing.T) {
	segs := []field.Segment{{Start: ms2.Vec{X: -1, Y: -1}, End: ms2.Vec{X: -0.9, Y: -1}}}
	s, err := udf.NewSolver(8, 4)
	require.NoError(t, err)
	s.MaxQueryRadius = 1
	out := field.DistanceField{Width: 9}
	require.NoError(t, s.Generate(segs, 1, &out))
	// One cell of 0.25 normalized units, sample spacing 0.25.
	require.InDelta(t, 1, out.At(8, 8), 1e-5)
	require.InDelta(t, 0, out.At(0, 0), 1e-5)
}

func TestMaxQueryRadiusNeverOverestimates(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	segs := randomSegments(rng, 20, 0.2)
	want := field.DistanceField{Width: 33}
	require.NoError(t, udf.BruteForce(segs, len(segs), &want))
	for _, radius := range []int{1, 2, 3} {
		s, err := udf.NewSolver(8, 64)
		require.NoError(t, err)
		s.MaxQueryRadius = radius
		got := field.DistanceField{Width: 33}
		require.NoError(t, s.Generate(segs, len(segs), &got))
		limit := float32(radius) * 0.25 / field.SampleSpacing(33)
		for i := range got.Values {
			require.InDelta(t, math32.Min(want.Values[i], limit), got.Values[i], 1e-4, "radius %d pixel %d", radius, i)
		}
	}
}

func TestConfigErrors(t *testing.T) {
	_, err := udf.NewSolver(0, 4)
	require.ErrorIs(t, err, udf.ErrBadResolution)
	_, err = udf.NewSolver(4, 0)
	require.ErrorIs(t, err, udf.ErrBadCellCapacity)

	var s udf.Solver
	out := field.DistanceField{Width: 4}
	require.ErrorIs(t, s.Generate(nil, 0, &out), udf.ErrNotInitialized)
	require.NoError(t, s.Init(4, 4))
	require.ErrorIs(t, s.Generate(nil, 0, &field.DistanceField{}), field.ErrBadWidth)
	s.Release()
	s.Release()
	require.ErrorIs(t, s.Generate(nil, 0, &out), udf.ErrNotInitialized)
}

func TestCircleFiveSamplesOutside(t *testing.T) {
	const w = 64
	g, _ := field.NewScalarGrid(w)
	for y := range w {
		for x := range w {
			if math32.Hypot(float32(x-32), float32(y-32)) <= 20 {
				g.Values[y*w+x] = 1
			}
		}
	}
	set, err := contour.Extract(g, 0.5)
	require.NoError(t, err)
	s, err := udf.NewSolver(32, 16)
	require.NoError(t, err)
	out := field.DistanceField{Width: w}
	require.NoError(t, s.Generate(set.Segments, set.Count, &out))
	require.Zero(t, s.Dropped())
	require.InDelta(t, 5, out.At(57, 32), 1)
	require.InDelta(t, 5, out.At(32, 7), 1)
	require.InDelta(t, 20, out.At(32, 32), 1)
}
