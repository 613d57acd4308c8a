package polyline_test

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/isodist/contour"
	"github.com/soypat/isodist/field"
	"github.com/soypat/isodist/polyline"
	"github.com/stretchr/testify/require"
)

func seg(x0, y0, x1, y1 float32) field.Segment {
	return field.Segment{
		Start: ms2.Vec{X: x0, Y: y0},
		End:   ms2.Vec{X: x1, Y: y1},
		CellX: field.UnknownCell,
		CellY: field.UnknownCell,
	}
}

func TestOpenChainAnyOrientation(t *testing.T) {
	segs := []field.Segment{
		seg(1, 0, 2, 0),
		seg(3, 0, 2, 0),
		seg(0, 0, 1, 0),
	}
	pd, err := polyline.Extract(segs, 0.01)
	require.NoError(t, err)
	require.Equal(t, 1, pd.Len())
	require.False(t, pd.Ranges[0].Closed)
	require.Equal(t, []ms2.Vec{{X: 0}, {X: 1}, {X: 2}, {X: 3}}, pd.Polyline(0))
}

func TestClosedSquaresAndStray(t *testing.T) {
	segs := []field.Segment{
		seg(0, 0, 1, 0),
		seg(5, 5, 6, 5), // Second square.
		seg(1, 1, 0, 1),
		seg(1, 0, 1, 1),
		seg(6, 5, 6, 6),
		seg(0, 1, 0, 0),
		seg(6, 6, 5, 6),
		seg(5, 6, 5, 5),
		seg(9, 9, 9, 9), // Degenerate.
		seg(20, 0, 21, 0),
	}
	pd, err := polyline.Extract(segs, 0.01)
	require.NoError(t, err)
	require.Equal(t, 3, pd.Len())
	require.Equal(t, 2, pd.ClosedCount())
	require.Equal(t, []ms2.Vec{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}, {}}, pd.Polyline(0))
	require.Equal(t, 5, pd.Ranges[1].Count)
	require.True(t, pd.Ranges[1].Closed)
	require.Equal(t, []ms2.Vec{{X: 20}, {X: 21}}, pd.Polyline(2))
	require.Len(t, pd.AllPoints, 12)
}

func TestEndpointTolerance(t *testing.T) {
	segs := []field.Segment{seg(0, 0, 1, 0), seg(1.004, 0.003, 2, 0)}
	pd, err := polyline.Extract(segs, 0.01)
	require.NoError(t, err)
	require.Equal(t, 1, pd.Len())

	pd, err = polyline.Extract(segs, 0.001)
	require.NoError(t, err)
	require.Equal(t, 2, pd.Len())
}

func TestCircleSingleClosedPolyline(t *testing.T) {
	const w = 64
	g, err := field.NewScalarGrid(w)
	require.NoError(t, err)
	for y := range w {
		for x := range w {
			if math32.Hypot(float32(x-32), float32(y-32)) <= 20 {
				g.Values[y*w+x] = 1
			}
		}
	}
	set, err := contour.Extract(g, 0.5)
	require.NoError(t, err)

	var r polyline.Reconstructor
	pd, err := r.Extract(set.Valid(), polyline.DefaultEpsilon)
	require.NoError(t, err)
	require.Equal(t, 1, pd.Len())
	require.True(t, pd.Ranges[0].Closed)
	pts := pd.Polyline(0)
	require.Equal(t, set.Count+1, len(pts))
	// A pixelated circle crosses about 8r grid edges.
	require.InDelta(t, 8*20, len(pts), 16)
	for _, p := range pts {
		require.InDelta(t, 20, ms2.Norm(ms2.Sub(field.ToGrid(w, p), ms2.Vec{X: 32, Y: 32})), 1.5)
	}

	// Reuse yields the same result.
	again, err := r.Extract(set.Valid(), polyline.DefaultEpsilon)
	require.NoError(t, err)
	require.Equal(t, pd, again)
}

func TestBadInput(t *testing.T) {
	pd, err := polyline.Extract(nil, 0.1)
	require.NoError(t, err)
	require.Zero(t, pd.Len())
	for _, eps := range []float32{0, -1, math32.NaN(), math32.Inf(1)} {
		_, err = polyline.Extract([]field.Segment{seg(0, 0, 1, 1)}, eps)
		require.ErrorIs(t, err, polyline.ErrBadEpsilon)
	}
}
