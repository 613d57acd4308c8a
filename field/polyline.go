package field

import "github.com/soypat/geometry/ms2"

// PolylineRange locates one connected path inside PolylineData.AllPoints.
type PolylineRange struct {
	Start, Count int
	// Closed is set when the first and last points coincide.
	Closed bool
}

// PolylineData holds connected paths as a flat point list plus ranges.
type PolylineData struct {
	AllPoints []ms2.Vec
	Ranges    []PolylineRange
	// Width is the grid width the source segments were extracted from, 0 if unknown.
	Width int
}

// Len returns the number of polylines.
func (pd PolylineData) Len() int { return len(pd.Ranges) }

// Polyline returns the points of the i'th polyline. The result aliases AllPoints.
func (pd PolylineData) Polyline(i int) []ms2.Vec {
	r := pd.Ranges[i]
	return pd.AllPoints[r.Start : r.Start+r.Count]
}

// Append adds pts as a new polyline.
func (pd *PolylineData) Append(pts []ms2.Vec, closed bool) {
	pd.Ranges = append(pd.Ranges, PolylineRange{Start: len(pd.AllPoints), Count: len(pts), Closed: closed})
	pd.AllPoints = append(pd.AllPoints, pts...)
}

// ClosedCount returns how many polylines are closed.
func (pd PolylineData) ClosedCount() (n int) {
	for _, r := range pd.Ranges {
		if r.Closed {
			n++
		}
	}
	return n
}
