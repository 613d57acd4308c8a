// Package polyline stitches unordered contour segments into connected
// paths. Segment endpoints are bucketed in a spatial hash with cells the
// size of the matching tolerance so each endpoint lookup only inspects a
// 3×3 neighborhood of buckets.
package polyline

import (
	"errors"
	"log/slog"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/isodist/field"
	"github.com/soypat/isodist/internal/logger"
)

// DefaultEpsilon is the endpoint matching tolerance in normalized units.
const DefaultEpsilon = 1e-4

// ErrBadEpsilon is returned for non-positive or non-finite tolerances.
var ErrBadEpsilon = errors.New("polyline: epsilon must be positive and finite")

// Reconstructor joins segments into polylines and reuses its hash between
// calls. The zero value is ready to use. It is not safe for concurrent use.
type Reconstructor struct {
	buckets map[field.SpatialKey][]int32
	used    []bool
	tail    []ms2.Vec
	head    []ms2.Vec
	eps2    float32
	inv     float32
	segs    []field.Segment
}

// Extract joins segs with a fresh Reconstructor.
func Extract(segs []field.Segment, eps float32) (field.PolylineData, error) {
	var r Reconstructor
	return r.Extract(segs, eps)
}

// Extract joins segments sharing endpoints within eps into polylines.
// Segments are consumed in index order: each polyline starts at the
// lowest-indexed unused segment, grows forward from its end and then
// backward from its start. A polyline is closed when its first and last
// points lie within eps, in which case the closing point is repeated.
// Degenerate segments shorter than eps are skipped.
func (r *Reconstructor) Extract(segs []field.Segment, eps float32) (field.PolylineData, error) {
	if !(eps > 0) || math32.IsInf(eps, 1) {
		return field.PolylineData{}, ErrBadEpsilon
	}
	skipped := r.reset(segs, eps)
	var pd field.PolylineData
	for i, s := range segs {
		if r.used[i] {
			continue
		}
		r.used[i] = true
		r.tail = append(r.tail[:0], s.Start, s.End)
		for {
			next, ok := r.follow(r.tail[len(r.tail)-1])
			if !ok {
				break
			}
			r.tail = append(r.tail, next)
		}
		r.head = r.head[:0]
		for {
			from := r.tail[0]
			if len(r.head) > 0 {
				from = r.head[len(r.head)-1]
			}
			prev, ok := r.follow(from)
			if !ok {
				break
			}
			r.head = append(r.head, prev)
		}
		start := len(pd.AllPoints)
		for i := len(r.head) - 1; i >= 0; i-- {
			pd.AllPoints = append(pd.AllPoints, r.head[i])
		}
		pd.AllPoints = append(pd.AllPoints, r.tail...)
		pts := pd.AllPoints[start:]
		pd.Ranges = append(pd.Ranges, field.PolylineRange{
			Start:  start,
			Count:  len(pts),
			Closed: r.near(pts[0], pts[len(pts)-1]),
		})
	}
	logger.L().Debug("polylines reconstructed",
		slog.Int("segments", len(segs)),
		slog.Int("polylines", pd.Len()),
		slog.Int("closed", pd.ClosedCount()),
		slog.Int("degenerate", skipped),
	)
	return pd, nil
}

// reset rebuilds the endpoint hash for segs and returns how many degenerate
// segments were marked used up front.
func (r *Reconstructor) reset(segs []field.Segment, eps float32) (degenerate int) {
	r.segs = segs
	r.eps2 = eps * eps
	r.inv = 1 / eps
	if r.buckets == nil {
		r.buckets = make(map[field.SpatialKey][]int32)
	} else {
		for k, v := range r.buckets {
			r.buckets[k] = v[:0]
		}
	}
	if cap(r.used) < len(segs) {
		r.used = make([]bool, len(segs))
	}
	r.used = r.used[:len(segs)]
	clear(r.used)
	for i, s := range segs {
		if r.near(s.Start, s.End) {
			r.used[i] = true
			degenerate++
			continue
		}
		ks := field.KeyOf(s.Start, r.inv)
		r.buckets[ks] = append(r.buckets[ks], int32(i))
		if ke := field.KeyOf(s.End, r.inv); ke != ks {
			r.buckets[ke] = append(r.buckets[ke], int32(i))
		}
	}
	return degenerate
}

// follow finds an unused segment with an endpoint near p, marks it used and
// returns its other endpoint.
func (r *Reconstructor) follow(p ms2.Vec) (ms2.Vec, bool) {
	key := field.KeyOf(p, r.inv)
	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			for _, idx := range r.buckets[key.Add(dx, dy)] {
				if r.used[idx] {
					continue
				}
				s := r.segs[idx]
				switch {
				case r.near(p, s.Start):
					r.used[idx] = true
					return s.End, true
				case r.near(p, s.End):
					r.used[idx] = true
					return s.Start, true
				}
			}
		}
	}
	return ms2.Vec{}, false
}

func (r *Reconstructor) near(a, b ms2.Vec) bool {
	return ms2.Norm2(ms2.Sub(a, b)) < r.eps2
}
