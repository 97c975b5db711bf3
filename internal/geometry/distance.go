package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// onSegment reports whether p lies on the closed segment a-b.
func onSegment(p, a, b r2.Vec) bool {
	if r2.Cross(r2.Sub(b, a), r2.Sub(p, a)) != 0 {
		return false
	}
	return p.X >= math.Min(a.X, b.X) && p.X <= math.Max(a.X, b.X) &&
		p.Y >= math.Min(a.Y, b.Y) && p.Y <= math.Max(a.Y, b.Y)
}

func orient(a, b, c r2.Vec) int {
	v := r2.Cross(r2.Sub(b, a), r2.Sub(c, a))
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// segmentsIntersect reports whether closed segments a0-a1 and b0-b1 share
// at least one point.
func segmentsIntersect(a0, a1, b0, b1 r2.Vec) bool {
	o1, o2 := orient(a0, a1, b0), orient(a0, a1, b1)
	o3, o4 := orient(b0, b1, a0), orient(b0, b1, a1)
	if o1 != o2 && o3 != o4 {
		return true
	}
	return (o1 == 0 && onSegment(b0, a0, a1)) ||
		(o2 == 0 && onSegment(b1, a0, a1)) ||
		(o3 == 0 && onSegment(a0, b0, b1)) ||
		(o4 == 0 && onSegment(a1, b0, b1))
}

// pointSegmentDistance returns the euclidean distance from p to segment a-b.
func pointSegmentDistance(p, a, b r2.Vec) float64 {
	ab := r2.Sub(b, a)
	l2 := r2.Dot(ab, ab)
	if l2 == 0 {
		return r2.Norm(r2.Sub(p, a))
	}
	t := r2.Dot(r2.Sub(p, a), ab) / l2
	t = math.Max(0, math.Min(1, t))
	return r2.Norm(r2.Sub(p, r2.Add(a, r2.Scale(t, ab))))
}

func segmentDistance(a0, a1, b0, b1 r2.Vec) float64 {
	if segmentsIntersect(a0, a1, b0, b1) {
		return 0
	}
	return math.Min(
		math.Min(pointSegmentDistance(a0, b0, b1), pointSegmentDistance(a1, b0, b1)),
		math.Min(pointSegmentDistance(b0, a0, a1), pointSegmentDistance(b1, a0, a1)),
	)
}

// edgeDistance returns the smallest distance between any edge of a and
// any edge of b. Zero means the boundaries touch or cross.
func edgeDistance(a, b Polygon) float64 {
	best := math.Inf(1)
	for i := range a {
		a0, a1 := a[i].Vec(), a[(i+1)%len(a)].Vec()
		for j := range b {
			d := segmentDistance(a0, a1, b[j].Vec(), b[(j+1)%len(b)].Vec())
			if d < best {
				best = d
				if best == 0 {
					return 0
				}
			}
		}
	}
	return best
}

// Distance returns the minimum distance between two polygons in scaled
// units. It is zero when they overlap, touch or one contains the other.
func Distance(a, b Polygon) float64 {
	if len(a) == 0 || len(b) == 0 {
		return math.Inf(1)
	}
	if b.Contains(a[0]) || a.Contains(b[0]) {
		return 0
	}
	return edgeDistance(a, b)
}

// Intersects reports whether the polygons share any point.
func Intersects(a, b Polygon) bool {
	return Distance(a, b) == 0
}

// ContainsPolygon reports whether inner lies inside outer and its boundary
// keeps at least clearance units away from the boundary of outer.
func ContainsPolygon(outer, inner Polygon, clearance float64) bool {
	if len(outer) < 3 || len(inner) == 0 {
		return false
	}
	for _, pt := range inner {
		if !outer.Contains(pt) {
			return false
		}
	}
	// Zero means the boundaries touch or cross.
	d := edgeDistance(outer, inner)
	return d > 0 && d >= clearance
}

// BoundaryDistance returns the smallest distance between the boundaries of
// a and b, ignoring containment.
func BoundaryDistance(a, b Polygon) float64 {
	if len(a) == 0 || len(b) == 0 {
		return math.Inf(1)
	}
	return edgeDistance(a, b)
}
