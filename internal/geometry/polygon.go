package geometry

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrDegenerate is returned when a polygon cannot describe an area.
var ErrDegenerate = errors.New("degenerate polygon")

// Polygon is a closed outer contour without holes. The last point
// connects back to the first.
type Polygon []Point

// Rect returns the axis aligned rectangle spanning min..max in
// counter-clockwise order.
func Rect(min, max Point) Polygon {
	return Polygon{
		{X: min.X, Y: min.Y},
		{X: max.X, Y: min.Y},
		{X: max.X, Y: max.Y},
		{X: min.X, Y: max.Y},
	}
}

// Clone returns a copy of the polygon.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// Area returns the signed area (positive for counter-clockwise).
func (p Polygon) Area() float64 {
	n := len(p)
	if n < 3 {
		return 0
	}
	var a float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		a += r2.Cross(p[i].Vec(), p[j].Vec())
	}
	return a / 2
}

// AbsArea returns the unsigned area.
func (p Polygon) AbsArea() float64 {
	return math.Abs(p.Area())
}

// IsCCW reports whether the contour is counter-clockwise.
func (p Polygon) IsCCW() bool {
	return p.Area() > 0
}

// Reversed returns the contour with the opposite orientation.
func (p Polygon) Reversed() Polygon {
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[len(p)-1-i] = pt
	}
	return out
}

// Translate shifts every vertex by d.
func (p Polygon) Translate(d Point) Polygon {
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[i] = pt.Add(d)
	}
	return out
}

// Rotate rotates the polygon by angle radians about the origin.
func (p Polygon) Rotate(angle float64) Polygon {
	if angle == 0 {
		return p.Clone()
	}
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[i] = FromVec(r2.Rotate(pt.Vec(), angle, r2.Vec{}))
	}
	return out
}

// BoundingBox returns the axis aligned bounding box.
func (p Polygon) BoundingBox() Box {
	return BoxOf(p)
}

// Centroid returns the area centroid, or the vertex average for
// degenerate contours.
func (p Polygon) Centroid() Point {
	a := p.Area()
	if a == 0 {
		var sx, sy float64
		for _, pt := range p {
			sx += float64(pt.X)
			sy += float64(pt.Y)
		}
		if len(p) == 0 {
			return Point{}
		}
		return FromVec(r2.Vec{X: sx / float64(len(p)), Y: sy / float64(len(p))})
	}
	var c r2.Vec
	for i := range p {
		a0, a1 := p[i].Vec(), p[(i+1)%len(p)].Vec()
		cr := r2.Cross(a0, a1)
		c = r2.Add(c, r2.Scale(cr, r2.Add(a0, a1)))
	}
	return FromVec(r2.Scale(1/(6*a), c))
}

// Contains reports whether pt lies inside the polygon or on its boundary.
func (p Polygon) Contains(pt Point) bool {
	n := len(p)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p[i], p[j]
		if onSegment(pt.Vec(), a.Vec(), b.Vec()) {
			return true
		}
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			x := float64(a.X) + float64(pt.Y-a.Y)*float64(b.X-a.X)/float64(b.Y-a.Y)
			if float64(pt.X) < x {
				inside = !inside
			}
		}
	}
	return inside
}

// IsSimple reports whether no two non-adjacent edges intersect.
func (p Polygon) IsSimple() bool {
	n := len(p)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		a0, a1 := p[i].Vec(), p[(i+1)%n].Vec()
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			b0, b1 := p[j].Vec(), p[(j+1)%n].Vec()
			if segmentsIntersect(a0, a1, b0, b1) {
				return false
			}
		}
	}
	return true
}

// IsConvex reports whether every turn has the same orientation.
func (p Polygon) IsConvex() bool {
	n := len(p)
	if n < 3 {
		return false
	}
	sign := 0
	for i := 0; i < n; i++ {
		a, b, c := p[i].Vec(), p[(i+1)%n].Vec(), p[(i+2)%n].Vec()
		cr := r2.Cross(r2.Sub(b, a), r2.Sub(c, b))
		switch {
		case cr > 0:
			if sign < 0 {
				return false
			}
			sign = 1
		case cr < 0:
			if sign > 0 {
				return false
			}
			sign = -1
		}
	}
	return sign != 0
}

// IsAxisRect reports whether the polygon is an axis aligned rectangle.
func (p Polygon) IsAxisRect() bool {
	if len(p) != 4 {
		return false
	}
	b := p.BoundingBox()
	for _, pt := range p {
		if (pt.X != b.Min.X && pt.X != b.Max.X) || (pt.Y != b.Min.Y && pt.Y != b.Max.Y) {
			return false
		}
	}
	return p.AbsArea() == b.Area()
}

// Validate checks that the polygon has at least three vertices, a
// non-zero area and no self intersections.
func (p Polygon) Validate() error {
	if len(p) < 3 {
		return fmt.Errorf("%w: %d vertices", ErrDegenerate, len(p))
	}
	if p.Area() == 0 {
		return fmt.Errorf("%w: zero area", ErrDegenerate)
	}
	if !p.IsSimple() {
		return fmt.Errorf("%w: self intersecting contour", ErrDegenerate)
	}
	return nil
}

// ConvexHull returns the counter-clockwise convex hull of pts using the
// monotone chain algorithm. Collinear points are dropped.
func ConvexHull(pts []Point) Polygon {
	if len(pts) < 3 {
		return Polygon(pts).Clone()
	}
	sorted := make([]Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	turn := func(o, a, b Point) float64 {
		return r2.Cross(r2.Sub(a.Vec(), o.Vec()), r2.Sub(b.Vec(), o.Vec()))
	}

	hull := make(Polygon, 0, 2*len(sorted))
	for _, pt := range sorted {
		for len(hull) >= 2 && turn(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		pt := sorted[i]
		for len(hull) >= lower && turn(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	return hull[:len(hull)-1]
}

// MinBoundingBoxAngle returns the rotation that minimises the area of the
// axis aligned bounding box of the convex hull of p. Only hull edge
// directions are considered, which is where the optimum lies.
func MinBoundingBoxAngle(p Polygon) float64 {
	hull := ConvexHull(p)
	if len(hull) < 3 {
		return 0
	}
	best := 0.0
	bestArea := hull.BoundingBox().Area()
	for i := range hull {
		d := r2.Sub(hull[(i+1)%len(hull)].Vec(), hull[i].Vec())
		angle := NormalizeAngle(-math.Atan2(d.Y, d.X))
		area := hull.Rotate(angle).BoundingBox().Area()
		if area < bestArea {
			best, bestArea = angle, area
		}
	}
	return best
}

// NormalizeAngle maps an angle into [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
