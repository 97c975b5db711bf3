// Package geometry provides fixed-point 2D primitives used to describe
// printable footprints and bed outlines.
//
// Coordinates are integers scaled so that one unit equals ScalingFactor
// millimetres. Integer storage keeps translations exact across repeated
// arrangement runs; intermediate computations are done in float64 using
// gonum's r2 vectors.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ScalingFactor is the size of one coordinate unit in mm (1 nm).
const ScalingFactor = 1e-6

// Coord is a scaled coordinate value.
type Coord int64

// Scaled converts millimetres into scaled coordinates.
func Scaled(mm float64) Coord {
	return Coord(math.Round(mm / ScalingFactor))
}

// Unscaled converts scaled coordinates back into millimetres.
func Unscaled(c Coord) float64 {
	return float64(c) * ScalingFactor
}

// Point is a scaled 2D point.
type Point struct {
	X Coord `json:"x"`
	Y Coord `json:"y"`
}

// Pt builds a point from millimetre values.
func Pt(x, y float64) Point {
	return Point{X: Scaled(x), Y: Scaled(y)}
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Vec converts the point to a float vector.
func (p Point) Vec() r2.Vec { return r2.Vec{X: float64(p.X), Y: float64(p.Y)} }

// FromVec rounds a float vector to the nearest point.
func FromVec(v r2.Vec) Point {
	return Point{X: Coord(math.Round(v.X)), Y: Coord(math.Round(v.Y))}
}

// Box is an axis aligned bounding box. Max is inclusive.
type Box struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// BoxOf returns the bounding box of the given points. The zero box is
// returned for an empty slice.
func BoxOf(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		if p.X < b.Min.X {
			b.Min.X = p.X
		}
		if p.Y < b.Min.Y {
			b.Min.Y = p.Y
		}
		if p.X > b.Max.X {
			b.Max.X = p.X
		}
		if p.Y > b.Max.Y {
			b.Max.Y = p.Y
		}
	}
	return b
}

// Width returns the extent along X.
func (b Box) Width() Coord { return b.Max.X - b.Min.X }

// Height returns the extent along Y.
func (b Box) Height() Coord { return b.Max.Y - b.Min.Y }

// Area returns the box area in squared units as float64 to avoid overflow.
func (b Box) Area() float64 { return float64(b.Width()) * float64(b.Height()) }

// Center returns the box centre.
func (b Box) Center() Point {
	return Point{X: b.Min.X + b.Width()/2, Y: b.Min.Y + b.Height()/2}
}

// Translate shifts the box by d.
func (b Box) Translate(d Point) Box {
	return Box{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Union returns the smallest box containing both b and o.
func (b Box) Union(o Box) Box {
	return Box{
		Min: Point{X: min(b.Min.X, o.Min.X), Y: min(b.Min.Y, o.Min.Y)},
		Max: Point{X: max(b.Max.X, o.Max.X), Y: max(b.Max.Y, o.Max.Y)},
	}
}

// Inflate grows the box by d on every side. Negative values shrink it.
func (b Box) Inflate(d Coord) Box {
	return Box{
		Min: Point{X: b.Min.X - d, Y: b.Min.Y - d},
		Max: Point{X: b.Max.X + d, Y: b.Max.Y + d},
	}
}

// ContainsBox reports whether o lies completely inside b.
func (b Box) ContainsBox(o Box) bool {
	return o.Min.X >= b.Min.X && o.Min.Y >= b.Min.Y &&
		o.Max.X <= b.Max.X && o.Max.Y <= b.Max.Y
}

// Apart reports whether the boxes are separated by at least gap along X
// or along Y. Polygons inside such boxes are at least gap apart.
func (b Box) Apart(o Box, gap Coord) bool {
	return b.Max.X+gap <= o.Min.X || o.Max.X+gap <= b.Min.X ||
		b.Max.Y+gap <= o.Min.Y || o.Max.Y+gap <= b.Min.Y
}
