package geometry

import clipper "github.com/ctessum/go.clipper"

// MiterLimit is the largest ratio between a miter vertex distance and the
// offset delta before the corner is squared off.
const MiterLimit = 2.0

// Offset grows the polygon by delta units (shrinks it for negative delta)
// using miter joins. Corners whose miter would exceed MiterLimit are
// squared. The result is counter-clockwise.
//
// Nil is returned unless the offset yields exactly one simple contour:
// inputs that collapse, split into several pieces or self intersect all
// fail. An inward offset must also strictly lose area.
func Offset(p Polygon, delta Coord) Polygon {
	if len(p) < 3 {
		return nil
	}
	if delta == 0 {
		return p.Clone()
	}
	src := p.dedup()
	if len(src) < 3 || src.Area() == 0 {
		return nil
	}

	co := clipper.NewClipperOffset()
	co.MiterLimit = MiterLimit
	co.AddPath(toClipperPath(src), clipper.JtMiter, clipper.EtClosedPolygon)
	res := co.Execute(float64(delta))
	if len(res) != 1 {
		return nil
	}

	out := fromClipperPath(res[0]).dedup()
	if len(out) < 3 {
		return nil
	}
	if !out.IsCCW() {
		out = out.Reversed()
	}
	if !out.IsSimple() {
		return nil
	}
	if delta < 0 && out.AbsArea() >= src.AbsArea() {
		return nil
	}
	if delta > 0 && out.AbsArea() <= src.AbsArea() {
		return nil
	}
	return out
}

func toClipperPath(p Polygon) clipper.Path {
	path := make(clipper.Path, len(p))
	for i, pt := range p {
		path[i] = &clipper.IntPoint{X: clipper.CInt(pt.X), Y: clipper.CInt(pt.Y)}
	}
	return path
}

func fromClipperPath(path clipper.Path) Polygon {
	out := make(Polygon, len(path))
	for i, pt := range path {
		out[i] = Point{X: Coord(pt.X), Y: Coord(pt.Y)}
	}
	return out
}

// dedup removes consecutive duplicate vertices including the closing one.
func (p Polygon) dedup() Polygon {
	out := make(Polygon, 0, len(p))
	for _, pt := range p {
		if len(out) > 0 && out[len(out)-1] == pt {
			continue
		}
		out = append(out, pt)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}
