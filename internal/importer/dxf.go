package importer

import (
	"fmt"
	"math"
	"sort"

	"github.com/piwi3910/platenest/internal/model"
	"github.com/yofu/dxf"
	"github.com/yofu/dxf/entity"
	"github.com/yofu/dxf/table"
)

const (
	// dxfJoinTolerance is how far apart (mm) two loose edge endpoints may
	// be and still join.
	dxfJoinTolerance = 0.01
	// dxfMinFeature is the smallest footprint extent (mm) kept.
	dxfMinFeature = 0.01

	circleSegments = 64
	arcSegments    = 32
)

// contour is a closed candidate footprint read from a drawing.
type contour struct {
	source string // entity kind and ordinal, for messages
	layer  string
	points model.Outline
}

// edge is an open piece of a drawing (LINE or sampled ARC) waiting to be
// joined with others into a closed contour.
type edge struct {
	layer  string
	points []model.Point2D
}

func (e edge) first() model.Point2D { return e.points[0] }
func (e edge) last() model.Point2D  { return e.points[len(e.points)-1] }

// ImportDXF reads object footprints from a DXF drawing. Every closed
// LWPOLYLINE, every CIRCLE and every closed loop of LINE/ARC edges becomes
// an object with one instance. Open contours and outlines that are not a
// single simple polygon are skipped with a warning.
func ImportDXF(path string) ImportResult {
	result := ImportResult{}

	drawing, err := dxf.Open(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open DXF file: %v", err))
		return result
	}
	entities := drawing.Entities()
	if len(entities) == 0 {
		result.Errors = append(result.Errors, "DXF file contains no entities")
		return result
	}

	var contours []contour
	var edges []edge
	polylines, circles := 0, 0
	for _, ent := range entities {
		switch e := ent.(type) {
		case *entity.LwPolyline:
			polylines++
			name := fmt.Sprintf("LWPOLYLINE %d", polylines)
			pts := lwPolylinePoints(e)
			if !e.Closed && (len(pts) < 2 || !pointsClose(pts[0], pts[len(pts)-1], dxfJoinTolerance)) {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Skipped open %s: footprints must be closed", name))
				continue
			}
			contours = append(contours, contour{source: name, layer: layerName(e.Layer()), points: pts})

		case *entity.Circle:
			circles++
			contours = append(contours, contour{
				source: fmt.Sprintf("CIRCLE %d", circles),
				layer:  layerName(e.Layer()),
				points: circlePoints(e.Center[0], e.Center[1], e.Radius),
			})

		case *entity.Arc:
			edges = append(edges, edge{layer: layerName(e.Layer()), points: arcPoints(e)})

		case *entity.Line:
			edges = append(edges, edge{
				layer: layerName(e.Layer()),
				points: []model.Point2D{
					{X: e.Start[0], Y: e.Start[1]},
					{X: e.End[0], Y: e.End[1]},
				},
			})
		}
	}

	loops, open := joinEdges(edges, dxfJoinTolerance)
	if open > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Skipped %d open LINE/ARC chain(s): footprints must be closed", open))
	}
	contours = append(contours, loops...)

	if len(contours) == 0 {
		result.Errors = append(result.Errors, "No closed shapes found in DXF file")
		return result
	}

	for _, c := range contours {
		outline, err := footprint(c.points)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Skipped %s: %v", c.source, err))
			continue
		}
		n := len(result.Objects) + 1
		name := fmt.Sprintf("DXF Object %d", n)
		if c.layer != "" && c.layer != "0" {
			name = fmt.Sprintf("%s %d", c.layer, n)
		}
		result.Objects = append(result.Objects, model.NewObject(name, outline, 1))
	}
	if len(result.Objects) == 0 {
		result.Errors = append(result.Errors, "No valid footprints found in DXF file")
	}
	return result
}

// footprint turns a closed contour into an object outline anchored at the
// origin. The contour must describe a single simple polygon.
func footprint(pts model.Outline) (model.Outline, error) {
	if len(pts) > 1 && pointsClose(pts[0], pts[len(pts)-1], dxfJoinTolerance) {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 {
		return nil, fmt.Errorf("only %d vertices", len(pts))
	}
	if err := pts.Polygon().Validate(); err != nil {
		return nil, err
	}
	min, max := pts.BoundingBox()
	if max.X-min.X < dxfMinFeature || max.Y-min.Y < dxfMinFeature {
		return nil, fmt.Errorf("degenerate shape (%.2f x %.2f mm)", max.X-min.X, max.Y-min.Y)
	}
	return pts.Translate(-min.X, -min.Y), nil
}

func layerName(l *table.Layer) string {
	if l == nil {
		return ""
	}
	return l.Name()
}

// lwPolylinePoints returns the vertices of a polyline, with bulged
// segments sampled as arcs.
func lwPolylinePoints(lw *entity.LwPolyline) model.Outline {
	n := len(lw.Vertices)
	var pts model.Outline
	for i, v := range lw.Vertices {
		p := model.Point2D{X: v[0], Y: v[1]}
		var bulge float64
		if i < len(lw.Bulges) {
			bulge = lw.Bulges[i]
		}
		// The closing segment only exists on closed polylines.
		if math.Abs(bulge) < 1e-9 || (i == n-1 && !lw.Closed) {
			pts = append(pts, p)
			continue
		}
		next := lw.Vertices[(i+1)%n]
		arc := bulgeArcPoints(p, model.Point2D{X: next[0], Y: next[1]}, bulge, arcSegments)
		pts = append(pts, arc[:len(arc)-1]...)
	}
	return pts
}

// bulgeArcPoints samples the arc from p1 to p2 described by a DXF bulge
// (tangent of a quarter of the included angle, positive counter-clockwise).
// The result holds segments+1 points starting at p1 and ending at p2.
func bulgeArcPoints(p1, p2 model.Point2D, bulge float64, segments int) model.Outline {
	chord := math.Hypot(p2.X-p1.X, p2.Y-p1.Y)
	if chord < 1e-9 {
		return model.Outline{p1, p2}
	}
	sweep := 4 * math.Atan(bulge)
	radius := chord / (2 * math.Abs(math.Sin(sweep/2)))

	// The centre sits on the chord's perpendicular bisector, left of the
	// chord for counter-clockwise arcs of less than a half turn.
	mx, my := (p1.X+p2.X)/2, (p1.Y+p2.Y)/2
	ux, uy := -(p2.Y-p1.Y)/chord, (p2.X-p1.X)/chord
	h := radius * math.Cos(sweep/2)
	if bulge < 0 {
		h = -h
	}
	cx, cy := mx+ux*h, my+uy*h

	start := math.Atan2(p1.Y-cy, p1.X-cx)
	pts := make(model.Outline, 0, segments+1)
	for i := 0; i <= segments; i++ {
		a := start + sweep*float64(i)/float64(segments)
		pts = append(pts, model.Point2D{X: cx + radius*math.Cos(a), Y: cy + radius*math.Sin(a)})
	}
	pts[segments] = p2
	return pts
}

func circlePoints(cx, cy, r float64) model.Outline {
	pts := make(model.Outline, circleSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / circleSegments
		pts[i] = model.Point2D{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
	return pts
}

// arcPoints samples a DXF ARC counter-clockwise from its start to its end
// angle (degrees).
func arcPoints(a *entity.Arc) []model.Point2D {
	cx, cy, r := a.Circle.Center[0], a.Circle.Center[1], a.Circle.Radius
	start := a.Angle[0] * math.Pi / 180
	end := a.Angle[1] * math.Pi / 180
	if end <= start {
		end += 2 * math.Pi
	}
	pts := make([]model.Point2D, arcSegments+1)
	for i := range pts {
		t := start + (end-start)*float64(i)/arcSegments
		pts[i] = model.Point2D{X: cx + r*math.Cos(t), Y: cy + r*math.Sin(t)}
	}
	return pts
}

// joinEdges links edges end to end into closed contours. It returns the
// contours, largest first, and the number of chains that did not close.
func joinEdges(edges []edge, tolerance float64) ([]contour, int) {
	used := make([]bool, len(edges))
	var loops []contour
	open := 0

	for start := range edges {
		if used[start] {
			continue
		}
		used[start] = true
		chain := append([]model.Point2D(nil), edges[start].points...)

		for extended := true; extended; {
			extended = false
			tail := chain[len(chain)-1]
			for i, e := range edges {
				if used[i] {
					continue
				}
				switch {
				case pointsClose(tail, e.first(), tolerance):
					chain = append(chain, e.points[1:]...)
				case pointsClose(tail, e.last(), tolerance):
					for k := len(e.points) - 2; k >= 0; k-- {
						chain = append(chain, e.points[k])
					}
				default:
					continue
				}
				used[i] = true
				extended = true
				break
			}
		}

		if len(chain) < 4 || !pointsClose(chain[0], chain[len(chain)-1], tolerance) {
			open++
			continue
		}
		loops = append(loops, contour{
			source: fmt.Sprintf("LINE/ARC loop %d", len(loops)+1),
			layer:  edges[start].layer,
			points: model.Outline(chain[:len(chain)-1]),
		})
	}

	sort.SliceStable(loops, func(i, j int) bool {
		return loops[i].points.Polygon().AbsArea() > loops[j].points.Polygon().AbsArea()
	})
	return loops, open
}

func pointsClose(a, b model.Point2D, tolerance float64) bool {
	return math.Hypot(a.X-b.X, a.Y-b.Y) <= tolerance
}
