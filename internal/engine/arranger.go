package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/piwi3910/platenest/internal/geometry"
	"github.com/piwi3910/platenest/internal/model"
)

// ErrDegenerateFootprint is returned when an item or the bed cannot be
// packed because its outline is degenerate.
var ErrDegenerateFootprint = errors.New("degenerate footprint")

const (
	// clearanceTolerance absorbs rounding introduced by rotating scaled
	// outlines (about 1 µm).
	clearanceTolerance = 1000

	// minClearance keeps touching footprints apart when no distance is
	// requested.
	minClearance = 2 * clearanceTolerance

	// minSlideStep is the resolution of the compaction slide.
	minSlideStep = geometry.Coord(10_000)

	defaultRotations = 4
)

// Params controls a single Arrange call.
type Params struct {
	MinObjDistance geometry.Coord  // minimum gap between footprints and to the bed edge
	AllowRotations bool            // search rotations; otherwise rotation is reset to 0
	Rotations      int             // angle steps per full turn when rotating
	Algorithm      model.Algorithm // greedy or genetic
	Genetic        GeneticConfig   // used by the genetic algorithm only
	Progress       func(remaining int)
}

// DefaultParams returns greedy placement without rotations.
func DefaultParams() Params {
	return Params{
		Rotations: defaultRotations,
		Algorithm: model.AlgorithmGreedy,
		Genetic:   DefaultGeneticConfig(),
	}
}

// Arranger packs footprints onto one or more virtual beds.
type Arranger struct {
	Params Params
}

func New(params Params) *Arranger {
	if params.Rotations < 1 {
		params.Rotations = defaultRotations
	}
	if params.Genetic.PopulationSize == 0 {
		params.Genetic = DefaultGeneticConfig()
	}
	params.MinObjDistance = max(params.MinObjDistance, minClearance)
	return &Arranger{Params: params}
}

// Arrange places every item of items in place, avoiding the fixed items.
// Translations are bed relative on input and output; BedIndex selects the
// virtual bed. Items that fit on no bed get BedIndex = model.UnarrangedBed
// and keep their transform.
//
// Cancellation of ctx is checked before each item. Items placed before
// that point keep valid transforms, the rest are untouched and nil is
// returned.
func (a *Arranger) Arrange(ctx context.Context, items, fixed []model.ArrangePolygon, bed model.BedShape) error {
	bedPoly := bed.Polygon()
	if err := bedPoly.Validate(); err != nil {
		return fmt.Errorf("bed shape: %w: %w", ErrDegenerateFootprint, err)
	}
	for _, it := range items {
		if err := it.Poly.Validate(); err != nil {
			return fmt.Errorf("item %s: %w: %w", it.ID, ErrDegenerateFootprint, err)
		}
	}
	for _, it := range fixed {
		if err := it.Poly.Validate(); err != nil {
			return fmt.Errorf("fixed item %s: %w: %w", it.ID, ErrDegenerateFootprint, err)
		}
	}
	if len(items) == 0 {
		return nil
	}

	order := placementOrder(items)
	rotations := make([][]rotationCandidate, len(items))
	for i := range items {
		rotations[i] = a.rotationsFor(items[i])
	}

	var prefs []int
	if a.Params.Algorithm == model.AlgorithmGenetic && a.Params.AllowRotations && len(items) > 1 {
		search := newRotationSearch(a, items, fixed, bedPoly, order, rotations, 42)
		prefs = search.run(ctx)
	}

	l := a.newLayout(bedPoly, fixed)
	l.place(ctx, items, order, rotations, prefs, a.Params.Progress)
	return nil
}

// placementOrder sorts item indices by priority descending, then footprint
// area descending. Equal items keep their input order.
func placementOrder(items []model.ArrangePolygon) []int {
	order := make([]int, len(items))
	areas := make([]float64, len(items))
	for i := range items {
		order[i] = i
		areas[i] = items[i].Poly.AbsArea()
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if items[a].Priority != items[b].Priority {
			return items[a].Priority > items[b].Priority
		}
		return areas[a] > areas[b]
	})
	return order
}

// rotationCandidate is one orientation of an item's footprint.
type rotationCandidate struct {
	angle float64
	shape geometry.Polygon
	area  float64 // bounding box area
}

// rotationsFor returns the orientations to try for an item, tightest
// bounding box first. Without rotations only 0 is returned.
func (a *Arranger) rotationsFor(it model.ArrangePolygon) []rotationCandidate {
	if !a.Params.AllowRotations {
		return []rotationCandidate{{angle: 0, shape: it.Poly.Clone(), area: it.Poly.BoundingBox().Area()}}
	}

	angles := make([]float64, 0, a.Params.Rotations+2)
	step := 2 * math.Pi / float64(a.Params.Rotations)
	for k := 0; k < a.Params.Rotations; k++ {
		angles = append(angles, float64(k)*step)
	}
	angles = append(angles, geometry.NormalizeAngle(it.Rotation), geometry.MinBoundingBoxAngle(it.Poly))

	var candidates []rotationCandidate
	for _, angle := range angles {
		dup := false
		for _, c := range candidates {
			if math.Abs(c.angle-angle) < 1e-9 {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		shape := it.Poly.Rotate(angle)
		candidates = append(candidates, rotationCandidate{
			angle: angle,
			shape: shape,
			area:  shape.BoundingBox().Area(),
		})
	}

	// Sort by bounding box area ascending (tightest fit first)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].area < candidates[j].area
	})
	return candidates
}

// ─── Layout state ─────────────────────────────────────────

type obstacle struct {
	poly geometry.Polygon
	box  geometry.Box
}

type bedState struct {
	obstacles []obstacle
	pile      geometry.Box
	used      bool
}

func (b *bedState) add(poly geometry.Polygon, box geometry.Box) {
	b.obstacles = append(b.obstacles, obstacle{poly: poly, box: box})
	if b.used {
		b.pile = b.pile.Union(box)
	} else {
		b.pile = box
		b.used = true
	}
}

// layout is the packing state of one Arrange call: the bed outline plus
// everything placed so far, per virtual bed.
type layout struct {
	bed     geometry.Polygon
	inner   geometry.Box // bed box shrunk by the clearance
	rectBed bool
	dist    geometry.Coord

	allowRotations bool
	beds           []*bedState
}

type placement struct {
	bed         int
	rotation    float64
	translation geometry.Point
	poly        geometry.Polygon
	box         geometry.Box
	score       float64
}

func (a *Arranger) newLayout(bed geometry.Polygon, fixed []model.ArrangePolygon) *layout {
	l := &layout{
		bed:            bed,
		inner:          bed.BoundingBox().Inflate(-a.Params.MinObjDistance),
		rectBed:        bed.IsAxisRect(),
		dist:           a.Params.MinObjDistance,
		allowRotations: a.Params.AllowRotations,
	}
	for _, f := range fixed {
		if f.BedIndex < 0 {
			continue
		}
		poly := f.Transformed()
		l.bedAt(f.BedIndex).add(poly, poly.BoundingBox())
	}
	return l
}

// bedAt returns the state of bed idx, creating empty beds up to it.
func (l *layout) bedAt(idx int) *bedState {
	for len(l.beds) <= idx {
		l.beds = append(l.beds, &bedState{})
	}
	return l.beds[idx]
}

// place runs the placement loop over items in the given order. prefs, if
// non-nil, holds a preferred rotation index per item.
//
// Items whose current spot is still valid are committed first, on
// whatever bed they sit, so a larger item on a later bed cannot push a
// smaller one off bed 0. The rest are then packed around them.
func (l *layout) place(ctx context.Context, items []model.ArrangePolygon, order []int, rotations [][]rotationCandidate, prefs []int, progress func(int)) {
	remaining := len(order)
	done := func() {
		remaining--
		if progress != nil {
			progress(remaining)
		}
	}

	kept := make([]bool, len(items))
	for _, idx := range order {
		if ctx.Err() != nil {
			return
		}
		it := &items[idx]
		p, ok := l.hint(*it)
		if !ok {
			continue
		}
		l.commit(it, p)
		kept[idx] = true
		done()
	}

	for _, idx := range order {
		if kept[idx] {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		it := &items[idx]
		pref := -1
		if prefs != nil {
			pref = prefs[idx]
		}

		if p, ok := l.placeItem(rotations[idx], pref); ok {
			l.commit(it, p)
		} else {
			it.BedIndex = model.UnarrangedBed
			it.Arranged = false
		}
		done()
	}
}

func (l *layout) commit(it *model.ArrangePolygon, p placement) {
	l.bedAt(p.bed).add(p.poly, p.box)
	it.Translation = p.translation
	it.Rotation = p.rotation
	it.BedIndex = p.bed
	it.Arranged = true
}

// placeItem finds a placement on the first bed with room, otherwise on a
// new bed.
func (l *layout) placeItem(rotations []rotationCandidate, pref int) (placement, bool) {
	for b := 0; b <= len(l.beds); b++ {
		if p, ok := l.bestOnBed(b, rotations, pref); ok {
			return p, true
		}
	}
	return placement{}, false
}

// hint keeps an item where it already is when that spot is still valid.
func (l *layout) hint(it model.ArrangePolygon) (placement, bool) {
	if it.BedIndex < 0 {
		return placement{}, false
	}
	rotation := 0.0
	if l.allowRotations {
		rotation = it.Rotation
	}
	poly := it.Poly.Rotate(rotation).Translate(it.Translation)
	box := poly.BoundingBox()
	if !l.fits(it.BedIndex, poly, box) {
		return placement{}, false
	}
	return placement{
		bed:         it.BedIndex,
		rotation:    rotation,
		translation: it.Translation,
		poly:        poly,
		box:         box,
	}, true
}

// bestOnBed returns the best placement over all rotations on bed b. With a
// preferred rotation, that rotation wins whenever it fits.
func (l *layout) bestOnBed(b int, rotations []rotationCandidate, pref int) (placement, bool) {
	if pref >= 0 && pref < len(rotations) {
		if p, ok := l.bestForShape(b, rotations[pref]); ok {
			return p, true
		}
	}

	var best placement
	found := false
	for i, rc := range rotations {
		if i == pref {
			continue
		}
		p, ok := l.bestForShape(b, rc)
		if !ok {
			continue
		}
		if !found || betterPlacement(p, best) {
			best, found = p, true
		}
	}
	return best, found
}

func betterPlacement(a, b placement) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	if a.box.Min.Y != b.box.Min.Y {
		return a.box.Min.Y < b.box.Min.Y
	}
	return a.box.Min.X < b.box.Min.X
}

// bestForShape searches the candidate positions of one oriented shape on
// bed b. Candidates are bounding box corners aligned with the bed corner
// and with the edges of already placed boxes; the one yielding the
// smallest pile wins and is then compacted toward the bed corner.
func (l *layout) bestForShape(b int, rc rotationCandidate) (placement, bool) {
	sb := rc.shape.BoundingBox()
	w, h := sb.Width(), sb.Height()
	if w > l.inner.Width() || h > l.inner.Height() {
		return placement{}, false
	}

	var st *bedState
	if b < len(l.beds) {
		st = l.beds[b]
	}

	xs := []geometry.Coord{l.inner.Min.X}
	ys := []geometry.Coord{l.inner.Min.Y}
	if !l.rectBed {
		// Bed corners are cut away; align with the outline's vertices too.
		for _, v := range l.bed {
			xs = append(xs, v.X+l.dist, v.X-l.dist-w)
			ys = append(ys, v.Y+l.dist, v.Y-l.dist-h)
		}
	}
	if st != nil {
		for _, ob := range st.obstacles {
			xs = append(xs, ob.box.Max.X+l.dist, ob.box.Min.X)
			ys = append(ys, ob.box.Max.Y+l.dist, ob.box.Min.Y)
		}
	}
	xs = candidateCoords(xs, l.inner.Min.X, l.inner.Max.X-w)
	ys = candidateCoords(ys, l.inner.Min.Y, l.inner.Max.Y-h)

	type candidate struct {
		min   geometry.Point
		score float64
	}
	candidates := make([]candidate, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			box := geometry.Box{Min: geometry.Point{X: x, Y: y}, Max: geometry.Point{X: x + w, Y: y + h}}
			score := box.Area()
			if st != nil && st.used {
				score = st.pile.Union(box).Area()
			}
			candidates = append(candidates, candidate{min: box.Min, score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.score != cj.score {
			return ci.score < cj.score
		}
		if ci.min.Y != cj.min.Y {
			return ci.min.Y < cj.min.Y
		}
		return ci.min.X < cj.min.X
	})

	for _, c := range candidates {
		t := c.min.Sub(sb.Min)
		poly := rc.shape.Translate(t)
		box := poly.BoundingBox()
		if !l.fits(b, poly, box) {
			continue
		}
		p := l.compact(b, placement{
			bed:         b,
			rotation:    rc.angle,
			translation: t,
			poly:        poly,
			box:         box,
		})
		p.score = box.Area()
		if st != nil && st.used {
			p.score = st.pile.Union(p.box).Area()
		}
		return p, true
	}
	return placement{}, false
}

// candidateCoords clamps, sorts and deduplicates candidate coordinates.
func candidateCoords(cs []geometry.Coord, lo, hi geometry.Coord) []geometry.Coord {
	out := cs[:0]
	for _, c := range cs {
		if c >= lo && c <= hi {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// fits reports whether poly lies inside the bed with clearance and keeps
// the clearance to every obstacle on bed b.
func (l *layout) fits(b int, poly geometry.Polygon, box geometry.Box) bool {
	if !l.inner.ContainsBox(box) {
		return false
	}
	if !l.rectBed && !geometry.ContainsPolygon(l.bed, poly, float64(l.dist)-clearanceTolerance) {
		return false
	}
	if b >= len(l.beds) {
		return true
	}
	limit := float64(l.dist) - clearanceTolerance
	for _, ob := range l.beds[b].obstacles {
		if box.Apart(ob.box, l.dist) {
			continue
		}
		if geometry.Distance(poly, ob.poly) < limit {
			return false
		}
	}
	return true
}

// compact slides a valid placement down, then left, until it stops.
func (l *layout) compact(b int, p placement) placement {
	for iter := 0; iter < 8; iter++ {
		moved := false
		if s := l.slide(b, p, geometry.Point{Y: -1}, p.box.Min.Y-l.inner.Min.Y); s > 0 {
			p = p.shifted(geometry.Point{Y: -s})
			moved = true
		}
		if s := l.slide(b, p, geometry.Point{X: -1}, p.box.Min.X-l.inner.Min.X); s > 0 {
			p = p.shifted(geometry.Point{X: -s})
			moved = true
		}
		if !moved {
			break
		}
	}
	return p
}

// slide returns how far p can move along the unit direction dir, up to
// limit, while staying valid.
func (l *layout) slide(b int, p placement, dir geometry.Point, limit geometry.Coord) geometry.Coord {
	var shift geometry.Coord
	step := limit
	for step >= minSlideStep {
		next := shift + step
		if next <= limit {
			d := geometry.Point{X: dir.X * next, Y: dir.Y * next}
			q := p.shifted(d)
			if l.fits(b, q.poly, q.box) {
				shift = next
				continue
			}
		}
		step /= 2
	}
	return shift
}

func (p placement) shifted(d geometry.Point) placement {
	p.translation = p.translation.Add(d)
	p.poly = p.poly.Translate(d)
	p.box = p.box.Translate(d)
	return p
}

// usage summarises a finished layout for comparisons.
func (l *layout) usage() (beds int, pileArea float64) {
	for _, b := range l.beds {
		if b.used {
			beds++
			pileArea += b.pile.Area()
		}
	}
	return beds, pileArea
}
