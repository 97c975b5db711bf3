package model

import (
	"math"

	"github.com/google/uuid"
	"github.com/piwi3910/platenest/internal/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

// Point2D represents a 2D coordinate in mm.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scaled converts the point into scaled coordinates.
func (p Point2D) Scaled() geometry.Point {
	return geometry.Pt(p.X, p.Y)
}

// Outline represents a closed polygon as a sequence of 2D points.
// The outline is implicitly closed: the last point connects back to the first.
type Outline []Point2D

// BoundingBox returns the min and max corners of the outline.
func (o Outline) BoundingBox() (min, max Point2D) {
	if len(o) == 0 {
		return Point2D{}, Point2D{}
	}
	min, max = o[0], o[0]
	for _, p := range o[1:] {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
	}
	return min, max
}

// Translate shifts all points by dx, dy.
func (o Outline) Translate(dx, dy float64) Outline {
	result := make(Outline, len(o))
	for i, p := range o {
		result[i] = Point2D{X: p.X + dx, Y: p.Y + dy}
	}
	return result
}

// Rotate rotates all points by angle radians about the origin.
func (o Outline) Rotate(angle float64) Outline {
	result := make(Outline, len(o))
	for i, p := range o {
		v := r2.Rotate(r2.Vec{X: p.X, Y: p.Y}, angle, r2.Vec{})
		result[i] = Point2D{X: v.X, Y: v.Y}
	}
	return result
}

// Polygon returns the outline in scaled coordinates.
func (o Outline) Polygon() geometry.Polygon {
	poly := make(geometry.Polygon, len(o))
	for i, p := range o {
		poly[i] = p.Scaled()
	}
	return poly
}

// RectOutline returns a w×h rectangle anchored at the origin.
func RectOutline(w, h float64) Outline {
	return Outline{{0, 0}, {w, 0}, {w, h}, {0, h}}
}

// ─── Scene ────────────────────────────────────────────────

// Transform is the placement of an instance on the (virtual) bed plane.
type Transform struct {
	X        float64 `json:"x"`        // mm, includes the virtual bed offset
	Y        float64 `json:"y"`        // mm
	Rotation float64 `json:"rotation"` // radians about Z
}

// Instance is one printable copy of an object.
type Instance struct {
	ID        string    `json:"id"`
	Printable bool      `json:"printable"`
	Transform Transform `json:"transform"`
}

// BrimWidthOption names the per-object brim width override, in mm.
const BrimWidthOption = "brim_width"

// ConfigOptions holds per-object overrides of print settings.
type ConfigOptions map[string]float64

// Option returns the override named name, if present.
func (c ConfigOptions) Option(name string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	v, ok := c[name]
	return v, ok
}

// Object is a model object with one or more instances. Outline is the
// object's footprint in its local frame.
type Object struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Outline   Outline       `json:"outline"`
	Instances []Instance    `json:"instances"`
	Config    ConfigOptions `json:"config,omitempty"`
}

// NewObject builds an object with count printable instances, all at the
// origin.
func NewObject(name string, outline Outline, count int) Object {
	obj := Object{
		ID:      uuid.New().String()[:8],
		Name:    name,
		Outline: outline,
	}
	for i := 0; i < count; i++ {
		obj.Instances = append(obj.Instances, NewInstance())
	}
	return obj
}

// NewInstance returns a printable instance at the origin.
func NewInstance() Instance {
	return Instance{ID: uuid.New().String()[:8], Printable: true}
}

// WipeTower is the purge tower of a multi-material print. Min and Max
// describe its footprint relative to Position.
type WipeTower struct {
	Enabled  bool    `json:"enabled"`
	Min      Point2D `json:"min"`
	Max      Point2D `json:"max"`
	Position Point2D `json:"position"`
	Rotation float64 `json:"rotation"`
}

// Apply moves the tower.
func (w *WipeTower) Apply(pos Point2D, rotation float64) {
	w.Position = pos
	w.Rotation = rotation
}

// SelectionEntry lists the selected instances of one object.
type SelectionEntry struct {
	ObjectIndex int   `json:"object_index"`
	Instances   []int `json:"instances"`
}

// Selection is the user's current selection in the scene.
type Selection struct {
	Entries   []SelectionEntry `json:"entries"`
	WipeTower bool             `json:"wipe_tower"`
}

// Contains reports whether instance inst of object obj is selected.
func (s Selection) Contains(obj, inst int) bool {
	for _, e := range s.Entries {
		if e.ObjectIndex != obj {
			continue
		}
		for _, i := range e.Instances {
			if i == inst {
				return true
			}
		}
	}
	return false
}

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool {
	return len(s.Entries) == 0 && !s.WipeTower
}

// Scene ties everything together for save/load and arrangement.
type Scene struct {
	Name      string          `json:"name"`
	Objects   []Object        `json:"objects"`
	WipeTower *WipeTower      `json:"wipe_tower,omitempty"`
	Selection Selection       `json:"selection"`
	Config    PrintConfig     `json:"config"`
	Settings  ArrangeSettings `json:"settings"`
}

func NewScene() Scene {
	return Scene{
		Name:     "Untitled",
		Objects:  []Object{},
		Config:   DefaultPrintConfig(),
		Settings: DefaultArrangeSettings(),
	}
}

// InstanceCount returns the number of instances across all objects.
func (s Scene) InstanceCount() int {
	n := 0
	for _, o := range s.Objects {
		n += len(o.Instances)
	}
	return n
}

// Transforms returns every instance transform keyed by instance ID, plus
// the wipe tower under the key WipeTowerID.
func (s Scene) Transforms() map[string]Transform {
	out := make(map[string]Transform, s.InstanceCount()+1)
	for _, o := range s.Objects {
		for _, inst := range o.Instances {
			out[inst.ID] = inst.Transform
		}
	}
	if s.WipeTower != nil {
		out[WipeTowerID] = Transform{X: s.WipeTower.Position.X, Y: s.WipeTower.Position.Y, Rotation: s.WipeTower.Rotation}
	}
	return out
}

// RestoreTransforms writes transforms captured by Transforms back. Unknown
// IDs are ignored.
func (s *Scene) RestoreTransforms(t map[string]Transform) {
	for oi := range s.Objects {
		for ii := range s.Objects[oi].Instances {
			inst := &s.Objects[oi].Instances[ii]
			if tr, ok := t[inst.ID]; ok {
				inst.Transform = tr
			}
		}
	}
	if s.WipeTower != nil {
		if tr, ok := t[WipeTowerID]; ok {
			s.WipeTower.Apply(Point2D{X: tr.X, Y: tr.Y}, tr.Rotation)
		}
	}
}

// ─── Print configuration ──────────────────────────────────

// BedShape is the printable area outline in mm.
type BedShape []Point2D

// RectBed returns a rectangular bed with its origin at (0,0).
func RectBed(w, h float64) BedShape {
	return BedShape(RectOutline(w, h))
}

// Polygon returns the bed outline in scaled coordinates.
func (b BedShape) Polygon() geometry.Polygon {
	return Outline(b).Polygon()
}

// BoundingBox returns the scaled bounding box of the bed.
func (b BedShape) BoundingBox() geometry.Box {
	return b.Polygon().BoundingBox()
}

// Width returns the bed width along X in mm.
func (b BedShape) Width() float64 {
	min, max := Outline(b).BoundingBox()
	return max.X - min.X
}

// LogicalBedGap is the gap between virtual beds as a fraction of the bed
// width.
const LogicalBedGap = 0.2

// BedStride returns the distance along X between the origins of two
// neighbouring virtual beds, in scaled units.
func BedStride(bed BedShape) geometry.Coord {
	return geometry.Scaled((1 + LogicalBedGap) * bed.Width())
}

// PrintConfig holds the global print settings used by arrangement.
type PrintConfig struct {
	BedShape                BedShape `json:"bed_shape"`
	BrimWidth               float64  `json:"brim_width"`                // mm
	ExtruderClearanceRadius float64  `json:"extruder_clearance_radius"` // mm
	CompleteObjects         bool     `json:"complete_objects"`          // print objects one by one
	CompleteObjectsOneBrim  bool     `json:"complete_objects_one_brim"` // single brim around all objects
	DuplicateDistance       float64  `json:"duplicate_distance"`        // mm
}

func DefaultPrintConfig() PrintConfig {
	return PrintConfig{
		BedShape:                RectBed(250, 210),
		BrimWidth:               0,
		ExtruderClearanceRadius: 20,
		CompleteObjects:         false,
		CompleteObjectsOneBrim:  false,
		DuplicateDistance:       6,
	}
}

// MinObjectDistance returns the minimum gap between objects implied by the
// print settings, in mm.
func (c PrintConfig) MinObjectDistance() float64 {
	if c.CompleteObjects && c.ExtruderClearanceRadius > c.DuplicateDistance {
		return c.ExtruderClearanceRadius
	}
	return c.DuplicateDistance
}

// ─── Arrangement ──────────────────────────────────────────

// Algorithm represents the placement strategy.
type Algorithm string

const (
	AlgorithmGreedy  Algorithm = "greedy"  // Bottom-left first fit (fast)
	AlgorithmGenetic Algorithm = "genetic" // Genetic search over rotations (slower, often tighter)
)

// ArrangeSettings are the user facing arrangement options.
type ArrangeSettings struct {
	Distance        float64   `json:"distance"` // mm
	EnableRotations bool      `json:"enable_rotations"`
	Rotations       int       `json:"rotations"` // angle steps per full turn
	Algorithm       Algorithm `json:"algorithm"`
}

func DefaultArrangeSettings() ArrangeSettings {
	return ArrangeSettings{
		Distance:        6,
		EnableRotations: false,
		Rotations:       4,
		Algorithm:       AlgorithmGreedy,
	}
}

// UnarrangedBed marks an item that could not be placed on any bed.
const UnarrangedBed = -1

// WipeTowerID identifies the wipe tower among arrange items.
const WipeTowerID = "wipe_tower"

// DefaultPriority is the priority of ordinary instances.
const DefaultPriority = 0

// ArrangePolygon is the arrangement engine's view of a placeable item.
// Poly is the footprint in the item's local frame; Translation is relative
// to the origin of bed BedIndex.
type ArrangePolygon struct {
	ID          string           `json:"id"`
	Label       string           `json:"label"`
	Poly        geometry.Polygon `json:"poly"`
	Translation geometry.Point   `json:"translation"`
	Rotation    float64          `json:"rotation"`
	BedIndex    int              `json:"bed_index"`
	Priority    int              `json:"priority"`
	Arranged    bool             `json:"arranged"`
}

// Transformed returns the footprint rotated and translated into bed
// coordinates.
func (ap ArrangePolygon) Transformed() geometry.Polygon {
	return ap.Poly.Rotate(ap.Rotation).Translate(ap.Translation)
}

// BoundingBox returns the bounding box of the transformed footprint.
func (ap ArrangePolygon) BoundingBox() geometry.Box {
	return ap.Transformed().BoundingBox()
}
