// Package export renders arranged scenes to PDF reports, QR labels,
// spreadsheets, charts and raster previews.
package export

import (
	"fmt"
	"math"
	"sort"

	"github.com/piwi3910/platenest/internal/arrange"
	"github.com/piwi3910/platenest/internal/engine"
	"github.com/piwi3910/platenest/internal/geometry"
	"github.com/piwi3910/platenest/internal/model"
)

// Item is one placed element of a layout, in bed local millimetres.
type Item struct {
	ID        string
	Label     string
	Bed       int
	X, Y      float64
	Rotation  float64 // radians
	Outline   model.Outline
	Printable bool
	WipeTower bool
}

// Size returns the width and height of the item's placed outline.
func (it Item) Size() (w, h float64) {
	min, max := it.Outline.BoundingBox()
	return max.X - min.X, max.Y - min.Y
}

// Area returns the item's outline area in mm².
func (it Item) Area() float64 {
	return areaMM(it.Outline.Polygon())
}

// RotationDegrees returns the item's rotation in degrees, in [0, 360).
func (it Item) RotationDegrees() float64 {
	return geometry.NormalizeAngle(it.Rotation) * 180 / math.Pi
}

// BedLayout lists the items placed on one virtual bed.
type BedLayout struct {
	Index int
	Items []Item
}

// UsedArea returns the summed outline area of the bed's items in mm².
func (b BedLayout) UsedArea() float64 {
	total := 0.0
	for _, it := range b.Items {
		total += it.Area()
	}
	return total
}

// Printable reports whether the bed holds only printable items.
func (b BedLayout) Printable() bool {
	for _, it := range b.Items {
		if !it.Printable {
			return false
		}
	}
	return true
}

// Layout is a scene grouped by virtual bed.
type Layout struct {
	Name     string
	Bed      model.BedShape
	Config   model.PrintConfig
	Settings model.ArrangeSettings
	Beds     []BedLayout
	Warnings []string
}

// BuildLayout groups the scene's instances and wipe tower by the virtual
// bed their X position falls on. Clearance problems on printable beds are
// reported in Warnings.
func BuildLayout(scene *model.Scene) Layout {
	l := Layout{
		Name:     scene.Name,
		Bed:      scene.Config.BedShape,
		Config:   scene.Config,
		Settings: scene.Settings,
	}
	stride := arrange.BedStride(scene)

	var items []Item
	var records []model.ArrangePolygon
	add := func(ap model.ArrangePolygon, outline model.Outline, printable, tower bool) {
		ap.Translation.X -= geometry.Coord(ap.BedIndex) * stride
		x, y := geometry.Unscaled(ap.Translation.X), geometry.Unscaled(ap.Translation.Y)
		items = append(items, Item{
			ID:        ap.ID,
			Label:     ap.Label,
			Bed:       ap.BedIndex,
			X:         x,
			Y:         y,
			Rotation:  ap.Rotation,
			Outline:   outline.Rotate(ap.Rotation).Translate(x, y),
			Printable: printable,
			WipeTower: tower,
		})
		if printable {
			ap.Arranged = true
			records = append(records, ap)
		}
	}

	for oi := range scene.Objects {
		obj := &scene.Objects[oi]
		for ii := range obj.Instances {
			ap := arrange.GetArrangePoly(arrange.InstanceItem{Object: obj, Index: ii}, scene.Config)
			add(ap, obj.Outline, obj.Instances[ii].Printable, false)
		}
	}
	if ap, ok := arrange.GetWipeTowerArrangePoly(scene); ok {
		t := scene.WipeTower
		outline := model.Outline{t.Min, {X: t.Max.X, Y: t.Min.Y}, t.Max, {X: t.Min.X, Y: t.Max.Y}}
		add(ap, outline, true, true)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Bed < items[j].Bed })
	for _, it := range items {
		for len(l.Beds) <= it.Bed {
			l.Beds = append(l.Beds, BedLayout{Index: len(l.Beds)})
		}
		l.Beds[it.Bed].Items = append(l.Beds[it.Bed].Items, it)
	}

	distance := geometry.Scaled(arrange.EffectiveDistance(scene))
	l.Warnings = engine.FormatViolationWarnings(engine.Verify(records, nil, scene.Config.BedShape, distance))
	return l
}

// BedArea returns the printable bed area in mm².
func (l Layout) BedArea() float64 {
	return areaMM(l.Bed.Polygon())
}

// BedSize returns the width and height of the bed's bounding box in mm.
func (l Layout) BedSize() (w, h float64) {
	min, max := model.Outline(l.Bed).BoundingBox()
	return max.X - min.X, max.Y - min.Y
}

// Utilization returns the share of bed area covered on bed i, in percent.
func (l Layout) Utilization(i int) float64 {
	area := l.BedArea()
	if area <= 0 || i < 0 || i >= len(l.Beds) {
		return 0
	}
	return l.Beds[i].UsedArea() / area * 100
}

// ItemCount returns the number of placed items across all beds.
func (l Layout) ItemCount() int {
	n := 0
	for _, b := range l.Beds {
		n += len(b.Items)
	}
	return n
}

// BedTitle returns the display name of bed i.
func (l Layout) BedTitle(i int) string {
	if !l.Beds[i].Printable() {
		return fmt.Sprintf("Bed %d (unprintable)", i+1)
	}
	return fmt.Sprintf("Bed %d", i+1)
}

func areaMM(p geometry.Polygon) float64 {
	unit := float64(geometry.Scaled(1))
	return p.AbsArea() / (unit * unit)
}
