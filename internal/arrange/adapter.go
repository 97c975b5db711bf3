// Package arrange connects a scene to the arrangement engine: it turns
// instances and the wipe tower into packable footprints, partitions them
// by selection and printability, runs the engine and writes the results
// back.
package arrange

import (
	"github.com/piwi3910/platenest/internal/geometry"
	"github.com/piwi3910/platenest/internal/model"
)

// Placeable is a scene element the arranger can move.
type Placeable interface {
	// ArrangePolygon returns the element's footprint and current placement.
	// Translation is in world coordinates; BedIndex is derived from it.
	ArrangePolygon(cfg model.PrintConfig) model.ArrangePolygon
	// ApplyArrangeResult writes a bed relative engine result back,
	// reintroducing the virtual bed offset.
	ApplyArrangeResult(ap model.ArrangePolygon, stride geometry.Coord)
}

// InstanceItem is one instance of a model object.
type InstanceItem struct {
	Object *model.Object
	Index  int
}

func (it InstanceItem) instance() *model.Instance {
	return &it.Object.Instances[it.Index]
}

// ArrangePolygon uses the convex hull of the object outline as the
// footprint.
func (it InstanceItem) ArrangePolygon(cfg model.PrintConfig) model.ArrangePolygon {
	inst := it.instance()
	translation := geometry.Pt(inst.Transform.X, inst.Transform.Y)
	return model.ArrangePolygon{
		ID:          inst.ID,
		Label:       it.Object.Name,
		Poly:        geometry.ConvexHull(it.Object.Outline.Polygon()),
		Translation: translation,
		Rotation:    inst.Transform.Rotation,
		BedIndex:    bedIndexAt(translation.X, model.BedStride(cfg.BedShape)),
		Priority:    model.DefaultPriority,
	}
}

func (it InstanceItem) ApplyArrangeResult(ap model.ArrangePolygon, stride geometry.Coord) {
	inst := it.instance()
	inst.Transform = model.Transform{
		X:        geometry.Unscaled(ap.Translation.X + geometry.Coord(ap.BedIndex)*stride),
		Y:        geometry.Unscaled(ap.Translation.Y),
		Rotation: ap.Rotation,
	}
}

// WipeTowerItem is the scene's wipe tower.
type WipeTowerItem struct {
	Tower *model.WipeTower
}

// ArrangePolygon uses the tower's bounding rectangle and ranks it above
// ordinary objects so it anchors the layout.
func (w WipeTowerItem) ArrangePolygon(cfg model.PrintConfig) model.ArrangePolygon {
	translation := w.Tower.Position.Scaled()
	return model.ArrangePolygon{
		ID:          model.WipeTowerID,
		Label:       "Wipe tower",
		Poly:        geometry.Rect(w.Tower.Min.Scaled(), w.Tower.Max.Scaled()),
		Translation: translation,
		Rotation:    w.Tower.Rotation,
		BedIndex:    bedIndexAt(translation.X, model.BedStride(cfg.BedShape)),
		Priority:    model.DefaultPriority + 1,
	}
}

func (w WipeTowerItem) ApplyArrangeResult(ap model.ArrangePolygon, stride geometry.Coord) {
	pos := model.Point2D{
		X: geometry.Unscaled(ap.Translation.X + geometry.Coord(ap.BedIndex)*stride),
		Y: geometry.Unscaled(ap.Translation.Y),
	}
	w.Tower.Apply(pos, ap.Rotation)
}

// bedIndexAt returns the virtual bed an X position falls on. Positions
// left of the first bed count as bed 0.
func bedIndexAt(x, stride geometry.Coord) int {
	if stride <= 0 || x < 0 {
		return 0
	}
	return int(x / stride)
}

// GetArrangePoly returns the packable record of item. It does not modify
// the scene.
func GetArrangePoly(item Placeable, cfg model.PrintConfig) model.ArrangePolygon {
	return item.ArrangePolygon(cfg)
}

// wipeTower returns the scene's wipe tower item if one is enabled.
func wipeTower(scene *model.Scene) (WipeTowerItem, bool) {
	if scene.WipeTower == nil || !scene.WipeTower.Enabled {
		return WipeTowerItem{}, false
	}
	return WipeTowerItem{Tower: scene.WipeTower}, true
}

// GetWipeTowerArrangePoly returns the wipe tower's packable record, or
// false when the scene has no enabled tower.
func GetWipeTowerArrangePoly(scene *model.Scene) (model.ArrangePolygon, bool) {
	wt, ok := wipeTower(scene)
	if !ok {
		return model.ArrangePolygon{}, false
	}
	return GetArrangePoly(wt, scene.Config), true
}

// BedStride returns the distance between neighbouring virtual beds of the
// scene's printer, in scaled units.
func BedStride(scene *model.Scene) geometry.Coord {
	return model.BedStride(scene.Config.BedShape)
}
