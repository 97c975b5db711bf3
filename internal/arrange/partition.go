package arrange

import (
	"fmt"

	"github.com/piwi3910/platenest/internal/geometry"
	"github.com/piwi3910/platenest/internal/model"
)

// Mode selects which items an arrange run moves.
type Mode int

const (
	// ModeAll moves every printable item.
	ModeAll Mode = iota
	// ModeSelection moves only the selected items; the rest stay where
	// they are and act as obstacles.
	ModeSelection
)

func (m Mode) String() string {
	if m == ModeSelection {
		return "selection"
	}
	return "all"
}

// Group pairs scene items with their packable records. Items[i] is the
// source of Polys[i].
type Group struct {
	Items []Placeable
	Polys []model.ArrangePolygon
}

// Len returns the number of items in the group.
func (g *Group) Len() int { return len(g.Items) }

func (g *Group) add(item Placeable, ap model.ArrangePolygon) {
	g.Items = append(g.Items, item)
	g.Polys = append(g.Polys, ap)
}

// Partition is the three way split of a scene's items for one run.
type Partition struct {
	Selected    Group
	Unselected  Group
	Unprintable Group
	Stride      geometry.Coord
}

// PrepareAll selects every printable instance and the wipe tower.
func PrepareAll(scene *model.Scene) (*Partition, error) {
	p := &Partition{Stride: BedStride(scene)}
	err := p.collect(scene, func(int, int) bool { return true })
	if err != nil {
		return nil, err
	}
	if wt, ok := wipeTower(scene); ok {
		p.Selected.add(wt, GetArrangePoly(wt, scene.Config))
	}
	p.normalize()
	return p, nil
}

// PrepareSelected selects the instances in the scene's selection and
// keeps every other printable item fixed. An empty selection arranges
// everything.
func PrepareSelected(scene *model.Scene) (*Partition, error) {
	p := &Partition{Stride: BedStride(scene)}
	err := p.collect(scene, scene.Selection.Contains)
	if err != nil {
		return nil, err
	}
	if wt, ok := wipeTower(scene); ok {
		ap := GetArrangePoly(wt, scene.Config)
		if scene.Selection.WipeTower {
			p.Selected.add(wt, ap)
		} else {
			p.Unselected.add(wt, ap)
		}
	}
	if p.Selected.Len() == 0 {
		p.Selected, p.Unselected = p.Unselected, p.Selected
	}
	p.normalize()
	return p, nil
}

// Prepare builds the partition for mode.
func Prepare(scene *model.Scene, mode Mode) (*Partition, error) {
	if mode == ModeSelection {
		return PrepareSelected(scene)
	}
	return PrepareAll(scene)
}

// collect routes every instance by printability and selected, inflating
// footprints by their brim.
func (p *Partition) collect(scene *model.Scene, selected func(obj, inst int) bool) error {
	for oi := range scene.Objects {
		obj := &scene.Objects[oi]
		for ii := range obj.Instances {
			item := InstanceItem{Object: obj, Index: ii}
			ap := GetArrangePoly(item, scene.Config)
			if err := AddBrim(&ap, obj.Config, scene.Config); err != nil {
				return fmt.Errorf("object %q instance %d: %w", obj.Name, ii, err)
			}
			switch {
			case !obj.Instances[ii].Printable:
				p.Unprintable.add(item, ap)
			case selected(oi, ii):
				p.Selected.add(item, ap)
			default:
				p.Unselected.add(item, ap)
			}
		}
	}
	return nil
}

// normalize removes the virtual bed offset from every record so the
// engine works in bed relative coordinates. Unprintable items are always
// packed onto fresh beds, so their bed index restarts at 0.
func (p *Partition) normalize() {
	for _, g := range []*Group{&p.Selected, &p.Unselected, &p.Unprintable} {
		for i := range g.Polys {
			ap := &g.Polys[i]
			ap.Translation.X -= geometry.Coord(ap.BedIndex) * p.Stride
		}
	}
	for i := range p.Unprintable.Polys {
		p.Unprintable.Polys[i].BedIndex = 0
	}
}

// Count returns the number of items the run moves.
func (p *Partition) Count() int {
	return p.Selected.Len() + p.Unprintable.Len()
}
