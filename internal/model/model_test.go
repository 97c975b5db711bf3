package model

import (
	"math"
	"testing"

	"github.com/piwi3910/platenest/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinObjectDistance(t *testing.T) {
	tests := []struct {
		name      string
		complete  bool
		clearance float64
		duplicate float64
		expected  float64
	}{
		{"sequential, clearance wins", true, 20, 6, 20},
		{"sequential, duplicate wins", true, 4, 6, 6},
		{"normal print ignores clearance", false, 20, 6, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPrintConfig()
			cfg.CompleteObjects = tt.complete
			cfg.ExtruderClearanceRadius = tt.clearance
			cfg.DuplicateDistance = tt.duplicate
			assert.Equal(t, tt.expected, cfg.MinObjectDistance())
		})
	}
}

func TestBedStride(t *testing.T) {
	bed := RectBed(250, 210)
	assert.Equal(t, geometry.Scaled(300), BedStride(bed))
	assert.Equal(t, 250.0, bed.Width())
}

func TestArrangePolygonTransformed(t *testing.T) {
	ap := ArrangePolygon{
		Poly:        RectOutline(20, 10).Polygon(),
		Translation: geometry.Pt(100, 50),
		Rotation:    math.Pi / 2,
	}
	b := ap.BoundingBox()
	assert.InDelta(t, float64(geometry.Scaled(90)), float64(b.Min.X), 2)
	assert.InDelta(t, float64(geometry.Scaled(50)), float64(b.Min.Y), 2)
	assert.InDelta(t, float64(geometry.Scaled(10)), float64(b.Width()), 2)
	assert.InDelta(t, float64(geometry.Scaled(20)), float64(b.Height()), 2)
}

func TestSelectionContains(t *testing.T) {
	sel := Selection{Entries: []SelectionEntry{{ObjectIndex: 1, Instances: []int{0, 2}}}}
	assert.True(t, sel.Contains(1, 2))
	assert.False(t, sel.Contains(1, 1))
	assert.False(t, sel.Contains(0, 0))
	assert.False(t, sel.IsEmpty())
	assert.True(t, Selection{}.IsEmpty())
}

func TestConfigOptionsOption(t *testing.T) {
	var none ConfigOptions
	_, ok := none.Option("brim_width")
	assert.False(t, ok)

	opts := ConfigOptions{"brim_width": 3}
	v, ok := opts.Option("brim_width")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestNewObjectCreatesPrintableInstances(t *testing.T) {
	obj := NewObject("Cube", RectOutline(10, 10), 3)
	require.Len(t, obj.Instances, 3)
	ids := map[string]bool{}
	for _, inst := range obj.Instances {
		assert.True(t, inst.Printable)
		ids[inst.ID] = true
	}
	assert.Len(t, ids, 3, "instance IDs should be unique")
	assert.NotEmpty(t, obj.ID)
}

func TestSceneTransformsRoundTrip(t *testing.T) {
	s := NewScene()
	s.Objects = append(s.Objects, NewObject("A", RectOutline(10, 10), 2))
	s.WipeTower = &WipeTower{Enabled: true, Max: Point2D{X: 60, Y: 10}, Position: Point2D{X: 5, Y: 5}}

	snap := s.Transforms()
	require.Len(t, snap, 3)

	s.Objects[0].Instances[0].Transform = Transform{X: 99, Y: 1, Rotation: 1}
	s.WipeTower.Apply(Point2D{X: 7, Y: 8}, 0.5)

	s.RestoreTransforms(snap)
	assert.Equal(t, Transform{}, s.Objects[0].Instances[0].Transform)
	assert.Equal(t, Point2D{X: 5, Y: 5}, s.WipeTower.Position)
	assert.Zero(t, s.WipeTower.Rotation)
}

func TestOutlineRotate(t *testing.T) {
	o := Outline{{X: 10, Y: 0}}.Rotate(math.Pi / 2)
	assert.InDelta(t, 0, o[0].X, 1e-9)
	assert.InDelta(t, 10, o[0].Y, 1e-9)
}

func TestAllProfilesIncludesBuiltInAndCustom(t *testing.T) {
	CustomProfiles = nil
	defer func() { CustomProfiles = nil }()

	builtInCount := len(PrinterProfiles)
	assert.Len(t, AllProfiles(), builtInCount)

	require.NoError(t, AddCustomProfile(NewCustomProfile("Voron 350")))
	assert.Len(t, AllProfiles(), builtInCount+1)
	assert.Equal(t, "Voron 350", GetProfile("Voron 350").Name)
}

func TestGetProfileFallsBackToGeneric(t *testing.T) {
	assert.Equal(t, "Generic", GetProfile("NonExistent").Name)
}

func TestAddCustomProfileRejectsBuiltInName(t *testing.T) {
	CustomProfiles = nil
	defer func() { CustomProfiles = nil }()

	err := AddCustomProfile(PrinterProfile{Name: "Original Prusa MK4"})
	assert.Error(t, err)
}

func TestAddCustomProfileUpdatesExisting(t *testing.T) {
	CustomProfiles = nil
	defer func() { CustomProfiles = nil }()

	require.NoError(t, AddCustomProfile(PrinterProfile{Name: "Mine", Description: "Version 1"}))
	require.NoError(t, AddCustomProfile(PrinterProfile{Name: "Mine", Description: "Version 2"}))
	require.Len(t, CustomProfiles, 1)
	assert.Equal(t, "Version 2", CustomProfiles[0].Description)
}

func TestRemoveCustomProfile(t *testing.T) {
	CustomProfiles = []PrinterProfile{{Name: "ToRemove"}}
	defer func() { CustomProfiles = nil }()

	require.NoError(t, RemoveCustomProfile("ToRemove"))
	assert.Empty(t, CustomProfiles)
	assert.Error(t, RemoveCustomProfile("ToRemove"))
	assert.Error(t, RemoveCustomProfile("Generic"))
}

func TestBuiltInProfilesMarkedCorrectly(t *testing.T) {
	for _, p := range PrinterProfiles {
		assert.True(t, p.IsBuiltIn, p.Name)
		assert.Greater(t, p.Config.BedShape.Width(), 0.0, p.Name)
	}
}
