package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/piwi3910/platenest/internal/geometry"
	"github.com/piwi3910/platenest/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBed() model.BedShape {
	return model.RectBed(250, 210)
}

func testParams() Params {
	p := DefaultParams()
	p.MinObjDistance = geometry.Scaled(6)
	return p
}

func rectItem(id string, w, h float64) model.ArrangePolygon {
	return model.ArrangePolygon{
		ID:    id,
		Label: id,
		Poly:  model.RectOutline(w, h).Polygon(),
	}
}

func manyItems(n int, w, h float64) []model.ArrangePolygon {
	items := make([]model.ArrangePolygon, n)
	for i := range items {
		items[i] = rectItem(fmt.Sprintf("item-%d", i), w, h)
	}
	return items
}

func TestArrange_SingleItemPlacedAtCorner(t *testing.T) {
	items := []model.ArrangePolygon{rectItem("A", 20, 10)}

	err := New(testParams()).Arrange(context.Background(), items, nil, testBed())
	require.NoError(t, err)

	assert.True(t, items[0].Arranged)
	assert.Equal(t, 0, items[0].BedIndex)
	assert.Equal(t, geometry.Pt(6, 6), items[0].Translation)
}

func TestArrange_NoOverlap(t *testing.T) {
	items := manyItems(12, 40, 30)
	params := testParams()

	err := New(params).Arrange(context.Background(), items, nil, testBed())
	require.NoError(t, err)

	for _, it := range items {
		assert.True(t, it.Arranged, it.ID)
		assert.Equal(t, 0, it.BedIndex, "12 small items fit on one bed")
	}
	assert.Empty(t, Verify(items, nil, testBed(), params.MinObjDistance))
}

func TestArrange_OverflowOpensNewBed(t *testing.T) {
	items := manyItems(6, 100, 100)
	params := testParams()

	err := New(params).Arrange(context.Background(), items, nil, testBed())
	require.NoError(t, err)

	perBed := map[int]int{}
	for _, it := range items {
		require.True(t, it.Arranged)
		perBed[it.BedIndex]++
	}
	assert.Equal(t, map[int]int{0: 2, 1: 2, 2: 2}, perBed)
	assert.Empty(t, Verify(items, nil, testBed(), params.MinObjDistance))
}

func TestArrange_PriorityPlacedFirst(t *testing.T) {
	big := rectItem("big", 100, 100)
	tower := rectItem("tower", 60, 20)
	tower.Priority = model.DefaultPriority + 1
	items := []model.ArrangePolygon{big, tower}

	require.NoError(t, New(testParams()).Arrange(context.Background(), items, nil, testBed()))

	assert.Equal(t, geometry.Pt(6, 6), items[1].Translation, "higher priority item takes the corner")
	assert.NotEqual(t, geometry.Pt(6, 6), items[0].Translation)
}

func TestPlacementOrder(t *testing.T) {
	items := []model.ArrangePolygon{
		rectItem("small", 10, 10),
		rectItem("large", 50, 50),
		rectItem("medium", 30, 30),
		rectItem("small-2", 10, 10),
	}
	items[3].Priority = 1

	order := placementOrder(items)
	assert.Equal(t, []int{3, 1, 2, 0}, order)
}

func TestArrange_RotationResetWithoutRotations(t *testing.T) {
	it := rectItem("A", 20, 10)
	it.Rotation = 1.0
	items := []model.ArrangePolygon{it}

	require.NoError(t, New(testParams()).Arrange(context.Background(), items, nil, testBed()))
	assert.Zero(t, items[0].Rotation)
}

func TestArrange_ItemTooLargeLeftUnarranged(t *testing.T) {
	huge := rectItem("huge", 300, 50)
	huge.Translation = geometry.Pt(5, 5)
	items := []model.ArrangePolygon{huge, rectItem("small", 10, 10)}

	require.NoError(t, New(testParams()).Arrange(context.Background(), items, nil, testBed()))

	assert.False(t, items[0].Arranged)
	assert.Equal(t, model.UnarrangedBed, items[0].BedIndex)
	assert.Equal(t, geometry.Pt(5, 5), items[0].Translation)
	assert.True(t, items[1].Arranged)
	assert.Equal(t, 0, items[1].BedIndex)
}

func TestArrange_RotationFitsTallItem(t *testing.T) {
	tall := rectItem("tall", 20, 230)

	noRot := []model.ArrangePolygon{tall}
	require.NoError(t, New(testParams()).Arrange(context.Background(), noRot, nil, testBed()))
	assert.False(t, noRot[0].Arranged, "230mm does not fit 210mm bed depth")

	params := testParams()
	params.AllowRotations = true
	withRot := []model.ArrangePolygon{tall}
	require.NoError(t, New(params).Arrange(context.Background(), withRot, nil, testBed()))
	require.True(t, withRot[0].Arranged)
	assert.InDelta(t, 0, math.Abs(math.Sin(withRot[0].Rotation))-1, 1e-9, "item is turned sideways")
	assert.Empty(t, Verify(withRot, nil, testBed(), params.MinObjDistance))
}

func TestArrange_ProgressMonotonic(t *testing.T) {
	items := manyItems(5, 30, 30)
	params := testParams()
	var seen []int
	params.Progress = func(remaining int) { seen = append(seen, remaining) }

	require.NoError(t, New(params).Arrange(context.Background(), items, nil, testBed()))
	assert.Equal(t, []int{4, 3, 2, 1, 0}, seen)
}

func TestArrange_CancellationLeavesRestUntouched(t *testing.T) {
	const n, k = 6, 2
	items := manyItems(n, 30, 30)
	for i := range items {
		items[i].Translation = geometry.Pt(float64(i), 0)
	}
	original := make([]model.ArrangePolygon, n)
	copy(original, items)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	params := testParams()
	params.Progress = func(remaining int) {
		if remaining == n-k {
			cancel()
		}
	}

	require.NoError(t, New(params).Arrange(ctx, items, nil, testBed()))

	arranged := 0
	for i, it := range items {
		if it.Arranged {
			arranged++
			continue
		}
		assert.Equal(t, original[i], it, "unplaced item must keep its input")
	}
	assert.Equal(t, k, arranged)
	assert.Empty(t, Verify(items[:k], nil, testBed(), params.MinObjDistance))
}

func TestArrange_IdempotentRerun(t *testing.T) {
	items := manyItems(8, 45, 35)
	items = append(items, manyItems(3, 120, 80)...)
	params := testParams()

	require.NoError(t, New(params).Arrange(context.Background(), items, nil, testBed()))
	first := make([]model.ArrangePolygon, len(items))
	copy(first, items)

	require.NoError(t, New(params).Arrange(context.Background(), items, nil, testBed()))
	for i := range items {
		assert.Equal(t, first[i].BedIndex, items[i].BedIndex, items[i].ID)
		assert.Equal(t, first[i].Translation, items[i].Translation, items[i].ID)
	}
}

func TestArrange_ValidLayoutUnchanged(t *testing.T) {
	a := rectItem("A", 30, 30)
	a.Translation = geometry.Pt(100, 80)
	b := rectItem("B", 30, 30)
	b.Translation = geometry.Pt(180, 80)
	c := rectItem("C", 30, 30)
	c.Translation = geometry.Pt(50, 50)
	c.BedIndex = 1
	items := []model.ArrangePolygon{a, b, c}

	require.NoError(t, New(testParams()).Arrange(context.Background(), items, nil, testBed()))

	assert.Equal(t, geometry.Pt(100, 80), items[0].Translation)
	assert.Equal(t, geometry.Pt(180, 80), items[1].Translation)
	assert.Equal(t, geometry.Pt(50, 50), items[2].Translation)
	assert.Equal(t, 1, items[2].BedIndex)
}

func TestArrange_LargerItemOnLaterBedKeepsPlace(t *testing.T) {
	small := rectItem("small", 20, 20)
	small.Translation = geometry.Pt(10, 10)
	big := rectItem("big", 100, 100)
	big.Translation = geometry.Pt(10, 10)
	big.BedIndex = 1
	items := []model.ArrangePolygon{small, big}

	require.NoError(t, New(testParams()).Arrange(context.Background(), items, nil, testBed()))

	assert.Equal(t, 0, items[0].BedIndex)
	assert.Equal(t, geometry.Pt(10, 10), items[0].Translation)
	assert.Equal(t, 1, items[1].BedIndex)
	assert.Equal(t, geometry.Pt(10, 10), items[1].Translation)
}

func TestArrange_KeptItemsReportProgress(t *testing.T) {
	kept := rectItem("kept", 30, 30)
	kept.Translation = geometry.Pt(150, 100)
	kept.BedIndex = 2
	items := []model.ArrangePolygon{kept, rectItem("new", 40, 40)}
	params := testParams()
	var seen []int
	params.Progress = func(remaining int) { seen = append(seen, remaining) }

	require.NoError(t, New(params).Arrange(context.Background(), items, nil, testBed()))

	assert.Equal(t, []int{1, 0}, seen)
	assert.Equal(t, 2, items[0].BedIndex)
	assert.Equal(t, 0, items[1].BedIndex)
	assert.Empty(t, Verify(items, nil, testBed(), params.MinObjDistance))
}

func TestArrange_FixedItemsAvoided(t *testing.T) {
	fixed := rectItem("fixed", 100, 100)
	fixed.Translation = geometry.Pt(6, 6)
	params := testParams()
	items := manyItems(4, 50, 50)

	require.NoError(t, New(params).Arrange(context.Background(), items, []model.ArrangePolygon{fixed}, testBed()))
	assert.Empty(t, Verify(items, []model.ArrangePolygon{fixed}, testBed(), params.MinObjDistance))
	for _, it := range items {
		assert.Equal(t, 0, it.BedIndex)
	}
}

func TestArrange_NonRectangularBed(t *testing.T) {
	// Octagonal bed, 200mm across
	var bed model.BedShape
	for i := 0; i < 8; i++ {
		a := float64(i)*math.Pi/4 + math.Pi/8
		bed = append(bed, model.Point2D{X: 100 + 108*math.Cos(a), Y: 100 + 108*math.Sin(a)})
	}
	params := testParams()
	items := manyItems(6, 40, 40)

	require.NoError(t, New(params).Arrange(context.Background(), items, nil, bed))
	for _, it := range items {
		assert.True(t, it.Arranged, it.ID)
	}
	assert.Empty(t, Verify(items, nil, bed, params.MinObjDistance))
}

func TestArrange_DegenerateFootprint(t *testing.T) {
	bad := model.ArrangePolygon{ID: "bad", Poly: geometry.Polygon{geometry.Pt(0, 0), geometry.Pt(1, 1)}}
	items := []model.ArrangePolygon{rectItem("ok", 10, 10), bad}

	err := New(testParams()).Arrange(context.Background(), items, nil, testBed())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerateFootprint))
	assert.True(t, errors.Is(err, geometry.ErrDegenerate))
	assert.Contains(t, err.Error(), "bad")
}

func TestArrange_DegenerateBed(t *testing.T) {
	bed := model.BedShape{{X: 0, Y: 0}, {X: 10, Y: 0}}
	err := New(testParams()).Arrange(context.Background(), manyItems(1, 5, 5), nil, bed)
	assert.True(t, errors.Is(err, ErrDegenerateFootprint))
}

func TestArrange_EmptyInput(t *testing.T) {
	err := New(testParams()).Arrange(context.Background(), nil, nil, testBed())
	assert.NoError(t, err)
}

func TestArrange_ZeroDistanceStillSeparates(t *testing.T) {
	params := testParams()
	params.MinObjDistance = 0
	items := manyItems(4, 50, 50)

	require.NoError(t, New(params).Arrange(context.Background(), items, nil, testBed()))
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			assert.False(t, geometry.Intersects(items[i].Transformed(), items[j].Transformed()))
		}
	}
}

func TestRotationsFor(t *testing.T) {
	it := rectItem("A", 40, 10)
	it.Rotation = 0.3

	noRot := New(testParams()).rotationsFor(it)
	require.Len(t, noRot, 1)
	assert.Zero(t, noRot[0].angle)

	params := testParams()
	params.AllowRotations = true
	rots := New(params).rotationsFor(it)
	// 4 quarter turns plus the current rotation; the min-box angle is 0
	assert.Len(t, rots, 5)
	for i := 1; i < len(rots); i++ {
		assert.LessOrEqual(t, rots[i-1].area, rots[i].area)
	}
}
