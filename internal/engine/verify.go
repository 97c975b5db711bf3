package engine

import (
	"fmt"

	"github.com/piwi3910/platenest/internal/geometry"
	"github.com/piwi3910/platenest/internal/model"
)

// ViolationKind classifies a layout problem.
type ViolationKind int

const (
	ViolationClearance ViolationKind = iota // two footprints closer than the minimum distance
	ViolationBedEdge                        // footprint too close to the bed edge
	ViolationOutside                        // footprint leaves the bed
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationBedEdge:
		return "bed edge"
	case ViolationOutside:
		return "outside bed"
	default:
		return "clearance"
	}
}

// Violation describes one place where an arranged layout breaks the
// clearance rules.
type Violation struct {
	Kind       ViolationKind
	BedIndex   int
	ItemID     string
	ItemLabel  string
	OtherID    string // empty for bed violations
	OtherLabel string
	Distance   float64 // mm
}

// Verify checks an arranged layout. Every placed movable item is checked
// against the bed outline, against the other movable items and against the
// fixed items on the same bed. Fixed pairs are not checked. Translations
// are bed relative, as produced by Arrange.
func Verify(items, fixed []model.ArrangePolygon, bed model.BedShape, minDist geometry.Coord) []Violation {
	bedPoly := bed.Polygon()
	minDist = max(minDist, minClearance)
	limit := float64(minDist) - clearanceTolerance

	type placed struct {
		ap    model.ArrangePolygon
		poly  geometry.Polygon
		box   geometry.Box
		fixed bool
	}
	var movable []placed
	byBed := map[int][]placed{}
	for _, it := range items {
		if it.BedIndex < 0 {
			continue
		}
		poly := it.Transformed()
		p := placed{ap: it, poly: poly, box: poly.BoundingBox()}
		movable = append(movable, p)
		byBed[it.BedIndex] = append(byBed[it.BedIndex], p)
	}
	for _, it := range fixed {
		if it.BedIndex < 0 {
			continue
		}
		poly := it.Transformed()
		byBed[it.BedIndex] = append(byBed[it.BedIndex], placed{ap: it, poly: poly, box: poly.BoundingBox(), fixed: true})
	}

	var violations []Violation
	for _, m := range movable {
		inside := true
		for _, pt := range m.poly {
			if !bedPoly.Contains(pt) {
				inside = false
				break
			}
		}
		if !inside {
			violations = append(violations, Violation{
				Kind:      ViolationOutside,
				BedIndex:  m.ap.BedIndex,
				ItemID:    m.ap.ID,
				ItemLabel: m.ap.Label,
			})
		} else if d := geometry.BoundaryDistance(bedPoly, m.poly); d < limit {
			violations = append(violations, Violation{
				Kind:      ViolationBedEdge,
				BedIndex:  m.ap.BedIndex,
				ItemID:    m.ap.ID,
				ItemLabel: m.ap.Label,
				Distance:  geometry.Unscaled(geometry.Coord(d)),
			})
		}

		for _, o := range byBed[m.ap.BedIndex] {
			if o.ap.ID == m.ap.ID && !o.fixed {
				continue
			}
			if m.box.Apart(o.box, minDist) {
				continue
			}
			if d := geometry.Distance(m.poly, o.poly); d < limit {
				violations = append(violations, Violation{
					Kind:       ViolationClearance,
					BedIndex:   m.ap.BedIndex,
					ItemID:     m.ap.ID,
					ItemLabel:  m.ap.Label,
					OtherID:    o.ap.ID,
					OtherLabel: o.ap.Label,
					Distance:   geometry.Unscaled(geometry.Coord(d)),
				})
			}
		}
	}
	return deduplicateViolations(violations)
}

// deduplicateViolations keeps one violation per unordered item pair.
func deduplicateViolations(violations []Violation) []Violation {
	type key struct {
		kind ViolationKind
		a, b string
	}
	seen := make(map[key]bool)
	var result []Violation
	for _, v := range violations {
		a, b := v.ItemID, v.OtherID
		if b != "" && b < a {
			a, b = b, a
		}
		k := key{v.Kind, a, b}
		if !seen[k] {
			seen[k] = true
			result = append(result, v)
		}
	}
	return result
}

// FormatViolationWarnings produces human-readable warning messages.
func FormatViolationWarnings(violations []Violation) []string {
	var warnings []string
	for _, v := range violations {
		var msg string
		switch v.Kind {
		case ViolationOutside:
			msg = fmt.Sprintf("Bed %d: %q extends beyond the bed", v.BedIndex+1, v.ItemLabel)
		case ViolationBedEdge:
			msg = fmt.Sprintf("Bed %d: %q is %.2f mm from the bed edge", v.BedIndex+1, v.ItemLabel, v.Distance)
		default:
			msg = fmt.Sprintf("Bed %d: %q and %q are only %.2f mm apart", v.BedIndex+1, v.ItemLabel, v.OtherLabel, v.Distance)
		}
		warnings = append(warnings, msg)
	}
	return warnings
}
