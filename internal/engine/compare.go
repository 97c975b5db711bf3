package engine

import (
	"context"
	"fmt"

	"github.com/piwi3910/platenest/internal/geometry"
	"github.com/piwi3910/platenest/internal/model"
)

// ComparisonScenario defines a named set of parameters to compare.
type ComparisonScenario struct {
	Name   string
	Params Params
}

// ComparisonResult holds the arrangement and computed statistics for a
// single scenario.
type ComparisonResult struct {
	Scenario   ComparisonScenario
	Items      []model.ArrangePolygon
	BedsUsed   int
	Unarranged int
	Density    float64 // footprint area over used bed area, percent
	Err        error
}

// CompareScenarios arranges a copy of items for each scenario and returns
// the results in scenario order. Progress callbacks of the scenarios are
// ignored.
func CompareScenarios(ctx context.Context, scenarios []ComparisonScenario, items, fixed []model.ArrangePolygon, bed model.BedShape) []ComparisonResult {
	results := make([]ComparisonResult, 0, len(scenarios))
	bedArea := bed.Polygon().AbsArea()

	for _, scenario := range scenarios {
		params := scenario.Params
		params.Progress = nil

		work := make([]model.ArrangePolygon, len(items))
		copy(work, items)

		res := ComparisonResult{Scenario: scenario, Items: work}
		if err := New(params).Arrange(ctx, work, fixed, bed); err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}

		used := map[int]bool{}
		var footprint float64
		for _, it := range work {
			if !it.Arranged {
				res.Unarranged++
				continue
			}
			used[it.BedIndex] = true
			footprint += it.Poly.AbsArea()
		}
		res.BedsUsed = len(used)
		if res.BedsUsed > 0 && bedArea > 0 {
			res.Density = footprint / (float64(res.BedsUsed) * bedArea) * 100
		}
		results = append(results, res)
	}
	return results
}

// BuildDefaultScenarios generates comparison scenarios based on the
// current parameters, varying rotation and algorithm choices.
func BuildDefaultScenarios(base Params) []ComparisonScenario {
	scenarios := []ComparisonScenario{
		{Name: "Current Settings", Params: base},
	}

	// Scenario: toggle rotations
	alt := base
	alt.AllowRotations = !base.AllowRotations
	name := "Rotations Enabled"
	if base.AllowRotations {
		name = "Rotations Disabled"
	}
	scenarios = append(scenarios, ComparisonScenario{Name: name, Params: alt})

	// Scenario: genetic rotation search
	if base.Algorithm != model.AlgorithmGenetic || !base.AllowRotations {
		ga := base
		ga.AllowRotations = true
		ga.Algorithm = model.AlgorithmGenetic
		scenarios = append(scenarios, ComparisonScenario{Name: "Genetic Rotations", Params: ga})
	}

	// Scenario: finer rotation steps
	if base.Rotations < 8 {
		fine := base
		fine.AllowRotations = true
		fine.Rotations = 8
		scenarios = append(scenarios, ComparisonScenario{Name: "8 Rotation Steps", Params: fine})
	}

	// Scenario: wider spacing for easier part removal
	wide := base
	wide.MinObjDistance = base.MinObjDistance + geometry.Scaled(5)
	scenarios = append(scenarios, ComparisonScenario{
		Name:   fmt.Sprintf("Spacing %.1fmm", geometry.Unscaled(wide.MinObjDistance)),
		Params: wide,
	})

	return scenarios
}
