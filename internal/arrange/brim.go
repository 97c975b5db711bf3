package arrange

import (
	"errors"
	"fmt"

	"github.com/piwi3910/platenest/internal/geometry"
	"github.com/piwi3910/platenest/internal/model"
)

// ErrBrimInflation is returned when growing a footprint by its brim does
// not produce a single polygon.
var ErrBrimInflation = errors.New("brim inflation failed")

// AddBrim grows the footprint of ap by the part of the brim that is not
// already covered by half the extruder clearance. Nothing changes when all
// objects share one brim or the brim fits inside the clearance.
func AddBrim(ap *model.ArrangePolygon, objCfg model.ConfigOptions, cfg model.PrintConfig) error {
	if cfg.CompleteObjectsOneBrim {
		return nil
	}

	width := cfg.BrimWidth
	if w, ok := objCfg.Option(model.BrimWidthOption); ok {
		width = w
	}
	delta := geometry.Scaled(width - cfg.ExtruderClearanceRadius/2)
	if delta <= 0 {
		return nil
	}

	brimmed := geometry.Offset(ap.Poly, delta)
	if brimmed == nil {
		return fmt.Errorf("%w: %s (%s)", ErrBrimInflation, ap.Label, ap.ID)
	}
	ap.Poly = brimmed
	return nil
}
