package arrange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/piwi3910/platenest/internal/engine"
	"github.com/piwi3910/platenest/internal/geometry"
	"github.com/piwi3910/platenest/internal/model"
)

// Status messages reported through StatusFunc.
const (
	StatusArranging = "Arranging"
	StatusDone      = "Arranging done."
	StatusCanceled  = "Arranging canceled."
	StatusFailed    = "Could not arrange model objects! Some geometries may be invalid."
)

var (
	// ErrArrangeFailed wraps any error raised while packing.
	ErrArrangeFailed = errors.New("arrange failed")
	// ErrNotPrepared is returned by Process when Prepare did not succeed.
	ErrNotPrepared = errors.New("arrange job not prepared")
)

// StatusFunc receives progress updates: done counts the items handled so
// far out of Job.Count.
type StatusFunc func(done int, msg string)

// Result summarises a finalized run.
type Result struct {
	Beds       int      `json:"beds"`
	Arranged   int      `json:"arranged"`
	Unarranged int      `json:"unarranged"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Job arranges a scene in three phases. Prepare and Finalize read and
// write the scene; Process only touches the job's own partition, bed and
// parameters, all captured by Prepare, and may run on a worker goroutine.
type Job struct {
	Scene *model.Scene
	Mode  Mode

	Status      StatusFunc
	BeforeApply func() // called once before results are written
	Refresh     func() // called after results are written

	partition *Partition
	bed       model.BedShape
	params    engine.Params
	count     int
	distance  float64 // mm
	err       error
	cancelled bool
	processed bool
}

func NewJob(scene *model.Scene, mode Mode) *Job {
	return &Job{Scene: scene, Mode: mode}
}

// Prepare rebuilds the item partition from the current scene and snapshots
// the bed and arrange settings Process will use.
func (j *Job) Prepare() error {
	j.partition, j.err = nil, nil
	j.cancelled, j.processed = false, false

	p, err := Prepare(j.Scene, j.Mode)
	if err != nil {
		j.err = fmt.Errorf("%w: %w", ErrArrangeFailed, err)
		slog.Error("arrange prepare failed", "mode", j.Mode, "error", err)
		return j.err
	}
	j.partition = p
	j.count = p.Count()
	j.bed = append(model.BedShape(nil), j.Scene.Config.BedShape...)
	j.params = j.Params()
	slog.Info("arrange prepared",
		"mode", j.Mode,
		"selected", p.Selected.Len(),
		"fixed", p.Unselected.Len(),
		"unprintable", p.Unprintable.Len())
	return nil
}

// EffectiveDistance returns the gap arrangement keeps between items, in
// mm: the requested distance raised to twice the printer's minimum object
// distance when it is smaller.
func EffectiveDistance(scene *model.Scene) float64 {
	return max(scene.Settings.Distance, 2*scene.Config.MinObjectDistance())
}

// Params returns the engine parameters for the scene's settings.
func (j *Job) Params() engine.Params {
	settings := j.Scene.Settings
	distance := EffectiveDistance(j.Scene)
	if distance > settings.Distance {
		slog.Info("arrange distance raised to printer clearance",
			"requested", settings.Distance, "used", distance)
	}
	j.distance = distance

	params := engine.DefaultParams()
	params.MinObjDistance = geometry.Scaled(distance)
	params.AllowRotations = settings.EnableRotations
	params.Algorithm = settings.Algorithm
	if settings.Rotations > 0 {
		params.Rotations = settings.Rotations
	}
	return params
}

// Process packs the selected items around the fixed ones, then the
// unprintable items on their own. Cancelling ctx stops both passes between
// items.
func (j *Job) Process(ctx context.Context) error {
	if j.partition == nil {
		if j.err != nil {
			return j.err
		}
		return ErrNotPrepared
	}
	p := j.partition
	bed := j.bed
	count := j.count
	unprintable := p.Unprintable.Len()

	params := j.params
	params.Progress = func(remaining int) {
		remaining += unprintable
		if remaining > 0 {
			j.status(count-remaining, StatusArranging)
		}
	}
	err := engine.New(params).Arrange(ctx, p.Selected.Polys, p.Unselected.Polys, bed)

	if err == nil {
		params.Progress = func(remaining int) {
			if remaining > 0 {
				j.status(count-remaining, StatusArranging)
			}
		}
		err = engine.New(params).Arrange(ctx, p.Unprintable.Polys, nil, bed)
	}
	j.processed = true

	if err != nil {
		j.err = fmt.Errorf("%w: %w", ErrArrangeFailed, err)
		slog.Error("arrange failed", "error", err)
		j.status(count, StatusFailed)
		return j.err
	}

	if ctx.Err() != nil {
		j.cancelled = true
		slog.Info("arrange canceled")
		j.status(count, StatusCanceled)
		return nil
	}
	j.status(count, StatusDone)
	return nil
}

// Finalize writes the results to the scene. Nothing is written after a
// failed or cancelled run; the returned bool reports whether anything was
// applied.
func (j *Job) Finalize() (Result, bool) {
	if j.partition == nil || !j.processed || j.err != nil || j.cancelled {
		return Result{}, false
	}
	p := j.partition

	if j.BeforeApply != nil {
		j.BeforeApply()
	}
	beds := p.Apply()

	res := Result{Beds: beds + 1}
	for _, g := range []*Group{&p.Selected, &p.Unprintable} {
		for _, ap := range g.Polys {
			if ap.Arranged {
				res.Arranged++
				if g == &p.Unprintable {
					res.Beds = max(res.Beds, ap.BedIndex+1)
				}
			} else {
				res.Unarranged++
			}
		}
	}
	violations := engine.Verify(p.Selected.Polys, p.Unselected.Polys, j.bed, geometry.Scaled(j.distance))
	res.Warnings = engine.FormatViolationWarnings(violations)

	slog.Info("arrange applied", "beds", res.Beds, "arranged", res.Arranged, "unarranged", res.Unarranged)
	if j.Refresh != nil {
		j.Refresh()
	}
	return res, true
}

// Count returns the number of items the job moves.
func (j *Job) Count() int { return j.count }

// Err returns the error that ended the run, if any.
func (j *Job) Err() error { return j.err }

// Failed reports whether the run hit an error.
func (j *Job) Failed() bool { return j.err != nil }

// Cancelled reports whether Process observed cancellation.
func (j *Job) Cancelled() bool { return j.cancelled }

// Partition returns the partition built by Prepare.
func (j *Job) Partition() *Partition { return j.partition }

func (j *Job) status(done int, msg string) {
	if j.Status != nil {
		j.Status(done, msg)
	}
}
