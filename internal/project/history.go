package project

import "github.com/piwi3910/platenest/internal/model"

const defaultMaxDepth = 50

// Snapshot captures the scene's objects and wipe tower at a point in time.
type Snapshot struct {
	Objects   []model.Object
	WipeTower *model.WipeTower
	Label     string // Human-readable description (e.g. "Arrange")
}

// History manages undo/redo stacks of scene snapshots.
type History struct {
	undoStack []Snapshot
	redoStack []Snapshot
	maxDepth  int
}

// NewHistory creates a History with the default max depth of 50.
func NewHistory() *History {
	return &History{
		maxDepth: defaultMaxDepth,
	}
}

// Push saves a snapshot onto the undo stack and clears the redo stack.
// This should be called before the modification is applied.
func (h *History) Push(s Snapshot) {
	h.undoStack = append(h.undoStack, s)
	if len(h.undoStack) > h.maxDepth {
		h.undoStack = h.undoStack[len(h.undoStack)-h.maxDepth:]
	}
	h.redoStack = nil
}

// Undo pops the most recent snapshot from the undo stack and pushes
// the current state onto the redo stack. Returns the snapshot to restore
// and true, or an empty snapshot and false if nothing to undo.
func (h *History) Undo(current Snapshot) (Snapshot, bool) {
	if len(h.undoStack) == 0 {
		return Snapshot{}, false
	}
	last := h.undoStack[len(h.undoStack)-1]
	h.undoStack = h.undoStack[:len(h.undoStack)-1]
	h.redoStack = append(h.redoStack, current)
	return last, true
}

// Redo pops the most recent snapshot from the redo stack and pushes
// the current state onto the undo stack.
func (h *History) Redo(current Snapshot) (Snapshot, bool) {
	if len(h.redoStack) == 0 {
		return Snapshot{}, false
	}
	last := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	h.undoStack = append(h.undoStack, current)
	return last, true
}

func (h *History) CanUndo() bool { return len(h.undoStack) > 0 }

func (h *History) CanRedo() bool { return len(h.redoStack) > 0 }

// Labels returns the labels on the undo stack, oldest first.
func (h *History) Labels() []string {
	out := make([]string, len(h.undoStack))
	for i, s := range h.undoStack {
		out[i] = s.Label
	}
	return out
}

// Clear removes all undo and redo history.
func (h *History) Clear() {
	h.undoStack = nil
	h.redoStack = nil
}

// copyObjects returns a deep copy of objects.
func copyObjects(objects []model.Object) []model.Object {
	if objects == nil {
		return nil
	}
	cp := make([]model.Object, len(objects))
	for i, o := range objects {
		cp[i] = o
		cp[i].Outline = append(model.Outline(nil), o.Outline...)
		cp[i].Instances = append([]model.Instance(nil), o.Instances...)
		if o.Config != nil {
			cp[i].Config = make(model.ConfigOptions, len(o.Config))
			for k, v := range o.Config {
				cp[i].Config[k] = v
			}
		}
	}
	return cp
}

// MakeSnapshot copies the scene state with a label.
func MakeSnapshot(scene *model.Scene, label string) Snapshot {
	s := Snapshot{Objects: copyObjects(scene.Objects), Label: label}
	if scene.WipeTower != nil {
		wt := *scene.WipeTower
		s.WipeTower = &wt
	}
	return s
}

// Restore writes a snapshot back into the scene.
func (s Snapshot) Restore(scene *model.Scene) {
	scene.Objects = copyObjects(s.Objects)
	if s.WipeTower != nil {
		wt := *s.WipeTower
		scene.WipeTower = &wt
	} else {
		scene.WipeTower = nil
	}
}
