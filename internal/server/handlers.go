package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/piwi3910/platenest/internal/arrange"
	"github.com/piwi3910/platenest/internal/importer"
	"github.com/piwi3910/platenest/internal/jobs"
	"github.com/piwi3910/platenest/internal/model"
	"github.com/piwi3910/platenest/internal/project"
)

const maxUploadSize = 32 << 20

// edit runs fn on the scene under the lock unless an arrange job is
// running. A non-empty label records an undo snapshot first.
func (s *Server) edit(w http.ResponseWriter, label string, fn func(scene *model.Scene) (int, any)) {
	s.mu.Lock()
	if _, running := s.runner.Running(); running {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "an arrange job is running")
		return
	}
	var before project.Snapshot
	if label != "" {
		before = project.MakeSnapshot(s.scene, label)
	}
	status, body := fn(s.scene)
	if label != "" && status < 300 {
		s.history.Push(before)
	}
	s.mu.Unlock()
	writeJSON(w, status, body)
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(v)
}

func (s *Server) getScene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Scene())
}

func (s *Server) putScene(w http.ResponseWriter, r *http.Request) {
	scene := model.NewScene()
	if err := decode(r, &scene); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if scene.Objects == nil {
		scene.Objects = []model.Object{}
	}
	s.edit(w, "Replace scene", func(cur *model.Scene) (int, any) {
		*cur = scene
		return http.StatusOK, scene
	})
}

type addObjectRequest struct {
	Name    string              `json:"name"`
	Outline model.Outline       `json:"outline"`
	Count   int                 `json:"count"`
	Config  model.ConfigOptions `json:"config,omitempty"`
}

func (s *Server) addObject(w http.ResponseWriter, r *http.Request) {
	var req addObjectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Outline) < 3 {
		writeError(w, http.StatusBadRequest, "outline needs at least 3 points")
		return
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	if req.Name == "" {
		req.Name = "Object"
	}
	obj := model.NewObject(req.Name, req.Outline, req.Count)
	obj.Config = req.Config

	s.edit(w, "Add "+req.Name, func(scene *model.Scene) (int, any) {
		scene.Objects = append(scene.Objects, obj)
		return http.StatusCreated, obj
	})
}

func (s *Server) deleteObject(w http.ResponseWriter, r *http.Request) {
	idx, _ := strconv.Atoi(mux.Vars(r)["index"])
	s.edit(w, "Delete object", func(scene *model.Scene) (int, any) {
		if idx >= len(scene.Objects) {
			return http.StatusNotFound, map[string]string{"error": "object not found"}
		}
		scene.Objects = append(scene.Objects[:idx], scene.Objects[idx+1:]...)
		scene.Selection = model.Selection{}
		return http.StatusOK, map[string]int{"objects": len(scene.Objects)}
	})
}

type importResponse struct {
	Added    int      `json:"added"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// importObjects reads an object list from the request body. The format
// query parameter selects csv (default), xlsx or dxf.
func (s *Server) importObjects(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	var res importer.ImportResult
	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		res = importer.ImportCSVFromReader(bytes.NewReader(data), importer.DetectCSVDelimiter(data))
	case "xlsx", "dxf":
		res, err = importFile(data, format)
		if err != nil {
			slog.Error("import upload", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}

	resp := importResponse{Added: len(res.Objects), Errors: res.Errors, Warnings: res.Warnings}
	if len(res.Objects) == 0 {
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	s.edit(w, "Import", func(scene *model.Scene) (int, any) {
		scene.Objects = append(scene.Objects, res.Objects...)
		return http.StatusOK, resp
	})
}

// importFile spools an upload to disk for the file based importers.
func importFile(data []byte, format string) (importer.ImportResult, error) {
	dir, err := os.MkdirTemp("", "platenest-import")
	if err != nil {
		return importer.ImportResult{}, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "upload."+format)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return importer.ImportResult{}, err
	}
	if format == "dxf" {
		return importer.ImportDXF(path), nil
	}
	return importer.ImportExcel(path), nil
}

func (s *Server) putSelection(w http.ResponseWriter, r *http.Request) {
	var sel model.Selection
	if err := decode(r, &sel); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.edit(w, "", func(scene *model.Scene) (int, any) {
		for _, e := range sel.Entries {
			if e.ObjectIndex < 0 || e.ObjectIndex >= len(scene.Objects) {
				return http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("no object %d", e.ObjectIndex)}
			}
		}
		scene.Selection = sel
		return http.StatusOK, sel
	})
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.ArrangeSettings
	if err := decode(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if settings.Distance < 0 || settings.Rotations < 0 {
		writeError(w, http.StatusBadRequest, "distance and rotations must not be negative")
		return
	}
	switch settings.Algorithm {
	case "":
		settings.Algorithm = model.AlgorithmGreedy
	case model.AlgorithmGreedy, model.AlgorithmGenetic:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown algorithm %q", settings.Algorithm))
		return
	}
	s.edit(w, "", func(scene *model.Scene) (int, any) {
		scene.Settings = settings
		return http.StatusOK, settings
	})
}

func (s *Server) putConfig(w http.ResponseWriter, r *http.Request) {
	var cfg model.PrintConfig
	if err := decode(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(cfg.BedShape) < 3 {
		writeError(w, http.StatusBadRequest, "bed shape needs at least 3 points")
		return
	}
	s.edit(w, "", func(scene *model.Scene) (int, any) {
		scene.Config = cfg
		return http.StatusOK, cfg
	})
}

func (s *Server) putPrinter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	profile := model.GetProfile(req.Name)
	if profile.Name != req.Name {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown printer %q", req.Name))
		return
	}
	s.edit(w, "", func(scene *model.Scene) (int, any) {
		scene.Config = profile.Config
		return http.StatusOK, profile
	})
}

func (s *Server) listPrinters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.AllProfiles())
}

func (s *Server) undo(w http.ResponseWriter, r *http.Request) {
	s.edit(w, "", func(scene *model.Scene) (int, any) {
		snap, ok := s.history.Undo(project.MakeSnapshot(scene, "Undo"))
		if !ok {
			return http.StatusConflict, map[string]string{"error": "nothing to undo"}
		}
		snap.Restore(scene)
		return http.StatusOK, map[string]string{"undone": snap.Label}
	})
}

func (s *Server) redo(w http.ResponseWriter, r *http.Request) {
	s.edit(w, "", func(scene *model.Scene) (int, any) {
		snap, ok := s.history.Redo(project.MakeSnapshot(scene, "Redo"))
		if !ok {
			return http.StatusConflict, map[string]string{"error": "nothing to redo"}
		}
		snap.Restore(scene)
		return http.StatusOK, map[string]string{"redone": snap.Label}
	})
}

// startArrange starts an arrange job. The mode query parameter selects
// all (default) or selection.
func (s *Server) startArrange(w http.ResponseWriter, r *http.Request) {
	mode := arrange.ModeAll
	switch m := r.URL.Query().Get("mode"); m {
	case "", arrange.ModeAll.String():
	case arrange.ModeSelection.String():
		mode = arrange.ModeSelection
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", m))
		return
	}

	job := arrange.NewJob(s.scene, mode)
	// Both hooks run inside Finalize, with mu held by the runner.
	job.BeforeApply = func() {
		s.history.Push(project.MakeSnapshot(s.scene, "Arrange"))
	}
	job.Refresh = func() {
		if s.SceneFile == "" {
			return
		}
		if err := project.Save(s.SceneFile, *s.scene); err != nil {
			slog.Error("save scene", "path", s.SceneFile, "error", err)
		}
	}

	// Jobs outlive the request that started them.
	id, err := s.runner.Start(context.Background(), job)
	if errors.Is(err, jobs.ErrBusy) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	st, _ := s.runner.Status(id)
	writeJSON(w, http.StatusAccepted, st)
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := s.runner.Status(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, jobs.ErrUnknownJob.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.runner.Status(id); !ok {
		writeError(w, http.StatusNotFound, jobs.ErrUnknownJob.Error())
		return
	}
	if !s.runner.Cancel(id) {
		writeError(w, http.StatusConflict, "job already finished")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "state": "cancelling"})
}
