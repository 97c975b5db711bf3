// Package server exposes a scene, its arrange jobs and its exports over
// HTTP and streams job progress over websockets.
package server

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/piwi3910/platenest/internal/jobs"
	"github.com/piwi3910/platenest/internal/model"
	"github.com/piwi3910/platenest/internal/project"
)

// Server owns one scene. mu guards the scene and its history; the job
// runner takes it while preparing and applying arrangements.
type Server struct {
	mu      sync.Mutex
	scene   *model.Scene
	history *project.History
	runner  *jobs.Runner

	// SceneFile, when set, receives the scene after every applied
	// arrangement.
	SceneFile string
	// Origins are the accepted websocket origin patterns.
	Origins []string
}

func New(scene model.Scene) *Server {
	s := &Server{scene: &scene, history: project.NewHistory()}
	if s.scene.Objects == nil {
		s.scene.Objects = []model.Object{}
	}
	s.runner = jobs.NewRunner(&s.mu)
	return s
}

// Runner returns the server's job runner.
func (s *Server) Runner() *jobs.Runner { return s.runner }

// Scene returns a deep copy of the current scene.
func (s *Server) Scene() model.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := *s.scene
	project.MakeSnapshot(s.scene, "").Restore(&sc)
	return sc
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(recovery)
	r.Use(logger)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/scene", s.getScene).Methods("GET")
	api.HandleFunc("/scene", s.putScene).Methods("PUT")
	api.HandleFunc("/scene/objects", s.addObject).Methods("POST")
	api.HandleFunc("/scene/objects/{index:[0-9]+}", s.deleteObject).Methods("DELETE")
	api.HandleFunc("/scene/import", s.importObjects).Methods("POST")
	api.HandleFunc("/scene/selection", s.putSelection).Methods("PUT")
	api.HandleFunc("/scene/settings", s.putSettings).Methods("PUT")
	api.HandleFunc("/scene/config", s.putConfig).Methods("PUT")
	api.HandleFunc("/scene/printer", s.putPrinter).Methods("PUT")
	api.HandleFunc("/scene/undo", s.undo).Methods("POST")
	api.HandleFunc("/scene/redo", s.redo).Methods("POST")

	api.HandleFunc("/printers", s.listPrinters).Methods("GET")

	api.HandleFunc("/arrange", s.startArrange).Methods("POST")
	api.HandleFunc("/jobs/{id}", s.jobStatus).Methods("GET")
	api.HandleFunc("/jobs/{id}", s.cancelJob).Methods("DELETE")

	api.HandleFunc("/layout", s.getLayout).Methods("GET")
	api.HandleFunc("/export/{format}", s.export).Methods("GET")

	r.HandleFunc("/ws/jobs/{id}", s.streamJob)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes websocket upgrades through to the wrapped writer.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				slog.Error("panic in handler", "path", r.URL.Path, "panic", v)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
