package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/piwi3910/platenest/internal/export"
)

type layoutResponse struct {
	Name     string       `json:"name"`
	Beds     []bedSummary `json:"beds"`
	Warnings []string     `json:"warnings"`
}

type bedSummary struct {
	Index       int     `json:"index"`
	Title       string  `json:"title"`
	Objects     int     `json:"objects"`
	Utilization float64 `json:"utilization"`
}

func (s *Server) layout() export.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return export.BuildLayout(s.scene)
}

func (s *Server) getLayout(w http.ResponseWriter, r *http.Request) {
	l := s.layout()
	resp := layoutResponse{Name: l.Name, Beds: []bedSummary{}, Warnings: l.Warnings}
	for i, bed := range l.Beds {
		resp.Beds = append(resp.Beds, bedSummary{
			Index:       i,
			Title:       l.BedTitle(i),
			Objects:     len(bed.Items),
			Utilization: l.Utilization(i),
		})
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// fileExporters write a layout to a path.
var fileExporters = map[string]struct {
	contentType string
	write       func(path string, l export.Layout) error
}{
	"pdf":    {"application/pdf", export.ExportPDF},
	"labels": {"application/pdf", export.ExportLabels},
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// export serves the current layout as pdf, labels, xlsx, chart (HTML) or
// preview (WebP of the bed given by the bed query parameter, from 1).
func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]
	l := s.layout()
	if l.ItemCount() == 0 {
		writeError(w, http.StatusConflict, export.ErrEmptyLayout.Error())
		return
	}

	switch format {
	case "chart":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := export.RenderChart(w, l); err != nil {
			slog.Error("render chart", "error", err)
		}
		return
	case "preview":
		bed := 1
		if v := r.URL.Query().Get("bed"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > len(l.Beds) {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("bed must be between 1 and %d", len(l.Beds)))
				return
			}
			bed = n
		}
		w.Header().Set("Content-Type", "image/webp")
		if err := export.EncodeBedWebP(w, l, bed-1, export.DefaultPreviewOptions()); err != nil {
			slog.Error("render preview", "error", err)
		}
		return
	case "xlsx":
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="layout.xlsx"`)
		if err := export.WriteXLSX(w, l); err != nil {
			slog.Error("export", "format", format, "error", err)
		}
		return
	}

	exp, ok := fileExporters[format]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown export format %q", format))
		return
	}
	dir, err := os.MkdirTemp("", "platenest-export")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "layout."+extension(format))
	if err := exp.write(path, l); err != nil {
		slog.Error("export", "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", exp.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "layout."+extension(format)))
	w.Write(data)
}

func extension(format string) string {
	if format == "labels" {
		return "pdf"
	}
	return format
}
