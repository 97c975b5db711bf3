// PlateNest: arranges 3D printer objects on one or more virtual beds.
//
// Build:
//
//	go build -o platenest ./cmd/platenest
//
// Example:
//
//	platenest -import parts.csv -printer "Original Prusa MK4" -out plate.platenest -pdf plate.pdf
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/piwi3910/platenest/internal/arrange"
	"github.com/piwi3910/platenest/internal/engine"
	"github.com/piwi3910/platenest/internal/export"
	"github.com/piwi3910/platenest/internal/importer"
	"github.com/piwi3910/platenest/internal/model"
	"github.com/piwi3910/platenest/internal/project"
)

type options struct {
	ScenePath   string
	ImportPath  string
	Printer     string
	Mode        string
	Distance    float64
	Rotations   int
	Algorithm   string
	NoArrange   bool
	Compare     bool
	OutPath     string
	PDFPath     string
	LabelsPath  string
	XLSXPath    string
	ChartPath   string
	PreviewDir  string
	ConfigPath  string
	ProfilePath string
	BackupPath  string
}

func main() {
	var o options
	flag.StringVar(&o.ScenePath, "scene", "", "Scene file to load (.platenest)")
	flag.StringVar(&o.ImportPath, "import", "", "Object list to import (.csv, .xlsx or .dxf)")
	flag.StringVar(&o.Printer, "printer", "", "Printer profile (default: from app config)")
	flag.StringVar(&o.Mode, "mode", "all", "Arrange all objects or only the selection (all|selection)")
	flag.Float64Var(&o.Distance, "distance", -1, "Minimum distance between objects in mm")
	flag.IntVar(&o.Rotations, "rotations", -1, "Rotation steps per turn, 0 disables rotation")
	flag.StringVar(&o.Algorithm, "algorithm", "", "Arrange algorithm (greedy|genetic)")
	flag.BoolVar(&o.NoArrange, "no-arrange", false, "Skip arranging, only import and export")
	flag.BoolVar(&o.Compare, "compare", false, "Compare arrange scenarios before arranging")
	flag.StringVar(&o.OutPath, "out", "", "Write the resulting scene to this file")
	flag.StringVar(&o.PDFPath, "pdf", "", "Write a bed layout PDF")
	flag.StringVar(&o.LabelsPath, "labels", "", "Write a PDF of QR labels")
	flag.StringVar(&o.XLSXPath, "xlsx", "", "Write a placement spreadsheet")
	flag.StringVar(&o.ChartPath, "chart", "", "Write an HTML bed utilization chart")
	flag.StringVar(&o.PreviewDir, "previews", "", "Write one WebP preview per bed into this directory")
	flag.StringVar(&o.ConfigPath, "config", project.DefaultConfigPath(), "App config file")
	flag.StringVar(&o.ProfilePath, "profiles", "", "Custom printer profiles file (default: user config dir)")
	flag.StringVar(&o.BackupPath, "backup", "", "Write app config and custom printers to this backup file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, out io.Writer) error {
	appCfg, err := project.LoadAppConfig(o.ConfigPath)
	if err != nil {
		slog.Warn("app config unreadable, using defaults", "path", o.ConfigPath, "error", err)
		appCfg = model.DefaultAppConfig()
	}
	if err := loadProfiles(o.ProfilePath); err != nil {
		slog.Warn("custom printer profiles not loaded", "error", err)
	}

	scene, err := loadScene(o, appCfg)
	if err != nil {
		return err
	}
	if err := applyOptions(&scene, o); err != nil {
		return err
	}
	if o.ImportPath != "" {
		if err := importObjects(&scene, o.ImportPath, out); err != nil {
			return err
		}
	}
	if len(scene.Objects) == 0 {
		return errors.New("scene has no objects; use -scene or -import")
	}

	mode, err := parseMode(o.Mode)
	if err != nil {
		return err
	}
	if o.Compare {
		if err := compareScenarios(ctx, &scene, mode, out); err != nil {
			return err
		}
	}
	if !o.NoArrange {
		if err := arrangeScene(ctx, &scene, mode, out); err != nil {
			return err
		}
	}

	if o.OutPath != "" {
		if err := project.Save(o.OutPath, scene); err != nil {
			return fmt.Errorf("saving scene: %w", err)
		}
		fmt.Fprintf(out, "Scene saved to %s\n", o.OutPath)
		appCfg.AddRecentScene(o.OutPath, 10)
		if err := project.SaveAppConfig(o.ConfigPath, appCfg); err != nil {
			slog.Warn("app config not saved", "path", o.ConfigPath, "error", err)
		}
	}
	if o.BackupPath != "" {
		if err := project.ExportAllData(o.BackupPath, appCfg, model.CustomProfiles); err != nil {
			return err
		}
		fmt.Fprintf(out, "Backup written to %s\n", o.BackupPath)
	}
	return exportLayout(export.BuildLayout(&scene), o, out)
}

func loadProfiles(path string) error {
	if path == "" {
		var err error
		if path, err = project.DefaultProfilesPath(); err != nil {
			return err
		}
	}
	return project.LoadCustomProfilesInto(path)
}

func loadScene(o options, appCfg model.AppConfig) (model.Scene, error) {
	if o.ScenePath == "" {
		return appCfg.NewSceneFromConfig(), nil
	}
	scene, err := project.Load(o.ScenePath)
	if err != nil {
		return model.Scene{}, fmt.Errorf("loading scene: %w", err)
	}
	return scene, nil
}

func applyOptions(scene *model.Scene, o options) error {
	if o.Printer != "" {
		profile := model.GetProfile(o.Printer)
		if profile.Name != o.Printer {
			return fmt.Errorf("unknown printer %q (available: %s)", o.Printer, strings.Join(model.GetProfileNames(), ", "))
		}
		scene.Config = profile.Config
	}
	if o.Distance >= 0 {
		scene.Settings.Distance = o.Distance
	}
	if o.Rotations >= 0 {
		scene.Settings.EnableRotations = o.Rotations > 0
		scene.Settings.Rotations = o.Rotations
	}
	switch model.Algorithm(o.Algorithm) {
	case "":
	case model.AlgorithmGreedy, model.AlgorithmGenetic:
		scene.Settings.Algorithm = model.Algorithm(o.Algorithm)
	default:
		return fmt.Errorf("unknown algorithm %q", o.Algorithm)
	}
	return nil
}

func importObjects(scene *model.Scene, path string, out io.Writer) error {
	var res importer.ImportResult
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		res = importer.ImportCSV(path)
	case ".xlsx":
		res = importer.ImportExcel(path)
	case ".dxf":
		res = importer.ImportDXF(path)
	default:
		return fmt.Errorf("unsupported import file %q", path)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", w)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(out, "Skipped: %s\n", e)
	}
	if len(res.Objects) == 0 {
		return fmt.Errorf("no objects imported from %s", path)
	}
	scene.Objects = append(scene.Objects, res.Objects...)
	fmt.Fprintf(out, "Imported %d objects from %s\n", len(res.Objects), path)
	return nil
}

func parseMode(s string) (arrange.Mode, error) {
	switch s {
	case "", arrange.ModeAll.String():
		return arrange.ModeAll, nil
	case arrange.ModeSelection.String():
		return arrange.ModeSelection, nil
	}
	return arrange.ModeAll, fmt.Errorf("unknown mode %q", s)
}

// compareScenarios arranges copies of the scene's items under a few
// parameter variations and prints a summary. The scene is not modified.
func compareScenarios(ctx context.Context, scene *model.Scene, mode arrange.Mode, out io.Writer) error {
	p, err := arrange.Prepare(scene, mode)
	if err != nil {
		return err
	}
	scenarios := engine.BuildDefaultScenarios(arrange.NewJob(scene, mode).Params())
	results := engine.CompareScenarios(ctx, scenarios, p.Selected.Polys, p.Unselected.Polys, scene.Config.BedShape)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Scenario\tBeds\tUnplaced\tDensity")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\terror: %v\t\t\n", r.Scenario.Name, r.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\n", r.Scenario.Name, r.BedsUsed, r.Unarranged, r.Density)
	}
	return tw.Flush()
}

func arrangeScene(ctx context.Context, scene *model.Scene, m arrange.Mode, out io.Writer) error {
	job := arrange.NewJob(scene, m)
	job.Status = func(done int, msg string) {
		slog.Info(msg, "done", done, "total", job.Count())
	}
	if err := job.Prepare(); err != nil {
		return err
	}
	if err := job.Process(ctx); err != nil {
		return err
	}
	res, ok := job.Finalize()
	if !ok {
		return errors.New(arrange.StatusCanceled)
	}
	fmt.Fprintf(out, "Arranged %d objects on %d beds", res.Arranged, res.Beds)
	if res.Unarranged > 0 {
		fmt.Fprintf(out, ", %d did not fit", res.Unarranged)
	}
	fmt.Fprintln(out)
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", w)
	}
	return nil
}

func exportLayout(l export.Layout, o options, out io.Writer) error {
	files := []struct {
		path  string
		write func(string, export.Layout) error
	}{
		{o.PDFPath, export.ExportPDF},
		{o.LabelsPath, export.ExportLabels},
		{o.XLSXPath, export.ExportXLSX},
		{o.ChartPath, export.ExportChart},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		if err := f.write(f.path, l); err != nil {
			return fmt.Errorf("exporting %s: %w", f.path, err)
		}
		fmt.Fprintf(out, "Wrote %s\n", f.path)
	}
	if o.PreviewDir != "" {
		paths, err := export.ExportPreviews(o.PreviewDir, l, export.DefaultPreviewOptions())
		if err != nil {
			return fmt.Errorf("exporting previews: %w", err)
		}
		fmt.Fprintf(out, "Wrote %d previews to %s\n", len(paths), o.PreviewDir)
	}
	return nil
}
