package importer

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/piwi3910/platenest/internal/model"
	"github.com/xuri/excelize/v2"
	"github.com/yofu/dxf"
)

// ─── DetectCSVDelimiter Tests ──────────────────────────────

func TestDetectCSVDelimiter(t *testing.T) {
	cases := map[string]rune{
		"Name,Width,Height,Qty\nClip,20,10,2\nHook,40,30,1\n":       ',',
		"Name;Width;Height;Qty\nClip;20;10;2\nHook;40;30;1\n":       ';',
		"Name\tWidth\tHeight\tQty\nClip\t20\t10\t2\nHook\t40\t30\t1\n": '\t',
		"Name|Width|Height|Qty\nClip|20|10|2\nHook|40|30|1\n":       '|',
	}
	for data, want := range cases {
		if got := DetectCSVDelimiter([]byte(data)); got != want {
			t.Errorf("expected %q delimiter, got %q", want, got)
		}
	}
}

// ─── DetectColumns Tests ───────────────────────────────────

func TestDetectColumns_StandardHeaders(t *testing.T) {
	mapping, isHeader := DetectColumns([]string{"Name", "Width", "Height", "Quantity", "Brim", "Printable"})
	if !isHeader {
		t.Fatal("expected header to be detected")
	}
	want := ColumnMapping{Label: 0, Width: 1, Height: 2, Quantity: 3, Brim: 4, Printable: 5}
	if mapping != want {
		t.Errorf("expected %+v, got %+v", want, mapping)
	}
}

func TestDetectColumns_AliasesAndOrder(t *testing.T) {
	mapping, isHeader := DetectColumns([]string{"COPIES", "Size Y", "Model", "size x", "brim width"})
	if !isHeader {
		t.Fatal("expected header to be detected")
	}
	if mapping.Quantity != 0 || mapping.Height != 1 || mapping.Label != 2 || mapping.Width != 3 || mapping.Brim != 4 {
		t.Errorf("unexpected mapping %+v", mapping)
	}
	if mapping.Printable != -1 {
		t.Errorf("expected no printable column, got %d", mapping.Printable)
	}
}

func TestDetectColumns_NoHeader(t *testing.T) {
	mapping, isHeader := DetectColumns([]string{"Clip", "20", "10", "2"})
	if isHeader {
		t.Error("expected no header")
	}
	if mapping.Label != 0 || mapping.Width != 1 || mapping.Height != 2 || mapping.Quantity != 3 {
		t.Errorf("expected positional mapping, got %+v", mapping)
	}
}

// ─── CSV Import Tests ──────────────────────────────────────

func TestImportCSVFromReader_WithHeaders(t *testing.T) {
	data := "Name,Width,Height,Qty,Brim\nClip,20,10,3,\nBase,120.5,80,1,5\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',')

	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(result.Objects))
	}

	clip := result.Objects[0]
	if clip.Name != "Clip" || len(clip.Instances) != 3 {
		t.Errorf("unexpected first object %q with %d instances", clip.Name, len(clip.Instances))
	}
	if _, ok := clip.Config.Option(model.BrimWidthOption); ok {
		t.Error("empty brim cell should not set an override")
	}

	base := result.Objects[1]
	_, max := base.Outline.BoundingBox()
	if max.X != 120.5 || max.Y != 80 {
		t.Errorf("expected 120.5 x 80 outline, got %v", max)
	}
	if brim, ok := base.Config.Option(model.BrimWidthOption); !ok || brim != 5 {
		t.Errorf("expected brim override 5, got %v (%v)", brim, ok)
	}
}

func TestImportCSVFromReader_WithoutHeaders(t *testing.T) {
	result := ImportCSVFromReader(strings.NewReader("Clip,20,10,2\nHook,40,30,1\n"), ',')
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(result.Objects))
	}
}

func TestImportCSVFromReader_QuantityDefaultsToOne(t *testing.T) {
	result := ImportCSVFromReader(strings.NewReader("Name;Width;Height\nPlate;50;50\n"), ';')
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Objects[0].Instances) != 1 {
		t.Errorf("expected 1 instance, got %d", len(result.Objects[0].Instances))
	}
}

func TestImportCSVFromReader_Printable(t *testing.T) {
	data := "Name,Width,Height,Qty,Printable\nA,10,10,2,no\nB,10,10,1,yes\nC,10,10,1,maybe\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',')

	if len(result.Objects) != 3 {
		t.Fatalf("expected 3 objects, got %d", len(result.Objects))
	}
	for _, inst := range result.Objects[0].Instances {
		if inst.Printable {
			t.Error("expected object A to be unprintable")
		}
	}
	if !result.Objects[1].Instances[0].Printable || !result.Objects[2].Instances[0].Printable {
		t.Error("expected B and C to be printable")
	}

	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "maybe") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a warning for the unknown flag, got %v", result.Warnings)
	}
}

func TestImportCSVFromReader_InvalidRows(t *testing.T) {
	data := "Name,Width,Height,Qty,Brim\n" +
		"Good,10,10,1,\n" +
		"BadWidth,abc,10,1,\n" +
		"Negative,-5,10,1,\n" +
		"ZeroQty,10,10,0,\n" +
		"BadBrim,10,10,1,wide\n" +
		"MissingHeight,10,,1,\n"
	result := ImportCSVFromReader(strings.NewReader(data), ',')

	if len(result.Objects) != 1 {
		t.Errorf("expected 1 valid object, got %d", len(result.Objects))
	}
	if len(result.Errors) != 5 {
		t.Errorf("expected 5 errors, got %d: %v", len(result.Errors), result.Errors)
	}
	if !strings.HasPrefix(result.Errors[0], "Line 3:") {
		t.Errorf("errors should name the line, got %q", result.Errors[0])
	}
}

func TestImportCSVFromReader_MissingRequiredColumn(t *testing.T) {
	result := ImportCSVFromReader(strings.NewReader("Name,Width,Qty\nA,10,1\n"), ',')
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "Height") {
		t.Errorf("expected a missing Height error, got %v", result.Errors)
	}
}

func TestImportCSVFromReader_EmptyLabelAndRows(t *testing.T) {
	result := ImportCSVFromReader(strings.NewReader("Name,Width,Height\n,10,10\n\n,,\n,20,20\n"), ',')
	if len(result.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(result.Objects))
	}
	if result.Objects[0].Name != "Object 1" || result.Objects[1].Name != "Object 2" {
		t.Errorf("unexpected generated names %q, %q", result.Objects[0].Name, result.Objects[1].Name)
	}
}

func TestImportCSVFromReader_EmptyFile(t *testing.T) {
	result := ImportCSVFromReader(strings.NewReader(""), ',')
	if len(result.Errors) == 0 {
		t.Error("expected error for empty input")
	}
}

func TestImportCSV_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.csv")
	content := "Name;Width;Height;Qty\nClip;20;10;2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	result := ImportCSV(path)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Objects) != 1 {
		t.Fatalf("expected 1 object, got %d", len(result.Objects))
	}
	if result.Warnings[0] != "Detected semicolon delimiter" {
		t.Errorf("expected delimiter warning first, got %v", result.Warnings)
	}
}

func TestImportCSV_FileErrors(t *testing.T) {
	if result := ImportCSV(filepath.Join(t.TempDir(), "missing.csv")); len(result.Errors) == 0 {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, []byte("  \n"), 0644); err != nil {
		t.Fatal(err)
	}
	if result := ImportCSV(path); len(result.Errors) == 0 || result.Errors[0] != "File is empty" {
		t.Errorf("expected empty file error, got %v", result.Errors)
	}
}

// ─── Excel Import Tests ────────────────────────────────────

func createTestExcel(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "objects.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, row := range rows {
		for j, cell := range row {
			cellRef, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("failed to create cell reference: %v", err)
			}
			if err := f.SetCellValue(sheet, cellRef, cell); err != nil {
				t.Fatalf("failed to set cell value: %v", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save Excel file: %v", err)
	}
	return path
}

func TestImportExcel_WithHeaders(t *testing.T) {
	path := createTestExcel(t, [][]interface{}{
		{"Name", "Width", "Height", "Quantity", "Printable"},
		{"Bracket", 60, 30, 4, "yes"},
		{"Spare", 25, 25, 1, "no"},
	})

	result := ImportExcel(path)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(result.Objects))
	}
	if len(result.Objects[0].Instances) != 4 {
		t.Errorf("expected 4 instances, got %d", len(result.Objects[0].Instances))
	}
	if result.Objects[1].Instances[0].Printable {
		t.Error("expected Spare to be unprintable")
	}
}

func TestImportExcel_Errors(t *testing.T) {
	if result := ImportExcel(filepath.Join(t.TempDir(), "missing.xlsx")); len(result.Errors) == 0 {
		t.Error("expected error for missing file")
	}

	path := createTestExcel(t, [][]interface{}{
		{"Name", "Width", "Height"},
		{"Bad", "wide", 10},
	})
	result := ImportExcel(path)
	if len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "Row 2:") {
		t.Errorf("expected one row error, got %v", result.Errors)
	}
}

func TestParsePrintable(t *testing.T) {
	cases := []struct {
		in        string
		printable bool
		known     bool
	}{
		{"", true, true},
		{"Yes", true, true},
		{"x", true, true},
		{"NO", false, true},
		{"0", false, true},
		{"-", false, true},
		{"sometimes", true, false},
	}
	for _, c := range cases {
		printable, known := parsePrintable(c.in)
		if printable != c.printable || known != c.known {
			t.Errorf("parsePrintable(%q) = %v, %v; want %v, %v", c.in, printable, known, c.printable, c.known)
		}
	}
}

// ─── DXF Import Tests ──────────────────────────────────────

func TestImportDXF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parts.dxf")
	d := dxf.NewDrawing()
	if _, err := d.Circle(100, 100, 0, 25); err != nil {
		t.Fatal(err)
	}
	// A 40 x 20 rectangle drawn as loose lines, out of order
	lines := [][4]float64{{10, 10, 50, 10}, {10, 30, 10, 10}, {50, 10, 50, 30}, {50, 30, 10, 30}}
	for _, l := range lines {
		if _, err := d.Line(l[0], l[1], 0, l[2], l[3], 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	result := ImportDXF(path)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(result.Objects))
	}

	circle := result.Objects[0]
	min, max := circle.Outline.BoundingBox()
	if min.X != 0 || min.Y != 0 || math.Abs(max.X-50) > 1e-6 || math.Abs(max.Y-50) > 1e-6 {
		t.Errorf("circle outline should be normalized to 50 x 50, got %v..%v", min, max)
	}
	if len(circle.Outline) != 64 {
		t.Errorf("expected 64 circle vertices, got %d", len(circle.Outline))
	}

	rect := result.Objects[1]
	_, max = rect.Outline.BoundingBox()
	if max.X != 40 || max.Y != 20 || len(rect.Outline) != 4 {
		t.Errorf("expected a 40 x 20 quad, got %v with %d points", max, len(rect.Outline))
	}
	if rect.Name != "DXF Object 2" {
		t.Errorf("unexpected name %q", rect.Name)
	}
}

func TestImportDXF_MissingFile(t *testing.T) {
	if result := ImportDXF(filepath.Join(t.TempDir(), "nope.dxf")); len(result.Errors) == 0 {
		t.Error("expected error for missing file")
	}
}

func TestJoinEdges(t *testing.T) {
	line := func(x0, y0, x1, y1 float64) edge {
		return edge{points: []model.Point2D{{X: x0, Y: y0}, {X: x1, Y: y1}}}
	}
	edges := []edge{
		line(0, 0, 10, 0),
		line(10, 10, 10, 0), // reversed
		line(10, 10, 0, 0.005),
		line(50, 50, 60, 50), // open
		line(60, 50, 60, 70),
	}
	loops, open := joinEdges(edges, 0.01)
	if len(loops) != 1 {
		t.Fatalf("expected 1 closed loop, got %d", len(loops))
	}
	if len(loops[0].points) != 3 {
		t.Errorf("expected a triangle, got %d points", len(loops[0].points))
	}
	if open != 1 {
		t.Errorf("expected 1 open chain, got %d", open)
	}
}

func TestImportDXF_OpenChainSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open.dxf")
	d := dxf.NewDrawing()
	// Three sides of a square: never closes
	for _, l := range [][4]float64{{0, 0, 20, 0}, {20, 0, 20, 20}, {20, 20, 0, 20}} {
		if _, err := d.Line(l[0], l[1], 0, l[2], l[3], 0); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := d.LwPolyline(false, []float64{0, 50}, []float64{30, 50}, []float64{30, 80}); err != nil {
		t.Fatal(err)
	}
	if err := d.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	result := ImportDXF(path)
	if len(result.Objects) != 0 {
		t.Fatalf("open contours must not become objects, got %d", len(result.Objects))
	}
	if len(result.Errors) == 0 {
		t.Error("expected an error when nothing could be imported")
	}
	joined := strings.Join(result.Warnings, "\n")
	if !strings.Contains(joined, "open LWPOLYLINE 1") || !strings.Contains(joined, "1 open LINE/ARC chain") {
		t.Errorf("expected warnings for both open contours, got %v", result.Warnings)
	}
}

func TestImportDXF_SelfIntersectingPolylineSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bowtie.dxf")
	d := dxf.NewDrawing()
	if _, err := d.LwPolyline(true, []float64{0, 0}, []float64{20, 20}, []float64{20, 0}, []float64{0, 20}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.LwPolyline(true, []float64{50, 0}, []float64{80, 0}, []float64{80, 10}, []float64{50, 10}); err != nil {
		t.Fatal(err)
	}
	if err := d.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	result := ImportDXF(path)
	if len(result.Objects) != 1 {
		t.Fatalf("expected only the rectangle, got %d objects", len(result.Objects))
	}
	_, max := result.Objects[0].Outline.BoundingBox()
	if max.X != 30 || max.Y != 10 {
		t.Errorf("expected a 30 x 10 footprint, got %v", max)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "LWPOLYLINE 1") {
		t.Errorf("expected a warning for the bowtie, got %v", result.Warnings)
	}
}

func TestBulgeArcPoints(t *testing.T) {
	// Bulge 1 is a half circle
	pts := bulgeArcPoints(model.Point2D{X: 0, Y: 0}, model.Point2D{X: 10, Y: 0}, 1, 8)
	if len(pts) != 9 {
		t.Fatalf("expected 9 points, got %d", len(pts))
	}
	for _, p := range pts {
		r := math.Hypot(p.X-5, p.Y)
		if math.Abs(r-5) > 1e-9 {
			t.Errorf("point %v is not on the arc (r=%f)", p, r)
		}
	}
}
