package export

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func rgbaAt(t *testing.T, l Layout, bed, x, y int) color.RGBA {
	t.Helper()
	img, err := RenderBed(l, bed, PreviewOptions{PixelsPerMM: 1, Supersample: 1})
	if err != nil {
		t.Fatalf("RenderBed: %v", err)
	}
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestRenderBed_Size(t *testing.T) {
	l := BuildLayout(buildTestScene())

	img, err := RenderBed(l, 0, PreviewOptions{PixelsPerMM: 2, Supersample: 2})
	if err != nil {
		t.Fatalf("RenderBed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 500 || b.Dy() != 420 {
		t.Errorf("image size = %dx%d, want 500x420", b.Dx(), b.Dy())
	}
}

func TestRenderBed_FillsItems(t *testing.T) {
	l := BuildLayout(buildTestScene())
	green := itemColors[0]

	// Bracket spans (20,20)-(60,40); image Y is flipped
	if got := rgbaAt(t, l, 0, 40, 210-30); got != (color.RGBA{R: uint8(green.R), G: uint8(green.G), B: uint8(green.B), A: 255}) {
		t.Errorf("bracket pixel = %v", got)
	}
	// Tower spans (150,150)-(200,160)
	if got := rgbaAt(t, l, 0, 175, 210-155); got != (color.RGBA{R: uint8(towerColor.R), G: uint8(towerColor.G), B: uint8(towerColor.B), A: 255}) {
		t.Errorf("tower pixel = %v", got)
	}
	if got := rgbaAt(t, l, 0, 120, 100); got != bedColor {
		t.Errorf("empty bed pixel = %v, want %v", got, bedColor)
	}
}

func TestRenderBed_OutOfRange(t *testing.T) {
	l := BuildLayout(buildTestScene())
	if _, err := RenderBed(l, 3, DefaultPreviewOptions()); err == nil {
		t.Fatal("expected error for missing bed")
	}
}

func TestEncodeBedWebP(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeBedWebP(&buf, BuildLayout(buildTestScene()), 1, DefaultPreviewOptions()); err != nil {
		t.Fatalf("EncodeBedWebP: %v", err)
	}
	data := buf.Bytes()
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		t.Fatalf("output is not a WebP container")
	}
}

func TestExportPreviews(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "previews")

	paths, err := ExportPreviews(dir, BuildLayout(buildTestScene()), DefaultPreviewOptions())
	if err != nil {
		t.Fatalf("ExportPreviews: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 previews, got %d", len(paths))
	}
	if filepath.Base(paths[2]) != "bed-3.webp" {
		t.Errorf("unexpected name %q", paths[2])
	}
	for _, p := range paths {
		if info, err := os.Stat(p); err != nil || info.Size() == 0 {
			t.Errorf("preview %s missing or empty", p)
		}
	}
}
