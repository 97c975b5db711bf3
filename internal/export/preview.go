package export

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/piwi3910/platenest/internal/model"
)

// PreviewOptions controls raster bed previews.
type PreviewOptions struct {
	PixelsPerMM float64 // output resolution
	Supersample int     // render at this multiple and downsample
}

func DefaultPreviewOptions() PreviewOptions {
	return PreviewOptions{PixelsPerMM: 2, Supersample: 2}
}

var (
	backgroundColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	bedColor        = color.RGBA{R: 235, G: 235, B: 225, A: 255}
)

// RenderBed rasterizes bed i of the layout, bed Y pointing up.
func RenderBed(l Layout, i int, o PreviewOptions) (image.Image, error) {
	if i < 0 || i >= len(l.Beds) {
		return nil, fmt.Errorf("bed %d out of range (%d beds)", i+1, len(l.Beds))
	}
	if o.PixelsPerMM <= 0 {
		o.PixelsPerMM = 1
	}
	ss := max(o.Supersample, 1)

	min, max := model.Outline(l.Bed).BoundingBox()
	scale := o.PixelsPerMM * float64(ss)
	w := int((max.X-min.X)*scale + 0.5)
	h := int((max.Y-min.Y)*scale + 0.5)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("bed shape has no area")
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	fill := func(o model.Outline, c color.Color) {
		if len(o) < 3 {
			return
		}
		z := vector.NewRasterizer(w, h)
		for k, p := range o {
			x := float32((p.X - min.X) * scale)
			y := float32((max.Y - p.Y) * scale)
			if k == 0 {
				z.MoveTo(x, y)
			} else {
				z.LineTo(x, y)
			}
		}
		z.ClosePath()
		z.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{})
	}

	fill(model.Outline(l.Bed), bedColor)
	for k, it := range l.Beds[i].Items {
		c := colorFor(it, k)
		fill(it.Outline, color.RGBA{R: uint8(c.R), G: uint8(c.G), B: uint8(c.B), A: 255})
	}

	if ss == 1 {
		return img, nil
	}
	out := image.NewRGBA(image.Rect(0, 0, (w+ss/2)/ss, (h+ss/2)/ss))
	draw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out, nil
}

// EncodeBedWebP writes bed i of the layout as a lossless WebP image.
func EncodeBedWebP(w io.Writer, l Layout, i int, o PreviewOptions) error {
	img, err := RenderBed(l, i, o)
	if err != nil {
		return err
	}
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("WebP encode: %w", err)
	}
	return nil
}

// ExportPreviews writes one WebP image per bed into dir, named
// bed-1.webp, bed-2.webp and so on. It returns the written paths.
func ExportPreviews(dir string, l Layout, o PreviewOptions) ([]string, error) {
	if l.ItemCount() == 0 {
		return nil, ErrEmptyLayout
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	var paths []string
	for i := range l.Beds {
		path := filepath.Join(dir, fmt.Sprintf("bed-%d.webp", i+1))
		f, err := os.Create(path)
		if err != nil {
			return paths, err
		}
		err = EncodeBedWebP(f, l, i, o)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, fmt.Errorf("bed %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
