package export

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-pdf/fpdf"
	"github.com/piwi3910/platenest/internal/model"
)

// ErrEmptyLayout is returned when there is nothing to export.
var ErrEmptyLayout = errors.New("no placed objects to export")

// itemColor represents an RGB color for a placed item.
type itemColor struct {
	R, G, B int
}

// itemColors is the fill palette shared by the PDF and raster renderers.
var itemColors = []itemColor{
	{R: 76, G: 175, B: 80},  // green
	{R: 33, G: 150, B: 243}, // blue
	{R: 255, G: 152, B: 0},  // orange
	{R: 156, G: 39, B: 176}, // purple
	{R: 0, G: 188, B: 212},  // cyan
	{R: 244, G: 67, B: 54},  // red
	{R: 255, G: 235, B: 59}, // yellow
	{R: 121, G: 85, B: 72},  // brown
}

var (
	towerColor       = itemColor{R: 120, G: 120, B: 120}
	unprintableColor = itemColor{R: 230, G: 230, B: 230}
)

func colorFor(it Item, i int) itemColor {
	switch {
	case it.WipeTower:
		return towerColor
	case !it.Printable:
		return unprintableColor
	}
	return itemColors[i%len(itemColors)]
}

// Page layout constants (A4 landscape in mm).
const (
	pageWidth    = 297.0
	pageHeight   = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 15.0
	headerHeight = 12.0
	legendHeight = 20.0
	drawAreaTop  = marginTop + headerHeight + 5.0
)

// bedFrame maps bed millimetres to page millimetres. Bed Y grows upwards,
// page Y downwards.
type bedFrame struct {
	scale            float64
	offsetX, offsetY float64
	minX, maxY       float64
	canvasW, canvasH float64
}

func newBedFrame(l Layout) bedFrame {
	min, max := model.Outline(l.Bed).BoundingBox()
	bedW, bedH := max.X-min.X, max.Y-min.Y

	drawWidth := pageWidth - marginLeft - marginRight
	drawHeight := pageHeight - drawAreaTop - marginBottom - legendHeight
	scale := math.Min(drawWidth/bedW, drawHeight/bedH)

	f := bedFrame{scale: scale, minX: min.X, maxY: max.Y, canvasW: bedW * scale, canvasH: bedH * scale}
	f.offsetX = marginLeft + (drawWidth-f.canvasW)/2
	f.offsetY = drawAreaTop
	return f
}

func (f bedFrame) point(p model.Point2D) fpdf.PointType {
	return fpdf.PointType{
		X: f.offsetX + (p.X-f.minX)*f.scale,
		Y: f.offsetY + (f.maxY-p.Y)*f.scale,
	}
}

func (f bedFrame) points(o model.Outline) []fpdf.PointType {
	pts := make([]fpdf.PointType, len(o))
	for i, p := range o {
		pts[i] = f.point(p)
	}
	return pts
}

// ExportPDF writes one page per virtual bed with the placed outlines,
// followed by a summary page.
func ExportPDF(path string, l Layout) error {
	if l.ItemCount() == 0 {
		return ErrEmptyLayout
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, marginBottom)

	for i := range l.Beds {
		pdf.AddPage()
		renderBedPage(pdf, l, i)
	}

	pdf.AddPage()
	renderSummaryPage(pdf, l)

	return pdf.OutputFileAndClose(path)
}

// renderBedPage draws a single bed on the current PDF page.
func renderBedPage(pdf *fpdf.Fpdf, l Layout, bedIdx int) {
	bed := l.Beds[bedIdx]
	bedW, bedH := l.BedSize()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(marginLeft, marginTop)
	title := fmt.Sprintf("%s (%.0f x %.0f mm)", l.BedTitle(bedIdx), bedW, bedH)
	if l.Name != "" {
		title = l.Name + ": " + title
	}
	pdf.CellFormat(pageWidth-marginLeft-marginRight, headerHeight, title, "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(marginLeft, marginTop+headerHeight)
	stats := fmt.Sprintf("Objects: %d | Used area: %.0f mm² | Bed area: %.0f mm² | Utilization: %.1f%%",
		len(bed.Items), bed.UsedArea(), l.BedArea(), l.Utilization(bedIdx))
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 5, pdf.UnicodeTranslatorFromDescriptor("")(stats), "", 0, "L", false, 0, "")

	f := newBedFrame(l)

	// Bed plate
	pdf.SetFillColor(235, 235, 225)
	pdf.SetDrawColor(100, 100, 100)
	pdf.SetLineWidth(0.5)
	pdf.Polygon(f.points(model.Outline(l.Bed)), "FD")

	for i, it := range bed.Items {
		col := colorFor(it, i)
		pts := f.points(it.Outline)

		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.SetDrawColor(30, 30, 30)
		pdf.SetLineWidth(0.3)
		pdf.Polygon(pts, "FD")
		if it.WipeTower || !it.Printable {
			pdf.ClipPolygon(pts, false)
			min, max := it.Outline.BoundingBox()
			tl := f.point(model.Point2D{X: min.X, Y: max.Y})
			drawHatchPattern(pdf, tl.X, tl.Y, (max.X-min.X)*f.scale, (max.Y-min.Y)*f.scale)
			pdf.ClipEnd()
		}
		drawItemLabel(pdf, f, it)
	}

	drawDimensionAnnotations(pdf, bedW, bedH, f)
	drawItemsLegend(pdf, bed, f.offsetY+f.canvasH+5)
}

// drawItemLabel centres the item's label and size inside its outline when
// there is room.
func drawItemLabel(pdf *fpdf.Fpdf, f bedFrame, it Item) {
	w, h := it.Size()
	pw, ph := w*f.scale, h*f.scale
	if pw <= 15 || ph <= 8 {
		return
	}
	min, max := it.Outline.BoundingBox()
	c := f.point(model.Point2D{X: (min.X + max.X) / 2, Y: (min.Y + max.Y) / 2})

	pdf.SetFont("Helvetica", "", labelFontSize(pw, ph))
	pdf.SetTextColor(0, 0, 0)

	label := it.Label
	dims := fmt.Sprintf("%.0fx%.0f", w, h)
	labelW := pdf.GetStringWidth(label)
	dimsW := pdf.GetStringWidth(dims)

	if labelW < pw-2 {
		pdf.SetXY(c.X-labelW/2, c.Y-4)
		pdf.CellFormat(labelW, 4, label, "", 0, "C", false, 0, "")
	}
	if ph > 14 && dimsW < pw-2 {
		pdf.SetXY(c.X-dimsW/2, c.Y)
		pdf.CellFormat(dimsW, 4, dims, "", 0, "C", false, 0, "")
	}
}

// drawHatchPattern draws diagonal lines inside a rectangle. Callers clip
// it to the outline being marked.
func drawHatchPattern(pdf *fpdf.Fpdf, x, y, w, h float64) {
	pdf.SetDrawColor(90, 90, 90)
	pdf.SetLineWidth(0.15)

	spacing := 3.0
	maxDist := w + h

	for d := spacing; d < maxDist; d += spacing {
		x1 := x + math.Max(0, d-h)
		y1 := y + math.Min(h, d)
		x2 := x + math.Min(w, d)
		y2 := y + math.Max(0, d-w)

		pdf.Line(x1, y1, x2, y2)
	}
}

// drawDimensionAnnotations adds width and height labels outside the bed.
func drawDimensionAnnotations(pdf *fpdf.Fpdf, bedW, bedH float64, f bedFrame) {
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(80, 80, 80)

	widthLabel := fmt.Sprintf("%.0f mm", bedW)
	wLabelW := pdf.GetStringWidth(widthLabel)
	pdf.SetXY(f.offsetX+(f.canvasW-wLabelW)/2, f.offsetY+f.canvasH+1)
	pdf.CellFormat(wLabelW, 4, widthLabel, "", 0, "C", false, 0, "")

	heightLabel := fmt.Sprintf("%.0f mm", bedH)
	pdf.TransformBegin()
	pdf.TransformRotate(90, f.offsetX-3, f.offsetY+f.canvasH/2)
	hLabelW := pdf.GetStringWidth(heightLabel)
	pdf.SetXY(f.offsetX-3-hLabelW/2, f.offsetY+f.canvasH/2-2)
	pdf.CellFormat(hLabelW, 4, heightLabel, "", 0, "C", false, 0, "")
	pdf.TransformEnd()

	pdf.SetTextColor(0, 0, 0)
}

// drawItemsLegend renders a compact legend of the bed's items.
func drawItemsLegend(pdf *fpdf.Fpdf, bed BedLayout, startY float64) {
	if len(bed.Items) == 0 {
		return
	}

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(marginLeft, startY)
	pdf.CellFormat(30, 4, "Objects placed:", "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	xPos := marginLeft + 32
	maxX := pageWidth - marginRight

	for i, it := range bed.Items {
		col := colorFor(it, i)
		w, h := it.Size()
		label := fmt.Sprintf("%s (%.0fx%.0f)", it.Label, w, h)
		if deg := it.RotationDegrees(); deg > 0.05 && deg < 359.95 {
			label += fmt.Sprintf(" R%.0f", deg)
		}
		labelW := pdf.GetStringWidth(label) + 6

		if xPos+labelW > maxX {
			startY += 5
			xPos = marginLeft
		}

		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.Rect(xPos, startY+0.5, 3, 3, "F")

		pdf.SetXY(xPos+4, startY)
		pdf.CellFormat(labelW-4, 4, label, "", 0, "L", false, 0, "")

		xPos += labelW + 2
	}
}

// renderSummaryPage draws the final page with overall statistics.
func renderSummaryPage(pdf *fpdf.Fpdf, l Layout) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(marginLeft, marginTop)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 10, "Arrangement Summary", "", 0, "L", false, 0, "")

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(marginLeft, marginTop+12, pageWidth-marginRight, marginTop+12)

	y := marginTop + 18

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, "Overall Statistics", "", 0, "L", false, 0, "")
	y += 9

	summaryItems := []struct {
		label string
		value string
	}{
		{"Beds Used", fmt.Sprintf("%d", len(l.Beds))},
		{"Objects Placed", fmt.Sprintf("%d", l.ItemCount())},
		{"Warnings", fmt.Sprintf("%d", len(l.Warnings))},
	}

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range summaryItems {
		pdf.SetXY(marginLeft+5, y)
		pdf.CellFormat(60, 6, item.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, item.value, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		y += 7
	}

	y += 5

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, "Bed Breakdown", "", 0, "L", false, 0, "")
	y += 9

	colWidths := []float64{50, 30, 40, 50}
	headers := []string{"Bed", "Objects", "Utilization", "Used Area"}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	xPos := marginLeft
	for i, header := range headers {
		pdf.SetXY(xPos, y)
		pdf.CellFormat(colWidths[i], 6, header, "1", 0, "C", true, 0, "")
		xPos += colWidths[i]
	}
	y += 6

	pdf.SetFont("Helvetica", "", 9)
	for i, bed := range l.Beds {
		xPos = marginLeft
		rowData := []string{
			l.BedTitle(i),
			fmt.Sprintf("%d", len(bed.Items)),
			fmt.Sprintf("%.1f%%", l.Utilization(i)),
			tr(fmt.Sprintf("%.0f mm²", bed.UsedArea())),
		}

		if i%2 == 0 {
			pdf.SetFillColor(245, 245, 245)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		for j, cell := range rowData {
			pdf.SetXY(xPos, y)
			pdf.CellFormat(colWidths[j], 6, cell, "1", 0, "C", true, 0, "")
			xPos += colWidths[j]
		}
		y += 6
	}

	if len(l.Warnings) > 0 {
		y += 8
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(200, 0, 0)
		pdf.SetXY(marginLeft, y)
		pdf.CellFormat(200, 7, "WARNING: Clearance Problems", "", 0, "L", false, 0, "")
		y += 8

		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(0, 0, 0)
		for _, w := range l.Warnings {
			if y > pageHeight-marginBottom-40 {
				break
			}
			pdf.SetXY(marginLeft+5, y)
			pdf.CellFormat(250, 5, "- "+w, "", 0, "L", false, 0, "")
			y += 5
		}
	}

	y += 8
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, "Arrange Settings", "", 0, "L", false, 0, "")
	y += 9

	rotations := "off"
	if l.Settings.EnableRotations {
		rotations = fmt.Sprintf("%d steps", l.Settings.Rotations)
	}
	settingsItems := []struct {
		label string
		value string
	}{
		{"Distance", fmt.Sprintf("%.1f mm", l.Settings.Distance)},
		{"Rotations", rotations},
		{"Algorithm", string(l.Settings.Algorithm)},
		{"Brim Width", fmt.Sprintf("%.1f mm", l.Config.BrimWidth)},
		{"Min Object Distance", fmt.Sprintf("%.1f mm", l.Config.MinObjectDistance())},
	}

	pdf.SetFont("Helvetica", "", 9)
	for _, item := range settingsItems {
		pdf.SetXY(marginLeft+5, y)
		pdf.CellFormat(50, 5, item.label+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 5, item.value, "", 0, "L", false, 0, "")
		y += 5
	}

	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(marginLeft, pageHeight-marginBottom)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 4, "Generated by PlateNest - Print Bed Arranger", "", 0, "C", false, 0, "")
}

// labelFontSize returns an appropriate font size based on the rectangle dimensions.
func labelFontSize(w, h float64) float64 {
	minDim := math.Min(w, h)
	switch {
	case minDim > 40:
		return 8
	case minDim > 20:
		return 7
	default:
		return 6
	}
}
