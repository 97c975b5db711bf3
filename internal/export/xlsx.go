package export

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/xuri/excelize/v2"
)

const (
	placementsSheet = "Placements"
	bedsSheet       = "Beds"
)

var (
	placementHeader = []any{"Bed", "Label", "Instance", "X (mm)", "Y (mm)", "Rotation (deg)", "Width (mm)", "Height (mm)", "Printable"}
	bedHeader       = []any{"Bed", "Objects", "Used area (mm²)", "Utilization (%)"}
)

// ExportXLSX writes the layout as a workbook with one row per placed item
// and a per-bed summary sheet. The file is written as XLSX whatever the
// extension of path.
func ExportXLSX(path string, l Layout) error {
	if l.ItemCount() == 0 {
		return ErrEmptyLayout
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	err = WriteXLSX(out, l)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteXLSX streams the workbook built by ExportXLSX to w.
func WriteXLSX(w io.Writer, l Layout) error {
	if l.ItemCount() == 0 {
		return ErrEmptyLayout
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", placementsSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(placementsSheet, "A1", &placementHeader); err != nil {
		return err
	}
	row := 2
	for _, bed := range l.Beds {
		for _, it := range bed.Items {
			w, h := it.Size()
			values := []any{bed.Index + 1, it.Label, it.ID, round2(it.X), round2(it.Y), round2(it.RotationDegrees()), round2(w), round2(h), it.Printable}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(placementsSheet, cell, &values); err != nil {
				return fmt.Errorf("writing placement row %d: %w", row, err)
			}
			row++
		}
	}

	if _, err := f.NewSheet(bedsSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(bedsSheet, "A1", &bedHeader); err != nil {
		return err
	}
	for i, bed := range l.Beds {
		values := []any{l.BedTitle(i), len(bed.Items), round2(bed.UsedArea()), round2(l.Utilization(i))}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(bedsSheet, cell, &values); err != nil {
			return fmt.Errorf("writing bed row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
