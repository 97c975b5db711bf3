package export

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// UtilizationChart builds a bar chart of bed utilization and object count
// per bed.
func UtilizationChart(l Layout) *charts.Bar {
	bar := charts.NewBar()
	title := "Bed utilization"
	if l.Name != "" {
		title = l.Name + ": " + title
	}
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "PlateNest"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d objects on %d beds", l.ItemCount(), len(l.Beds)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)

	names := make([]string, len(l.Beds))
	util := make([]opts.BarData, len(l.Beds))
	counts := make([]opts.BarData, len(l.Beds))
	for i, bed := range l.Beds {
		names[i] = l.BedTitle(i)
		util[i] = opts.BarData{Value: round2(l.Utilization(i))}
		counts[i] = opts.BarData{Value: len(bed.Items)}
	}
	bar.SetXAxis(names).
		AddSeries("Utilization (%)", util).
		AddSeries("Objects", counts)
	return bar
}

// RenderChart writes the utilization chart as a standalone HTML page.
func RenderChart(w io.Writer, l Layout) error {
	if l.ItemCount() == 0 {
		return ErrEmptyLayout
	}
	return UtilizationChart(l).Render(w)
}

// ExportChart writes the utilization chart to an HTML file.
func ExportChart(path string, l Layout) error {
	if l.ItemCount() == 0 {
		return ErrEmptyLayout
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := RenderChart(f, l); err != nil {
		f.Close()
		return fmt.Errorf("rendering chart: %w", err)
	}
	return f.Close()
}
