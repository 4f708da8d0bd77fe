// Package report renders KPI summaries as standalone HTML charts.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/fleetworks-data/dispatch.report/internal/fleet"
	"github.com/fleetworks-data/dispatch.report/internal/fleet/kpi"
)

// stateColors keeps the chart palette stable across renders, one colour per
// state key in numeric order.
var stateColors = []string{
	"#8c8c8c", // workshop
	"#31688e", // at depot
	"#d62728", // emergency dispatch
	"#ff7f0e", // on scene
	"#9467bd", // end of operation
	"#1f9e89", // returning to depot
}

// RenderKPI writes an HTML page with a duration bar chart and a time-share
// pie chart for one summary.
func RenderKPI(w io.Writer, title string, summary *kpi.Summary) error {
	page := components.NewPage()
	page.SetPageTitle(title)
	page.AddCharts(durationBar(title, summary), sharePie(summary))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render KPI report: %w", err)
	}
	return nil
}

func durationBar(title string, summary *kpi.Summary) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title: title,
			Subtitle: fmt.Sprintf("total %.1f h, outside depot %.1f h",
				summary.TotalSeconds/3600, summary.OutsideDepotSeconds/3600),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "hours"}),
	)

	labels := make([]string, 0, len(fleet.StateKeys))
	data := make([]opts.BarData, 0, len(fleet.StateKeys))
	for _, key := range fleet.StateKeys {
		labels = append(labels, key.String())
		data = append(data, opts.BarData{
			Value:     summary.PerKey[key].DurationSeconds / 3600,
			ItemStyle: &opts.ItemStyle{Color: stateColors[int(key)]},
		})
	}

	bar.SetXAxis(labels)
	bar.AddSeries("duration", data)
	return bar
}

func sharePie(summary *kpi.Summary) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Time share by state"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	var data []opts.PieData
	for _, key := range fleet.StateKeys {
		stats := summary.PerKey[key]
		if stats.DurationSeconds <= 0 {
			continue
		}
		data = append(data, opts.PieData{
			Name:      key.String(),
			Value:     stats.DurationSeconds,
			ItemStyle: &opts.ItemStyle{Color: stateColors[int(key)]},
		})
	}

	pie.AddSeries("share", data)
	return pie
}
