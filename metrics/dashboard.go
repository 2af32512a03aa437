package metrics

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"
)

// DashboardFile is the name of the page written by Dashboard.
const DashboardFile = "dashboard.html"

// Dashboard writes every series as an interactive line chart into <dir>/dashboard.html.
func (r *Recorder) Dashboard() error {
	if r.dir == "" {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return errors.WithStack(err)
	}

	page := components.NewPage()
	page.PageTitle = "training curves"
	for _, tag := range r.Tags() {
		pts := r.series[tag]
		steps := make([]string, len(pts))
		items := make([]opts.LineData, len(pts))
		for i, p := range pts {
			steps[i] = strconv.Itoa(p.Step)
			items[i] = opts.LineData{Value: p.Value}
		}

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{Title: tag}),
			charts.WithInitializationOpts(opts.Initialization{Theme: "shine"}),
		)
		line.SetXAxis(steps).AddSeries(tag, items)
		page.AddCharts(line)
	}

	f, err := os.Create(filepath.Join(r.dir, DashboardFile))
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	return errors.Wrap(page.Render(f), "rendering dashboard")
}
