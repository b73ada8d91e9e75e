package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/unitcommit/core/model"
)

// WriteHTML renders the schedule as a stacked bar chart, one series per
// generator plus shedding, with the demand drawn as a line on top.
func WriteHTML(w io.Writer, d *model.ProblemData, s *model.Schedule) error {
	rows, err := Rows(d, s)
	if err != nil {
		return err
	}
	periods := make([]string, d.T())
	for t := range periods {
		periods[t] = fmt.Sprintf("t%d", t+1)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Unit commitment schedule"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Dispatch per period",
			Subtitle: fmt.Sprintf("total cost %.2f, %d iterations", s.TotalCost, s.Iterations),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "MW"}),
	)
	bar.SetXAxis(periods)

	// rows come generator by generator, shedding last
	series := make(map[string][]opts.BarData)
	var order []string
	for _, r := range rows {
		if _, ok := series[r.Unit]; !ok {
			order = append(order, r.Unit)
		}
		series[r.Unit] = append(series[r.Unit], opts.BarData{Value: r.PowerMW})
	}
	for _, name := range order {
		bar.AddSeries(name, series[name], charts.WithBarChartOpts(opts.BarChart{Stack: "supply"}))
	}

	demand := make([]opts.LineData, d.T())
	for t, v := range d.Demand {
		demand[t] = opts.LineData{Value: v}
	}
	line := charts.NewLine()
	line.SetXAxis(periods).AddSeries("demand", demand)
	bar.Overlap(line)

	return bar.Render(w)
}
