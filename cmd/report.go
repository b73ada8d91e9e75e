package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kilianp07/unitcommit/app"
	"github.com/kilianp07/unitcommit/core/model"
)

// printResult writes a human readable report of res, or its JSON form.
func printResult(w io.Writer, data *model.ProblemData, res *app.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(w, "run %s (%s): %s in %s\n", res.RunID, res.Mode, res.Status, res.Duration)
	s := res.Schedule
	if s == nil || s.Commitment == nil {
		fmt.Fprintln(w, "no schedule")
		return nil
	}
	fmt.Fprintf(w, "total cost %.4f  bounds [%.4f, %.4f]  iterations %d  cuts %d\n",
		s.TotalCost, s.LowerBound, s.UpperBound, s.Iterations, s.Cuts)
	fmt.Fprintf(w, "startup %.4f  online %.4f  production %.4f  shedding %.4f\n\n",
		res.Costs.Startup, res.Costs.Online, res.Costs.Production, res.Costs.Shedding)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"generator"}
	for t := 1; t <= data.T(); t++ {
		header = append(header, fmt.Sprintf("t%d", t))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for g, name := range data.Names() {
		row := []string{name}
		for t := 0; t < data.T(); t++ {
			cell := "-"
			if s.Commitment.On(g, t) {
				cell = fmt.Sprintf("%.2f", s.Dispatch.Production[g][t])
			}
			row = append(row, cell)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
	}
	shed := []string{"shed"}
	dem := []string{"demand"}
	for t := 0; t < data.T(); t++ {
		shed = append(shed, fmt.Sprintf("%.2f", s.Dispatch.Shedding[t]))
		dem = append(dem, fmt.Sprintf("%.2f", data.Demand[t]))
	}
	fmt.Fprintln(tw, strings.Join(shed, "\t")+"\t")
	fmt.Fprintln(tw, strings.Join(dem, "\t")+"\t")
	return tw.Flush()
}
