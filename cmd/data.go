package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/unitcommit/core/model"
	"github.com/kilianp07/unitcommit/infra/logger"
	"github.com/kilianp07/unitcommit/scenario"
)

// dataFlags selects the instance to solve.
type dataFlags struct {
	generators int
	demand     string
	table      string
	horizon    int
	shed       float64
	scenario   string
}

func (f *dataFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.IntVar(&f.generators, "generators", 0, "number of generators to read from the table")
	fl.StringVar(&f.demand, "demand", "", "demand file, one value per period")
	fl.StringVar(&f.table, "table", "", "generator table file")
	fl.IntVar(&f.horizon, "horizon", 0, "number of periods to read from the demand file")
	fl.Float64Var(&f.shed, "shed", 0, "cost per unit of unserved demand")
	fl.StringVar(&f.scenario, "scenario", "", "YAML scenario file (overrides the table flags)")
}

// load returns the YAML scenario, the table instance when every table flag
// is set, or the built-in two-generator instance otherwise.
func (f *dataFlags) load(cmd *cobra.Command) (*model.ProblemData, error) {
	if f.scenario != "" {
		return scenario.LoadYAML(f.scenario)
	}
	fl := cmd.Flags()
	set := 0
	for _, name := range []string{"generators", "demand", "table", "horizon", "shed"} {
		if fl.Changed(name) {
			set++
		}
	}
	if set == 5 {
		return scenario.LoadTables(f.generators, f.demand, f.table, f.horizon, f.shed)
	}
	if set > 0 {
		logger.New("cli").Warnf("only %d of the 5 table flags given, solving the default scenario", set)
	}
	return scenario.Default(), nil
}
