//go:build highs

package plugins

import (
	"fmt"

	"github.com/kilianp07/unitcommit/core/factory"
	"github.com/kilianp07/unitcommit/core/solver"
)

// The HiGHS oracle solves the iterative master, the dispatch LPs and the
// direct model. The embedded mode needs node callbacks, which it runs on
// the gonum search configured by tolerance.
func init() {
	_ = RegisterOracle("highs", func(conf map[string]any) (solver.Oracle, error) {
		var c struct {
			Tolerance float64 `json:"tolerance"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, fmt.Errorf("highs oracle: %w", err)
		}
		return solver.NewHiGHS(solver.NewGonum(c.Tolerance)), nil
	})
}
