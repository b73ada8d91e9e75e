//go:build highs

package plugins

import (
	"context"
	"math"
	"testing"

	"github.com/kilianp07/unitcommit/core/solver"
)

func TestNewOracle_HiGHS(t *testing.T) {
	o, err := NewOracle("highs", map[string]any{"tolerance": "1e-8"})
	if err != nil {
		t.Fatalf("oracle: %v", err)
	}
	h, ok := o.(*solver.HiGHS)
	if !ok || h.Fallback == nil || h.Fallback.Tolerance != 1e-8 {
		t.Fatalf("unexpected oracle %#v", o)
	}

	m := solver.NewModel("cover")
	x := m.AddVar("x", solver.Continuous, 0, math.Inf(1), 2)
	y := m.AddVar("y", solver.Continuous, 0, math.Inf(1), 3)
	row := m.AddConstraint(solver.Constraint{Name: "cover", Terms: []solver.Term{{Var: x, Coef: 1}, {Var: y, Coef: 1}}, Sense: solver.GreaterEqual, RHS: 4})
	sol, err := o.SolveLP(context.Background(), m)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if math.Abs(sol.Objective-8) > 1e-6 || math.Abs(sol.DualOf(row)-2) > 1e-6 {
		t.Fatalf("unexpected solution obj=%v dual=%v", sol.Objective, sol.DualOf(row))
	}
}
