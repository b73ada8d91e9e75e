package benders

import (
	"fmt"

	"github.com/kilianp07/unitcommit/core/model"
	"github.com/kilianp07/unitcommit/core/solver"
)

// AddCommitmentConstraints adds startup linking and minimum up/down time
// rows over the binary columns u and startup cost columns c (both G×T).
// Period 0 is off for every generator and windows are clipped to [1,T].
func AddCommitmentConstraints(m *solver.Model, data *model.ProblemData, u, c [][]solver.VarID) {
	for g := range data.Generators {
		addStartupRows(m, data, g, u[g], c[g])
		addMinUpRows(m, data, g, u[g])
		addMinDownRows(m, data, g, u[g])
	}
}

// addStartupRows adds c[t] - S·u[t] + S·u[t-1] ≥ 0.
func addStartupRows(m *solver.Model, data *model.ProblemData, g int, u, c []solver.VarID) {
	gen := data.Generators[g]
	for t := range u {
		terms := []solver.Term{{Var: c[t], Coef: 1}, {Var: u[t], Coef: -gen.StartupCost}}
		if t > 0 {
			terms = append(terms, solver.Term{Var: u[t-1], Coef: gen.StartupCost})
		}
		m.AddConstraint(solver.Constraint{
			Name:  fmt.Sprintf("startup[%s,%d]", gen.Name, t+1),
			Terms: terms,
			Sense: solver.GreaterEqual,
		})
	}
}

// addMinUpRows adds, for every period t with window end TU,
// Σ_{j=t..TU} (u[j] - u[t] + u[t-1]) ≥ 0. One-period windows are vacuous.
func addMinUpRows(m *solver.Model, data *model.ProblemData, g int, u []solver.VarID) {
	gen := data.Generators[g]
	for t := 1; t <= data.T(); t++ {
		end := data.UpWindowEnd(g, t)
		n := float64(end - t + 1)
		if n <= 1 {
			continue
		}
		terms := make([]solver.Term, 0, end-t+3)
		for j := t; j <= end; j++ {
			terms = append(terms, solver.Term{Var: u[j-1], Coef: 1})
		}
		terms = append(terms, solver.Term{Var: u[t-1], Coef: -n})
		if t > 1 {
			terms = append(terms, solver.Term{Var: u[t-2], Coef: n})
		}
		m.AddConstraint(solver.Constraint{
			Name:  fmt.Sprintf("minup[%s,%d]", gen.Name, t),
			Terms: terms,
			Sense: solver.GreaterEqual,
		})
	}
}

// addMinDownRows adds, for every period t with window end TD,
// Σ_{j=t..TD} (-u[j] - u[t-1] + u[t]) ≥ -(TD-t+1). A shutdown needs a
// unit online before it, so t starts at 2.
func addMinDownRows(m *solver.Model, data *model.ProblemData, g int, u []solver.VarID) {
	gen := data.Generators[g]
	for t := 2; t <= data.T(); t++ {
		end := data.DownWindowEnd(g, t)
		n := float64(end - t + 1)
		if n <= 1 {
			continue
		}
		terms := make([]solver.Term, 0, end-t+3)
		for j := t; j <= end; j++ {
			terms = append(terms, solver.Term{Var: u[j-1], Coef: -1})
		}
		terms = append(terms,
			solver.Term{Var: u[t-2], Coef: -n},
			solver.Term{Var: u[t-1], Coef: n},
		)
		m.AddConstraint(solver.Constraint{
			Name:  fmt.Sprintf("mindown[%s,%d]", gen.Name, t),
			Terms: terms,
			Sense: solver.GreaterEqual,
			RHS:   -n,
		})
	}
}
