package benders

import (
	"context"
	"fmt"
	"math"

	"github.com/kilianp07/unitcommit/core/model"
	"github.com/kilianp07/unitcommit/core/solver"
)

// DispatchSubproblem is the production LP for a fixed commitment. It is
// built once per commitment and never mutated, so concurrent node
// callbacks each own a private instance.
type DispatchSubproblem struct {
	data   *model.ProblemData
	oracle solver.Oracle
	u      model.Commitment

	m    *solver.Model
	p    [][]solver.VarID
	shed []solver.VarID

	demand  []solver.RowID
	minRow  [][]solver.RowID
	maxRow  [][]solver.RowID
	upRow   [][]solver.RowID
	downRow [][]solver.RowID

	sol *solver.Solution
}

// NewDispatchSubproblem builds the dispatch LP for commitment u.
func NewDispatchSubproblem(data *model.ProblemData, oracle solver.Oracle, u model.Commitment) (*DispatchSubproblem, error) {
	G, T := data.G(), data.T()
	if len(u) != G {
		return nil, fmt.Errorf("commitment has %d generators, want %d", len(u), G)
	}
	for g := range u {
		if len(u[g]) != T {
			return nil, fmt.Errorf("commitment row %d has %d periods, want %d", g, len(u[g]), T)
		}
	}
	d := &DispatchSubproblem{data: data, oracle: oracle, u: u, m: solver.NewModel("dispatch")}
	d.p = make([][]solver.VarID, G)
	for g, gen := range data.Generators {
		d.p[g] = make([]solver.VarID, T)
		for t := 0; t < T; t++ {
			d.p[g][t] = d.m.AddVar(fmt.Sprintf("p[%s,%d]", gen.Name, t+1), solver.Continuous, 0, math.Inf(1), gen.ProductionCost)
		}
	}
	d.shed = make([]solver.VarID, T)
	for t := 0; t < T; t++ {
		d.shed[t] = d.m.AddVar(fmt.Sprintf("l[%d]", t+1), solver.Continuous, 0, math.Inf(1), data.SheddingCost)
	}

	d.demand = make([]solver.RowID, T)
	for t := 0; t < T; t++ {
		terms := make([]solver.Term, 0, G+1)
		for g := range data.Generators {
			terms = append(terms, solver.Term{Var: d.p[g][t], Coef: 1})
		}
		terms = append(terms, solver.Term{Var: d.shed[t], Coef: 1})
		d.demand[t] = d.m.AddConstraint(solver.Constraint{
			Name: fmt.Sprintf("demand[%d]", t+1), Terms: terms, Sense: solver.Equal, RHS: data.Demand[t],
		})
	}

	d.minRow, d.maxRow = make([][]solver.RowID, G), make([][]solver.RowID, G)
	d.upRow, d.downRow = make([][]solver.RowID, G), make([][]solver.RowID, G)
	for g, gen := range data.Generators {
		d.minRow[g], d.maxRow[g] = make([]solver.RowID, T), make([]solver.RowID, T)
		d.upRow[g], d.downRow[g] = make([]solver.RowID, T), make([]solver.RowID, T)
		for t := 0; t < T; t++ {
			on := float64(u[g][t])
			p := d.p[g][t]
			d.minRow[g][t] = d.m.AddConstraint(solver.Constraint{
				Name: fmt.Sprintf("minpro[%s,%d]", gen.Name, t+1), Terms: []solver.Term{{Var: p, Coef: 1}},
				Sense: solver.GreaterEqual, RHS: gen.MinP * on,
			})
			d.maxRow[g][t] = d.m.AddConstraint(solver.Constraint{
				Name: fmt.Sprintf("maxpro[%s,%d]", gen.Name, t+1), Terms: []solver.Term{{Var: p, Coef: 1}},
				Sense: solver.LessEqual, RHS: gen.MaxP * on,
			})
			up := []solver.Term{{Var: p, Coef: 1}}
			down := []solver.Term{{Var: p, Coef: -1}}
			if t > 0 {
				up = append(up, solver.Term{Var: d.p[g][t-1], Coef: -1})
				down = append(down, solver.Term{Var: d.p[g][t-1], Coef: 1})
			}
			d.upRow[g][t] = d.m.AddConstraint(solver.Constraint{
				Name: fmt.Sprintf("rampup[%s,%d]", gen.Name, t+1), Terms: up, Sense: solver.LessEqual, RHS: gen.RampLimit,
			})
			d.downRow[g][t] = d.m.AddConstraint(solver.Constraint{
				Name: fmt.Sprintf("rampdown[%s,%d]", gen.Name, t+1), Terms: down, Sense: solver.LessEqual, RHS: gen.RampLimit,
			})
		}
	}
	return d, nil
}

// Solve runs the oracle. Shedding absorbs any uncovered demand, so a
// non-optimal status means the oracle itself failed.
func (d *DispatchSubproblem) Solve(ctx context.Context) error {
	sol, err := d.oracle.SolveLP(ctx, d.m)
	if err != nil {
		d.sol = nil
		return failure("dispatch", sol, err)
	}
	if len(sol.Dual) != d.m.NumRows() {
		d.sol = nil
		return failure("dispatch", sol, fmt.Errorf("oracle returned %d duals for %d rows", len(sol.Dual), d.m.NumRows()))
	}
	d.sol = sol
	return nil
}

// ObjectiveValue returns production plus shedding cost at the last solve.
func (d *DispatchSubproblem) ObjectiveValue() float64 {
	if d.sol == nil {
		return 0
	}
	return d.sol.Objective
}

// DualPrices returns the five dual families of the last solve.
func (d *DispatchSubproblem) DualPrices() (model.DualPrices, error) {
	if d.sol == nil {
		return model.DualPrices{}, ErrNotSolved
	}
	G, T := d.data.G(), d.data.T()
	pi := model.DualPrices{
		Demand:        make([]float64, T),
		MinProduction: make([][]float64, G),
		MaxProduction: make([][]float64, G),
		RampUp:        make([][]float64, G),
		RampDown:      make([][]float64, G),
	}
	for t, r := range d.demand {
		pi.Demand[t] = d.sol.DualOf(r)
	}
	for g := 0; g < G; g++ {
		pi.MinProduction[g] = d.duals(d.minRow[g])
		pi.MaxProduction[g] = d.duals(d.maxRow[g])
		pi.RampUp[g] = d.duals(d.upRow[g])
		pi.RampDown[g] = d.duals(d.downRow[g])
	}
	return pi, nil
}

func (d *DispatchSubproblem) duals(rows []solver.RowID) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = d.sol.DualOf(r)
	}
	return out
}

// PrimalSolution returns production and shedding of the last solve.
func (d *DispatchSubproblem) PrimalSolution() (model.Dispatch, error) {
	if d.sol == nil {
		return model.Dispatch{}, ErrNotSolved
	}
	out := model.Dispatch{
		Production: make([][]float64, d.data.G()),
		Shedding:   make([]float64, d.data.T()),
	}
	for g := range d.p {
		out.Production[g] = make([]float64, d.data.T())
		for t, id := range d.p[g] {
			out.Production[g][t] = d.sol.Value(id)
		}
	}
	for t, id := range d.shed {
		out.Shedding[t] = d.sol.Value(id)
	}
	return out, nil
}

// Commitment returns the commitment the subproblem was built for.
func (d *DispatchSubproblem) Commitment() model.Commitment { return d.u }
