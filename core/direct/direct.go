// Package direct solves the unit commitment problem as a single MILP. It is
// the baseline the decomposition is checked against.
package direct

import (
	"context"
	"fmt"
	"math"

	"github.com/kilianp07/unitcommit/core/benders"
	"github.com/kilianp07/unitcommit/core/model"
	"github.com/kilianp07/unitcommit/core/solver"
)

// Model is the monolithic formulation: commitment and dispatch columns in
// one mixed-integer program.
type Model struct {
	data *model.ProblemData
	m    *solver.Model
	u    [][]solver.VarID
	c    [][]solver.VarID
	p    [][]solver.VarID
	shed []solver.VarID
}

// New builds the monolithic model for data.
func New(data *model.ProblemData) (*Model, error) {
	data, err := data.Normalized()
	if err != nil {
		return nil, err
	}
	G, T := data.G(), data.T()
	d := &Model{data: data, m: solver.NewModel("direct")}
	d.u, d.c, d.p = make([][]solver.VarID, G), make([][]solver.VarID, G), make([][]solver.VarID, G)
	for g, gen := range data.Generators {
		d.u[g], d.c[g], d.p[g] = make([]solver.VarID, T), make([]solver.VarID, T), make([]solver.VarID, T)
		for t := 0; t < T; t++ {
			d.u[g][t] = d.m.AddVar(fmt.Sprintf("u[%s,%d]", gen.Name, t+1), solver.Binary, 0, 1, gen.OnlineCost)
			d.c[g][t] = d.m.AddVar(fmt.Sprintf("c[%s,%d]", gen.Name, t+1), solver.Continuous, 0, math.Inf(1), 1)
			d.p[g][t] = d.m.AddVar(fmt.Sprintf("p[%s,%d]", gen.Name, t+1), solver.Continuous, 0, math.Inf(1), gen.ProductionCost)
		}
	}
	d.shed = make([]solver.VarID, T)
	for t := 0; t < T; t++ {
		d.shed[t] = d.m.AddVar(fmt.Sprintf("l[%d]", t+1), solver.Continuous, 0, math.Inf(1), data.SheddingCost)
	}
	benders.AddCommitmentConstraints(d.m, data, d.u, d.c)

	for t := 0; t < T; t++ {
		terms := []solver.Term{{Var: d.shed[t], Coef: 1}}
		for g := 0; g < G; g++ {
			terms = append(terms, solver.Term{Var: d.p[g][t], Coef: 1})
		}
		d.m.AddConstraint(solver.Constraint{Name: fmt.Sprintf("demand[%d]", t+1), Terms: terms, Sense: solver.Equal, RHS: data.Demand[t]})
	}
	for g, gen := range data.Generators {
		for t := 0; t < T; t++ {
			p, u := d.p[g][t], d.u[g][t]
			d.m.AddConstraint(solver.Constraint{
				Name:  fmt.Sprintf("minpro[%s,%d]", gen.Name, t+1),
				Terms: []solver.Term{{Var: p, Coef: 1}, {Var: u, Coef: -gen.MinP}},
				Sense: solver.GreaterEqual,
			})
			d.m.AddConstraint(solver.Constraint{
				Name:  fmt.Sprintf("maxpro[%s,%d]", gen.Name, t+1),
				Terms: []solver.Term{{Var: p, Coef: 1}, {Var: u, Coef: -gen.MaxP}},
				Sense: solver.LessEqual,
			})
			up := []solver.Term{{Var: p, Coef: 1}}
			down := []solver.Term{{Var: p, Coef: -1}}
			if t > 0 {
				up = append(up, solver.Term{Var: d.p[g][t-1], Coef: -1})
				down = append(down, solver.Term{Var: d.p[g][t-1], Coef: 1})
			}
			d.m.AddConstraint(solver.Constraint{Name: fmt.Sprintf("rampup[%s,%d]", gen.Name, t+1), Terms: up, Sense: solver.LessEqual, RHS: gen.RampLimit})
			d.m.AddConstraint(solver.Constraint{Name: fmt.Sprintf("rampdown[%s,%d]", gen.Name, t+1), Terms: down, Sense: solver.LessEqual, RHS: gen.RampLimit})
		}
	}
	return d, nil
}

// Solve runs the oracle and extracts the schedule. Iterations is always 1.
func (d *Model) Solve(ctx context.Context, oracle solver.Oracle, opts solver.MIPOptions) (*model.Schedule, error) {
	opts.Callback = nil
	sol, err := oracle.SolveMIP(ctx, d.m, opts)
	if err != nil {
		return nil, &benders.SolverFailure{Model: "direct", Iteration: 1, Status: sol.Status, Err: err}
	}
	G, T := d.data.G(), d.data.T()
	s := &model.Schedule{
		Commitment: model.NewCommitment(G, T),
		Dispatch: model.Dispatch{
			Production: make([][]float64, G),
			Shedding:   make([]float64, T),
		},
		TotalCost:  sol.Objective,
		Iterations: 1,
		LowerBound: sol.Objective,
		UpperBound: sol.Objective,
		Converged:  true,
	}
	for g := 0; g < G; g++ {
		s.Dispatch.Production[g] = make([]float64, T)
		for t := 0; t < T; t++ {
			if sol.Value(d.u[g][t]) > 0.5 {
				s.Commitment[g][t] = 1
			}
			s.Dispatch.Production[g][t] = sol.Value(d.p[g][t])
		}
	}
	for t := 0; t < T; t++ {
		s.Dispatch.Shedding[t] = sol.Value(d.shed[t])
	}
	return s, nil
}
