package benders

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/unitcommit/core/model"
	"github.com/kilianp07/unitcommit/core/solver"
)

// MasterModel is the commitment MILP: binary u[g,t], startup cost c[g,t]
// and the second-stage cost approximation phi. Cuts only ever get appended.
type MasterModel struct {
	data   *model.ProblemData
	oracle solver.Oracle
	opts   solver.MIPOptions

	m   *solver.Model
	u   [][]solver.VarID
	c   [][]solver.VarID
	phi solver.VarID

	cuts []model.Cut
	sol  *solver.Solution
}

// NewMasterModel builds the master for data. opts is used by every Solve;
// its Callback is ignored there.
func NewMasterModel(data *model.ProblemData, oracle solver.Oracle, opts solver.MIPOptions) *MasterModel {
	mm := &MasterModel{data: data, oracle: oracle, opts: opts, m: solver.NewModel("master")}
	mm.opts.Callback = nil
	G, T := data.G(), data.T()
	mm.u = make([][]solver.VarID, G)
	mm.c = make([][]solver.VarID, G)
	for g, gen := range data.Generators {
		mm.u[g] = make([]solver.VarID, T)
		mm.c[g] = make([]solver.VarID, T)
		for t := 0; t < T; t++ {
			mm.u[g][t] = mm.m.AddVar(fmt.Sprintf("u[%s,%d]", gen.Name, t+1), solver.Binary, 0, 1, gen.OnlineCost)
			mm.c[g][t] = mm.m.AddVar(fmt.Sprintf("c[%s,%d]", gen.Name, t+1), solver.Continuous, 0, math.Inf(1), 1)
		}
	}
	mm.phi = mm.m.AddVar("phi", solver.Continuous, 0, math.Inf(1), 1)
	AddCommitmentConstraints(mm.m, data, mm.u, mm.c)
	return mm
}

// Solve runs the oracle on the current master.
func (mm *MasterModel) Solve(ctx context.Context) error {
	return mm.solve(ctx, mm.opts)
}

func (mm *MasterModel) solve(ctx context.Context, opts solver.MIPOptions) error {
	sol, err := mm.oracle.SolveMIP(ctx, mm.m, opts)
	if err != nil {
		mm.sol = nil
		// a dispatch failure raised inside the node callback keeps its model
		// and iteration
		var sf *SolverFailure
		if errors.As(err, &sf) {
			return sf
		}
		if sol != nil && sol.Status == solver.Optimal {
			sol.Status = solver.Error
		}
		return failure("master", sol, err)
	}
	mm.sol = sol
	return nil
}

// Commitment returns the on/off matrix of the last solve.
func (mm *MasterModel) Commitment() (model.Commitment, error) {
	if mm.sol == nil {
		return nil, ErrNotSolved
	}
	return mm.commitmentOf(mm.sol.Value), nil
}

func (mm *MasterModel) commitmentOf(value func(solver.VarID) float64) model.Commitment {
	u := model.NewCommitment(mm.data.G(), mm.data.T())
	for g := range mm.u {
		for t, id := range mm.u[g] {
			if value(id) > 0.5 {
				u[g][t] = 1
			}
		}
	}
	return u
}

// CurrentBound returns phi at the last solve, the master's estimate of the
// second-stage cost.
func (mm *MasterModel) CurrentBound() float64 {
	if mm.sol == nil {
		return 0
	}
	return mm.sol.Value(mm.phi)
}

// ObjectiveValue returns startup + online cost + phi at the last solve.
func (mm *MasterModel) ObjectiveValue() float64 {
	if mm.sol == nil {
		return 0
	}
	return mm.sol.Objective
}

// LowerBound is the objective of the last solve, a lower bound on the
// optimal total cost.
func (mm *MasterModel) LowerBound() float64 { return mm.ObjectiveValue() }

// Nodes returns the branch-and-bound nodes explored by the last solve.
func (mm *MasterModel) Nodes() int64 {
	if mm.sol == nil {
		return 0
	}
	return mm.sol.Nodes
}

// AddOptimalityCut appends phi ≥ cut.Evaluate(u) as a permanent row.
// Duplicates are not detected.
func (mm *MasterModel) AddOptimalityCut(cut model.Cut) error {
	row, err := mm.cutRow(cut, len(mm.cuts))
	if err != nil {
		return err
	}
	mm.m.AddConstraint(row)
	mm.cuts = append(mm.cuts, cut)
	return nil
}

// Cuts returns the ordered cut log.
func (mm *MasterModel) Cuts() []model.Cut {
	return append([]model.Cut(nil), mm.cuts...)
}

// Replay appends every cut of a log, in order.
func (mm *MasterModel) Replay(cuts []model.Cut) error {
	for i, c := range cuts {
		if err := mm.AddOptimalityCut(c); err != nil {
			return fmt.Errorf("replay cut %d: %w", i, err)
		}
	}
	return nil
}

// cutRow rewrites Constant + Σ Coef·u - phi ≤ 0 as Σ Coef·u - phi ≤ -Constant.
func (mm *MasterModel) cutRow(cut model.Cut, seq int) (solver.Constraint, error) {
	if cut.Kind != model.CutOptimality {
		return solver.Constraint{}, ErrFeasibilityCut
	}
	if len(cut.Coef) != mm.data.G() {
		return solver.Constraint{}, fmt.Errorf("cut has %d generator rows, want %d", len(cut.Coef), mm.data.G())
	}
	terms := make([]solver.Term, 0, mm.data.G()*mm.data.T()+1)
	for g, row := range cut.Coef {
		if len(row) != mm.data.T() {
			return solver.Constraint{}, fmt.Errorf("cut row %d has %d periods, want %d", g, len(row), mm.data.T())
		}
		for t, k := range row {
			if k != 0 {
				terms = append(terms, solver.Term{Var: mm.u[g][t], Coef: k})
			}
		}
	}
	terms = append(terms, solver.Term{Var: mm.phi, Coef: -1})
	return solver.Constraint{
		Name:  fmt.Sprintf("cut[%d]", seq),
		Terms: terms,
		Sense: solver.LessEqual,
		RHS:   -cut.Constant,
	}, nil
}
