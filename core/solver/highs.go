//go:build highs

package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lanl/highs"
)

// HiGHS implements Oracle on the HiGHS solver through cgo. LPs and plain
// MIPs are solved by HiGHS; the bindings expose no node callback, so a
// MIP carrying a Callback is handed to Fallback.
type HiGHS struct {
	Fallback *Gonum
}

// NewHiGHS returns a HiGHS backed oracle. A nil fallback gets the default
// gonum search.
func NewHiGHS(fallback *Gonum) *HiGHS {
	if fallback == nil {
		fallback = NewGonum(0)
	}
	return &HiGHS{Fallback: fallback}
}

// SolveLP solves the continuous relaxation of m. Row duals come straight
// from HiGHS, which reports them as the derivative of the objective with
// respect to the row bound.
func (h *HiGHS) SolveLP(ctx context.Context, m *Model) (*Solution, error) {
	raw, err := h.load(ctx, m, false)
	if err != nil {
		return &Solution{Status: Error}, err
	}
	res, err := raw.Solve()
	if err != nil {
		return &Solution{Status: Error}, fmt.Errorf("solver: %s: %w", m.Name, err)
	}
	sol, err := h.solution(ctx, m, res, 0)
	if err != nil {
		return sol, err
	}
	if len(res.RowDual) != m.NumRows() {
		sol.Status = Error
		return sol, fmt.Errorf("%w: %s: highs reported no dual solution", ErrDualRecovery, m.Name)
	}
	sol.Dual = append([]float64(nil), res.RowDual...)
	return sol, nil
}

// SolveMIP solves m with the HiGHS branch-and-cut. opts.Workers is left to
// HiGHS, which sizes its own thread pool.
func (h *HiGHS) SolveMIP(ctx context.Context, m *Model, opts MIPOptions) (*Solution, error) {
	if opts.Callback != nil {
		return h.Fallback.SolveMIP(ctx, m, opts)
	}
	opts.setDefaults()
	raw, err := h.load(ctx, m, true)
	if err != nil {
		return &Solution{Status: Error}, err
	}
	for name, v := range map[string]float64{
		"mip_rel_gap":               opts.GapTol,
		"mip_feasibility_tolerance": opts.IntegralityTol,
	} {
		if err := raw.SetFloat64Option(name, v); err != nil {
			return &Solution{Status: Error}, fmt.Errorf("solver: highs option %s: %w", name, err)
		}
	}
	if opts.NodeLimit > 0 {
		if err := raw.SetIntOption("mip_max_nodes", int(opts.NodeLimit)); err != nil {
			return &Solution{Status: Error}, fmt.Errorf("solver: highs option mip_max_nodes: %w", err)
		}
	}
	res, err := raw.Solve()
	if err != nil {
		return &Solution{Status: Error}, fmt.Errorf("solver: %s: %w", m.Name, err)
	}
	nodes, _ := res.GetInt64Info("mip_node_count")
	sol, err := h.solution(ctx, m, res, opts.NodeLimit)
	sol.Nodes = nodes
	if err != nil {
		return sol, err
	}
	for j, v := range m.vars {
		if v.Kind == Binary {
			sol.Primal[j] = math.Round(sol.Primal[j])
		}
	}
	sol.Objective = m.Objective(sol.Primal)
	return sol, nil
}

// load copies m into a fresh HiGHS model. Binary columns are declared
// integer only when integer is set.
func (h *HiGHS) load(ctx context.Context, m *Model, integer bool) (*highs.RawModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.NumRows() == 0 {
		return nil, fmt.Errorf("solver: %s: highs needs at least one row", m.Name)
	}
	n := m.NumVars()
	hm := highs.Model{
		ColCosts: make([]float64, n),
		ColLower: make([]float64, n),
		ColUpper: make([]float64, n),
		RowLower: make([]float64, m.NumRows()),
		RowUpper: make([]float64, m.NumRows()),
	}
	if integer {
		hm.VarTypes = make([]highs.VariableType, n)
	}
	for j, v := range m.vars {
		hm.ColCosts[j], hm.ColLower[j], hm.ColUpper[j] = v.Cost, v.Lower, v.Upper
		if v.Kind == Binary {
			hm.ColLower[j], hm.ColUpper[j] = math.Max(v.Lower, 0), math.Min(v.Upper, 1)
			if integer {
				hm.VarTypes[j] = highs.IntegerType
			}
		}
	}
	for i, c := range m.rows {
		lo, up := math.Inf(-1), math.Inf(1)
		switch c.Sense {
		case LessEqual:
			up = c.RHS
		case GreaterEqual:
			lo = c.RHS
		default:
			lo, up = c.RHS, c.RHS
		}
		hm.RowLower[i], hm.RowUpper[i] = lo, up
		for _, t := range c.Terms {
			hm.ConstMatrix = append(hm.ConstMatrix, highs.Nonzero{Row: i, Col: int(t.Var), Val: t.Coef})
		}
	}

	raw, err := hm.ToRawModel()
	if err != nil {
		return nil, fmt.Errorf("solver: %s: %w", m.Name, err)
	}
	if err := raw.SetBoolOption("output_flag", false); err != nil {
		return nil, fmt.Errorf("solver: highs option output_flag: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline).Seconds()
		if left <= 0 {
			return nil, context.DeadlineExceeded
		}
		if err := raw.SetFloat64Option("time_limit", left); err != nil {
			return nil, fmt.Errorf("solver: highs option time_limit: %w", err)
		}
	}
	return raw, nil
}

// solution maps the HiGHS model status onto the Oracle statuses.
func (h *HiGHS) solution(ctx context.Context, m *Model, res *highs.RawSolution, nodeLimit int64) (*Solution, error) {
	switch res.Status {
	case highs.Optimal:
		x := append([]float64(nil), res.ColumnPrimal...)
		return &Solution{Status: Optimal, Objective: m.Objective(x), Primal: x}, nil
	case highs.Infeasible:
		return &Solution{Status: Infeasible}, ErrInfeasible
	case highs.Unbounded:
		return &Solution{Status: Unbounded}, ErrUnbounded
	case highs.TimeLimit:
		if err := ctx.Err(); err != nil {
			return &Solution{Status: Interrupted}, err
		}
		return &Solution{Status: Interrupted}, context.DeadlineExceeded
	}
	if nodeLimit > 0 && res.Status != highs.UnboundedOrInfeasible {
		return &Solution{Status: Error}, fmt.Errorf("%w: %s ended with %s", ErrNodeLimit, m.Name, res.Status)
	}
	return &Solution{Status: Error}, errors.New("solver: " + m.Name + ": highs ended with " + res.Status.String())
}
