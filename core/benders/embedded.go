package benders

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/unitcommit/core/events"
	"github.com/kilianp07/unitcommit/core/model"
	"github.com/kilianp07/unitcommit/core/solver"
)

// nodeHandler evaluates integer-feasible master nodes. Each invocation owns
// its DispatchSubproblem; only the accepted incumbent's Commit writes to
// the shared result, under mu.
type nodeHandler struct {
	loop   *Loop
	master *MasterModel
	eps    float64
	scope  solver.CutScope

	evaluations atomic.Int64
	cuts        atomic.Int64

	mu   sync.Mutex
	best *incumbent
}

func (h *nodeHandler) handle(ctx context.Context, n solver.NodeState) (solver.NodeDecision, error) {
	l := h.loop
	u := h.master.commitmentOf(n.Value)
	phi := n.Value(h.master.phi)
	iter := int(h.evaluations.Add(1))

	start := time.Now()
	sub, err := NewDispatchSubproblem(l.data, l.oracle, u)
	if err != nil {
		return solver.NodeDecision{}, err
	}
	if err := sub.Solve(ctx); err != nil {
		return solver.NodeDecision{}, atIteration(err, iter)
	}
	dispObj := sub.ObjectiveValue()
	ev := events.IterationEvent{
		Iteration:         iter,
		Node:              n.ID,
		UpperBound:        l.data.FirstStageCost(u) + dispObj,
		MasterBound:       phi,
		DispatchObjective: dispObj,
		DispatchDuration:  time.Since(start),
	}

	if dispObj <= phi+h.eps {
		disp, err := sub.PrimalSolution()
		if err != nil {
			return solver.NodeDecision{}, err
		}
		cand := &incumbent{u: u, disp: disp, upper: ev.UpperBound}
		ev.State = "accepted"
		ev.Cuts = int(h.cuts.Load())
		l.emit(ev)
		return solver.NodeDecision{Commit: func() {
			h.mu.Lock()
			h.best = cand
			h.mu.Unlock()
		}}, nil
	}

	pi, err := sub.DualPrices()
	if err != nil {
		return solver.NodeDecision{}, err
	}
	seq := int(h.cuts.Add(1))
	row, err := h.master.cutRow(BuildOptimalityCut(l.data, pi), seq-1)
	if err != nil {
		return solver.NodeDecision{}, err
	}
	ev.State = StateCutAdded.String()
	ev.Cuts = seq
	l.emit(ev)
	return solver.NodeDecision{Cuts: []solver.Constraint{row}, Scope: h.scope}, nil
}

// RunEmbedded solves the master once and evaluates every integer-feasible
// node it finds inside the branch-and-bound search, injecting lazy cuts
// instead of restarting. Iterations counts dispatch evaluations.
func (l *Loop) RunEmbedded(ctx context.Context) (*model.Schedule, error) {
	ctx, cancel := l.withBudget(ctx)
	defer cancel()

	l.state = StateInit
	l.master = NewMasterModel(l.data, l.oracle, l.mipOptions())
	h := &nodeHandler{loop: l, master: l.master, eps: l.cfg.EmbeddedEpsilon, scope: solver.ScopeLocal}
	if l.cfg.GlobalCuts {
		h.scope = solver.ScopeGlobal
	}
	opts := l.mipOptions()
	opts.Callback = h.handle

	err := l.master.solve(ctx, opts)

	h.mu.Lock()
	best := h.best
	h.mu.Unlock()
	iter := int(h.evaluations.Load())
	cuts := int(h.cuts.Load())

	if err != nil {
		inc := incumbent{upper: math.Inf(1)}
		if best != nil {
			inc = *best
		}
		s := l.partial(inc, math.Inf(-1), iter)
		s.Cuts = cuts
		var cause error
		switch {
		case ctx.Err() != nil:
			cause = context.Cause(ctx)
		case errors.Is(err, solver.ErrNodeLimit):
			cause = solver.ErrNodeLimit
		}
		if cause != nil {
			l.logger.Warnf("embedded decomposition stopped after %d evaluations: %v", iter, cause)
			return s, &ConvergenceError{Iterations: iter, LowerBound: s.LowerBound, UpperBound: inc.upper, Cause: cause}
		}
		return s, err
	}
	if best == nil {
		return nil, &SolverFailure{Model: "master", Status: solver.Error, Err: errors.New("search ended without a committed incumbent")}
	}
	l.state = StateConverged
	l.logger.Infof("embedded decomposition finished: %d evaluations, %d cuts, %d nodes, cost %.4f",
		iter, cuts, l.master.Nodes(), l.master.ObjectiveValue())
	return &model.Schedule{
		Commitment: best.u,
		Dispatch:   best.disp,
		TotalCost:  l.master.ObjectiveValue(),
		Iterations: iter,
		Cuts:       cuts,
		LowerBound: l.master.ObjectiveValue(),
		UpperBound: best.upper,
		Converged:  true,
	}, nil
}
