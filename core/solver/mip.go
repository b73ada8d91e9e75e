package solver

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
)

// SolveMIP runs a best-bound branch-and-bound over the binary columns of m.
// Workers explore nodes concurrently; opts.Callback, when set, is consulted
// at every integer-feasible node and may return lazy cuts.
func (s *Gonum) SolveMIP(ctx context.Context, m *Model, opts MIPOptions) (*Solution, error) {
	opts.setDefaults()
	if !m.HasIntegers() && opts.Callback == nil {
		return s.SolveLP(ctx, m)
	}
	lower, upper := m.bounds()
	sr := &search{
		oracle:  s,
		model:   m,
		opts:    opts,
		incObj:  math.Inf(1),
		pending: &nodeQueue{},
	}
	sr.cond = sync.NewCond(&sr.mu)
	sr.push(&node{lower: lower, upper: upper, bound: math.Inf(-1)})

	stop := context.AfterFunc(ctx, sr.halt)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		g.Go(func() error { return sr.work(gctx) })
	}
	err := g.Wait()

	sol := &Solution{Status: Optimal, Nodes: sr.nodes}
	if sr.incumbent != nil {
		sol.Primal = sr.incumbent
		sol.Objective = sr.incObj
		if sr.incCommit != nil {
			sr.incCommit()
		}
	}
	switch {
	case err != nil:
		sol.Status = Error
		if sr.unbounded {
			sol.Status = Unbounded
			return sol, ErrUnbounded
		}
		return sol, err
	case ctx.Err() != nil:
		sol.Status = Interrupted
		return sol, ctx.Err()
	case sr.limitHit:
		sol.Status = Interrupted
		return sol, ErrNodeLimit
	case sr.incumbent == nil:
		sol.Status = Infeasible
		return sol, ErrInfeasible
	}
	return sol, nil
}

type node struct {
	id     int64
	depth  int
	lower  []float64
	upper  []float64
	cuts   []Constraint
	bound  float64
	cutRnd int
}

// nodeQueue orders open nodes by bound, deeper nodes first on ties.
type nodeQueue []*node

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].bound != q[j].bound {
		return q[i].bound < q[j].bound
	}
	return q[i].depth > q[j].depth
}
func (q nodeQueue) Swap(i, j int)  { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)    { *q = append(*q, x.(*node)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}

type search struct {
	oracle *Gonum
	model  *Model
	opts   MIPOptions

	mu        sync.Mutex
	cond      *sync.Cond
	pending   *nodeQueue
	active    int
	halted    bool
	limitHit  bool
	unbounded bool
	nextID    int64
	nodes     int64

	incumbent []float64
	incObj    float64
	incCommit func()

	globalCuts []Constraint
}

func (s *search) halt() {
	s.mu.Lock()
	s.halted = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *search) push(n *node) {
	s.mu.Lock()
	n.id = s.nextID
	s.nextID++
	heap.Push(s.pending, n)
	s.cond.Signal()
	s.mu.Unlock()
}

// next blocks until a node is available or the search is over.
func (s *search) next() (*node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pending.Len() == 0 && s.active > 0 && !s.halted {
		s.cond.Wait()
	}
	if s.halted || s.pending.Len() == 0 {
		s.halted = true
		s.cond.Broadcast()
		return nil, false
	}
	if s.opts.NodeLimit > 0 && s.nodes >= s.opts.NodeLimit {
		s.limitHit = true
		s.halted = true
		s.cond.Broadcast()
		return nil, false
	}
	n := heap.Pop(s.pending).(*node)
	s.active++
	s.nodes++
	return n, true
}

func (s *search) done() {
	s.mu.Lock()
	s.active--
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *search) work(ctx context.Context) error {
	for {
		n, ok := s.next()
		if !ok {
			return nil
		}
		err := s.process(ctx, n)
		s.done()
		if err != nil {
			s.halt()
			return err
		}
	}
}

func (s *search) prunable(bound float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bound >= s.incObj-s.opts.GapTol
}

func (s *search) cutsFor(n *node) []Constraint {
	s.mu.Lock()
	global := s.globalCuts[:len(s.globalCuts):len(s.globalCuts)]
	s.mu.Unlock()
	if len(global) == 0 {
		return n.cuts
	}
	return append(global, n.cuts...)
}

func (s *search) offer(obj float64, x []float64, commit func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj < s.incObj-s.opts.GapTol || s.incumbent == nil {
		s.incObj = obj
		s.incumbent = x
		s.incCommit = commit
	}
}

// process solves one node, re-solving it as long as the callback returns
// cuts, then either branches, prunes or offers an incumbent.
func (s *search) process(ctx context.Context, n *node) error {
	for {
		if s.prunable(n.bound) {
			return nil
		}
		sol, err := s.oracle.relax(s.model, n.lower, n.upper, s.cutsFor(n), false)
		switch sol.Status {
		case Infeasible:
			return nil
		case Unbounded:
			s.mu.Lock()
			s.unbounded = true
			s.mu.Unlock()
			return err
		case Optimal:
		default:
			return err
		}
		n.bound = math.Max(n.bound, sol.Objective)
		if s.prunable(sol.Objective) {
			return nil
		}
		if j := s.branchVariable(sol.Primal); j >= 0 {
			s.branch(n, j, sol.Primal[j])
			return nil
		}
		x := s.round(sol.Primal)
		obj := s.model.Objective(x)
		if s.opts.Callback == nil {
			s.offer(obj, x, nil)
			return nil
		}
		dec, err := s.opts.Callback(ctx, NodeState{ID: n.id, Depth: n.depth, Objective: obj, values: x})
		if err != nil {
			return err
		}
		if len(dec.Cuts) == 0 {
			s.offer(obj, x, dec.Commit)
			return nil
		}
		if err := s.addCuts(n, dec, x); err != nil {
			return err
		}
		if n.cutRnd++; n.cutRnd > s.opts.MaxCutRounds {
			return fmt.Errorf("solver: node %d exceeded %d cut rounds", n.id, s.opts.MaxCutRounds)
		}
	}
}

func (s *search) addCuts(n *node, dec NodeDecision, x []float64) error {
	cuts := make([]Constraint, len(dec.Cuts))
	separated := false
	for i, c := range dec.Cuts {
		c.Terms = normalize(c.Terms)
		cuts[i] = c
		if c.Violation(x) > s.opts.CutTol {
			separated = true
		}
	}
	if !separated {
		return ErrCutNotTight
	}
	if dec.Scope == ScopeGlobal {
		s.mu.Lock()
		s.globalCuts = append(s.globalCuts, cuts...)
		s.mu.Unlock()
		return nil
	}
	n.cuts = append(n.cuts[:len(n.cuts):len(n.cuts)], cuts...)
	return nil
}

// branchVariable returns the most fractional binary column, or -1.
func (s *search) branchVariable(x []float64) int {
	best, bestDist := -1, s.opts.IntegralityTol
	for j, v := range s.model.vars {
		if v.Kind != Binary {
			continue
		}
		f := x[j] - math.Floor(x[j])
		if d := math.Min(f, 1-f); d > bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

func (s *search) branch(n *node, j int, v float64) {
	down := &node{depth: n.depth + 1, lower: clone(n.lower), upper: clone(n.upper), cuts: n.cuts[:len(n.cuts):len(n.cuts)], bound: n.bound}
	up := &node{depth: n.depth + 1, lower: clone(n.lower), upper: clone(n.upper), cuts: n.cuts[:len(n.cuts):len(n.cuts)], bound: n.bound}
	down.upper[j] = math.Floor(v)
	up.lower[j] = math.Ceil(v)
	s.push(down)
	s.push(up)
}

func (s *search) round(x []float64) []float64 {
	out := clone(x)
	for j, v := range s.model.vars {
		if v.Kind == Binary {
			out[j] = math.Round(out[j])
		}
	}
	return out
}

func clone(v []float64) []float64 { return append([]float64(nil), v...) }
