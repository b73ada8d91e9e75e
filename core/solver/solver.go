// Package solver defines the oracle contract consumed by the decomposition
// code and ships an implementation on top of gonum's simplex.
package solver

import (
	"context"
	"errors"
	"fmt"
)

// Status is the outcome reported by an Oracle.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	Error
	// Interrupted means the search stopped early (context or node limit);
	// the solution holds the best incumbent found, if any.
	Interrupted
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case Error:
		return "error"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

var (
	ErrInfeasible   = errors.New("solver: model is infeasible")
	ErrUnbounded    = errors.New("solver: model is unbounded")
	ErrNodeLimit    = errors.New("solver: node limit reached")
	ErrCutNotTight  = errors.New("solver: lazy cut does not separate the candidate")
	ErrDualRecovery = errors.New("solver: dual recovery failed")
)

// Solution is the result of one oracle call.
type Solution struct {
	Status    Status
	Objective float64
	Primal    []float64
	// Dual holds one price per model row (∂objective/∂rhs); only LP solves
	// fill it.
	Dual  []float64
	Nodes int64
}

// Value returns the primal value of a variable.
func (s *Solution) Value(v VarID) float64 { return s.Primal[v] }

// DualOf returns the dual price of a constraint row.
func (s *Solution) DualOf(r RowID) float64 { return s.Dual[r] }

// Oracle solves linear and mixed-binary models. A non-nil error is returned
// whenever the status is not Optimal; the solution is always non-nil.
type Oracle interface {
	SolveLP(ctx context.Context, m *Model) (*Solution, error)
	SolveMIP(ctx context.Context, m *Model, opts MIPOptions) (*Solution, error)
}

// CutScope selects where a lazy cut applies.
type CutScope int

const (
	// ScopeLocal restricts the cut to the node that produced it and its
	// descendants.
	ScopeLocal CutScope = iota
	// ScopeGlobal adds the cut to every node explored afterwards.
	ScopeGlobal
)

// NodeState is the read-only view of an integer-feasible node handed to a
// NodeCallback.
type NodeState struct {
	ID        int64
	Depth     int
	Objective float64
	values    []float64
}

// Value returns the node's value of a variable.
func (n NodeState) Value(v VarID) float64 { return n.values[v] }

// NodeDecision is returned by a NodeCallback. Without cuts the node is
// offered as incumbent; Commit is then invoked once, after the search has
// ended, if and only if this node is the final incumbent.
type NodeDecision struct {
	Cuts   []Constraint
	Scope  CutScope
	Commit func()
}

// NodeCallback is invoked at every integer-feasible node, possibly from
// several goroutines at once.
type NodeCallback func(ctx context.Context, node NodeState) (NodeDecision, error)

// MIPOptions tunes the branch-and-bound search.
type MIPOptions struct {
	Workers        int
	NodeLimit      int64
	IntegralityTol float64
	// GapTol prunes nodes whose bound is within GapTol of the incumbent.
	GapTol float64
	// MaxCutRounds bounds the number of re-solves of a single node after
	// lazy cuts were added.
	MaxCutRounds int
	// CutTol is the violation a lazy cut must have at the candidate it was
	// generated for.
	CutTol   float64
	Callback NodeCallback
}

func (o *MIPOptions) setDefaults() {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.IntegralityTol <= 0 {
		o.IntegralityTol = 1e-6
	}
	if o.GapTol <= 0 {
		o.GapTol = 1e-9
	}
	if o.MaxCutRounds <= 0 {
		o.MaxCutRounds = 200
	}
	if o.CutTol <= 0 {
		o.CutTol = 1e-9
	}
}

func statusErr(s Status, cause error) error {
	switch s {
	case Optimal:
		return nil
	case Infeasible:
		return ErrInfeasible
	case Unbounded:
		return ErrUnbounded
	}
	if cause == nil {
		return fmt.Errorf("solver: %s", s)
	}
	return cause
}
