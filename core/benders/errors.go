package benders

import (
	"errors"
	"fmt"

	"github.com/kilianp07/unitcommit/core/solver"
)

var (
	// ErrIterationBudget is the cause of a ConvergenceError raised by MaxIterations.
	ErrIterationBudget = errors.New("iteration budget exhausted")
	// ErrTimeBudget is the cause of a ConvergenceError raised by the time budget.
	ErrTimeBudget = errors.New("time budget exhausted")
	// ErrNotSolved is returned when results are read before a successful solve.
	ErrNotSolved = errors.New("model not solved")
	// ErrFeasibilityCut rejects cuts of the feasibility kind: shedding keeps
	// every dispatch LP feasible, so the master only accepts optimality cuts.
	ErrFeasibilityCut = errors.New("feasibility cuts are not supported")
)

// SolverFailure reports a model the oracle could not solve to optimality.
// Both the master and the dispatch model are solvable by construction, so
// a failure aborts the run.
type SolverFailure struct {
	Model     string
	Iteration int
	Status    solver.Status
	Err       error
}

func (e *SolverFailure) Error() string {
	return fmt.Sprintf("%s solve failed at iteration %d (%s): %v", e.Model, e.Iteration, e.Status, e.Err)
}

func (e *SolverFailure) Unwrap() error { return e.Err }

// ConvergenceError is returned when a budget or the context ends the loop
// before the bound gap closed. The accompanying schedule holds the best
// solution seen so far.
type ConvergenceError struct {
	Iterations int
	LowerBound float64
	UpperBound float64
	Cause      error
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("not converged after %d iterations (lower %.6g, upper %.6g): %v", e.Iterations, e.LowerBound, e.UpperBound, e.Cause)
}

func (e *ConvergenceError) Unwrap() error { return e.Cause }

func failure(model string, sol *solver.Solution, err error) *SolverFailure {
	st := solver.Error
	if sol != nil {
		st = sol.Status
	}
	return &SolverFailure{Model: model, Status: st, Err: err}
}

// atIteration stamps the iteration on a SolverFailure.
func atIteration(err error, iter int) error {
	var sf *SolverFailure
	if errors.As(err, &sf) {
		sf.Iteration = iter
	}
	return err
}
