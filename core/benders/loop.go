package benders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/unitcommit/core/events"
	"github.com/kilianp07/unitcommit/core/logger"
	"github.com/kilianp07/unitcommit/core/metrics"
	"github.com/kilianp07/unitcommit/core/model"
	"github.com/kilianp07/unitcommit/core/solver"
	"github.com/kilianp07/unitcommit/internal/eventbus"
)

// State is a step of the decomposition state machine.
type State int

const (
	StateInit State = iota
	StateMasterSolved
	StateDispatchSolved
	StateCutAdded
	StateConverged
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateMasterSolved:
		return "master_solved"
	case StateDispatchSolved:
		return "dispatch_solved"
	case StateCutAdded:
		return "cut_added"
	case StateConverged:
		return "converged"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Loop orchestrates master and dispatch solves until the bound gap closes.
// A Loop runs one solve at a time; it is not safe for concurrent use.
type Loop struct {
	data   *model.ProblemData
	oracle solver.Oracle
	cfg    Config
	logger logger.Logger
	bus    eventbus.EventBus
	sink   metrics.MetricsSink
	runID  string

	state  State
	master *MasterModel
}

// NewLoop validates data and cfg and returns a ready loop.
func NewLoop(data *model.ProblemData, oracle solver.Oracle, cfg Config, log logger.Logger) (*Loop, error) {
	if data == nil || oracle == nil {
		return nil, fmt.Errorf("benders: nil parameter provided to NewLoop")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("benders: %w", err)
	}
	data, err := data.Normalized()
	if err != nil {
		return nil, err
	}
	return &Loop{
		data:   data,
		oracle: oracle,
		cfg:    cfg,
		logger: logger.OrNop(log),
		sink:   metrics.NopSink{},
	}, nil
}

// SetEventBus configures the bus receiving IterationEvents.
func (l *Loop) SetEventBus(bus eventbus.EventBus) { l.bus = bus }

// SetMetricsSink configures the sink recording iterations.
func (l *Loop) SetMetricsSink(sink metrics.MetricsSink) {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	l.sink = sink
}

// SetRunID tags every emitted event.
func (l *Loop) SetRunID(id string) { l.runID = id }

// State returns the state reached by the last Run.
func (l *Loop) State() State { return l.state }

// Master returns the master of the last run, nil before the first one.
func (l *Loop) Master() *MasterModel { return l.master }

// Solve runs the variant selected by the configured mode.
func (l *Loop) Solve(ctx context.Context) (*model.Schedule, error) {
	if l.cfg.Mode == ModeEmbedded {
		return l.RunEmbedded(ctx)
	}
	return l.Run(ctx)
}

func (l *Loop) mipOptions() solver.MIPOptions {
	return solver.MIPOptions{Workers: l.cfg.Workers, NodeLimit: l.cfg.NodeLimit}
}

func (l *Loop) withBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	if b := l.cfg.TimeBudget(); b > 0 {
		return context.WithTimeoutCause(ctx, b, ErrTimeBudget)
	}
	return context.WithCancel(ctx)
}

// incumbent is the best commitment evaluated so far.
type incumbent struct {
	u     model.Commitment
	disp  model.Dispatch
	upper float64
}

// Run executes the iterative loop: solve the master, evaluate its
// commitment, stop when phi + ε covers the dispatch cost, otherwise add the
// optimality cut and repeat. Iterations counts master solves.
//
// When a budget or ctx ends the loop first, the best schedule seen so far is
// returned together with a *ConvergenceError.
func (l *Loop) Run(ctx context.Context) (*model.Schedule, error) {
	ctx, cancel := l.withBudget(ctx)
	defer cancel()

	l.state = StateInit
	l.master = NewMasterModel(l.data, l.oracle, l.mipOptions())
	best := incumbent{upper: math.Inf(1)}
	lower := math.Inf(-1)
	iter := 0

	stop := func(cause error) (*model.Schedule, error) {
		s := l.partial(best, lower, iter)
		l.logger.Warnf("decomposition stopped after %d iterations: %v", iter, cause)
		return s, &ConvergenceError{Iterations: iter, LowerBound: lower, UpperBound: best.upper, Cause: cause}
	}

	for {
		if l.cfg.MaxIterations > 0 && iter >= l.cfg.MaxIterations {
			return stop(ErrIterationBudget)
		}
		if ctx.Err() != nil {
			return stop(context.Cause(ctx))
		}
		iter++

		start := time.Now()
		if err := l.master.Solve(ctx); err != nil {
			if ctx.Err() != nil {
				return stop(context.Cause(ctx))
			}
			if errors.Is(err, solver.ErrNodeLimit) {
				return stop(solver.ErrNodeLimit)
			}
			return l.partial(best, lower, iter), atIteration(err, iter)
		}
		masterDur := time.Since(start)
		l.state = StateMasterSolved
		u, err := l.master.Commitment()
		if err != nil {
			return nil, err
		}
		lower = math.Max(lower, l.master.ObjectiveValue())

		start = time.Now()
		sub, err := NewDispatchSubproblem(l.data, l.oracle, u)
		if err != nil {
			return nil, err
		}
		if err := sub.Solve(ctx); err != nil {
			if ctx.Err() != nil {
				return stop(context.Cause(ctx))
			}
			return l.partial(best, lower, iter), atIteration(err, iter)
		}
		dispatchDur := time.Since(start)
		l.state = StateDispatchSolved
		dispObj := sub.ObjectiveValue()
		if upper := l.data.FirstStageCost(u) + dispObj; upper < best.upper {
			disp, err := sub.PrimalSolution()
			if err != nil {
				return nil, err
			}
			best = incumbent{u: u, disp: disp, upper: upper}
		}

		ev := events.IterationEvent{
			Iteration:         iter,
			LowerBound:        lower,
			UpperBound:        best.upper,
			MasterBound:       l.master.CurrentBound(),
			DispatchObjective: dispObj,
			Cuts:              len(l.master.cuts),
			MasterDuration:    masterDur,
			DispatchDuration:  dispatchDur,
		}

		if l.master.CurrentBound()+l.cfg.Epsilon >= dispObj {
			l.state = StateConverged
			ev.State = l.state.String()
			l.emit(ev)
			disp, err := sub.PrimalSolution()
			if err != nil {
				return nil, err
			}
			l.logger.Infof("decomposition converged after %d iterations, cost %.4f", iter, l.master.ObjectiveValue())
			return &model.Schedule{
				Commitment: u,
				Dispatch:   disp,
				TotalCost:  l.master.ObjectiveValue(),
				Iterations: iter,
				Cuts:       len(l.master.cuts),
				LowerBound: lower,
				UpperBound: best.upper,
				Converged:  true,
			}, nil
		}

		pi, err := sub.DualPrices()
		if err != nil {
			return nil, err
		}
		if err := l.master.AddOptimalityCut(BuildOptimalityCut(l.data, pi)); err != nil {
			return nil, err
		}
		l.state = StateCutAdded
		ev.State = l.state.String()
		ev.Cuts = len(l.master.cuts)
		l.emit(ev)
	}
}

// partial builds the schedule of a run that did not converge.
func (l *Loop) partial(best incumbent, lower float64, iter int) *model.Schedule {
	s := &model.Schedule{
		Commitment: best.u,
		Dispatch:   best.disp,
		TotalCost:  best.upper,
		Iterations: iter,
		LowerBound: lower,
		UpperBound: best.upper,
	}
	if l.master != nil {
		s.Cuts = len(l.master.cuts)
	}
	return s
}

func (l *Loop) emit(ev events.IterationEvent) {
	ev.RunID = l.runID
	ev.Mode = l.cfg.Mode
	ev.Time = time.Now()
	if l.bus != nil {
		l.bus.Publish(ev)
	}
	if err := l.sink.RecordIteration(ev); err != nil {
		l.logger.Errorf("iteration metrics error: %v", err)
	}
	l.logger.Debugw("iteration", map[string]any{
		"iteration": ev.Iteration,
		"node":      ev.Node,
		"state":     ev.State,
		"lower":     ev.LowerBound,
		"upper":     ev.UpperBound,
		"phi":       ev.MasterBound,
		"dispatch":  ev.DispatchObjective,
		"cuts":      ev.Cuts,
	})
}

// IsBudgetStop reports whether err ended a run early without a solver fault.
func IsBudgetStop(err error) bool {
	var ce *ConvergenceError
	return errors.As(err, &ce)
}
