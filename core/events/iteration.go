package events

import "time"

// IterationEvent is published after every dispatch evaluation of a
// decomposition run. In embedded mode one event is emitted per
// integer-feasible node, Node identifies it and LowerBound stays zero
// since no global bound is known until the search ends.
type IterationEvent struct {
	RunID     string
	Mode      string
	Iteration int
	Node      int64
	// State is the loop state reached, e.g. "converged" or "cut_added".
	State             string
	LowerBound        float64
	UpperBound        float64
	MasterBound       float64
	DispatchObjective float64
	Cuts              int
	MasterDuration    time.Duration
	DispatchDuration  time.Duration
	Time              time.Time
}

// Gap returns the absolute distance between the bounds.
func (e IterationEvent) Gap() float64 { return e.UpperBound - e.LowerBound }
