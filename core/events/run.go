package events

import "time"

// RunEvent summarises a finished solve run.
type RunEvent struct {
	RunID      string
	Mode       string
	Status     string
	Converged  bool
	Iterations int
	Cuts       int
	TotalCost  float64
	LowerBound float64
	UpperBound float64
	Duration   time.Duration
	Err        error
	Time       time.Time
}
