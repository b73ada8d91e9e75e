package model

import "math"

// Commitment is the G×T on/off matrix produced by the master problem.
// Period 0, before the horizon starts, is implicitly off for every unit.
type Commitment [][]int

// NewCommitment allocates an all-off commitment for g generators and t periods.
func NewCommitment(g, t int) Commitment {
	u := make(Commitment, g)
	for i := range u {
		u[i] = make([]int, t)
	}
	return u
}

// On reports whether generator g is online at 0-based period t. Negative
// periods are before the horizon and always off.
func (u Commitment) On(g, t int) bool {
	if t < 0 {
		return false
	}
	return u[g][t] == 1
}

// Startups counts the off→on transitions of generator g.
func (u Commitment) Startups(g int) int {
	n := 0
	for t := range u[g] {
		if u.On(g, t) && !u.On(g, t-1) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (u Commitment) Clone() Commitment {
	c := make(Commitment, len(u))
	for i := range u {
		c[i] = append([]int(nil), u[i]...)
	}
	return c
}

// Equal reports whether both matrices hold the same schedule.
func (u Commitment) Equal(o Commitment) bool {
	if len(u) != len(o) {
		return false
	}
	for g := range u {
		if len(u[g]) != len(o[g]) {
			return false
		}
		for t := range u[g] {
			if u[g][t] != o[g][t] {
				return false
			}
		}
	}
	return true
}

// Dispatch holds the continuous second-stage decisions.
type Dispatch struct {
	Production [][]float64 `json:"production"` // G×T
	Shedding   []float64   `json:"shedding"`   // T
}

// DualPrices groups the dual values of one dispatch solve, one family per
// constraint kind.
type DualPrices struct {
	Demand        []float64
	MinProduction [][]float64
	MaxProduction [][]float64
	RampUp        [][]float64
	RampDown      [][]float64
}

// CutKind distinguishes optimality cuts from feasibility cuts.
type CutKind int

const (
	// CutOptimality bounds phi from below: Constant + Σ Coef·u − phi ≤ 0.
	CutOptimality CutKind = iota
	// CutFeasibility would exclude a commitment outright: Constant + Σ Coef·u ≤ 0.
	// Shedding keeps every dispatch LP feasible, so no component produces it.
	CutFeasibility
)

func (k CutKind) String() string {
	if k == CutFeasibility {
		return "feasibility"
	}
	return "optimality"
}

// Cut is an affine inequality over the commitment variables and phi.
type Cut struct {
	Kind     CutKind     `json:"kind"`
	Constant float64     `json:"constant"`
	Coef     [][]float64 `json:"coef"` // G×T
}

// Evaluate returns Constant + Σ Coef·U for a concrete commitment, i.e. the
// lower bound the cut places on the second-stage cost at U.
func (c Cut) Evaluate(u Commitment) float64 {
	v := c.Constant
	for g := range c.Coef {
		for t, k := range c.Coef[g] {
			if u.On(g, t) {
				v += k
			}
		}
	}
	return v
}

// Schedule is the result surface of one solve run.
type Schedule struct {
	Commitment Commitment `json:"commitment"`
	Dispatch   Dispatch   `json:"dispatch"`
	TotalCost  float64    `json:"total_cost"`
	Iterations int        `json:"iterations"`
	Cuts       int        `json:"cuts"`
	LowerBound float64    `json:"lower_bound"`
	UpperBound float64    `json:"upper_bound"`
	Converged  bool       `json:"converged"`
}

// Encodable returns a copy whose infinite or NaN bounds are zeroed, since
// JSON cannot carry them. A run stopped before its first evaluation has no
// finite upper bound.
func (s *Schedule) Encodable() *Schedule {
	if s == nil {
		return nil
	}
	c := *s
	for _, v := range []*float64{&c.TotalCost, &c.LowerBound, &c.UpperBound} {
		if math.IsInf(*v, 0) || math.IsNaN(*v) {
			*v = 0
		}
	}
	return &c
}

// CostBreakdown splits a schedule's cost into its components.
type CostBreakdown struct {
	Startup    float64 `json:"startup"`
	Online     float64 `json:"online"`
	Production float64 `json:"production"`
	Shedding   float64 `json:"shedding"`
}

// Total sums every component.
func (c CostBreakdown) Total() float64 {
	return c.Startup + c.Online + c.Production + c.Shedding
}

// Costs evaluates the objective terms of a commitment and its dispatch.
func (d *ProblemData) Costs(u Commitment, disp Dispatch) CostBreakdown {
	var c CostBreakdown
	for g, gen := range d.Generators {
		c.Startup += float64(u.Startups(g)) * gen.StartupCost
		for t := 0; t < d.T(); t++ {
			if u.On(g, t) {
				c.Online += gen.OnlineCost
			}
			if disp.Production != nil {
				c.Production += gen.ProductionCost * disp.Production[g][t]
			}
		}
	}
	for _, l := range disp.Shedding {
		c.Shedding += d.SheddingCost * l
	}
	return c
}

// FirstStageCost returns the startup and online cost of a commitment.
func (d *ProblemData) FirstStageCost(u Commitment) float64 {
	c := d.Costs(u, Dispatch{})
	return c.Startup + c.Online
}
