package model

import "fmt"

// Generator describes one dispatchable unit of the fleet.
type Generator struct {
	Name           string  `json:"name" yaml:"name"`
	MinP           float64 `json:"min_p" yaml:"min_p"`                     // minimum output when online
	MaxP           float64 `json:"max_p" yaml:"max_p"`                     // maximum output when online
	StartupCost    float64 `json:"startup_cost" yaml:"startup_cost"`       // paid each time the unit turns on
	OnlineCost     float64 `json:"online_cost" yaml:"online_cost"`         // paid for every online period
	ProductionCost float64 `json:"production_cost" yaml:"production_cost"` // per unit of output
	MinUpTime      int     `json:"min_up_time" yaml:"min_up_time"`
	MinDownTime    int     `json:"min_down_time" yaml:"min_down_time"`
	// RampLimit bounds the change of output between consecutive periods,
	// upwards and downwards alike.
	RampLimit float64 `json:"ramp_limit" yaml:"ramp_limit"`
}

// ProblemData is the immutable description of one unit commitment instance.
// It is built once and shared read-only by every model builder.
type ProblemData struct {
	Generators   []Generator `json:"generators" yaml:"generators"`
	Demand       []float64   `json:"demand" yaml:"demand"`
	SheddingCost float64     `json:"shedding_cost" yaml:"shedding_cost"`
}

// G returns the number of generators.
func (d *ProblemData) G() int { return len(d.Generators) }

// T returns the horizon length.
func (d *ProblemData) T() int { return len(d.Demand) }

// Names returns the generator names in fleet order.
func (d *ProblemData) Names() []string {
	names := make([]string, len(d.Generators))
	for i, g := range d.Generators {
		names[i] = g.Name
	}
	return names
}

// Validate checks the invariants every model builder relies on. It does
// not modify d; see Normalized for the defaults.
func (d *ProblemData) Validate() error {
	if d.T() == 0 {
		return &DataError{Field: "demand", Msg: "horizon must contain at least one period"}
	}
	if d.G() == 0 {
		return &DataError{Field: "generators", Msg: "fleet is empty"}
	}
	if d.SheddingCost < 0 {
		return &DataError{Field: "shedding_cost", Msg: "must be non-negative"}
	}
	for t, v := range d.Demand {
		if v < 0 {
			return &DataError{Field: fmt.Sprintf("demand[%d]", t+1), Msg: "must be non-negative"}
		}
	}
	seen := make(map[string]bool, d.G())
	for i, g := range d.Generators {
		field := fmt.Sprintf("generators[%d]", i)
		name := unitName(g, i)
		if seen[name] {
			return &DataError{Field: field, Msg: fmt.Sprintf("duplicate generator name %q", name)}
		}
		seen[name] = true
		if g.MinP < 0 || g.MaxP < 0 || g.StartupCost < 0 || g.OnlineCost < 0 ||
			g.ProductionCost < 0 || g.RampLimit < 0 || g.MinUpTime < 0 || g.MinDownTime < 0 {
			return &DataError{Field: field, Msg: fmt.Sprintf("%s: parameters must be non-negative", name)}
		}
		if g.MinP > g.MaxP {
			return &DataError{Field: field, Msg: fmt.Sprintf("%s: min_p %.4g exceeds max_p %.4g", name, g.MinP, g.MaxP)}
		}
	}
	return nil
}

// Normalized validates d and returns a copy with the defaults filled in:
// unnamed generators become G1, G2, ... and minimum up and down times of
// zero become one period. d itself is left untouched, so one instance can
// back several concurrent runs.
func (d *ProblemData) Normalized() (*ProblemData, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	out := &ProblemData{
		Generators:   make([]Generator, len(d.Generators)),
		Demand:       append([]float64(nil), d.Demand...),
		SheddingCost: d.SheddingCost,
	}
	for i, g := range d.Generators {
		g.Name = unitName(g, i)
		g.MinUpTime = max(g.MinUpTime, 1)
		g.MinDownTime = max(g.MinDownTime, 1)
		out.Generators[i] = g
	}
	return out, nil
}

func unitName(g Generator, i int) string {
	if g.Name == "" {
		return fmt.Sprintf("G%d", i+1)
	}
	return g.Name
}

// UpWindowEnd returns the last period (1-based) a generator switched on at
// period t must stay online through, clipped to the horizon.
func (d *ProblemData) UpWindowEnd(g, t int) int {
	return min(t+d.Generators[g].MinUpTime-1, d.T())
}

// DownWindowEnd returns the last period (1-based) a generator switched off
// at period t must stay offline through, clipped to the horizon.
func (d *ProblemData) DownWindowEnd(g, t int) int {
	return min(t+d.Generators[g].MinDownTime-1, d.T())
}

// DataError reports malformed or missing input data.
type DataError struct {
	Source string
	Line   int
	Field  string
	Msg    string
	Err    error
}

func (e *DataError) Error() string {
	loc := e.Source
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
	}
	msg := e.Msg
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if loc != "" {
		return "data error: " + loc + ": " + msg
	}
	return "data error: " + msg
}

func (e *DataError) Unwrap() error { return e.Err }
