package solver

import (
	"fmt"
	"math"
)

// VarID identifies a variable inside a Model.
type VarID int

// RowID identifies a constraint inside a Model. Duals are reported per RowID.
type RowID int

// VarKind selects the domain of a variable.
type VarKind int

const (
	Continuous VarKind = iota
	Binary
)

// Sense is the comparison of a constraint row.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	case Equal:
		return "="
	default:
		return "?"
	}
}

// Term is one coefficient of a linear expression.
type Term struct {
	Var  VarID
	Coef float64
}

// Constraint is a named linear row: Σ Terms (Sense) RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Activity evaluates the left-hand side at x.
func (c Constraint) Activity(x []float64) float64 {
	var v float64
	for _, t := range c.Terms {
		v += t.Coef * x[t.Var]
	}
	return v
}

// Violation returns by how much x violates the row; zero or negative means
// the row holds.
func (c Constraint) Violation(x []float64) float64 {
	a := c.Activity(x)
	switch c.Sense {
	case LessEqual:
		return a - c.RHS
	case GreaterEqual:
		return c.RHS - a
	default:
		return math.Abs(a - c.RHS)
	}
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s: %d terms %s %g", c.Name, len(c.Terms), c.Sense, c.RHS)
}

// Variable describes one column. Lower must be finite; Upper may be +Inf.
type Variable struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
	Cost  float64
}

// Model is a minimisation problem handed to an Oracle. A Model is not safe
// for concurrent mutation; solving only reads it.
type Model struct {
	Name string
	vars []Variable
	rows []Constraint
}

// NewModel returns an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name}
}

// AddVar appends a column. Binary variables are clamped to [0,1].
func (m *Model) AddVar(name string, kind VarKind, lower, upper, cost float64) VarID {
	if kind == Binary {
		lower = math.Max(lower, 0)
		upper = math.Min(upper, 1)
	}
	m.vars = append(m.vars, Variable{Name: name, Kind: kind, Lower: lower, Upper: upper, Cost: cost})
	return VarID(len(m.vars) - 1)
}

// AddConstraint appends a row. Repeated variables are merged and zero
// coefficients dropped.
func (m *Model) AddConstraint(c Constraint) RowID {
	c.Terms = normalize(c.Terms)
	m.rows = append(m.rows, c)
	return RowID(len(m.rows) - 1)
}

// NumVars returns the number of columns.
func (m *Model) NumVars() int { return len(m.vars) }

// NumRows returns the number of constraint rows.
func (m *Model) NumRows() int { return len(m.rows) }

// Var returns the description of a column.
func (m *Model) Var(id VarID) Variable { return m.vars[id] }

// Row returns a constraint row.
func (m *Model) Row(id RowID) Constraint { return m.rows[id] }

// Objective evaluates the objective at x.
func (m *Model) Objective(x []float64) float64 {
	var v float64
	for j, c := range m.vars {
		v += c.Cost * x[j]
	}
	return v
}

// HasIntegers reports whether any column is binary.
func (m *Model) HasIntegers() bool {
	for _, v := range m.vars {
		if v.Kind == Binary {
			return true
		}
	}
	return false
}

func (m *Model) bounds() (lower, upper []float64) {
	lower = make([]float64, len(m.vars))
	upper = make([]float64, len(m.vars))
	for j, v := range m.vars {
		lower[j], upper[j] = v.Lower, v.Upper
	}
	return lower, upper
}

func normalize(terms []Term) []Term {
	pos := make(map[VarID]int, len(terms))
	out := make([]Term, 0, len(terms))
	for _, t := range terms {
		if i, ok := pos[t.Var]; ok {
			out[i].Coef += t.Coef
			continue
		}
		pos[t.Var] = len(out)
		out = append(out, t)
	}
	n := 0
	for _, t := range out {
		if t.Coef != 0 {
			out[n] = t
			n++
		}
	}
	return out[:n]
}
