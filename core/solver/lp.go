package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// DefaultSimplexTolerance is the reduced-cost tolerance handed to lp.Simplex.
const DefaultSimplexTolerance = 1e-9

const (
	// fixTol is the bound width under which a column is treated as fixed.
	fixTol = 1e-9
	// rayBoundScale sizes the temporary upper bound given to columns that
	// have none, relative to the largest right-hand side.
	rayBoundScale = 1e4
	// rayBoundAttempts is how many times that bound is raised before the
	// problem is declared unbounded.
	rayBoundAttempts = 4
	// dualGapTol is the relative gap allowed between primal and dual objectives.
	dualGapTol = 1e-6
	// perturbTol scales the right-hand side perturbation against degeneracy.
	perturbTol  = 1e-12
	goldenRatio = 0.6180339887498949
)

// errBadBasis marks a warm start that lp.Simplex refused.
var errBadBasis = errors.New("solver: initial basis rejected")

// Gonum implements Oracle with gonum's dense simplex. It is stateless and
// safe for concurrent use.
type Gonum struct {
	// Tolerance is the reduced-cost tolerance of the simplex.
	Tolerance float64
}

// NewGonum returns a gonum backed oracle. A non-positive tolerance selects
// DefaultSimplexTolerance.
func NewGonum(tol float64) *Gonum {
	if tol <= 0 {
		tol = DefaultSimplexTolerance
	}
	return &Gonum{Tolerance: tol}
}

// SolveLP solves the continuous relaxation of m (binary columns are treated
// as [0,1]) and recovers one dual price per row.
func (s *Gonum) SolveLP(ctx context.Context, m *Model) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return &Solution{Status: Interrupted}, err
	}
	lower, upper := m.bounds()
	return s.relax(m, lower, upper, nil, true)
}

// stdRow is a row over the shifted columns x' = x - lower, oriented so that
// its right-hand side is non-negative.
type stdRow struct {
	coef  []float64
	sense Sense
	rhs   float64
	// sign is -1 when the row was negated during orientation.
	sign float64
	// src is the model row index, or -1 for cuts and column bounds.
	src int
}

// relax solves the LP relaxation of m under the given column bounds and
// additional rows.
//
// Every column is shifted onto its lower bound, fixed columns are folded
// into the right-hand sides and finite upper bounds become ≤ rows, so the
// simplex only ever sees non-negative columns.
func (s *Gonum) relax(m *Model, lower, upper []float64, extra []Constraint, duals bool) (*Solution, error) {
	n := m.NumVars()
	fixed := make([]bool, n)
	for j := 0; j < n; j++ {
		if math.IsInf(lower[j], 0) || math.IsNaN(lower[j]) {
			return &Solution{Status: Error}, fmt.Errorf("solver: column %s needs a finite lower bound", m.vars[j].Name)
		}
		if lower[j] > upper[j]+fixTol {
			return &Solution{Status: Infeasible}, ErrInfeasible
		}
		fixed[j] = upper[j]-lower[j] <= fixTol
	}

	// column positions are only known once every row has been seen
	type shifted struct {
		terms []Term
		sense Sense
		rhs   float64
		src   int
	}
	rows := make([]shifted, 0, m.NumRows()+len(extra))
	used := make([]bool, n)
	add := func(c Constraint, src int) bool {
		rhs := c.RHS
		terms := make([]Term, 0, len(c.Terms))
		for _, t := range c.Terms {
			rhs -= t.Coef * lower[t.Var]
			if !fixed[t.Var] && t.Coef != 0 {
				terms = append(terms, t)
			}
		}
		if len(terms) == 0 {
			return emptyRowHolds(c.Sense, rhs, s.Tolerance*(1+math.Abs(c.RHS)))
		}
		for _, t := range terms {
			used[t.Var] = true
		}
		rows = append(rows, shifted{terms: terms, sense: c.Sense, rhs: rhs, src: src})
		return true
	}
	for i, c := range m.rows {
		if !add(c, i) {
			return &Solution{Status: Infeasible}, ErrInfeasible
		}
	}
	for _, c := range extra {
		if !add(c, -1) {
			return &Solution{Status: Infeasible}, ErrInfeasible
		}
	}

	x := make([]float64, n)
	pos := make([]int, n)
	var active []int
	for j := 0; j < n; j++ {
		pos[j] = -1
		switch {
		case fixed[j]:
		case used[j]:
			pos[j] = len(active)
			active = append(active, j)
		case m.vars[j].Cost < 0:
			if math.IsInf(upper[j], 1) {
				return &Solution{Status: Unbounded}, ErrUnbounded
			}
			x[j] = upper[j] - lower[j]
		}
	}

	na := len(active)
	std := make([]stdRow, 0, len(rows)+na)
	for _, r := range rows {
		coef := make([]float64, na)
		for _, t := range r.terms {
			coef[pos[t.Var]] += t.Coef
		}
		if floats.Norm(coef, math.Inf(1)) == 0 {
			if !emptyRowHolds(r.sense, r.rhs, s.Tolerance*(1+math.Abs(r.rhs))) {
				return &Solution{Status: Infeasible}, ErrInfeasible
			}
			continue
		}
		std = append(std, orient(coef, r.sense, r.rhs, r.src))
	}
	for k, j := range active {
		if !math.IsInf(upper[j], 1) {
			coef := make([]float64, na)
			coef[k] = 1
			std = append(std, stdRow{coef: coef, sense: LessEqual, rhs: upper[j] - lower[j], sign: 1, src: -1})
		}
	}

	if len(std) > 0 {
		a, b, unit := slackForm(std, na)
		c := make([]float64, len(a[0]))
		var free []int
		for k, j := range active {
			c[k] = m.vars[j].Cost
			if math.IsInf(upper[j], 1) {
				free = append(free, k)
			}
		}
		z, err := s.solveStandard(c, a, b, unit, free)
		if err != nil {
			st := classify(err)
			return &Solution{Status: st}, statusErr(st, fmt.Errorf("solver: %s: %w", m.Name, err))
		}
		for k, j := range active {
			x[j] = math.Max(z[k], 0)
		}
		if duals {
			return s.withDuals(m, lower, x, std, c[:na], floats.Dot(c[:na], z[:na]))
		}
	}
	var y []float64
	if duals {
		y = make([]float64, m.NumRows())
	}
	return s.finish(m, lower, x, y), nil
}

// withDuals completes a primal solution with the row prices of std.
func (s *Gonum) withDuals(m *Model, lower, x []float64, std []stdRow, c []float64, obj float64) (*Solution, error) {
	w, err := s.rowDuals(std, c, obj)
	if err != nil {
		sol := s.finish(m, lower, x, nil)
		sol.Status = Error
		return sol, fmt.Errorf("%w: %s: %v", ErrDualRecovery, m.Name, err)
	}
	y := make([]float64, m.NumRows())
	for i, r := range std {
		if r.src >= 0 {
			y[r.src] = r.sign * w[i]
		}
	}
	return s.finish(m, lower, x, y), nil
}

// finish shifts x back onto the column lower bounds.
func (s *Gonum) finish(m *Model, lower, x, y []float64) *Solution {
	for j := range x {
		x[j] += lower[j]
		if math.Abs(x[j]) < 1e-11 {
			x[j] = 0
		}
	}
	return &Solution{Status: Optimal, Objective: m.Objective(x), Primal: x, Dual: y}
}

func emptyRowHolds(sense Sense, rhs, tol float64) bool {
	switch sense {
	case LessEqual:
		return rhs >= -tol
	case GreaterEqual:
		return rhs <= tol
	default:
		return math.Abs(rhs) <= tol
	}
}

// orient negates a row with a negative right-hand side. A ≥ row with a zero
// right-hand side is negated as well so that its slack can start basic.
func orient(coef []float64, sense Sense, rhs float64, src int) stdRow {
	r := stdRow{coef: coef, sense: sense, rhs: rhs, sign: 1, src: src}
	if rhs < 0 || (rhs == 0 && sense == GreaterEqual) {
		floats.Scale(-1, coef)
		r.rhs = math.Abs(rhs)
		r.sign = -1
		switch sense {
		case LessEqual:
			r.sense = GreaterEqual
		case GreaterEqual:
			r.sense = LessEqual
		}
	}
	return r
}

// slackForm adds one slack column per inequality. unit[i] is the slack that
// can start basic in row i, or -1 when the row needs an artificial column.
func slackForm(std []stdRow, na int) (a [][]float64, b []float64, unit []int) {
	nc := na
	for _, r := range std {
		if r.sense != Equal {
			nc++
		}
	}
	a = make([][]float64, len(std))
	b = make([]float64, len(std))
	unit = make([]int, len(std))
	slack := na
	for i, r := range std {
		row := make([]float64, nc)
		copy(row, r.coef)
		a[i], b[i], unit[i] = row, r.rhs, -1
		switch r.sense {
		case LessEqual:
			row[slack] = 1
			unit[i] = slack
			slack++
		case GreaterEqual:
			row[slack] = -1
			slack++
		}
	}
	return a, b, unit
}

// solveStandard solves min cᵀz subject to a·z = b, z ≥ 0, with b ≥ 0.
//
// Columns listed in free have no upper bound. They get a temporary one so
// that the problem has no rays: lp.Simplex reports a zero-cost ray met
// during a degenerate pivot as unbounded. The bound is raised while it stays
// active and still improves the objective.
func (s *Gonum) solveStandard(c []float64, a [][]float64, b []float64, unit, free []int) ([]float64, error) {
	scale := 1 + floats.Norm(b, math.Inf(1))
	if len(free) == 0 {
		return s.twoPhase(c, a, b, unit, scale)
	}
	n, m, k := len(c), len(a), len(free)
	bound := rayBoundScale * scale
	var prev float64
	for attempt := 0; attempt < rayBoundAttempts; attempt++ {
		ab := make([][]float64, m+k)
		bb := make([]float64, m+k)
		ub := make([]int, m+k)
		for i, row := range a {
			ab[i] = make([]float64, n+k)
			copy(ab[i], row)
		}
		copy(bb, b)
		copy(ub, unit)
		for q, j := range free {
			row := make([]float64, n+k)
			row[j], row[n+q] = 1, 1
			ab[m+q], bb[m+q], ub[m+q] = row, bound, n+q
		}
		cb := make([]float64, n+k)
		copy(cb, c)

		z, err := s.twoPhase(cb, ab, bb, ub, scale)
		if err != nil {
			return nil, err
		}
		z = z[:n]
		binding := false
		for _, j := range free {
			if z[j] >= bound*(1-1e-9) {
				binding = true
				break
			}
		}
		if !binding {
			return z, nil
		}
		obj := floats.Dot(c, z)
		if attempt > 0 && obj >= prev-1e-9*(1+math.Abs(prev)) {
			return z, nil
		}
		prev = obj
		bound *= rayBoundScale
	}
	return nil, lp.ErrUnbounded
}

// twoPhase equilibrates the rows, finds a feasible point with an explicit
// phase one over artificial columns and warm starts phase two from a basis
// built around that point. Both phases run on a right-hand side perturbed
// away from degeneracy; the final vertex is re-solved against the exact one.
// scale is the size of the right-hand side before any temporary bound rows.
func (s *Gonum) twoPhase(c []float64, a [][]float64, b []float64, unit []int, scale float64) ([]float64, error) {
	a, b = equilibrate(a, b)
	m, n := len(a), len(c)
	basis := append([]int(nil), unit...)
	var need []int
	for i, u := range unit {
		if u < 0 {
			need = append(need, i)
		}
	}
	if len(need) > 0 {
		k := len(need)
		a1 := make([][]float64, m)
		for i, row := range a {
			a1[i] = make([]float64, n+k)
			copy(a1[i], row)
		}
		c1 := make([]float64, n+k)
		for q, i := range need {
			a1[i][n+q] = 1
			c1[n+q] = 1
			basis[i] = n + q
		}
		z1, err := s.simplex(c1, a1, perturb(a1, b, basis, scale), basis)
		if err != nil {
			return nil, fmt.Errorf("phase one: %w", err)
		}
		z1 = polish(a1, b, z1, scale)
		if floats.Sum(z1[n:]) > feasibilityTol(scale) {
			return nil, lp.ErrInfeasible
		}
		z1 = z1[:n]
		if m == n {
			for j := range z1 {
				z1[j] = math.Max(z1[j], 0)
			}
			return polish(a, b, z1, scale), nil
		}
		basis, a, b, err = warmBasis(a, b, z1, unit)
		if err != nil {
			return nil, err
		}
	}
	z, err := s.simplex(c, a, perturb(a, b, basis, scale), basis)
	if errors.Is(err, errBadBasis) {
		z, err = s.simplex(c, a, b, nil)
	}
	if err != nil {
		return nil, err
	}
	return polish(a, b, z, scale), nil
}

// simplex runs lp.Simplex, turning its panics on a rejected initial basis
// into errBadBasis.
func (s *Gonum) simplex(c []float64, a [][]float64, b []float64, basis []int) (z []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			z, err = nil, fmt.Errorf("%w: %v", errBadBasis, r)
		}
	}()
	data := make([]float64, 0, len(a)*len(c))
	for _, row := range a {
		data = append(data, row...)
	}
	if basis != nil {
		basis = append([]int(nil), basis...)
	}
	_, z, err = lp.Simplex(c, mat.NewDense(len(a), len(c), data), b, s.Tolerance, basis)
	if err != nil {
		return nil, err
	}
	return z, nil
}

// equilibrate scales every row to a largest coefficient of one. Slack
// columns keep a positive diagonal entry, so they can still start basic.
func equilibrate(a [][]float64, b []float64) ([][]float64, []float64) {
	sa := make([][]float64, len(a))
	sb := make([]float64, len(b))
	for i, row := range a {
		scale := floats.Norm(row, math.Inf(1))
		if scale == 0 {
			scale = 1
		}
		sa[i] = make([]float64, len(row))
		floats.ScaleTo(sa[i], 1/scale, row)
		sb[i] = b[i] / scale
	}
	return sa, sb
}

func feasibilityTol(scale float64) float64 {
	return 1e-9 * scale
}

// warmBasis picks a basis around the phase one point z: its support first,
// then the slack columns, then everything else. Rows that are linear
// combinations of others are dropped when no full basis exists.
func warmBasis(a [][]float64, b, z []float64, unit []int) ([]int, [][]float64, []float64, error) {
	n := len(z)
	var support []int
	for j, v := range z {
		if v > 1e-9 {
			support = append(support, j)
		}
	}
	sort.SliceStable(support, func(p, q int) bool { return z[support[p]] > z[support[q]] })
	seen := make([]bool, n)
	order := make([]int, 0, n)
	for _, j := range support {
		order = append(order, j)
		seen[j] = true
	}
	for _, j := range unit {
		if j >= 0 && !seen[j] {
			order = append(order, j)
			seen[j] = true
		}
	}
	for j := 0; j < n; j++ {
		if !seen[j] {
			order = append(order, j)
		}
	}

	if basis := spanningColumns(a, order); len(basis) == len(a) {
		return basis, a, b, nil
	}
	rows := make([]int, len(a))
	for i := range rows {
		rows[i] = i
	}
	keep := spanningColumns(transpose(a), rows)
	ka := make([][]float64, len(keep))
	kb := make([]float64, len(keep))
	for p, i := range keep {
		ka[p], kb[p] = a[i], b[i]
	}
	basis := spanningColumns(ka, order)
	if len(basis) < len(ka) {
		return nil, nil, nil, errors.New("solver: no basis spans the constraint rows")
	}
	return basis, ka, kb, nil
}

// perturb returns the right-hand side for which the basic solution of
// basis is the current one raised by a small margin, distinct per column.
// lp.Simplex prices with Dantzig's rule and only falls back to Bland on an
// exactly zero step, so rounding noise at a degenerate vertex can make it
// cycle; it also rejects a starting basis with any value below -1e-13.
// A basis that is not feasible for b within tolerance is left to fail.
func perturb(a [][]float64, b []float64, basis []int, scale float64) []float64 {
	m := len(a)
	ab := basisMatrix(a, basis)
	var xb mat.VecDense
	if err := xb.SolveVec(ab, mat.NewVecDense(m, b)); err != nil {
		return b
	}
	low := math.Min(floats.Min(xb.RawVector().Data), 0)
	if -low > feasibilityTol(scale) {
		return b
	}
	margin := math.Max(perturbTol*scale, -10*low)
	for k := 0; k < m; k++ {
		_, frac := math.Modf(float64(k) * goldenRatio)
		xb.SetVec(k, math.Max(xb.AtVec(k), 0)+margin*(1+frac))
	}
	var lifted mat.VecDense
	lifted.MulVec(ab, &xb)
	return lifted.RawVector().Data
}

// polish re-solves the basis that z sits on against the exact right-hand
// side. z is returned unchanged when that basis is not feasible for b.
func polish(a [][]float64, b, z []float64, scale float64) []float64 {
	m, n := len(a), len(z)
	var support []int
	for j, v := range z {
		if v != 0 {
			support = append(support, j)
		}
	}
	if len(support) > m {
		return z
	}
	sort.SliceStable(support, func(p, q int) bool { return math.Abs(z[support[p]]) > math.Abs(z[support[q]]) })
	seen := make([]bool, n)
	for _, j := range support {
		seen[j] = true
	}
	order := support
	for j := 0; j < n; j++ {
		if !seen[j] {
			order = append(order, j)
		}
	}
	basis := spanningColumns(a, order)
	if len(basis) < m {
		return z
	}
	var xb mat.VecDense
	if err := xb.SolveVec(basisMatrix(a, basis), mat.NewVecDense(m, b)); err != nil {
		return z
	}
	if floats.Min(xb.RawVector().Data) < -feasibilityTol(scale) {
		return z
	}
	out := make([]float64, n)
	for k, j := range basis {
		out[j] = math.Max(xb.AtVec(k), 0)
	}
	return out
}

func basisMatrix(a [][]float64, basis []int) *mat.Dense {
	ab := mat.NewDense(len(a), len(basis), nil)
	for i := range a {
		for k, j := range basis {
			ab.Set(i, k, a[i][j])
		}
	}
	return ab
}

// spanningColumns takes columns of a in the given order, skipping those
// numerically dependent on the ones already taken, until there is one per
// row.
func spanningColumns(a [][]float64, order []int) []int {
	m := len(a)
	var q [][]float64
	var chosen []int
	for _, j := range order {
		if len(chosen) == m {
			break
		}
		v := make([]float64, m)
		for i := range a {
			v[i] = a[i][j]
		}
		norm := floats.Norm(v, 2)
		if norm == 0 {
			continue
		}
		for pass := 0; pass < 2; pass++ {
			for _, e := range q {
				floats.AddScaled(v, -floats.Dot(e, v), e)
			}
		}
		rest := floats.Norm(v, 2)
		if rest <= 1e-9*norm {
			continue
		}
		floats.Scale(1/rest, v)
		q = append(q, v)
		chosen = append(chosen, j)
	}
	return chosen
}

func transpose(a [][]float64) [][]float64 {
	if len(a) == 0 {
		return nil
	}
	t := make([][]float64, len(a[0]))
	for j := range t {
		t[j] = make([]float64, len(a))
		for i := range a {
			t[j][i] = a[i][j]
		}
	}
	return t
}

// rowDuals solves the dual of min cᵀz over the rows of std with z ≥ 0:
// max bᵀw subject to Aᵀw ≤ c, with w ≤ 0 on ≤ rows, w ≥ 0 on ≥ rows and w
// free on equalities. A free price is split into two columns; every price
// column gets a temporary bound from solveStandard, which also removes the
// zero-cost ray the split introduces.
func (s *Gonum) rowDuals(std []stdRow, c []float64, obj float64) ([]float64, error) {
	type price struct {
		row  int
		sign float64
	}
	var cols []price
	for i, r := range std {
		switch r.sense {
		case LessEqual:
			cols = append(cols, price{i, -1})
		case GreaterEqual:
			cols = append(cols, price{i, 1})
		default:
			cols = append(cols, price{i, 1}, price{i, -1})
		}
	}
	nv, na := len(cols), len(c)
	d := make([][]float64, na)
	rhs := make([]float64, na)
	unit := make([]int, na)
	for k := 0; k < na; k++ {
		row := make([]float64, nv+na)
		for q, p := range cols {
			row[q] = p.sign * std[p.row].coef[k]
		}
		row[nv+k] = 1
		rhs[k], unit[k] = c[k], nv+k
		if c[k] < 0 {
			floats.Scale(-1, row)
			rhs[k], unit[k] = -c[k], -1
		}
		d[k] = row
	}
	cd := make([]float64, nv+na)
	free := make([]int, nv)
	for q, p := range cols {
		cd[q] = -p.sign * std[p.row].rhs
		free[q] = q
	}
	v, err := s.solveStandard(cd, d, rhs, unit, free)
	if err != nil {
		return nil, err
	}

	w := make([]float64, len(std))
	for q, p := range cols {
		w[p.row] += p.sign * v[q]
	}
	var dualObj float64
	for i, r := range std {
		if math.Abs(w[i]) < 1e-11 {
			w[i] = 0
		}
		dualObj += r.rhs * w[i]
	}
	if math.Abs(dualObj-obj) > dualGapTol*(1+math.Abs(obj)) {
		return nil, fmt.Errorf("duality gap %.3g between primal %.9g and dual %.9g", dualObj-obj, obj, dualObj)
	}
	return w, nil
}

func classify(err error) Status {
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return Infeasible
	case errors.Is(err, lp.ErrUnbounded):
		return Unbounded
	default:
		return Error
	}
}
