package benders

import "github.com/kilianp07/unitcommit/core/model"

// BuildOptimalityCut turns the duals of a dispatch solve into
// phi ≥ Constant + Σ Coef·u. Dual feasibility does not depend on the
// commitment, so the cut underestimates the dispatch cost everywhere and is
// exact at the commitment that produced the duals.
func BuildOptimalityCut(data *model.ProblemData, pi model.DualPrices) model.Cut {
	cut := model.Cut{Kind: model.CutOptimality, Coef: make([][]float64, data.G())}
	for t, d := range data.Demand {
		cut.Constant += d * pi.Demand[t]
	}
	for g, gen := range data.Generators {
		cut.Coef[g] = make([]float64, data.T())
		for t := 0; t < data.T(); t++ {
			cut.Constant += gen.RampLimit * (pi.RampUp[g][t] + pi.RampDown[g][t])
			cut.Coef[g][t] = gen.MinP*pi.MinProduction[g][t] + gen.MaxP*pi.MaxProduction[g][t]
		}
	}
	return cut
}
