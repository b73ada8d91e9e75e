package scenarios

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/kilianp07/unitcommit/app"
	"github.com/kilianp07/unitcommit/app/plugins"
	"github.com/kilianp07/unitcommit/core/benders"
	"github.com/kilianp07/unitcommit/core/direct"
	"github.com/kilianp07/unitcommit/core/model"
	"github.com/kilianp07/unitcommit/core/solver"
	"github.com/kilianp07/unitcommit/infra/logger"
	"github.com/kilianp07/unitcommit/infra/metrics"
)

const runTimeout = time.Minute

func RunScenario(t *testing.T, sc *Scenario) {
	oracle, err := plugins.NewOracle("gonum", nil)
	if err != nil {
		t.Fatalf("oracle: %v", err)
	}
	for _, mode := range sc.RunModes() {
		t.Run(mode, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
			defer cancel()
			data := sc.Problem

			var s *model.Schedule
			if mode == app.ModeDirect {
				s = runDirect(ctx, t, &data, oracle)
			} else {
				s = runDecomposition(ctx, t, &data, oracle, mode)
			}
			checkOutcome(t, sc, &data, s)
		})
	}
}

func runDirect(ctx context.Context, t *testing.T, data *model.ProblemData, oracle solver.Oracle) *model.Schedule {
	m, err := direct.New(data)
	if err != nil {
		t.Fatalf("direct model: %v", err)
	}
	s, err := m.Solve(ctx, oracle, solver.MIPOptions{Workers: 1})
	if err != nil {
		t.Fatalf("direct solve: %v", err)
	}
	return s
}

func runDecomposition(ctx context.Context, t *testing.T, data *model.ProblemData, oracle solver.Oracle, mode string) *model.Schedule {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	loop, err := benders.NewLoop(data, oracle, benders.Config{Mode: mode}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	loop.SetMetricsSink(sink)
	loop.SetRunID(t.Name())
	s, err := loop.Solve(ctx)
	if err != nil {
		t.Fatalf("%s solve: %v", mode, err)
	}
	if got := counterValue(t, reg, "benders_cuts_total", mode); int(got) != s.Cuts {
		t.Errorf("cut counter %v does not match %d cuts", got, s.Cuts)
	}
	return s
}

func checkOutcome(t *testing.T, sc *Scenario, data *model.ProblemData, s *model.Schedule) {
	t.Helper()
	if s == nil || !s.Converged {
		t.Fatalf("scenario %s did not converge", sc.Name)
	}
	want := sc.Expected.TotalCost
	if math.Abs(s.TotalCost-want) > sc.tolerance()*math.Max(1, math.Abs(want)) {
		t.Errorf("scenario %s expected cost %.6f, got %.6f", sc.Name, want, s.TotalCost)
	}
	if err := model.CheckSchedule(data, s, 1e-6); err != nil {
		t.Errorf("scenario %s: %v", sc.Name, err)
	}
	if got := data.Costs(s.Commitment, s.Dispatch).Total(); math.Abs(got-s.TotalCost) > 1e-4*math.Max(1, math.Abs(got)) {
		t.Errorf("scenario %s reports cost %.6f but the schedule costs %.6f", sc.Name, s.TotalCost, got)
	}
	if sc.Expected.Commitment != nil && !s.Commitment.Equal(sc.Expected.Commitment) {
		t.Errorf("scenario %s expected commitment %v, got %v", sc.Name, sc.Expected.Commitment, s.Commitment)
	}
	if m := sc.Expected.MaxIterations; m > 0 && s.Iterations > m {
		t.Errorf("scenario %s took %d iterations, limit %d", sc.Name, s.Iterations, m)
	}
}

// counterValue sums the samples of a counter family whose mode label
// matches.
func counterValue(t *testing.T, g prometheus.Gatherer, name, mode string) float64 {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if hasLabel(m, "mode", mode) {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, l := range m.GetLabel() {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}
