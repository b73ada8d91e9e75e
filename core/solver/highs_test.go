//go:build highs

package solver

import (
	"context"
	"testing"
)

func TestHiGHS_MatchesGonum(t *testing.T) {
	h := NewHiGHS(nil)
	g := NewGonum(0)

	for _, build := range []func() *Model{
		func() *Model { m, _ := knapsack(); return m },
		func() *Model { m, _ := cutMaster(); return m },
	} {
		m := build()
		want, err := g.SolveMIP(context.Background(), m, MIPOptions{})
		if err != nil {
			t.Fatalf("%s gonum: %v", m.Name, err)
		}
		got, err := h.SolveMIP(context.Background(), m, MIPOptions{})
		if err != nil {
			t.Fatalf("%s highs: %v", m.Name, err)
		}
		if !near(got.Objective, want.Objective) {
			t.Fatalf("%s: highs %v gonum %v", m.Name, got.Objective, want.Objective)
		}
	}
}

func TestHiGHS_LPDualsMatchGonum(t *testing.T) {
	m := NewModel("balance")
	p := m.AddVar("p", Continuous, 0, 6, 1)
	l := m.AddVar("l", Continuous, 0, 100, 5)
	bal := m.AddConstraint(Constraint{Name: "balance", Terms: []Term{{p, 1}, {l, 1}}, Sense: Equal, RHS: 10})
	floor := m.AddConstraint(Constraint{Name: "floor", Terms: []Term{{p, 1}}, Sense: GreaterEqual, RHS: 2})

	want, err := NewGonum(0).SolveLP(context.Background(), m)
	if err != nil {
		t.Fatalf("gonum: %v", err)
	}
	got, err := NewHiGHS(nil).SolveLP(context.Background(), m)
	if err != nil {
		t.Fatalf("highs: %v", err)
	}
	if !near(got.Objective, want.Objective) || !near(got.DualOf(bal), want.DualOf(bal)) || !near(got.DualOf(floor), want.DualOf(floor)) {
		t.Fatalf("highs obj=%v duals=%v gonum obj=%v duals=%v", got.Objective, got.Dual, want.Objective, want.Dual)
	}
}

func TestHiGHS_CallbackUsesFallback(t *testing.T) {
	m, _, _ := lazyModel()
	var calls int
	cb := func(context.Context, NodeState) (NodeDecision, error) {
		calls++
		return NodeDecision{}, nil
	}
	if _, err := NewHiGHS(nil).SolveMIP(context.Background(), m, MIPOptions{Callback: cb, Workers: 1}); err != nil {
		t.Fatalf("solve: %v", err)
	}
	if calls == 0 {
		t.Fatal("callback never ran")
	}
}
