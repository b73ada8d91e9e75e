package model

import (
	"errors"
	"strings"
	"testing"
)

func sample() *ProblemData {
	return &ProblemData{
		Generators: []Generator{
			{Name: "A", MaxP: 20, StartupCost: 50, OnlineCost: 5, ProductionCost: 10, RampLimit: 20},
			{MinP: 5, MaxP: 15, StartupCost: 30, OnlineCost: 3, ProductionCost: 8, MinUpTime: 2, RampLimit: 10},
		},
		Demand:       []float64{15, 20, 10},
		SheddingCost: 1000,
	}
}

func TestNormalizedFillsDefaultsOnCopy(t *testing.T) {
	d := sample()
	n, err := d.Normalized()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if n.Generators[1].Name != "G2" {
		t.Fatalf("expected default name G2 got %q", n.Generators[1].Name)
	}
	if n.Generators[0].MinUpTime != 1 || n.Generators[0].MinDownTime != 1 {
		t.Fatalf("zero min times should become 1: %+v", n.Generators[0])
	}
	if d.Generators[1].Name != "" || d.Generators[0].MinUpTime != 0 || d.Generators[0].MinDownTime != 0 {
		t.Fatalf("source data modified: %+v", d.Generators)
	}
	n.Demand[0] = 99
	if d.Demand[0] != 15 {
		t.Fatal("normalized copy shares the demand slice")
	}
}

func TestValidateLeavesDataUntouched(t *testing.T) {
	d := sample()
	before := *d
	before.Generators = append([]Generator(nil), d.Generators...)
	if err := d.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	for i := range d.Generators {
		if d.Generators[i] != before.Generators[i] {
			t.Fatalf("generator %d changed: %+v", i, d.Generators[i])
		}
	}
}

func TestValidateDefaultNameCollision(t *testing.T) {
	d := sample()
	d.Generators[0].Name = "G2"
	var de *DataError
	if err := d.Validate(); !errors.As(err, &de) {
		t.Fatalf("expected duplicate name error got %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*ProblemData){
		"no periods":     func(d *ProblemData) { d.Demand = nil },
		"no generators":  func(d *ProblemData) { d.Generators = nil },
		"negative shed":  func(d *ProblemData) { d.SheddingCost = -1 },
		"negative load":  func(d *ProblemData) { d.Demand[1] = -3 },
		"min above max":  func(d *ProblemData) { d.Generators[0].MinP = 25 },
		"negative ramp":  func(d *ProblemData) { d.Generators[1].RampLimit = -1 },
		"duplicate name": func(d *ProblemData) { d.Generators[1].Name = "A" },
	}
	for name, mutate := range cases {
		d := sample()
		mutate(d)
		err := d.Validate()
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("%s: expected DataError got %v", name, err)
		}
	}
}

func TestWindowEndsClipToHorizon(t *testing.T) {
	d := sample()
	d.Generators[0].MinUpTime = 5
	d.Generators[0].MinDownTime = 2
	if got := d.UpWindowEnd(0, 1); got != 3 {
		t.Fatalf("expected up window clipped to 3 got %d", got)
	}
	if got := d.DownWindowEnd(0, 1); got != 2 {
		t.Fatalf("expected down window end 2 got %d", got)
	}
}

func TestCostsAndStartups(t *testing.T) {
	d := sample()
	u := Commitment{{1, 1, 0}, {1, 1, 1}}
	disp := Dispatch{
		Production: [][]float64{{5, 5, 0}, {10, 15, 10}},
		Shedding:   []float64{0, 0, 0},
	}
	c := d.Costs(u, disp)
	if c.Startup != 80 || c.Online != 19 || c.Production != 380 || c.Shedding != 0 {
		t.Fatalf("unexpected breakdown %+v", c)
	}
	if c.Total() != 479 {
		t.Fatalf("expected 479 got %v", c.Total())
	}
	if d.FirstStageCost(u) != 99 {
		t.Fatalf("expected first stage 99 got %v", d.FirstStageCost(u))
	}
	if n := (Commitment{{1, 0, 1}}).Startups(0); n != 2 {
		t.Fatalf("expected 2 startups got %d", n)
	}
}

func TestCutEvaluate(t *testing.T) {
	c := Cut{Constant: 10, Coef: [][]float64{{1, 2}, {-3, 4}}}
	if v := c.Evaluate(Commitment{{1, 0}, {1, 1}}); v != 12 {
		t.Fatalf("expected 12 got %v", v)
	}
	if CutFeasibility.String() != "feasibility" || CutOptimality.String() != "optimality" {
		t.Fatal("unexpected cut kind names")
	}
}

func TestCheckSchedule(t *testing.T) {
	d, err := sample().Normalized()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	good := &Schedule{
		Commitment: Commitment{{1, 1, 0}, {1, 1, 1}},
		Dispatch: Dispatch{
			Production: [][]float64{{5, 5, 0}, {10, 15, 10}},
			Shedding:   []float64{0, 0, 0},
		},
	}
	if err := CheckSchedule(d, good, 1e-9); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}

	unbalanced := *good
	unbalanced.Dispatch.Shedding = []float64{1, 0, 0}
	if err := CheckSchedule(d, &unbalanced, 1e-9); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected balance violation got %v", err)
	}

	ramp := &Schedule{
		Commitment: Commitment{{1, 1, 0}, {0, 0, 0}},
		Dispatch: Dispatch{
			Production: [][]float64{{15, 20, 0}, {0, 0, 0}},
			Shedding:   []float64{0, 0, 10},
		},
	}
	if err := CheckSchedule(d, ramp, 1e-9); err != nil {
		t.Fatalf("unexpected violation %v", err)
	}
	ramp.Dispatch.Production[0] = []float64{15, 20, 0}
	d.Generators[0].RampLimit = 10
	if err := CheckSchedule(d, ramp, 1e-9); err == nil || !strings.Contains(err.Error(), "ramps") {
		t.Fatalf("expected ramp violation got %v", err)
	}
}

func TestCheckMinTimes(t *testing.T) {
	d, err := sample().Normalized()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	// B must stay on for two periods once started
	if err := CheckMinTimes(d, Commitment{{0, 0, 0}, {0, 0, 1}}); err != nil {
		t.Fatalf("window clipped at the horizon must pass: %v", err)
	}
	if err := CheckMinTimes(d, Commitment{{0, 0, 0}, {1, 0, 0}}); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected min up violation got %v", err)
	}
	d.Generators[0].MinDownTime = 2
	if err := CheckMinTimes(d, Commitment{{1, 0, 1}, {0, 0, 0}}); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected min down violation got %v", err)
	}
}

func TestDataErrorMessage(t *testing.T) {
	err := &DataError{Source: "gens.txt", Line: 4, Field: "max_p", Msg: "not a number", Err: errors.New("strconv")}
	want := "data error: gens.txt:4: max_p: not a number: strconv"
	if err.Error() != want {
		t.Fatalf("expected %q got %q", want, err.Error())
	}
}
