package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/unitcommit/app"
	"github.com/kilianp07/unitcommit/core/benders"
	"github.com/kilianp07/unitcommit/core/model"
)

// DefaultTolerance bounds the relative cost difference accepted by a
// scenario that sets no tolerance of its own.
const DefaultTolerance = 1e-6

// Expected is the reference outcome of a scenario.
type Expected struct {
	TotalCost     float64          `yaml:"total_cost"`
	Tolerance     float64          `yaml:"tolerance,omitempty"`
	Commitment    model.Commitment `yaml:"commitment,omitempty"`
	MaxIterations int              `yaml:"max_iterations,omitempty"`
}

// Scenario is a regression case: an instance, the solve modes to run it in
// and the outcome every mode must reach.
type Scenario struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Modes       []string          `yaml:"modes,omitempty"`
	Problem     model.ProblemData `yaml:"problem"`
	Expected    Expected          `yaml:"expected"`
}

// RunModes returns the configured modes, or all of them.
func (s *Scenario) RunModes() []string {
	if len(s.Modes) > 0 {
		return s.Modes
	}
	return []string{benders.ModeIterative, benders.ModeEmbedded, app.ModeDirect}
}

func (s *Scenario) tolerance() float64 {
	if s.Expected.Tolerance > 0 {
		return s.Expected.Tolerance
	}
	return DefaultTolerance
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario has no name", path)
	}
	if err := sc.Problem.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, m := range sc.Modes {
		switch m {
		case benders.ModeIterative, benders.ModeEmbedded, app.ModeDirect:
		default:
			return nil, fmt.Errorf("%s: unknown mode %q", path, m)
		}
	}
	return &sc, nil
}
