package benders

import (
	"fmt"
	"time"
)

// Decomposition modes.
const (
	ModeIterative = "iterative"
	ModeEmbedded  = "embedded"
)

// Default tolerances of the bound-gap test.
const (
	DefaultEpsilon         = 1e-6
	DefaultEmbeddedEpsilon = 1e-7
)

// Config defines decomposition settings.
type Config struct {
	// Mode selects the loop variant: "iterative" or "embedded".
	Mode string `json:"mode"`
	// Epsilon is the tolerance of the convergence test phi + ε ≥ dispatch.
	Epsilon float64 `json:"epsilon"`
	// EmbeddedEpsilon is the acceptance tolerance of the node callback.
	EmbeddedEpsilon float64 `json:"embedded_epsilon"`
	// MaxIterations stops the iterative loop; 0 means unlimited.
	MaxIterations int `json:"max_iterations"`
	// TimeBudgetSeconds stops either loop; 0 means unlimited.
	TimeBudgetSeconds int `json:"time_budget_seconds"`
	// Workers is the number of branch-and-bound goroutines.
	Workers int `json:"workers"`
	// NodeLimit caps the branch-and-bound nodes per master solve.
	NodeLimit int64 `json:"node_limit"`
	// GlobalCuts makes embedded lazy cuts apply to the whole tree instead of
	// the node that produced them.
	GlobalCuts bool `json:"global_cuts"`
	// SimplexTolerance is handed to the LP engine.
	SimplexTolerance float64 `json:"simplex_tolerance"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Mode == "" {
		c.Mode = ModeIterative
	}
	if c.Epsilon == 0 {
		c.Epsilon = DefaultEpsilon
	}
	if c.EmbeddedEpsilon == 0 {
		c.EmbeddedEpsilon = DefaultEmbeddedEpsilon
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.Mode != ModeIterative && c.Mode != ModeEmbedded {
		return fmt.Errorf("unknown mode %s", c.Mode)
	}
	if c.Epsilon < 0 || c.EmbeddedEpsilon < 0 {
		return fmt.Errorf("tolerances must be non-negative")
	}
	if c.MaxIterations < 0 || c.TimeBudgetSeconds < 0 || c.NodeLimit < 0 {
		return fmt.Errorf("budgets must be non-negative")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}

// TimeBudget returns the wall-clock budget, zero when unlimited.
func (c Config) TimeBudget() time.Duration {
	return time.Duration(c.TimeBudgetSeconds) * time.Second
}
