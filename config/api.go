package config

import (
	"fmt"
	"time"
)

// APIConfig configures the HTTP surface started by `unitcommit serve`.
type APIConfig struct {
	// Listen is the address of the HTTP server, e.g. ":8080".
	Listen string `json:"listen"`
	// Token, when set, must be presented as a bearer token on /api routes.
	Token string `json:"token"`
	// CORSOrigins lists the origins allowed to call the API.
	CORSOrigins []string `json:"cors_origins"`
	// SolveTimeoutSeconds bounds a single POST /api/v1/solve.
	SolveTimeoutSeconds int `json:"solve_timeout_seconds"`
	// MaxGenerators and MaxPeriods bound accepted scenarios.
	MaxGenerators int `json:"max_generators"`
	MaxPeriods    int `json:"max_periods"`
	// MaxConcurrentSolves bounds the solves running at the same time.
	MaxConcurrentSolves int `json:"max_concurrent_solves"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.SolveTimeoutSeconds == 0 {
		c.SolveTimeoutSeconds = 60
	}
	if c.MaxGenerators == 0 {
		c.MaxGenerators = 50
	}
	if c.MaxPeriods == 0 {
		c.MaxPeriods = 168
	}
	if c.MaxConcurrentSolves == 0 {
		c.MaxConcurrentSolves = 2
	}
}

// Validate checks mandatory fields.
func (c APIConfig) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.SolveTimeoutSeconds < 0 || c.MaxGenerators < 0 || c.MaxPeriods < 0 || c.MaxConcurrentSolves < 0 {
		return fmt.Errorf("limits must be non-negative")
	}
	return nil
}

// SolveTimeout returns the per-request solve bound.
func (c APIConfig) SolveTimeout() time.Duration {
	return time.Duration(c.SolveTimeoutSeconds) * time.Second
}
