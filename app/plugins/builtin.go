package plugins

import (
	"fmt"

	"github.com/kilianp07/unitcommit/core/factory"
	"github.com/kilianp07/unitcommit/core/journal"
	"github.com/kilianp07/unitcommit/core/solver"
)

func init() {
	_ = RegisterOracle("gonum", func(conf map[string]any) (solver.Oracle, error) {
		var c struct {
			Tolerance float64 `json:"tolerance"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, fmt.Errorf("gonum oracle: %w", err)
		}
		return solver.NewGonum(c.Tolerance), nil
	})

	_ = RegisterJournal("none", func(journal.Config) (journal.Store, error) {
		return journal.NopStore{}, nil
	})
	_ = RegisterJournal("jsonl", func(cfg journal.Config) (journal.Store, error) {
		return journal.NewJSONLStore(cfg.Path)
	})
	_ = RegisterJournal("rotating", func(cfg journal.Config) (journal.Store, error) {
		return journal.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	})
	_ = RegisterJournal("sqlite", func(cfg journal.Config) (journal.Store, error) {
		return journal.NewSQLiteStore(cfg.Path)
	})
}

// NewOracle builds the oracle registered under typ.
func NewOracle(typ string, conf map[string]any) (solver.Oracle, error) {
	return oracles.Create(factory.ModuleConfig{Type: typ, Conf: conf})
}

// OpenJournal opens the journal backend named by cfg.Backend.
func OpenJournal(cfg journal.Config) (journal.Store, error) {
	f, ok := journals[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
	return f(cfg)
}
