package plugins

import (
	"fmt"

	"github.com/kilianp07/unitcommit/core/factory"
	"github.com/kilianp07/unitcommit/core/journal"
	"github.com/kilianp07/unitcommit/core/solver"
)

// JournalFactory opens a run journal from its configuration.
type JournalFactory func(cfg journal.Config) (journal.Store, error)

var (
	oracles  = factory.NewRegistry[solver.Oracle]()
	journals = map[string]JournalFactory{}
)

// RegisterOracle adds an oracle factory. Names must be unique.
func RegisterOracle(name string, f factory.Factory[solver.Oracle]) error {
	return oracles.Register(name, f)
}

// RegisterJournal adds a journal backend. Names must be unique.
func RegisterJournal(name string, f JournalFactory) error {
	if f == nil {
		return fmt.Errorf("journal factory nil for %s", name)
	}
	if _, ok := journals[name]; ok {
		return fmt.Errorf("journal backend already registered for %s", name)
	}
	journals[name] = f
	return nil
}

// OracleNames lists the registered oracle types.
func OracleNames() []string { return oracles.Names() }
