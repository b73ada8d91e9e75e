package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/kilianp07/unitcommit/scenario"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("K_JOURNAL__BACKEND", "none")
	t.Setenv("K_LOGGING__LEVEL", "error")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSolveCommand_DefaultScenario(t *testing.T) {
	out, err := execute(t, "solve", "--mode", "iterative", "--verify", "--compare")
	if err != nil {
		t.Fatalf("solve: %v\n%s", err, out)
	}
	for _, want := range []string{"converged", "total cost 479.0000", "schedule verified", "direct cost 479.0000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output misses %q:\n%s", want, out)
		}
	}
}

func TestDirectCommand_YAMLScenario(t *testing.T) {
	raw, err := scenario.MarshalYAML(scenario.Default())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "s.yaml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := execute(t, "direct", "--scenario", path, "--json")
	if err != nil {
		t.Fatalf("direct: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"mode": "direct"`) || !strings.Contains(out, `"total_cost": 479`) {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestDataFlags_Load(t *testing.T) {
	dir := filepath.Join("..", "scenario", "testdata")
	newCmd := func(args ...string) (*cobra.Command, *dataFlags) {
		var f dataFlags
		c := &cobra.Command{Use: "x"}
		f.bind(c)
		if err := c.ParseFlags(args); err != nil {
			t.Fatalf("parse: %v", err)
		}
		return c, &f
	}

	c, f := newCmd("--generators", "2", "--demand", filepath.Join(dir, "loads.txt"),
		"--table", filepath.Join(dir, "generators.txt"), "--horizon", "4", "--shed", "500")
	data, err := f.load(c)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if data.G() != 2 || data.T() != 4 || data.SheddingCost != 500 {
		t.Fatalf("unexpected instance: G=%d T=%d shed=%v", data.G(), data.T(), data.SheddingCost)
	}

	// partial table flags fall back to the default scenario
	c, f = newCmd("--generators", "2")
	data, err = f.load(c)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if data.G() != 2 || data.T() != 3 || data.SheddingCost != 1000 {
		t.Fatalf("expected the default scenario")
	}

	c, f = newCmd("--scenario", filepath.Join(dir, "missing.yaml"))
	if _, err := f.load(c); err == nil {
		t.Fatalf("expected error for missing scenario")
	}
}

func TestSolveCommand_Export(t *testing.T) {
	t.Cleanup(func() { solveOpts.export = "" })
	path := filepath.Join(t.TempDir(), "plan.csv")
	out, err := execute(t, "solve", "--mode", "embedded", "--export", path)
	if err != nil {
		t.Fatalf("solve: %v\n%s", err, out)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 10 || !strings.HasPrefix(lines[0], "unit,period") {
		t.Fatalf("unexpected export:\n%s", raw)
	}
}
