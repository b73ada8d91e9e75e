package config

import (
	"os"
	"path/filepath"
	"testing"
)

//nolint:gocyclo
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `solver:
  mode: "embedded"
  epsilon: 0.001
  max_iterations: 40
  time_budget_seconds: 30
  workers: 4
  global_cuts: true
oracle:
  type: "gonum"
  conf:
    tolerance: 1e-8
metrics:
  sinks:
    - type: "nop"
journal:
  backend: "sqlite"
  path: "/tmp/runs.db"
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "cli"
  topic_prefix: "plant"
  qos: 1
api:
  listen: ":9000"
  token: "secret"
  cors_origins: ["http://localhost:3000"]
logging:
  level: "debug"
  format: "console"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"solver.mode", cfg.Solver.Mode, "embedded"},
		{"solver.epsilon", cfg.Solver.Epsilon, 0.001},
		{"solver.embedded_epsilon", cfg.Solver.EmbeddedEpsilon, 1e-7},
		{"solver.max_iterations", cfg.Solver.MaxIterations, 40},
		{"solver.time_budget_seconds", cfg.Solver.TimeBudgetSeconds, 30},
		{"solver.workers", cfg.Solver.Workers, 4},
		{"solver.global_cuts", cfg.Solver.GlobalCuts, true},
		{"oracle.type", cfg.Oracle.Type, "gonum"},
		{"oracle.conf", cfg.Oracle.Conf["tolerance"] != nil, true},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"journal.backend", cfg.Journal.Backend, "sqlite"},
		{"journal.path", cfg.Journal.Path, "/tmp/runs.db"},
		{"mqtt.enabled", cfg.MQTT.Enabled, true},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.topic_prefix", cfg.MQTT.TopicPrefix, "plant"},
		{"mqtt.qos", cfg.MQTT.QoS, byte(1)},
		{"api.listen", cfg.API.Listen, ":9000"},
		{"api.token", cfg.API.Token, "secret"},
		{"api.cors", len(cfg.API.CORSOrigins) == 1 && cfg.API.CORSOrigins[0] == "http://localhost:3000", true},
		{"logging.level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoad_JSONWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"solver": {"epsilon": 0.01}, "journal": {"backend": "jsonl"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("K_SOLVER__EPSILON", "1e-5")
	t.Setenv("K_SOLVER__MAX_ITERATIONS", "12")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Solver.Epsilon != 1e-5 {
		t.Errorf("env override not applied: %v", cfg.Solver.Epsilon)
	}
	if cfg.Solver.MaxIterations != 12 {
		t.Errorf("env override not applied: %v", cfg.Solver.MaxIterations)
	}
	if cfg.Journal.Path != "runs.jsonl" {
		t.Errorf("journal default path: %s", cfg.Journal.Path)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Solver.Mode != "iterative" || cfg.Solver.Epsilon != 1e-6 {
		t.Errorf("unexpected solver defaults: %+v", cfg.Solver)
	}
	if cfg.Oracle.Type != "gonum" || cfg.API.Listen != ":8080" || cfg.MQTT.Enabled {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		file string
		body string
	}{
		{"format", "config.toml", "x = 1"},
		{"mode", "config.yaml", "solver:\n  mode: sideways\n"},
		{"journal", "config.yaml", "journal:\n  backend: csv\n"},
		{"mqtt", "config.yaml", "mqtt:\n  enabled: true\n"},
		{"sink", "config.yaml", "metrics:\n  sinks:\n    - conf: {}\n"},
		{"logging", "config.yaml", "logging:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+"-"+tt.file)
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestSentryConfig_Validate(t *testing.T) {
	if err := (SentryConfig{TracesSampleRate: 0.5}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (SentryConfig{TracesSampleRate: 2}).Validate(); err == nil {
		t.Fatal("expected error for sample rate above 1")
	}
}
