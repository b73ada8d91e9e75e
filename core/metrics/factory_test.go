package metrics_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/kilianp07/unitcommit/core/factory"
	metrics "github.com/kilianp07/unitcommit/core/metrics"
	_ "github.com/kilianp07/unitcommit/infra/metrics"
)

func TestMetricsFactory_Builtins(t *testing.T) {
	names := metrics.SinkNames()
	for _, want := range []string{"influx", "nop", "prometheus"} {
		if !slices.Contains(names, want) {
			t.Fatalf("sink %q not registered: %v", want, names)
		}
	}
	s, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	if err != nil {
		t.Fatalf("create nop: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected the single sink itself, got %T", s)
	}
}

func TestNewMetricsSink_UnknownTypeNamesEntry(t *testing.T) {
	_, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "statsd"}})
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	if !strings.Contains(err.Error(), "sink 1 (statsd)") {
		t.Fatalf("error does not name the entry: %v", err)
	}
}

func TestNewMetricsSink_Multi(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "prometheus"}})
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*metrics.MultiSink)
	if !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	if len(m.Sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(m.Sinks))
	}
	if _, ok := s.(metrics.RunRecorder); !ok {
		t.Fatal("MultiSink should record runs")
	}
}
