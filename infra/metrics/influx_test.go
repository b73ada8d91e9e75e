package metrics

import (
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/unitcommit/core/events"
	coremetrics "github.com/kilianp07/unitcommit/core/metrics"
)

type bodyRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (b *bodyRecorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.bodies = append(b.bodies, strings.TrimSpace(string(data)))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInfluxSink_RecordIteration(t *testing.T) {
	var rec bodyRecorder
	srv := rec.server(t)

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Now()
	ev := events.IterationEvent{
		RunID:             "run1",
		Mode:              "iterative",
		Iteration:         2,
		State:             "cut_added",
		LowerBound:        99,
		UpperBound:        math.Inf(1),
		MasterBound:       0,
		DispatchObjective: 380,
		Cuts:              1,
		MasterDuration:    2 * time.Millisecond,
		DispatchDuration:  time.Millisecond,
		Time:              now,
	}
	if err := sink.RecordIteration(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("benders_iteration").
		AddTag("run_id", "run1").
		AddTag("mode", "iterative").
		AddTag("state", "cut_added").
		AddField("iteration", 2).
		AddField("node", int64(0)).
		AddField("cuts", 1).
		AddField("phi", 0.0).
		AddField("dispatch_cost", 380.0).
		AddField("master_ms", 2.0).
		AddField("dispatch_ms", 1.0).
		SetTime(now)
	p.AddField("lower_bound", 99.0)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(rec.bodies) != 1 || rec.bodies[0] != expected {
		t.Fatalf("unexpected body: %#v", rec.bodies)
	}
	if strings.Contains(rec.bodies[0], "upper_bound") {
		t.Errorf("infinite bound must not be written")
	}
}

func TestInfluxSink_RecordRun(t *testing.T) {
	var rec bodyRecorder
	srv := rec.server(t)

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Now()
	ev := events.RunEvent{
		RunID:      "run1",
		Mode:       "embedded",
		Status:     "budget_exceeded",
		Iterations: 4,
		Cuts:       3,
		TotalCost:  500,
		LowerBound: 450,
		UpperBound: 500,
		Duration:   1500 * time.Millisecond,
		Err:        errors.New("time budget exhausted"),
		Time:       now,
	}
	if err := sink.RecordRun(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	if len(rec.bodies) != 1 {
		t.Fatalf("expected one write, got %d", len(rec.bodies))
	}
	body := rec.bodies[0]
	for _, want := range []string{"solve_run,", "status=budget_exceeded", "converged=false", "iterations=4i", "duration_ms=1500", "total_cost=500", `error="time budget exhausted"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body %q misses %q", body, want)
		}
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("unexpected sink type %T", sink)
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
