package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingMonitor struct {
	mu      sync.Mutex
	errs    []error
	panics  []any
	tags    []map[string]string
	flushed int
}

func (m *recordingMonitor) CaptureException(err error, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
	m.tags = append(m.tags, tags)
}

func (m *recordingMonitor) CapturePanic(v any, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics = append(m.panics, v)
	m.tags = append(m.tags, tags)
}

func (m *recordingMonitor) Flush(time.Duration) {
	m.mu.Lock()
	m.flushed++
	m.mu.Unlock()
}

func install(t *testing.T) *recordingMonitor {
	t.Helper()
	m := &recordingMonitor{}
	Init(m)
	t.Cleanup(func() { Init(nil) })
	return m
}

func TestCaptureException(t *testing.T) {
	m := install(t)
	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"run_id": "r1"})
	if len(m.errs) != 1 || m.errs[0].Error() != "boom" {
		t.Fatalf("unexpected captures: %v", m.errs)
	}
	if m.tags[0]["run_id"] != "r1" {
		t.Fatalf("tags not forwarded: %v", m.tags[0])
	}
}

func TestGuard_ReportsAndRepanics(t *testing.T) {
	m := install(t)
	defer func() {
		r := recover()
		if r != "solver exploded" {
			t.Fatalf("expected panic to propagate, got %v", r)
		}
		if len(m.panics) != 1 || m.flushed != 1 {
			t.Fatalf("panic not reported: %+v", m)
		}
	}()
	Guard(map[string]string{"collector": "runs"}, func() { panic("solver exploded") })
	t.Fatal("Guard returned after a panic")
}

func TestGuard_NoPanic(t *testing.T) {
	m := install(t)
	ran := false
	Guard(nil, func() { ran = true })
	if !ran || len(m.panics) != 0 {
		t.Fatalf("unexpected state: ran=%v panics=%v", ran, m.panics)
	}
}

func TestInitNilRestoresNop(t *testing.T) {
	Init(nil)
	if _, ok := Current().(NopMonitor); !ok {
		t.Fatalf("expected NopMonitor, got %T", Current())
	}
	CapturePanic("ignored", nil)
	Flush(time.Millisecond)
}
