package metrics

import (
	"errors"
	"testing"

	"github.com/kilianp07/unitcommit/core/events"
)

type recordSink struct {
	iterations int
	runs       int
	err        error
}

func (r *recordSink) RecordIteration(events.IterationEvent) error {
	r.iterations++
	return r.err
}

func (r *recordSink) RecordRun(events.RunEvent) error {
	r.runs++
	return r.err
}

// iterationOnly does not implement RunRecorder.
type iterationOnly struct{ count int }

func (s *iterationOnly) RecordIteration(events.IterationEvent) error {
	s.count++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &iterationOnly{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordIteration(events.IterationEvent{Iteration: 1}); err != nil {
		t.Fatalf("record iteration: %v", err)
	}
	if err := m.RecordRun(events.RunEvent{}); err != nil {
		t.Fatalf("record run: %v", err)
	}
	if s1.iterations != 1 || s1.runs != 1 || s2.count != 1 {
		t.Fatalf("events not forwarded: %+v %+v", s1, s2)
	}
}

func TestMultiSink_KeepsForwardingOnError(t *testing.T) {
	boom := errors.New("boom")
	failing := &recordSink{err: boom}
	ok := &recordSink{}
	m := NewMultiSink(failing, ok)
	if err := m.RecordIteration(events.IterationEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom got %v", err)
	}
	if ok.iterations != 1 {
		t.Fatalf("second sink skipped")
	}
}
