package metrics

import (
	"github.com/kilianp07/unitcommit/core/events"
)

// MetricsSink records decomposition progress for observability purposes.
type MetricsSink interface {
	RecordIteration(ev events.IterationEvent) error
}

// RunRecorder records finished solve runs.
type RunRecorder interface {
	RecordRun(ev events.RunEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordIteration(events.IterationEvent) error { return nil }
func (NopSink) RecordRun(events.RunEvent) error             { return nil }
