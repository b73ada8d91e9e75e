package metrics

import (
	"errors"

	"github.com/kilianp07/unitcommit/core/events"
)

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordIteration forwards the event to every sink and joins their errors.
func (m *MultiSink) RecordIteration(ev events.IterationEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordIteration(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordRun forwards run summaries to the sinks implementing RunRecorder.
func (m *MultiSink) RecordRun(ev events.RunEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(RunRecorder); ok {
			if err := rec.RecordRun(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
