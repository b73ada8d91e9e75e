package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/unitcommit/core/events"
	"github.com/kilianp07/unitcommit/internal/eventbus"
)

type recordingSink struct {
	mu    sync.Mutex
	iters []events.IterationEvent
	runs  []events.RunEvent
}

func (s *recordingSink) RecordIteration(ev events.IterationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iters = append(s.iters, ev)
	return nil
}

func (s *recordingSink) RecordRun(ev events.RunEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, ev)
	return nil
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.iters), len(s.runs)
}

func TestStartEventCollector(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := eventbus.New()
	defer bus.Close()
	sink := &recordingSink{}
	StartEventCollector(ctx, bus, sink, nil)

	// give the collector time to subscribe
	require.Eventually(t, func() bool {
		bus.Publish(events.IterationEvent{Iteration: 1})
		n, _ := sink.counts()
		return n > 0
	}, time.Second, 10*time.Millisecond)
	bus.Publish("ignored")
	n, _ := sink.counts()
	assert.GreaterOrEqual(t, n, 1)
}

func TestStartRunCollector(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runs := eventbus.NewTyped[events.RunEvent]()
	defer runs.Close()
	sink := &recordingSink{}
	StartRunCollector(ctx, runs, sink, nil)

	require.Eventually(t, func() bool {
		runs.Publish(events.RunEvent{RunID: "r1", Status: "converged"})
		_, n := sink.counts()
		return n > 0
	}, time.Second, 10*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "r1", sink.runs[0].RunID)
}
