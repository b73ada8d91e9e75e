package metrics

import (
	"context"

	"github.com/kilianp07/unitcommit/core/events"
	coremetrics "github.com/kilianp07/unitcommit/core/metrics"
	"github.com/kilianp07/unitcommit/core/monitoring"
	"github.com/kilianp07/unitcommit/infra/logger"
	"github.com/kilianp07/unitcommit/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records iteration
// metrics. It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) {
	if bus == nil || sink == nil {
		return
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go monitoring.Guard(map[string]string{"collector": "iterations"}, func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(events.IterationEvent); ok {
					if err := sink.RecordIteration(e); err != nil {
						log.Errorf("record iteration: %v", err)
					}
				}
			}
		}
	})
}

// StartRunCollector records every RunEvent published on runs when the sink
// implements RunRecorder.
func StartRunCollector(ctx context.Context, runs *eventbus.TypedBus[events.RunEvent], sink coremetrics.MetricsSink, log logger.Logger) {
	r, ok := sink.(coremetrics.RunRecorder)
	if runs == nil || !ok {
		return
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := runs.Subscribe()
	go monitoring.Guard(map[string]string{"collector": "runs"}, func() {
		defer runs.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := r.RecordRun(ev); err != nil {
					log.Errorf("record run: %v", err)
				}
			}
		}
	})
}
