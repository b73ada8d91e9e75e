package metrics

import (
	"errors"
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/unitcommit/core/events"
	coremetrics "github.com/kilianp07/unitcommit/core/metrics"
)

// PromSink records decomposition progress in Prometheus metrics.
type PromSink struct {
	iterations *prometheus.CounterVec
	cuts       *prometheus.CounterVec
	bounds     *prometheus.GaugeVec
	stepTime   *prometheus.HistogramVec
	runs       *prometheus.CounterVec
	runTime    *prometheus.HistogramVec
}

// NewPromSink registers solver metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "benders_iterations_total",
			Help: "Dispatch evaluations performed by the decomposition",
		}, []string{"mode", "state"}),
		cuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "benders_cuts_total",
			Help: "Optimality cuts added to the master",
		}, []string{"mode"}),
		bounds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "benders_bound",
			Help: "Latest bounds of the running decomposition",
		}, []string{"mode", "bound"}),
		stepTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "benders_step_duration_seconds",
			Help:    "Time spent in master and dispatch solves",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode", "model"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unitcommit_runs_total",
			Help: "Finished solve runs by outcome",
		}, []string{"mode", "status"}),
		runTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unitcommit_solve_duration_seconds",
			Help:    "Wall time of complete solve runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"mode"}),
	}
	var err error
	if s.iterations, err = register(reg, s.iterations); err != nil {
		return nil, err
	}
	if s.cuts, err = register(reg, s.cuts); err != nil {
		return nil, err
	}
	if s.bounds, err = register(reg, s.bounds); err != nil {
		return nil, err
	}
	if s.stepTime, err = register(reg, s.stepTime); err != nil {
		return nil, err
	}
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.runTime, err = register(reg, s.runTime); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the collector already registered under the same
// descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordIteration counts the evaluation and refreshes the bound gauges.
func (s *PromSink) RecordIteration(ev events.IterationEvent) error {
	s.iterations.WithLabelValues(ev.Mode, ev.State).Inc()
	if ev.State == "cut_added" {
		s.cuts.WithLabelValues(ev.Mode).Inc()
	}
	setFinite(s.bounds.WithLabelValues(ev.Mode, "lower"), ev.LowerBound)
	setFinite(s.bounds.WithLabelValues(ev.Mode, "upper"), ev.UpperBound)
	setFinite(s.bounds.WithLabelValues(ev.Mode, "phi"), ev.MasterBound)
	if ev.MasterDuration > 0 {
		s.stepTime.WithLabelValues(ev.Mode, "master").Observe(ev.MasterDuration.Seconds())
	}
	if ev.DispatchDuration > 0 {
		s.stepTime.WithLabelValues(ev.Mode, "dispatch").Observe(ev.DispatchDuration.Seconds())
	}
	return nil
}

// RecordRun counts the run outcome and its duration.
func (s *PromSink) RecordRun(ev events.RunEvent) error {
	s.runs.WithLabelValues(ev.Mode, ev.Status).Inc()
	s.runTime.WithLabelValues(ev.Mode).Observe(ev.Duration.Seconds())
	return nil
}

func setFinite(g prometheus.Gauge, v float64) {
	if !math.IsInf(v, 0) && !math.IsNaN(v) {
		g.Set(v)
	}
}

var (
	_ coremetrics.MetricsSink = (*PromSink)(nil)
	_ coremetrics.RunRecorder = (*PromSink)(nil)
)
