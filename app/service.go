package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/kilianp07/unitcommit/app/plugins"
	"github.com/kilianp07/unitcommit/config"
	"github.com/kilianp07/unitcommit/core/benders"
	"github.com/kilianp07/unitcommit/core/direct"
	"github.com/kilianp07/unitcommit/core/events"
	"github.com/kilianp07/unitcommit/core/journal"
	coremetrics "github.com/kilianp07/unitcommit/core/metrics"
	"github.com/kilianp07/unitcommit/core/model"
	coremon "github.com/kilianp07/unitcommit/core/monitoring"
	"github.com/kilianp07/unitcommit/core/solver"
	"github.com/kilianp07/unitcommit/infra/logger"
	"github.com/kilianp07/unitcommit/infra/metrics"
	"github.com/kilianp07/unitcommit/infra/monitoring"
	"github.com/kilianp07/unitcommit/infra/mqtt"
	"github.com/kilianp07/unitcommit/internal/eventbus"
)

// ModeDirect solves the monolithic MILP instead of decomposing it.
const ModeDirect = "direct"

// Run outcomes stored in the journal and reported as metrics labels.
const (
	StatusConverged      = "converged"
	StatusBudgetExceeded = "budget_exceeded"
	StatusCancelled      = "cancelled"
	StatusFailed         = "failed"
)

// Publisher announces finished schedules to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, runID, mode string, data *model.ProblemData, s *model.Schedule) error
	Close()
}

// Result is the outcome of one solve run.
type Result struct {
	RunID    string              `json:"run_id"`
	Mode     string              `json:"mode"`
	Status   string              `json:"status"`
	Schedule *model.Schedule     `json:"schedule,omitempty"`
	Costs    model.CostBreakdown `json:"costs"`
	Duration time.Duration       `json:"duration_ns"`
	Error    string              `json:"error,omitempty"`
}

// Service wires configuration into the solver and its observers.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	oracle    solver.Oracle
	bus       *eventbus.Bus
	runs      *eventbus.TypedBus[events.RunEvent]
	sink      coremetrics.MetricsSink
	journal   journal.Store
	publisher Publisher
	slots     *semaphore.Weighted
	newID     func() string
	cancel    context.CancelFunc
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := logger.Setup(cfg.Logging); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	oracleConf := map[string]any{}
	for k, v := range cfg.Oracle.Conf {
		oracleConf[k] = v
	}
	if _, ok := oracleConf["tolerance"]; !ok && cfg.Solver.SimplexTolerance > 0 {
		oracleConf["tolerance"] = cfg.Solver.SimplexTolerance
	}
	oracle, err := plugins.NewOracle(cfg.Oracle.Type, oracleConf)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	store, err := plugins.OpenJournal(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	svc := &Service{
		cfg:     cfg,
		log:     logg,
		oracle:  oracle,
		bus:     eventbus.New(),
		runs:    eventbus.NewTyped[events.RunEvent](),
		sink:    sink,
		journal: store,
		newID:   uuid.NewString,
	}
	if n := cfg.API.MaxConcurrentSolves; n > 0 {
		svc.slots = semaphore.NewWeighted(int64(n))
	}
	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewSchedulePublisher(cfg.MQTT)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = pub
	}
	return svc, nil
}

// SetPublisher replaces the schedule publisher, nil disables publication.
func (s *Service) SetPublisher(p Publisher) { s.publisher = p }

// Bus returns the bus carrying IterationEvents.
func (s *Service) Bus() eventbus.EventBus { return s.bus }

// Runs returns the bus carrying RunEvents.
func (s *Service) Runs() *eventbus.TypedBus[events.RunEvent] { return s.runs }

// Config returns the configuration the service was built from.
func (s *Service) Config() *config.Config { return s.cfg }

// Start forwards bus events to the metrics sink until ctx ends or Close.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	metrics.StartEventCollector(ctx, s.bus, s.sink, s.log)
	metrics.StartRunCollector(ctx, s.runs, s.sink, s.log)
}

// Solve runs the decomposition in the given mode ("iterative", "embedded"
// or "direct"; empty uses the configured mode). A run stopped by a budget
// returns its partial result together with the *benders.ConvergenceError.
func (s *Service) Solve(ctx context.Context, data *model.ProblemData, mode string) (*Result, error) {
	if mode == "" {
		mode = s.cfg.Solver.Mode
	}
	if s.slots != nil {
		if err := s.slots.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer s.slots.Release(1)
	}
	runID := s.newID()
	start := time.Now()
	log := s.log
	if zl, ok := log.(*logger.ZerologLogger); ok {
		log = zl.With("run_id", runID)
	}
	log.Infof("solve started: %d generators, %d periods, mode %s", data.G(), data.T(), mode)

	sched, err := s.run(ctx, runID, mode, data, log)
	res := &Result{
		RunID:    runID,
		Mode:     mode,
		Status:   status(err),
		Schedule: sched.Encodable(),
		Duration: time.Since(start),
	}
	if sched != nil && sched.Commitment != nil {
		res.Costs = data.Costs(sched.Commitment, sched.Dispatch)
	}
	if err != nil {
		res.Error = err.Error()
		log.Warnf("solve %s: %v", res.Status, err)
	} else {
		log.Infof("solve converged in %s, cost %.4f", res.Duration, sched.TotalCost)
	}
	s.finish(ctx, data, res, start, err)
	return res, err
}

func (s *Service) run(ctx context.Context, runID, mode string, data *model.ProblemData, log logger.Logger) (*model.Schedule, error) {
	if mode == ModeDirect {
		m, err := direct.New(data)
		if err != nil {
			return nil, err
		}
		ctx, cancel := ctx, context.CancelFunc(func() {})
		if b := s.cfg.Solver.TimeBudget(); b > 0 {
			ctx, cancel = context.WithTimeoutCause(ctx, b, benders.ErrTimeBudget)
		}
		defer cancel()
		sched, err := m.Solve(ctx, s.oracle, solver.MIPOptions{Workers: s.cfg.Solver.Workers, NodeLimit: s.cfg.Solver.NodeLimit})
		if err != nil && (ctx.Err() != nil || errors.Is(err, solver.ErrNodeLimit)) {
			cause := context.Cause(ctx)
			if cause == nil {
				cause = solver.ErrNodeLimit
			}
			return sched, &benders.ConvergenceError{Iterations: 1, LowerBound: math.Inf(-1), UpperBound: math.Inf(1), Cause: cause}
		}
		return sched, err
	}
	cfg := s.cfg.Solver
	cfg.Mode = mode
	loop, err := benders.NewLoop(data, s.oracle, cfg, log)
	if err != nil {
		return nil, err
	}
	loop.SetRunID(runID)
	loop.SetEventBus(s.bus)
	return loop.Solve(ctx)
}

// finish journals, publishes and announces a run. Failures there are logged,
// never returned, so a persisted schedule is never lost to a broker outage.
func (s *Service) finish(ctx context.Context, data *model.ProblemData, res *Result, start time.Time, runErr error) {
	now := time.Now()
	rec := journal.RunRecord{
		RunID:      res.RunID,
		Mode:       res.Mode,
		Status:     res.Status,
		Started:    start,
		Finished:   now,
		Generators: data.G(),
		Periods:    data.T(),
		Error:      res.Error,
		Schedule:   res.Schedule,
	}
	ev := events.RunEvent{
		RunID:    res.RunID,
		Mode:     res.Mode,
		Status:   res.Status,
		Duration: res.Duration,
		Err:      runErr,
		Time:     now,
	}
	if sc := res.Schedule; sc != nil {
		rec.Iterations, ev.Iterations = sc.Iterations, sc.Iterations
		rec.Cuts, ev.Cuts = sc.Cuts, sc.Cuts
		rec.TotalCost, ev.TotalCost = sc.TotalCost, sc.TotalCost
		rec.LowerBound, ev.LowerBound = sc.LowerBound, sc.LowerBound
		rec.UpperBound, ev.UpperBound = sc.UpperBound, sc.UpperBound
		ev.Converged = sc.Converged
	}
	// the caller's context may already be done when a budget stopped the run
	bg := context.WithoutCancel(ctx)
	if err := s.journal.Append(bg, rec); err != nil {
		s.log.Errorf("journal append %s: %v", res.RunID, err)
	}
	if s.publisher != nil && res.Status == StatusConverged {
		pctx, cancel := context.WithTimeout(bg, 10*time.Second)
		if err := s.publisher.Publish(pctx, res.RunID, res.Mode, data, res.Schedule); err != nil {
			s.log.Errorf("publish schedule %s: %v", res.RunID, err)
		}
		cancel()
	}
	if res.Status == StatusFailed {
		coremon.CaptureException(runErr, map[string]string{"run_id": res.RunID, "mode": res.Mode})
	}
	s.runs.Publish(ev)
}

// Journal returns the run journal.
func (s *Service) Journal() journal.Store { return s.journal }

// History queries the run journal.
func (s *Service) History(ctx context.Context, q journal.RunQuery) ([]journal.RunRecord, error) {
	return s.journal.Query(ctx, q)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.publisher != nil {
		s.publisher.Close()
	}
	s.bus.Close()
	s.runs.Close()
	if n := s.bus.Dropped() + s.runs.Dropped(); n > 0 {
		s.log.Warnf("%d events dropped by slow subscribers", n)
	}
	coremon.Flush(coremon.FlushTimeout)
	return s.journal.Close()
}

func status(err error) string {
	var ce *benders.ConvergenceError
	switch {
	case err == nil:
		return StatusConverged
	case errors.As(err, &ce) && (errors.Is(err, benders.ErrIterationBudget) || errors.Is(err, benders.ErrTimeBudget) || errors.Is(err, solver.ErrNodeLimit)):
		return StatusBudgetExceeded
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	default:
		return StatusFailed
	}
}
