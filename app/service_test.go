package app

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/unitcommit/config"
	"github.com/kilianp07/unitcommit/core/benders"
	"github.com/kilianp07/unitcommit/core/journal"
	"github.com/kilianp07/unitcommit/core/model"
	"github.com/kilianp07/unitcommit/core/solver"
	"github.com/kilianp07/unitcommit/infra/logger"
	"github.com/kilianp07/unitcommit/scenario"
)

type fakePublisher struct {
	mu     sync.Mutex
	runs   []string
	closed bool
}

func (f *fakePublisher) Publish(_ context.Context, runID, _ string, _ *model.ProblemData, _ *model.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, runID)
	return nil
}

func (f *fakePublisher) Close() { f.closed = true }

func newService(t *testing.T, mutate func(*config.Config)) (*Service, *fakePublisher) {
	t.Helper()
	cfg := config.Default()
	cfg.Journal = journal.Config{Backend: "jsonl", Path: filepath.Join(t.TempDir(), "runs.jsonl")}
	cfg.Logging = logger.Config{Level: "error", Format: "json"}
	if mutate != nil {
		mutate(cfg)
	}
	svc, err := New(cfg)
	require.NoError(t, err)
	pub := &fakePublisher{}
	svc.SetPublisher(pub)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = svc.Close()
	})
	return svc, pub
}

func TestService_SolveEveryMode(t *testing.T) {
	svc, pub := newService(t, nil)
	for _, mode := range []string{benders.ModeIterative, benders.ModeEmbedded, ModeDirect} {
		t.Run(mode, func(t *testing.T) {
			res, err := svc.Solve(context.Background(), scenario.Default(), mode)
			require.NoError(t, err)
			assert.Equal(t, StatusConverged, res.Status)
			assert.Equal(t, mode, res.Mode)
			assert.NotEmpty(t, res.RunID)
			assert.InDelta(t, 479, res.Schedule.TotalCost, 1e-6)
			assert.InDelta(t, 479, res.Costs.Total(), 1e-6)
			assert.True(t, res.Schedule.Commitment.Equal(model.Commitment{{1, 1, 0}, {1, 1, 1}}))
		})
	}

	recs, err := svc.History(context.Background(), journal.RunQuery{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, ModeDirect, recs[2].Mode)
	assert.Equal(t, 2, recs[0].Generators)
	assert.Equal(t, 3, recs[0].Periods)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Len(t, pub.runs, 3)
}

func TestService_DefaultModeFromConfig(t *testing.T) {
	svc, _ := newService(t, func(c *config.Config) { c.Solver.Mode = benders.ModeEmbedded })
	res, err := svc.Solve(context.Background(), scenario.Default(), "")
	require.NoError(t, err)
	assert.Equal(t, benders.ModeEmbedded, res.Mode)
}

func TestService_BudgetExceededIsJournaled(t *testing.T) {
	svc, pub := newService(t, func(c *config.Config) { c.Solver.MaxIterations = 1 })
	res, err := svc.Solve(context.Background(), scenario.Default(), benders.ModeIterative)
	var ce *benders.ConvergenceError
	require.ErrorAs(t, err, &ce)
	assert.True(t, errors.Is(err, benders.ErrIterationBudget))
	assert.Equal(t, StatusBudgetExceeded, res.Status)
	require.NotNil(t, res.Schedule)
	assert.Equal(t, 1, res.Schedule.Iterations)
	assert.False(t, math.IsInf(res.Schedule.TotalCost, 0))

	recs, err := svc.History(context.Background(), journal.RunQuery{Status: StatusBudgetExceeded})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, res.RunID, recs[0].RunID)
	assert.NotEmpty(t, recs[0].Error)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Empty(t, pub.runs, "unconverged schedules are not published")
}

func TestService_RunEventsPublished(t *testing.T) {
	svc, _ := newService(t, nil)
	sub := svc.Runs().Subscribe()
	defer svc.Runs().Unsubscribe(sub)

	res, err := svc.Solve(context.Background(), scenario.Default(), benders.ModeIterative)
	require.NoError(t, err)
	select {
	case ev := <-sub:
		assert.Equal(t, res.RunID, ev.RunID)
		assert.True(t, ev.Converged)
		assert.Greater(t, ev.Iterations, 0)
	case <-time.After(time.Second):
		t.Fatal("no run event")
	}
}

func TestService_InvalidData(t *testing.T) {
	svc, _ := newService(t, nil)
	data := scenario.Default()
	data.Demand[0] = -1
	res, err := svc.Solve(context.Background(), data, benders.ModeIterative)
	var de *model.DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Nil(t, res.Schedule)
}

func TestNew_UnknownOracle(t *testing.T) {
	cfg := config.Default()
	cfg.Journal.Backend = "none"
	cfg.Oracle.Type = "cplex"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"nil":        {nil, StatusConverged},
		"iterations": {&benders.ConvergenceError{Cause: benders.ErrIterationBudget}, StatusBudgetExceeded},
		"time":       {&benders.ConvergenceError{Cause: benders.ErrTimeBudget}, StatusBudgetExceeded},
		"node limit": {&benders.ConvergenceError{Cause: solver.ErrNodeLimit}, StatusBudgetExceeded},
		"cancelled":  {&benders.ConvergenceError{Cause: context.Canceled}, StatusCancelled},
		"failure":    {&benders.SolverFailure{Model: "master", Err: errors.New("boom")}, StatusFailed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, status(tc.err))
		})
	}
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, runID, mode string, data *model.ProblemData, s *model.Schedule) error {
	return m.Called(ctx, runID, mode, data, s).Error(0)
}

func (m *mockPublisher) Close() { m.Called() }

func TestService_PublishFailureKeepsResult(t *testing.T) {
	svc, _ := newService(t, nil)
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.AnythingOfType("string"), benders.ModeIterative, mock.Anything, mock.Anything).
		Return(errors.New("broker down")).Once()
	pub.On("Close").Maybe()
	svc.SetPublisher(pub)

	res, err := svc.Solve(context.Background(), scenario.Default(), benders.ModeIterative)
	require.NoError(t, err)
	assert.Equal(t, StatusConverged, res.Status)
	pub.AssertNumberOfCalls(t, "Publish", 1)

	recs, err := svc.History(context.Background(), journal.RunQuery{RunID: res.RunID})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
