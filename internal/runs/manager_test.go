package runs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oddsmith/foresight/internal/backtest"
	"github.com/oddsmith/foresight/internal/runs"
	"github.com/oddsmith/foresight/internal/store"
	"github.com/oddsmith/foresight/internal/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultStore rejects the summary write that would complete a run, simulating
// a store that dies between trade persistence and the final update.
type faultStore struct {
	*store.MemoryStore
}

func (s *faultStore) UpdateRun(ctx context.Context, run *runs.Run) error {
	if run.Status == runs.StatusCompleted {
		return errors.New("disk full")
	}
	return s.MemoryStore.UpdateRun(ctx, run)
}

var windowStart = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newManager(t *testing.T) (*runs.Manager, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	provider := backtest.NewSeriesProvider(mem, 0)
	return runs.NewManager(provider, mem), mem
}

func seedPrices(t *testing.T, mem *store.MemoryStore, marketID string, prices []float64) {
	t.Helper()
	points := make([]backtest.PricePoint, len(prices))
	for i, p := range prices {
		yes := decimal.NewFromFloat(p)
		points[i] = backtest.PricePoint{
			Timestamp: windowStart.Add(time.Duration(i) * time.Hour),
			YesPrice:  yes,
			NoPrice:   decimal.NewFromInt(1).Sub(yes),
			Volume:    decimal.NewFromInt(100),
		}
	}
	require.NoError(t, mem.AddPrices(context.Background(), marketID, points))
}

func baseRequest() runs.Request {
	return runs.Request{
		Name:           "june mean reversion",
		Strategy:       "mean-reversion",
		Params:         backtest.DefaultStrategyParams(),
		StartDate:      windowStart,
		EndDate:        windowStart.AddDate(0, 0, 2),
		InitialCapital: decimal.NewFromInt(10000),
	}
}

func TestExecute_HistoricalPath(t *testing.T) {
	manager, mem := newManager(t)
	prices := []float64{0.50, 0.50, 0.50, 0.50, 0.50, 0.50, 0.50, 0.50, 0.50, 0.50, 0.40, 0.50}
	seedPrices(t, mem, "mkt-hist", prices)

	run, err := manager.Execute(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, runs.StatusCompleted, run.Status)
	assert.Equal(t, backtest.SourceHistorical, run.ModelSource)
	require.NotNil(t, run.Metrics)
	assert.Equal(t, 1, run.Metrics.TotalTrades)
	assert.True(t, run.Metrics.FinalCapital.GreaterThan(run.InitialCapital))
	assert.False(t, run.CompletedAt.IsZero())

	stored, trades, err := manager.GetDetail(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, runs.StatusCompleted, stored.Status)
	require.Len(t, trades, 1)
	assert.Equal(t, "mkt-hist", trades[0].MarketID)
}

func TestExecute_ZeroTradeRunStillCompletes(t *testing.T) {
	manager, mem := newManager(t)
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 0.50
	}
	seedPrices(t, mem, "mkt-flat", flat)

	run, err := manager.Execute(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, runs.StatusCompleted, run.Status)
	require.NotNil(t, run.Metrics)
	assert.Zero(t, run.Metrics.TotalTrades)
	assert.Zero(t, run.Metrics.WinRate)
	assert.Zero(t, run.Metrics.ProfitFactor)
	assert.True(t, run.Metrics.FinalCapital.Equal(run.InitialCapital))
}

func TestExecute_FallbackWhenNoHistory(t *testing.T) {
	manager, _ := newManager(t)

	req := baseRequest()
	req.StartDate = windowStart
	req.EndDate = windowStart.Add(24 * time.Hour)
	req.Params.Seed = 42

	run, err := manager.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, runs.StatusCompleted, run.Status)
	assert.Equal(t, backtest.SourceStochastic, run.ModelSource)
	require.NotNil(t, run.Metrics)
	assert.NotEmpty(t, run.Metrics.EquityCurve)
	assert.GreaterOrEqual(t, run.Metrics.TotalTrades, 0)
	assert.GreaterOrEqual(t, run.Metrics.MaxDrawdownPct, 0.0)
	assert.LessOrEqual(t, run.Metrics.MaxDrawdownPct, 100.0)
}

func TestExecute_ValidationRejectsBeforePersisting(t *testing.T) {
	manager, mem := newManager(t)

	req := baseRequest()
	req.EndDate = req.StartDate
	_, err := manager.Execute(context.Background(), req)
	assert.ErrorIs(t, err, runs.ErrInvalidWindow)

	req = baseRequest()
	req.InitialCapital = decimal.Zero
	_, err = manager.Execute(context.Background(), req)
	assert.ErrorIs(t, err, runs.ErrInvalidCapital)

	req = baseRequest()
	req.Params.MinEdge = -1
	_, err = manager.Execute(context.Background(), req)
	assert.Error(t, err)

	// Nothing reached the store.
	all, err := mem.ListRuns(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestExecute_FinalPersistenceFaultRollsBack(t *testing.T) {
	telemetry.Reset()
	t.Cleanup(telemetry.Reset)

	mem := store.NewMemoryStore()
	st := &faultStore{MemoryStore: mem}
	provider := backtest.NewSeriesProvider(mem, 0)
	manager := runs.NewManager(provider, st)

	req := baseRequest()
	req.EndDate = windowStart.AddDate(0, 0, 5)
	req.Params.Seed = 21

	run, err := manager.Execute(context.Background(), req)
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, runs.StatusFailed, run.Status)
	assert.Contains(t, run.FailureReason, "persisting run summary")
	assert.False(t, run.CompletedAt.IsZero())

	// The stored run carries the failure, never the completed summary.
	stored, err := mem.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, runs.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.FailureReason)
	assert.Nil(t, stored.Metrics)

	// Staged trades are discarded so the trade set stays all-or-nothing.
	trades, err := mem.GetTrades(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Empty(t, trades)

	snapshot := telemetry.Snapshot()
	assert.Contains(t, snapshot, "runs_failed 1\n")
	assert.Contains(t, snapshot, `run_failures{reason="persisting run summary`)
}

func TestGetDetail_Idempotent(t *testing.T) {
	manager, _ := newManager(t)

	req := baseRequest()
	req.EndDate = windowStart.AddDate(0, 0, 5)
	req.Params.Seed = 7
	run, err := manager.Execute(context.Background(), req)
	require.NoError(t, err)

	first, firstTrades, err := manager.GetDetail(context.Background(), run.ID)
	require.NoError(t, err)
	second, secondTrades, err := manager.GetDetail(context.Background(), run.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstTrades, secondTrades)
}

func TestGetDetail_NotFound(t *testing.T) {
	manager, _ := newManager(t)

	_, _, err := manager.GetDetail(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, runs.ErrNotFound)
}

func TestDelete_CascadesToTrades(t *testing.T) {
	manager, mem := newManager(t)

	req := baseRequest()
	req.Params.Seed = 13
	req.EndDate = windowStart.AddDate(0, 0, 10)
	run, err := manager.Execute(context.Background(), req)
	require.NoError(t, err)

	existed, err := manager.Delete(context.Background(), run.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	_, err = mem.GetRun(context.Background(), run.ID)
	assert.ErrorIs(t, err, runs.ErrNotFound)
	trades, err := mem.GetTrades(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Empty(t, trades)

	// Deleting again reports absence without error.
	existed, err = manager.Delete(context.Background(), run.ID)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestList_FiltersByStrategy(t *testing.T) {
	manager, _ := newManager(t)

	req := baseRequest()
	req.Params.Seed = 3
	_, err := manager.Execute(context.Background(), req)
	require.NoError(t, err)

	req = baseRequest()
	req.Strategy = "momentum"
	req.Params.Seed = 4
	_, err = manager.Execute(context.Background(), req)
	require.NoError(t, err)

	all, err := manager.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := manager.List(context.Background(), "momentum", 0)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "momentum", filtered[0].Strategy)
}

func TestRecoverStale(t *testing.T) {
	manager, mem := newManager(t)
	ctx := context.Background()

	stale := &runs.Run{
		ID:             "stale-1",
		Name:           "crashed run",
		Strategy:       "mean-reversion",
		Params:         backtest.DefaultStrategyParams(),
		StartDate:      windowStart,
		EndDate:        windowStart.AddDate(0, 0, 1),
		InitialCapital: decimal.NewFromInt(1000),
		Status:         runs.StatusRunning,
		CreatedAt:      time.Now().UTC().Add(-3 * time.Hour),
	}
	require.NoError(t, mem.CreateRun(ctx, stale))

	fresh := stale.Clone()
	fresh.ID = "fresh-1"
	fresh.CreatedAt = time.Now().UTC()
	require.NoError(t, mem.CreateRun(ctx, fresh))

	recovered, err := manager.RecoverStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	got, err := mem.GetRun(ctx, "stale-1")
	require.NoError(t, err)
	assert.Equal(t, runs.StatusFailed, got.Status)
	assert.NotEmpty(t, got.FailureReason)

	got, err = mem.GetRun(ctx, "fresh-1")
	require.NoError(t, err)
	assert.Equal(t, runs.StatusRunning, got.Status)
}
