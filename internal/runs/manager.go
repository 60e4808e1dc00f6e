package runs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oddsmith/foresight/internal/backtest"
	"github.com/oddsmith/foresight/internal/logger"
	"github.com/oddsmith/foresight/internal/telemetry"
	"github.com/shopspring/decimal"
)

// Request describes a backtest invocation.
type Request struct {
	Name           string
	Strategy       string
	Params         backtest.StrategyParams
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital decimal.Decimal
}

// Validate rejects configuration errors before any state transition.
func (r Request) Validate() error {
	if !r.EndDate.After(r.StartDate) {
		return ErrInvalidWindow
	}
	if !r.InitialCapital.GreaterThan(decimal.Zero) {
		return ErrInvalidCapital
	}
	if err := r.Params.Validate(); err != nil {
		return fmt.Errorf("invalid strategy parameters: %w", err)
	}
	return nil
}

// Manager owns the run lifecycle: it orchestrates the price provider, the
// two simulation paths, and the metrics calculator, and persists results
// through the store. A single Manager may execute runs concurrently; each
// run carries its own capital state and writes only its own rows.
type Manager struct {
	provider *backtest.SeriesProvider
	store    Store
	log      *logger.Logger
}

// NewManager creates a run lifecycle manager.
func NewManager(provider *backtest.SeriesProvider, store Store) *Manager {
	return &Manager{
		provider: provider,
		store:    store,
		log:      logger.Component("runs"),
	}
}

// Execute runs a backtest end to end. The returned run is COMPLETED on
// success; on an execution fault it is FAILED with a recorded reason and a
// non-nil error. Configuration errors are returned before anything is
// persisted.
func (m *Manager) Execute(ctx context.Context, req Request) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	run := &Run{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Strategy:       req.Strategy,
		Params:         req.Params,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		InitialCapital: req.InitialCapital,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	if err := m.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}

	if err := run.Transition(StatusRunning); err != nil {
		return nil, err
	}
	if err := m.store.UpdateRun(ctx, run); err != nil {
		return m.fail(ctx, run, fmt.Sprintf("persisting RUNNING state: %v", err))
	}

	telemetry.RecordRunStarted()
	log := m.log.Run(run.ID)
	log.Info("run started",
		"name", run.Name,
		"strategy", run.Strategy,
		"start", run.StartDate,
		"end", run.EndDate,
		"initial_capital", run.InitialCapital.String())

	result, err := m.simulate(ctx, run)
	if err != nil {
		return m.fail(ctx, run, err.Error())
	}

	metrics := backtest.CalculateMetrics(run.InitialCapital, result, run.StartDate, run.EndDate)

	// Trade persistence is all-or-nothing: AddTrades is atomic, so a fault
	// here leaves no partial trade set behind.
	if err := m.store.AddTrades(ctx, run.ID, result.Trades); err != nil {
		return m.fail(ctx, run, fmt.Sprintf("persisting trades: %v", err))
	}

	completed := run.Clone()
	completed.ModelSource = result.Source
	completed.Metrics = metrics
	if err := completed.Transition(StatusCompleted); err != nil {
		return m.fail(ctx, run, err.Error())
	}
	if err := m.store.UpdateRun(ctx, completed); err != nil {
		// Discard the staged trades so the run's trade set stays
		// all-or-nothing, then record the failure.
		if derr := m.store.DeleteTrades(ctx, run.ID); derr != nil {
			log.WithError(derr).Error("failed to discard staged trades")
		}
		return m.fail(ctx, run, fmt.Sprintf("persisting run summary: %v", err))
	}

	telemetry.RecordRunCompleted()
	log.Info("run completed",
		"trades", metrics.TotalTrades,
		"source", result.Source,
		"final_capital", metrics.FinalCapital.String(),
		"total_return_pct", metrics.TotalReturnPct)

	return completed, nil
}

// simulate picks the simulation path: walk-forward when any market has
// enough history, the stochastic fallback otherwise. A panic inside the
// simulation surfaces as an error so the run can be marked FAILED.
func (m *Manager) simulate(ctx context.Context, run *Run) (result *backtest.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simulation fault: %v", r)
		}
	}()

	series := m.provider.Fetch(ctx, run.StartDate, run.EndDate)
	if len(series) > 0 {
		result = backtest.NewWalkForwardExecutor(run.Params).Run(series, run.InitialCapital, run.StartDate)
	} else {
		telemetry.RecordFallbackActivated()
		m.log.Run(run.ID).Info("no usable price history, using stochastic fallback")
		result = backtest.NewStochasticSimulator(run.Params).Run(run.StartDate, run.EndDate, run.InitialCapital)
	}

	telemetry.RecordTradesSimulated(len(result.Trades))
	return result, nil
}

// fail transitions the run to FAILED with a human-readable reason and
// persists it best-effort.
func (m *Manager) fail(ctx context.Context, run *Run, reason string) (*Run, error) {
	telemetry.RecordRunFailed()
	telemetry.RecordFailureReason(reason)
	run.FailureReason = reason
	if err := run.Transition(StatusFailed); err != nil {
		m.log.Run(run.ID).WithError(err).Error("cannot mark run failed")
	}
	if err := m.store.UpdateRun(ctx, run); err != nil {
		m.log.Run(run.ID).WithError(err).Error("failed to persist FAILED state")
	}
	m.log.Run(run.ID).Error("run failed", "reason", reason)
	return run, fmt.Errorf("run %s failed: %s", run.ID, reason)
}

// GetDetail returns a run summary together with its full trade list.
func (m *Manager) GetDetail(ctx context.Context, id string) (*Run, []backtest.Trade, error) {
	run, err := m.store.GetRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	trades, err := m.store.GetTrades(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return run, trades, nil
}

// List returns stored runs, optionally filtered by strategy name.
func (m *Manager) List(ctx context.Context, strategy string, limit int) ([]*Run, error) {
	return m.store.ListRuns(ctx, strategy, limit)
}

// Delete removes a run and cascades to its trades. It reports whether the
// run existed.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	return m.store.DeleteRun(ctx, id)
}

// RecoverStale marks RUNNING runs older than the cutoff as FAILED. A run
// stuck in RUNNING means a previous process died mid-execution; revisiting
// it keeps the liveness invariant that every run reaches a terminal state.
func (m *Manager) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	all, err := m.store.ListRuns(ctx, "", 0)
	if err != nil {
		return 0, fmt.Errorf("listing runs: %w", err)
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	recovered := 0
	for _, run := range all {
		if run.Status != StatusRunning || run.CreatedAt.After(cutoff) {
			continue
		}
		run.FailureReason = "run never reached a terminal state"
		if err := run.Transition(StatusFailed); err != nil {
			continue
		}
		if err := m.store.UpdateRun(ctx, run); err != nil {
			m.log.Run(run.ID).WithError(err).Error("failed to recover stale run")
			continue
		}
		m.log.Run(run.ID).Warn("stale RUNNING run marked FAILED")
		recovered++
	}
	return recovered, nil
}
