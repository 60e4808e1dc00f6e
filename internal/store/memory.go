package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oddsmith/foresight/internal/backtest"
	"github.com/oddsmith/foresight/internal/runs"
)

// Compile-time interface checks.
var _ backtest.PriceStore = (*MemoryStore)(nil)
var _ runs.Store = (*MemoryStore)(nil)

// MemoryStore is a mutex-guarded in-memory implementation of the price and
// run persistence boundaries. It is the default store for tests and for CLI
// invocations without a database path.
type MemoryStore struct {
	mu     sync.RWMutex
	prices map[string][]backtest.PricePoint
	runs   map[string]*runs.Run
	trades map[string][]backtest.Trade
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prices: make(map[string][]backtest.PricePoint),
		runs:   make(map[string]*runs.Run),
		trades: make(map[string][]backtest.Trade),
	}
}

// AddPrices appends price history for a market, keeping it time-ordered.
func (s *MemoryStore) AddPrices(_ context.Context, marketID string, points []backtest.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := append(s.prices[marketID], points...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	s.prices[marketID] = merged
	return nil
}

// GetPrices returns, per market, the time-ordered samples inside
// [start, end]. Markets are visited in lexical order and the total row
// count is bounded by limit, keeping the earliest rows.
func (s *MemoryStore) GetPrices(_ context.Context, start, end time.Time, limit int) (map[string][]backtest.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.prices))
	for id := range s.prices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string][]backtest.PricePoint)
	total := 0
	for _, id := range ids {
		if limit > 0 && total >= limit {
			break
		}
		var window []backtest.PricePoint
		for _, p := range s.prices[id] {
			if p.Timestamp.Before(start) || p.Timestamp.After(end) {
				continue
			}
			window = append(window, p)
			if limit > 0 && total+len(window) >= limit {
				break
			}
		}
		if len(window) == 0 {
			continue
		}
		out[id] = window
		total += len(window)
	}
	return out, nil
}

// CreateRun stores a new run.
func (s *MemoryStore) CreateRun(_ context.Context, run *runs.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

// UpdateRun overwrites a stored run. Runs already in a terminal state are
// write-once and cannot be updated.
func (s *MemoryStore) UpdateRun(_ context.Context, run *runs.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.runs[run.ID]
	if !ok {
		return runs.ErrNotFound
	}
	if existing.Status.Terminal() {
		return fmt.Errorf("run %s is %s and cannot be updated", run.ID, existing.Status)
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

// GetRun returns a copy of the stored run.
func (s *MemoryStore) GetRun(_ context.Context, id string) (*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, runs.ErrNotFound
	}
	return run.Clone(), nil
}

// ListRuns returns stored runs sorted by creation time, newest first,
// optionally filtered by strategy. A limit of 0 means no limit.
func (s *MemoryStore) ListRuns(_ context.Context, strategy string, limit int) ([]*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*runs.Run
	for _, run := range s.runs {
		if strategy != "" && run.Strategy != strategy {
			continue
		}
		out = append(out, run.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteRun removes a run and cascades to its trades.
func (s *MemoryStore) DeleteRun(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return false, nil
	}
	delete(s.runs, id)
	delete(s.trades, id)
	return true, nil
}

// AddTrades stores the full trade set of a run. The write is atomic: either
// every trade is stored or none is.
func (s *MemoryStore) AddTrades(_ context.Context, runID string, trades []backtest.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return runs.ErrNotFound
	}
	stored := make([]backtest.Trade, len(trades))
	copy(stored, trades)
	s.trades[runID] = append(s.trades[runID], stored...)
	return nil
}

// GetTrades returns the trades belonging to a run, empty if none.
func (s *MemoryStore) GetTrades(_ context.Context, runID string) ([]backtest.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[runID]
	out := make([]backtest.Trade, len(trades))
	copy(out, trades)
	return out, nil
}

// DeleteTrades removes all trades of a run without touching the run itself.
func (s *MemoryStore) DeleteTrades(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.trades, runID)
	return nil
}
