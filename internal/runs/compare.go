package runs

import (
	"context"
	"fmt"
)

// Comparison is a side-by-side summary of completed runs.
type Comparison struct {
	Runs        []*Run // completed runs, in requested order
	BestReturn  *Run   // highest total return
	BestSharpe  *Run   // highest Sharpe ratio
	BestWinRate *Run   // highest win rate
}

// Comparator selects best-by-metric across already-persisted runs.
type Comparator struct {
	store Store
}

// NewComparator creates a comparator over the given store.
func NewComparator(store Store) *Comparator {
	return &Comparator{store: store}
}

// Compare loads the given run ids and reports the best run per metric.
// Fewer than two ids is a caller error. Runs that never completed carry no
// metrics and are excluded; at least two completed runs must remain.
func (c *Comparator) Compare(ctx context.Context, ids []string) (*Comparison, error) {
	if len(ids) < 2 {
		return nil, ErrTooFewRuns
	}

	var completed []*Run
	for _, id := range ids {
		run, err := c.store.GetRun(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading run %s: %w", id, err)
		}
		if run.Status != StatusCompleted || run.Metrics == nil {
			continue
		}
		completed = append(completed, run)
	}
	if len(completed) < 2 {
		return nil, fmt.Errorf("%w: %d of %d runs completed", ErrTooFewRuns, len(completed), len(ids))
	}

	result := &Comparison{
		Runs:        completed,
		BestReturn:  completed[0],
		BestSharpe:  completed[0],
		BestWinRate: completed[0],
	}
	for _, run := range completed[1:] {
		if run.Metrics.TotalReturnPct > result.BestReturn.Metrics.TotalReturnPct {
			result.BestReturn = run
		}
		if run.Metrics.SharpeRatio > result.BestSharpe.Metrics.SharpeRatio {
			result.BestSharpe = run
		}
		if run.Metrics.WinRate > result.BestWinRate.Metrics.WinRate {
			result.BestWinRate = run
		}
	}

	return result, nil
}
