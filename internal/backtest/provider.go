package backtest

import (
	"context"
	"sort"
	"time"

	"github.com/oddsmith/foresight/internal/logger"
)

const (
	// minSeriesPoints is the minimum number of samples a market needs inside
	// the query window to support any rolling statistic.
	minSeriesPoints = 5

	// DefaultRowCap bounds the total number of price rows fetched per query.
	DefaultRowCap = 10000
)

// PriceStore supplies raw price history. Implementations live behind the
// persistence boundary.
type PriceStore interface {
	GetPrices(ctx context.Context, start, end time.Time, limit int) (map[string][]PricePoint, error)
}

// SeriesProvider turns raw price history into per-market, time-ordered
// series suitable for the walk-forward executor.
type SeriesProvider struct {
	store  PriceStore
	rowCap int
}

// NewSeriesProvider creates a provider over the given store. A rowCap of
// zero or below falls back to DefaultRowCap.
func NewSeriesProvider(store PriceStore, rowCap int) *SeriesProvider {
	if rowCap <= 0 {
		rowCap = DefaultRowCap
	}
	return &SeriesProvider{store: store, rowCap: rowCap}
}

// Fetch returns an ordered series for every market with at least five
// samples inside [start, end]. Markets are returned in lexical order so the
// row cap truncates deterministically, keeping the earliest-queried rows.
// Data-access errors yield an empty result: missing history routes the run
// to the stochastic fallback instead of failing it.
func (p *SeriesProvider) Fetch(ctx context.Context, start, end time.Time) []Series {
	raw, err := p.store.GetPrices(ctx, start, end, p.rowCap)
	if err != nil {
		logger.Component("provider").WithError(err).Warn("price history unavailable, treating as no data")
		return nil
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Series
	total := 0
	for _, id := range ids {
		points := raw[id]
		if len(points) < minSeriesPoints {
			continue
		}
		sort.SliceStable(points, func(i, j int) bool {
			return points[i].Timestamp.Before(points[j].Timestamp)
		})

		if total+len(points) > p.rowCap {
			points = points[:p.rowCap-total]
		}
		if len(points) < minSeriesPoints {
			break
		}

		out = append(out, Series{MarketID: id, Points: points})
		total += len(points)
		if total >= p.rowCap {
			break
		}
	}

	return out
}
