package runs

import (
	"context"
	"errors"

	"github.com/oddsmith/foresight/internal/backtest"
)

// Sentinel errors surfaced to callers.
var (
	// ErrNotFound means the requested run id does not exist.
	ErrNotFound = errors.New("run not found")

	// ErrInvalidWindow means the run window does not satisfy start < end.
	ErrInvalidWindow = errors.New("end date must be after start date")

	// ErrInvalidCapital means the initial capital is not positive.
	ErrInvalidCapital = errors.New("initial capital must be positive")

	// ErrTooFewRuns means a comparison was requested over fewer than two
	// completed runs.
	ErrTooFewRuns = errors.New("at least two completed runs are required")
)

// Store is the persistence boundary for runs and their trades. The engine
// owns no storage format; implementations serialize writes internally so
// concurrent runs can share one store. AddTrades is all-or-nothing.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, strategy string, limit int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) (bool, error)

	AddTrades(ctx context.Context, runID string, trades []backtest.Trade) error
	GetTrades(ctx context.Context, runID string) ([]backtest.Trade, error)
	DeleteTrades(ctx context.Context, runID string) error
}
