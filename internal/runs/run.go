package runs

import (
	"fmt"
	"time"

	"github.com/oddsmith/foresight/internal/backtest"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a backtest run.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether the status allows no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// legal transitions: PENDING -> RUNNING -> COMPLETED | FAILED
func (s Status) canTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Run is one backtest invocation. Metrics is non-nil only once the run
// reaches COMPLETED; FailureReason is non-empty only on FAILED. A run is
// write-once after reaching a terminal state, except for deletion.
type Run struct {
	ID             string
	Name           string
	Strategy       string
	Params         backtest.StrategyParams
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital decimal.Decimal

	Status        Status
	ModelSource   backtest.ModelSource
	Metrics       *backtest.Metrics
	FailureReason string

	CreatedAt   time.Time
	CompletedAt time.Time // zero until the run reaches a terminal state
}

// Transition moves the run to the given status, enforcing the state
// machine. Terminal states also stamp CompletedAt.
func (r *Run) Transition(to Status) error {
	if !r.Status.canTransition(to) {
		return fmt.Errorf("illegal status transition %s -> %s for run %s", r.Status, to, r.ID)
	}
	r.Status = to
	if to.Terminal() {
		r.CompletedAt = time.Now().UTC()
	}
	return nil
}

// Clone returns a deep copy so stored runs never alias caller-held state.
func (r *Run) Clone() *Run {
	clone := *r
	if r.Metrics != nil {
		metrics := *r.Metrics
		metrics.EquityCurve = make([]backtest.EquityPoint, len(r.Metrics.EquityCurve))
		copy(metrics.EquityCurve, r.Metrics.EquityCurve)
		clone.Metrics = &metrics
	}
	return &clone
}
