// Package telemetry tracks in-process counters for the backtest engine.
package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	metricsMu           sync.RWMutex
	runsStarted         uint64
	runsCompleted       uint64
	runsFailed          uint64
	tradesSimulated     uint64
	fallbackActivations uint64
	failureReasons      = make(map[string]uint64)
)

// RecordRunStarted increments the started-run counter.
func RecordRunStarted() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	runsStarted++
}

// RecordRunCompleted increments the completed-run counter.
func RecordRunCompleted() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	runsCompleted++
}

// RecordRunFailed increments the failed-run counter.
func RecordRunFailed() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	runsFailed++
}

// RecordFailureReason counts a failure by category.
func RecordFailureReason(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	failureReasons[reason]++
}

// RecordTradesSimulated adds to the simulated-trade counter.
func RecordTradesSimulated(n int) {
	if n <= 0 {
		return
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	tradesSimulated += uint64(n)
}

// RecordFallbackActivated increments the stochastic-fallback counter.
func RecordFallbackActivated() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	fallbackActivations++
}

// Snapshot renders the current counters as plain text, one metric per line.
func Snapshot() string {
	metricsMu.RLock()
	defer metricsMu.RUnlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "runs_started %d\n", runsStarted)
	fmt.Fprintf(&sb, "runs_completed %d\n", runsCompleted)
	fmt.Fprintf(&sb, "runs_failed %d\n", runsFailed)
	fmt.Fprintf(&sb, "trades_simulated %d\n", tradesSimulated)
	fmt.Fprintf(&sb, "fallback_activations %d\n", fallbackActivations)

	reasons := make([]string, 0, len(failureReasons))
	for reason := range failureReasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(&sb, "run_failures{reason=%q} %d\n", reason, failureReasons[reason])
	}

	return sb.String()
}

// Reset clears all counters. Intended for tests.
func Reset() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	runsStarted = 0
	runsCompleted = 0
	runsFailed = 0
	tradesSimulated = 0
	fallbackActivations = 0
	failureReasons = make(map[string]uint64)
}
