/*
scheduler.go - Periodic conflict scanner

PURPOSE:
  Runs conflict detection over a team's planned time off on a timer and
  logs every overlapping pair, so managers see clashes without polling the
  dashboard. Detection is read-only; the scanner never changes a request.
  Requests that ended before today are skipped, matching the rollup.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on Start, then on every tick
  - Each run gets its own timeout; a slow store cannot stall the next tick
  - The last run's result is kept and readable through LastResult

CONFIGURATION:
  - Interval: How often to scan (default: 1 hour)
  - Timeout:  Per-run deadline (default: 30 seconds)
  - Department: Team scope; empty scans everyone
  - Enabled: Whether the scanner runs at all
  - Clock: Source of "today" (default: system clock)

USAGE:
  scanner := NewConflictScanner(handler.Rollup, log)
  scanner.Start()
  // ... later
  scanner.Stop()

SEE ALSO:
  - timeoff/rollup.go: Rollup.CurrentConflicts
  - timeoff/conflict.go: FindConflicts
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// ConflictScanner periodically reports scheduling conflicts.
type ConflictScanner struct {
	Rollup     *timeoff.Rollup
	Interval   time.Duration
	Timeout    time.Duration
	Department string
	Enabled    bool
	Clock      generic.Clock
	Log        logrus.FieldLogger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	resultMu sync.RWMutex
	last     ScanResult
}

// ScanResult summarizes one run.
type ScanResult struct {
	At        time.Time
	Conflicts []timeoff.ConflictPair
	Err       error
}

// NewConflictScanner creates a scanner with default settings.
func NewConflictScanner(rollup *timeoff.Rollup, log logrus.FieldLogger) *ConflictScanner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ConflictScanner{
		Rollup:   rollup,
		Interval: 1 * time.Hour,
		Timeout:  30 * time.Second,
		Enabled:  true,
		Clock:    generic.SystemClock{},
		Log:      log.WithField("component", "conflict-scanner"),
	}
}

// Start begins scanning. Calling Start on a running scanner does nothing.
func (cs *ConflictScanner) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled {
		cs.Log.Info("disabled, not starting")
		return
	}
	if cs.ticker != nil {
		return
	}

	cs.ticker = time.NewTicker(cs.Interval)
	cs.stop = make(chan struct{})
	cs.wg.Add(1)

	go cs.run(cs.ticker, cs.stop)

	cs.Log.WithField("interval", cs.Interval.String()).Info("started")
}

// Stop halts scanning and waits for an in-flight run to finish.
func (cs *ConflictScanner) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker == nil {
		return
	}
	cs.ticker.Stop()
	close(cs.stop)
	cs.wg.Wait()
	cs.ticker = nil
	cs.Log.Info("stopped")
}

func (cs *ConflictScanner) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer cs.wg.Done()

	// Run immediately on start
	cs.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			cs.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow performs one scan synchronously and records its result.
func (cs *ConflictScanner) RunNow(ctx context.Context) ScanResult {
	timeout := cs.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	now := cs.Clock
	if now == nil {
		now = generic.SystemClock{}
	}
	result := ScanResult{At: now.Now()}
	result.Conflicts, result.Err = cs.Rollup.CurrentConflicts(ctx, cs.Department, generic.Today(now))

	log := cs.Log.WithField("department", cs.Department)
	if result.Err != nil {
		log.WithError(result.Err).Error("conflict scan failed")
	} else {
		for _, p := range result.Conflicts {
			log.WithFields(logrus.Fields{
				"employee_a":    p.A.EmployeeID,
				"request_a":     p.A.ID,
				"employee_b":    p.B.EmployeeID,
				"request_b":     p.B.ID,
				"overlap_start": p.Overlap.Start.String(),
				"overlap_end":   p.Overlap.End.String(),
			}).Warn("scheduling conflict")
		}
		log.WithField("conflicts", len(result.Conflicts)).Info("conflict scan completed")
	}

	cs.resultMu.Lock()
	cs.last = result
	cs.resultMu.Unlock()
	return result
}

// LastResult returns the most recent scan, zero if none has run.
func (cs *ConflictScanner) LastResult() ScanResult {
	cs.resultMu.RLock()
	defer cs.resultMu.RUnlock()
	return cs.last
}
