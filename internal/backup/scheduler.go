package backup

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Runner dispatches backup jobs. *Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, job Job) (*RunResult, error)
}

// listRetryDelay is how long the loop waits before re-evaluating after the
// store fails to list entries.
const listRetryDelay = 30 * time.Second

// Loop is the long-lived scheduler. A single goroutine evaluates all entries,
// sleeps until the earliest next-run (or until woken by a mutation), and
// dispatches due entries to the runner. Entries run concurrently with each
// other, but each entry has at most one run in flight: a due time arriving
// while the previous run is still going is deferred, not queued.
type Loop struct {
	store  ScheduleStore
	runner Runner
	logger Logger
	clock  Clock

	wake chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	running map[string]bool
}

// NewLoop creates a scheduler loop over the given store and runner.
func NewLoop(store ScheduleStore, runner Runner, logger Logger, clock Clock) *Loop {
	return &Loop{
		store:   store,
		runner:  runner,
		logger:  logger,
		clock:   clock,
		wake:    make(chan struct{}, 1),
		running: make(map[string]bool),
	}
}

// Wake nudges the loop to re-evaluate due times early, e.g. after a schedule
// mutation. Safe to call from any goroutine; never blocks.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run evaluates and dispatches schedule entries until ctx is cancelled, then
// waits for in-flight runs to finish. An entry whose persisted next-run
// passed while the process was down is simply due on the first evaluation,
// which yields exactly one catch-up run regardless of how many intervals were
// missed.
func (l *Loop) Run(ctx context.Context) error {
	for {
		nextDue := l.dispatchDue(ctx)

		var timer *time.Timer
		var timerC <-chan time.Time
		if !nextDue.IsZero() {
			d := nextDue.Sub(l.clock.Now())
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			l.wg.Wait()
			return ctx.Err()
		case <-l.wake:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// dispatchDue starts a run for every enabled entry whose due time has
// arrived and returns the earliest next-run among the remaining enabled
// entries (zero if there is none to wait for).
func (l *Loop) dispatchDue(ctx context.Context) time.Time {
	entries, err := l.store.List()
	if err != nil {
		l.logger.Error("listing schedules failed", "error", err)
		return l.clock.Now().Add(listRetryDelay)
	}

	now := l.clock.Now()
	var nextDue time.Time
	for _, e := range entries {
		if !e.Enabled || l.isRunning(e.ID) {
			continue
		}
		// A nil next-run on an enabled entry means due immediately.
		if e.NextRun == nil || !e.NextRun.After(now) {
			l.setRunning(e.ID, true)
			l.wg.Add(1)
			go l.runOne(ctx, e)
			continue
		}
		if nextDue.IsZero() || e.NextRun.Before(nextDue) {
			nextDue = *e.NextRun
		}
	}
	return nextDue
}

// runOne executes one entry and records the outcome. A failed run is isolated
// to its entry and still gets a recomputed next-run, so a single failure
// never disables a schedule. A Once entry is disabled after its run.
func (l *Loop) runOne(ctx context.Context, e *ScheduleEntry) {
	defer l.wg.Done()
	defer l.Wake()
	defer l.setRunning(e.ID, false)

	l.logger.Info("schedule triggered",
		"schedule", e.ID, "name", e.Name, "mode", string(e.Mode))

	res, err := l.runner.Run(ctx, Job{Source: e.Source, Destination: e.Destination, Mode: e.Mode})
	now := l.clock.Now()

	// Reload so a user edit made during the run is not clobbered; the loop
	// only owns the run-tracking fields.
	stored, gerr := l.store.Get(e.ID)
	if gerr != nil {
		if !errors.Is(gerr, ErrScheduleNotFound) {
			l.logger.Error("reloading schedule failed", "schedule", e.ID, "error", gerr)
		}
		return // deleted while running
	}

	if errors.Is(err, ErrBusy) {
		// The destination is mid-run (e.g. a manual run-now). Defer: push the
		// due time forward without recording a run.
		next := stored.Rule.Next(now)
		stored.NextRun = &next
		l.logger.Warn("schedule deferred, destination busy",
			"schedule", e.ID, "next_run", next.Format(time.RFC3339))
		l.update(stored)
		return
	}

	stored.LastRun = &now
	switch {
	case err != nil:
		stored.LastResult = "error"
		l.logger.Error("scheduled backup failed", "schedule", e.ID, "error", err)
	case res.Cancelled:
		stored.LastResult = "cancelled"
	default:
		stored.LastResult = "success"
		l.logger.Info("scheduled backup finished",
			"schedule", e.ID, "copied", res.Copied, "skipped", res.Skipped, "failed", res.Failed)
	}

	if stored.Rule.Frequency == FreqOnce {
		stored.Enabled = false
		stored.NextRun = nil
	} else {
		// Next run is relative to this completion, the smallest rule-valid
		// instant strictly after it.
		next := stored.Rule.Next(now)
		stored.NextRun = &next
	}
	l.update(stored)
}

func (l *Loop) update(e *ScheduleEntry) {
	if err := l.store.Update(e); err != nil {
		l.logger.Error("updating schedule failed", "schedule", e.ID, "error", err)
	}
}

func (l *Loop) isRunning(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running[id]
}

func (l *Loop) setRunning(id string, v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v {
		l.running[id] = true
	} else {
		delete(l.running, id)
	}
}
