package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"smartbackup/internal/backup"
	"smartbackup/internal/config"
	"smartbackup/internal/database"
	"smartbackup/internal/fs"
)

// App is the application layer between the CLI and the engine/scheduler.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the DB lifecycle on Close.
type App struct {
	cfg     *config.Config
	store   *database.SQLiteStore
	engine  backup.Runner
	loop    *backup.Loop
	clock   backup.Clock
	logFile *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Backup", "Daemon").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	adapter := &slogAdapter{l: logger}
	clock := backup.RealClock{}
	engine := backup.NewEngine(store, fs.NewOSFilesystem(), adapter, clock, backup.UUIDGenerator{})
	loop := backup.NewLoop(store, engine, adapter, clock)

	return &App{
		cfg:     cfg,
		store:   store,
		engine:  engine,
		loop:    loop,
		clock:   clock,
		logFile: logFile,
	}, nil
}

// RunBackup executes a single backup run of the given mode.
// progress may be nil; when set it receives per-file events.
func (a *App) RunBackup(ctx context.Context, source, destination string, mode backup.Mode, progress chan<- backup.Progress) (*backup.RunResult, error) {
	src, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("resolving source: %w", err)
	}
	dest, err := filepath.Abs(destination)
	if err != nil {
		return nil, fmt.Errorf("resolving destination: %w", err)
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backup.ErrSourceUnreadable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source is not a directory: %s", src)
	}

	return a.engine.Run(ctx, backup.Job{
		Source:      src,
		Destination: dest,
		Mode:        mode,
		Progress:    progress,
	})
}

// AddSchedule validates and persists a new schedule entry. The entry's
// next-run is seeded from the current time so the daemon picks it up at the
// first rule-valid instant.
func (a *App) AddSchedule(e *backup.ScheduleEntry) error {
	if err := e.Rule.Validate(); err != nil {
		return fmt.Errorf("invalid frequency rule: %w", err)
	}
	if _, err := backup.ParseMode(string(e.Mode)); err != nil {
		return err
	}

	src, err := filepath.Abs(e.Source)
	if err != nil {
		return fmt.Errorf("resolving source: %w", err)
	}
	dest, err := filepath.Abs(e.Destination)
	if err != nil {
		return fmt.Errorf("resolving destination: %w", err)
	}
	e.Source, e.Destination = src, dest

	now := a.clock.Now()
	e.CreatedAt = now
	next := e.Rule.Next(now)
	e.NextRun = &next

	if err := a.store.Create(e); err != nil {
		return err
	}
	a.loop.Wake()
	return nil
}

// Schedules returns all schedule entries.
func (a *App) Schedules() ([]*backup.ScheduleEntry, error) {
	return a.store.List()
}

// Schedule returns one schedule entry by ID.
func (a *App) Schedule(id string) (*backup.ScheduleEntry, error) {
	return a.store.Get(id)
}

// DeleteSchedule removes a schedule entry.
func (a *App) DeleteSchedule(id string) error {
	if err := a.store.Delete(id); err != nil {
		return err
	}
	a.loop.Wake()
	return nil
}

// SetScheduleEnabled enables or disables an entry. Enabling recomputes the
// next-run from now; a disabled entry keeps its fields but is never due.
func (a *App) SetScheduleEnabled(id string, enabled bool) error {
	e, err := a.store.Get(id)
	if err != nil {
		return err
	}
	e.Enabled = enabled
	if enabled {
		next := e.Rule.Next(a.clock.Now())
		e.NextRun = &next
	}
	if err := a.store.Update(e); err != nil {
		return err
	}
	a.loop.Wake()
	return nil
}

// RunScheduleNow triggers a schedule entry's backup immediately, bypassing
// its due time, and records the outcome the same way a scheduled run would.
// A busy destination rejects the request outright; nothing is recorded
// because no run happened.
func (a *App) RunScheduleNow(ctx context.Context, id string, progress chan<- backup.Progress) (*backup.RunResult, error) {
	e, err := a.store.Get(id)
	if err != nil {
		return nil, err
	}

	res, runErr := a.engine.Run(ctx, backup.Job{
		Source:      e.Source,
		Destination: e.Destination,
		Mode:        e.Mode,
		Progress:    progress,
	})
	if errors.Is(runErr, backup.ErrBusy) {
		return nil, runErr
	}

	now := a.clock.Now()
	e.LastRun = &now
	switch {
	case runErr != nil:
		e.LastResult = "error"
	case res.Cancelled:
		e.LastResult = "cancelled"
	default:
		e.LastResult = "success"
	}
	if e.Rule.Frequency == backup.FreqOnce {
		e.Enabled = false
		e.NextRun = nil
	} else {
		next := e.Rule.Next(now)
		e.NextRun = &next
	}
	if err := a.store.Update(e); err != nil {
		return res, fmt.Errorf("recording run: %w", err)
	}
	return res, runErr
}

// History returns the most recent backup runs, newest first.
func (a *App) History(limit int) ([]*backup.RunInfo, error) {
	return a.store.ListRuns(limit)
}

// RunDaemon hosts the scheduler loop until ctx is cancelled.
func (a *App) RunDaemon(ctx context.Context) error {
	return a.loop.Run(ctx)
}

// Close releases the store and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
