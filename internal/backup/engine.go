package backup

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"path/filepath"
	"sync"
)

// Job describes a single backup run.
type Job struct {
	Source      string
	Destination string
	Mode        Mode

	// Progress receives per-file events. Sends never block: if no consumer is
	// keeping up, events are dropped. May be nil.
	Progress chan<- Progress
}

func (j Job) notify(p Progress) {
	if j.Progress == nil {
		return
	}
	select {
	case j.Progress <- p:
	default:
	}
}

// Engine walks a source tree, classifies each file against the reference
// manifest for the job's mode, copies qualifying files into a fresh
// timestamped folder under the destination root, and persists a new manifest.
type Engine struct {
	manifests ManifestStore
	fs        Filesystem
	logger    Logger
	clock     Clock
	idgen     IDGenerator

	mu       sync.Mutex
	inflight map[string]bool
}

// NewEngine creates an Engine with the provided dependencies.
func NewEngine(manifests ManifestStore, fs Filesystem, logger Logger, clock Clock, idgen IDGenerator) *Engine {
	return &Engine{
		manifests: manifests,
		fs:        fs,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		inflight:  make(map[string]bool),
	}
}

// Run executes a backup job and returns its terminal result.
//
// At most one run per destination root may be in flight; a second caller gets
// ErrBusy instead of being queued. Cancellation via ctx is checked between
// files, never mid-copy: a cancelled run stops copying but still writes a
// manifest covering what was processed, so it remains usable as an
// incremental baseline. Per-file copy failures are recorded and do not abort
// the run; only an unreadable source or an uncreatable destination is fatal.
func (e *Engine) Run(ctx context.Context, job Job) (*RunResult, error) {
	if _, err := ParseMode(string(job.Mode)); err != nil {
		return nil, err
	}

	destRoot := filepath.Clean(job.Destination)
	if !e.acquire(destRoot) {
		return nil, fmt.Errorf("%w: %s", ErrBusy, destRoot)
	}
	defer e.release(destRoot)

	start := e.clock.Now()

	listing, err := e.fs.ListTree(job.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}

	mode := job.Mode
	ref, err := e.loadReference(destRoot, mode)
	if err != nil {
		return nil, fmt.Errorf("loading reference manifest: %w", err)
	}

	substituted := false
	if mode != ModeFull && ref == nil {
		// Recoverable: no baseline exists yet, so this run becomes a full
		// backup. The substitution is reported, not silent.
		e.logger.Warn("falling back to full backup",
			"requested_mode", string(mode), "reason", ErrNoReferenceManifest.Error())
		mode = ModeFull
		substituted = true
	}

	// The run folder is created exclusively: a rerun within the same second
	// gets a suffixed name instead of merging into the existing folder.
	name := mode.FolderPrefix() + "_" + start.Format("20060102_150405")
	folder := filepath.Join(destRoot, name)
	for n := 2; ; n++ {
		err := e.fs.MkdirNew(folder)
		if err == nil {
			break
		}
		if !errors.Is(err, iofs.ErrExist) {
			return nil, fmt.Errorf("%w: %v", ErrDestinationUnwritable, err)
		}
		folder = filepath.Join(destRoot, fmt.Sprintf("%s_%d", name, n))
	}

	planned := 0
	current := make(map[string]FileRecord, len(listing))
	for _, rec := range listing {
		current[rec.Path] = rec
		if !rec.IsDir && Classify(rec, ref) != Unchanged {
			planned++
		}
	}

	basedOn := ""
	if ref != nil {
		basedOn = ref.ID
	}
	manifest := NewManifest(e.idgen.New(), destRoot, mode, start, basedOn)

	result := &RunResult{
		Folder:          folder,
		Manifest:        manifest,
		Deleted:         DeletedPaths(current, ref),
		SubstitutedFull: substituted,
	}

	e.logger.Info("backup started",
		"source", job.Source, "folder", folder, "mode", string(mode), "planned", planned)

	completed := 0
	for _, rec := range listing {
		select {
		case <-ctx.Done():
			result.Cancelled = true
		default:
		}
		if result.Cancelled {
			break
		}

		if rec.IsDir {
			// Empty directories are recreated so the destination preserves
			// the source structure.
			if err := e.fs.MkdirAll(filepath.Join(folder, filepath.FromSlash(rec.Path))); err != nil {
				e.logger.Warn("creating directory failed", "path", rec.Path, "error", err)
			}
			manifest.Add(rec)
			continue
		}

		if Classify(rec, ref) == Unchanged {
			result.Skipped++
			result.Outcomes = append(result.Outcomes, FileOutcome{Path: rec.Path, Outcome: OutcomeSkipped})
			manifest.Add(rec)
			continue
		}

		err := e.fs.CopyFile(job.Source, folder, rec.Path)
		completed++
		if err != nil {
			// Not fatal. The file is also left out of the manifest so the
			// next incremental retries it.
			result.Failed++
			result.Outcomes = append(result.Outcomes, FileOutcome{Path: rec.Path, Outcome: OutcomeFailed, Err: err})
			e.logger.Error("copy failed", "path", rec.Path, "error", err)
		} else {
			result.Copied++
			result.Outcomes = append(result.Outcomes, FileOutcome{Path: rec.Path, Outcome: OutcomeCopied})
			manifest.Add(rec)
		}
		job.notify(Progress{TotalPlanned: planned, Completed: completed, CurrentPath: rec.Path})
	}

	result.Duration = e.clock.Now().Sub(start)

	stats := &RunStats{
		Status:   "completed",
		Copied:   result.Copied,
		Skipped:  result.Skipped,
		Failed:   result.Failed,
		Duration: result.Duration,
	}
	if result.Cancelled {
		stats.Status = "cancelled"
	}
	if err := e.manifests.Save(manifest, stats); err != nil {
		return result, fmt.Errorf("saving manifest: %w", err)
	}

	e.logger.Info("backup finished",
		"folder", folder, "status", stats.Status,
		"copied", result.Copied, "skipped", result.Skipped, "failed", result.Failed,
		"deleted", len(result.Deleted))
	return result, nil
}

// loadReference selects the baseline per mode: incremental diffs against the
// immediately preceding run of any mode, differential against the last full
// run, full against nothing.
func (e *Engine) loadReference(destRoot string, mode Mode) (*Manifest, error) {
	switch mode {
	case ModeIncremental:
		return e.manifests.LoadLatest(destRoot)
	case ModeDifferential:
		return e.manifests.LoadLatestFull(destRoot)
	default:
		return nil, nil
	}
}

func (e *Engine) acquire(destRoot string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[destRoot] {
		return false
	}
	e.inflight[destRoot] = true
	return true
}

func (e *Engine) release(destRoot string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, destRoot)
}
