package backup

import "time"

// ManifestStore persists one manifest per completed run, keyed by destination
// root. A source may back up to several destinations independently, each with
// its own lineage of manifests.
type ManifestStore interface {
	// LoadLatest returns the most recently saved manifest of any mode for a
	// destination root, or nil if none exists. This is the incremental
	// reference.
	LoadLatest(destinationRoot string) (*Manifest, error)

	// LoadLatestFull returns the most recently saved full-mode manifest for a
	// destination root, or nil if none exists. This is the differential
	// reference.
	LoadLatestFull(destinationRoot string) (*Manifest, error)

	// Save persists a manifest together with the counters of the run that
	// produced it. Save must round-trip: a subsequent Load returns an
	// equivalent path→record mapping.
	Save(m *Manifest, stats *RunStats) error

	// ListRuns returns the most recent runs across all destinations, newest
	// first.
	ListRuns(limit int) ([]*RunInfo, error)
}

// RunStats are the per-run counters stored alongside a manifest.
type RunStats struct {
	Status   string // "completed" or "cancelled"
	Copied   int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// RunInfo is one row of run history.
type RunInfo struct {
	ManifestID      string
	DestinationRoot string
	Mode            Mode
	CreatedAt       time.Time
	RunStats
}

// ScheduleStore persists the set of named recurring job definitions. Every
// mutation is committed immediately so the process can be killed at any point
// without losing prior state. Implementations serialize mutations; the
// scheduler loop and interactive callers share one store.
type ScheduleStore interface {
	// Create assigns a new immutable ID to the entry and persists it.
	Create(e *ScheduleEntry) error

	// Update replaces the stored entry with the same ID.
	// Returns ErrScheduleNotFound if the ID is absent.
	Update(e *ScheduleEntry) error

	// Delete removes an entry. Returns ErrScheduleNotFound if absent.
	Delete(id string) error

	// Get returns the entry with the given ID, or ErrScheduleNotFound.
	Get(id string) (*ScheduleEntry, error)

	// List returns all entries.
	List() ([]*ScheduleEntry, error)
}

// Filesystem abstracts the file operations the engine performs, so engine
// behavior (per-file failures in particular) can be exercised in tests.
type Filesystem interface {
	// ListTree returns every entry under root, including directory markers,
	// sorted lexicographically by relative path. Paths use forward slashes.
	ListTree(root string) ([]FileRecord, error)

	// CopyFile copies srcRoot/rel to destRoot/rel, creating parent
	// directories and preserving the source modification time.
	CopyFile(srcRoot, destRoot, rel string) error

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string) error

	// MkdirNew creates path as a brand-new directory, creating missing
	// parents but failing with fs.ErrExist if path itself already exists.
	MkdirNew(path string) error
}
