package backup

import "time"

// FileRecord is the recorded state of one entry in a source tree.
// Path is relative to the source root and uses forward slashes on every
// platform, so manifests written on one OS remain comparable on another.
type FileRecord struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Manifest is the set of files that existed in the source when a run
// completed, used as the reference for future change detection. Manifests are
// never mutated after creation, only superseded by later runs.
type Manifest struct {
	ID              string
	DestinationRoot string
	Mode            Mode
	CreatedAt       time.Time
	// BasedOn is the ID of the reference manifest this run was diffed
	// against; empty for a full run.
	BasedOn string
	Files   map[string]FileRecord
}

// NewManifest creates an empty manifest for a run.
func NewManifest(id, destinationRoot string, mode Mode, createdAt time.Time, basedOn string) *Manifest {
	return &Manifest{
		ID:              id,
		DestinationRoot: destinationRoot,
		Mode:            mode,
		CreatedAt:       createdAt,
		BasedOn:         basedOn,
		Files:           make(map[string]FileRecord),
	}
}

// Add records a file in the manifest, keyed by its relative path.
func (m *Manifest) Add(rec FileRecord) {
	m.Files[rec.Path] = rec
}

// Lookup returns the record for a relative path, if present.
func (m *Manifest) Lookup(path string) (FileRecord, bool) {
	rec, ok := m.Files[path]
	return rec, ok
}
