package backup

import (
	"sort"
	"time"
)

// State classifies a source file against a reference manifest.
type State int

const (
	// Unchanged means the reference has a record with the same size and mtime.
	Unchanged State = iota
	// New means the path is absent from the reference.
	New
	// Modified means the size or the mtime differs from the reference record.
	Modified
)

func (s State) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case New:
		return "new"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Classify compares a current file record against the reference manifest.
// A nil reference means there is no baseline and every file is New.
// Timestamps are compared at whole-second granularity to tolerate filesystem
// precision differences across volumes.
func Classify(rec FileRecord, ref *Manifest) State {
	if ref == nil {
		return New
	}
	prior, ok := ref.Lookup(rec.Path)
	if !ok {
		return New
	}
	if prior.Size != rec.Size || !sameSecond(prior.ModTime, rec.ModTime) {
		return Modified
	}
	return Unchanged
}

// DeletedPaths returns the paths present in the reference but absent from the
// current listing, sorted lexicographically. Deletions are recorded for
// manifest accuracy only; backups are additive and never delete from a
// destination.
func DeletedPaths(current map[string]FileRecord, ref *Manifest) []string {
	if ref == nil {
		return nil
	}
	var deleted []string
	for path := range ref.Files {
		if _, ok := current[path]; !ok {
			deleted = append(deleted, path)
		}
	}
	sort.Strings(deleted)
	return deleted
}

func sameSecond(a, b time.Time) bool {
	return a.Truncate(time.Second).Equal(b.Truncate(time.Second))
}
