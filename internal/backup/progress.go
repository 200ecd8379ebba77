package backup

import "time"

// Progress is one event on a run's progress stream.
type Progress struct {
	TotalPlanned int
	Completed    int
	CurrentPath  string
}

// Outcome is the per-file result of a run.
type Outcome int

const (
	OutcomeCopied Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCopied:
		return "copied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileOutcome records what happened to a single file during a run.
type FileOutcome struct {
	Path    string
	Outcome Outcome
	Err     error
}

// RunResult is the terminal result of a backup run. On fatal errors the
// engine still returns the partial result for whatever completed.
type RunResult struct {
	// Folder is the timestamped destination subfolder created for this run.
	Folder   string
	Manifest *Manifest
	Outcomes []FileOutcome
	Copied   int
	Skipped  int
	Failed   int
	// Deleted lists paths present in the reference manifest but gone from the
	// source. They are recorded for accuracy; nothing is deleted from any
	// destination.
	Deleted []string
	// SubstitutedFull reports that an incremental or differential run had no
	// reference manifest and was performed as a full backup instead.
	SubstitutedFull bool
	Cancelled       bool
	Duration        time.Duration
}
