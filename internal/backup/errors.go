package backup

import "errors"

// Sentinel errors for the conditions callers need to distinguish.
// Wrap with fmt.Errorf("...: %w", err) to add context.
var (
	// ErrSourceUnreadable aborts a run: the source root cannot be listed.
	ErrSourceUnreadable = errors.New("source unreadable")

	// ErrDestinationUnwritable aborts a run: the destination folder cannot
	// be created.
	ErrDestinationUnwritable = errors.New("destination unwritable")

	// ErrBusy rejects a run whose destination root already has one in flight.
	ErrBusy = errors.New("backup already in progress for destination")

	// ErrNoReferenceManifest signals that an incremental or differential run
	// has no baseline; the engine recovers by performing a full backup.
	ErrNoReferenceManifest = errors.New("no reference manifest")

	// ErrScheduleNotFound is returned by schedule CRUD for an unknown ID.
	ErrScheduleNotFound = errors.New("schedule not found")
)
