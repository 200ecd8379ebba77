package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartbackup/internal/backup"
	"smartbackup/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements backup.ManifestStore and backup.ScheduleStore on a
// single SQLite database. Schedule mutations are serialized behind a mutex:
// the scheduler loop and interactive callers share one store, and a lost
// update between a user edit and a scheduler write must not be possible.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteStore opens (or creates) a store at the given path and brings its
// schema up to date. path can be ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing connection. The caller is
// responsible for the schema and for closing the connection.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store relies on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Foreign keys drive the manifest_files ON DELETE CASCADE; SQLite
	// defaults them to OFF.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Manifest operations

// Save persists a manifest and its run counters in one transaction.
func (s *SQLiteStore) Save(m *backup.Manifest, stats *backup.RunStats) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	basedOn := sql.NullString{String: m.BasedOn, Valid: m.BasedOn != ""}
	_, err = tx.Exec(`
		INSERT INTO manifests
		(id, destination_root, mode, created_at, based_on, status, files_copied, files_skipped, files_failed, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.DestinationRoot, string(m.Mode), m.CreatedAt, basedOn,
		stats.Status, stats.Copied, stats.Skipped, stats.Failed, stats.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("inserting manifest: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO manifest_files (manifest_id, path, size, modified_at, is_dir)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing file insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range m.Files {
		if _, err := stmt.Exec(m.ID, rec.Path, rec.Size, rec.ModTime, rec.IsDir); err != nil {
			return fmt.Errorf("inserting file record %s: %w", rec.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// LoadLatest returns the most recent manifest of any mode for a destination
// root, or nil if none exists.
func (s *SQLiteStore) LoadLatest(destinationRoot string) (*backup.Manifest, error) {
	return s.loadLatest(destinationRoot, "")
}

// LoadLatestFull returns the most recent full-mode manifest for a destination
// root, or nil if none exists.
func (s *SQLiteStore) LoadLatestFull(destinationRoot string) (*backup.Manifest, error) {
	return s.loadLatest(destinationRoot, backup.ModeFull)
}

func (s *SQLiteStore) loadLatest(destinationRoot string, mode backup.Mode) (*backup.Manifest, error) {
	query := `
		SELECT id, destination_root, mode, created_at, based_on
		FROM manifests WHERE destination_root = ?`
	args := []any{destinationRoot}
	if mode != "" {
		query += ` AND mode = ?`
		args = append(args, string(mode))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT 1`

	var m backup.Manifest
	var modeStr string
	var basedOn sql.NullString
	err := s.db.QueryRow(query, args...).Scan(&m.ID, &m.DestinationRoot, &modeStr, &m.CreatedAt, &basedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No manifest yet
		}
		return nil, fmt.Errorf("loading latest manifest: %w", err)
	}
	m.Mode = backup.Mode(modeStr)
	m.BasedOn = basedOn.String

	m.Files = make(map[string]backup.FileRecord)
	rows, err := s.db.Query(`
		SELECT path, size, modified_at, is_dir FROM manifest_files WHERE manifest_id = ?`, m.ID)
	if err != nil {
		return nil, fmt.Errorf("loading manifest files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec backup.FileRecord
		if err := rows.Scan(&rec.Path, &rec.Size, &rec.ModTime, &rec.IsDir); err != nil {
			return nil, fmt.Errorf("scanning file record: %w", err)
		}
		m.Files[rec.Path] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading file records: %w", err)
	}
	return &m, nil
}

// ListRuns returns the most recent runs across all destinations, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]*backup.RunInfo, error) {
	rows, err := s.db.Query(`
		SELECT id, destination_root, mode, created_at, status, files_copied, files_skipped, files_failed, duration_ms
		FROM manifests ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*backup.RunInfo
	for rows.Next() {
		var r backup.RunInfo
		var modeStr string
		var durationMs int64
		if err := rows.Scan(&r.ManifestID, &r.DestinationRoot, &modeStr, &r.CreatedAt,
			&r.Status, &r.Copied, &r.Skipped, &r.Failed, &durationMs); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Mode = backup.Mode(modeStr)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading runs: %w", err)
	}
	return runs, nil
}

// Schedule operations

// Create assigns a new ID to the entry and persists it.
func (s *SQLiteStore) Create(e *backup.ScheduleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = uuid.New().String()
	_, err := s.db.Exec(`
		INSERT INTO schedules
		(id, name, source_root, destination_root, mode, frequency, at_hour, at_minute,
		 hour_interval, weekday, day_of_month, weekdays, enabled, last_run_at, next_run_at, last_result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Source, e.Destination, string(e.Mode), string(e.Rule.Frequency),
		e.Rule.AtHour, e.Rule.AtMinute, e.Rule.HourInterval, int(e.Rule.Weekday), e.Rule.DayOfMonth,
		encodeWeekdays(e.Rule.Weekdays), e.Enabled, nullTime(e.LastRun), nullTime(e.NextRun),
		e.LastResult, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting schedule: %w", err)
	}
	return nil
}

// Update replaces the stored entry with the same ID.
func (s *SQLiteStore) Update(e *backup.ScheduleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE schedules SET
		name = ?, source_root = ?, destination_root = ?, mode = ?, frequency = ?,
		at_hour = ?, at_minute = ?, hour_interval = ?, weekday = ?, day_of_month = ?, weekdays = ?,
		enabled = ?, last_run_at = ?, next_run_at = ?, last_result = ?
		WHERE id = ?`,
		e.Name, e.Source, e.Destination, string(e.Mode), string(e.Rule.Frequency),
		e.Rule.AtHour, e.Rule.AtMinute, e.Rule.HourInterval, int(e.Rule.Weekday), e.Rule.DayOfMonth,
		encodeWeekdays(e.Rule.Weekdays), e.Enabled, nullTime(e.LastRun), nullTime(e.NextRun),
		e.LastResult, e.ID)
	if err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", backup.ErrScheduleNotFound, e.ID)
	}
	return nil
}

// Delete removes an entry.
func (s *SQLiteStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", backup.ErrScheduleNotFound, id)
	}
	return nil
}

const scheduleColumns = `id, name, source_root, destination_root, mode, frequency, at_hour, at_minute,
	hour_interval, weekday, day_of_month, weekdays, enabled, last_run_at, next_run_at, last_result, created_at`

// Get returns the entry with the given ID.
func (s *SQLiteStore) Get(id string) (*backup.ScheduleEntry, error) {
	row := s.db.QueryRow(`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	e, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", backup.ErrScheduleNotFound, id)
		}
		return nil, fmt.Errorf("loading schedule: %w", err)
	}
	return e, nil
}

// List returns all entries, oldest first.
func (s *SQLiteStore) List() ([]*backup.ScheduleEntry, error) {
	rows, err := s.db.Query(`SELECT ` + scheduleColumns + ` FROM schedules ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	defer rows.Close()

	var entries []*backup.ScheduleEntry
	for rows.Next() {
		e, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading schedules: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*backup.ScheduleEntry, error) {
	var e backup.ScheduleEntry
	var modeStr, freqStr, weekdaysStr string
	var weekday int
	var lastRun, nextRun sql.NullTime

	err := row.Scan(&e.ID, &e.Name, &e.Source, &e.Destination, &modeStr, &freqStr,
		&e.Rule.AtHour, &e.Rule.AtMinute, &e.Rule.HourInterval, &weekday, &e.Rule.DayOfMonth,
		&weekdaysStr, &e.Enabled, &lastRun, &nextRun, &e.LastResult, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	e.Mode = backup.Mode(modeStr)
	e.Rule.Frequency = backup.Frequency(freqStr)
	e.Rule.Weekday = time.Weekday(weekday)
	e.Rule.Weekdays, err = decodeWeekdays(weekdaysStr)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", e.ID, err)
	}
	if lastRun.Valid {
		t := lastRun.Time
		e.LastRun = &t
	}
	if nextRun.Valid {
		t := nextRun.Time
		e.NextRun = &t
	}
	return &e, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// encodeWeekdays serializes a weekday set as a comma-separated list of
// integers ("1,3,5"); the empty set is the empty string.
func encodeWeekdays(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(s string) ([]time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	days := make([]time.Weekday, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid weekday list %q: %w", s, err)
		}
		days[i] = time.Weekday(n)
	}
	return days, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time checks that SQLiteStore implements the store interfaces
var (
	_ backup.ManifestStore = (*SQLiteStore)(nil)
	_ backup.ScheduleStore = (*SQLiteStore)(nil)
)
