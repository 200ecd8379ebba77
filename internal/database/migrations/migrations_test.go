package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	err := MigrateUp(db)
	if err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Verify tables were created
	tables := []string{"manifests", "manifest_files", "schedules", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Fresh database should need migration
	err := CheckDBMigrationStatus(db)
	if err == nil {
		t.Error("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}

	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	err := CheckDBMigrationStatus(db)
	if err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}

	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}

	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// A file record pointing at a non-existent manifest must be rejected.
	_, err := db.Exec(`
		INSERT INTO manifest_files (manifest_id, path, size, modified_at, is_dir)
		VALUES ('no-such-manifest', 'a.txt', 1, datetime('now'), 0)
	`)

	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_ManifestFilesCascadeDelete(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO manifests (id, destination_root, mode, created_at)
		VALUES ('m-1', '/dest', 'full', datetime('now'))
	`)
	if err != nil {
		t.Fatalf("Failed to insert manifest: %v", err)
	}
	_, err = db.Exec(`
		INSERT INTO manifest_files (manifest_id, path, size, modified_at, is_dir)
		VALUES ('m-1', 'a.txt', 1, datetime('now'), 0)
	`)
	if err != nil {
		t.Fatalf("Failed to insert manifest file: %v", err)
	}

	if _, err := db.Exec("DELETE FROM manifests WHERE id = 'm-1'"); err != nil {
		t.Fatalf("Failed to delete manifest: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM manifest_files").Scan(&count); err != nil {
		t.Fatalf("Failed to count manifest files: %v", err)
	}
	if count != 0 {
		t.Errorf("manifest_files count = %d, want 0 after cascade delete", count)
	}
}

func TestSchema_ManifestFilePathUniquePerManifest(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO manifests (id, destination_root, mode, created_at)
		VALUES ('m-1', '/dest', 'full', datetime('now'))
	`)
	if err != nil {
		t.Fatalf("Failed to insert manifest: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO manifest_files (manifest_id, path, size, modified_at, is_dir)
		VALUES ('m-1', 'a.txt', 1, datetime('now'), 0)
	`)
	if err != nil {
		t.Fatalf("Failed to insert first file record: %v", err)
	}

	// Same path in the same manifest violates the composite primary key.
	_, err = db.Exec(`
		INSERT INTO manifest_files (manifest_id, path, size, modified_at, is_dir)
		VALUES ('m-1', 'a.txt', 2, datetime('now'), 0)
	`)
	if err == nil {
		t.Error("Expected primary key violation for duplicate path, but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	return db
}
