package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMigration(t *testing.T, dir, name, sql string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644); err != nil {
		t.Fatalf("write migration: %v", err)
	}
}

func TestLoadMigrations_SortedByVersion(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "002_slots.sql", "CREATE TABLE b (id int);")
	writeMigration(t, dir, "001_core.sql", "CREATE TABLE a (id int);")
	writeMigration(t, dir, "010_appointments.sql", "CREATE TABLE c (id int);")

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 || migrations[2].Version != 10 {
		t.Errorf("unexpected order: %d, %d, %d",
			migrations[0].Version, migrations[1].Version, migrations[2].Version)
	}
}

func TestLoadMigrations_SkipsNonNumericAndNonSQL(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_core.sql", "CREATE TABLE a (id int);")
	writeMigration(t, dir, "README.md", "not a migration")
	writeMigration(t, dir, "notes_about.sql", "SELECT 1;")

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 1 {
		t.Errorf("expected 1 migration, got %d", len(migrations))
	}
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	m := NewMigrator(nil, "/nonexistent/migrations")
	_, err := m.LoadMigrations()
	if err == nil {
		t.Error("expected error for missing directory")
	}
}
